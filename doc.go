// Copyright 2026 The evidence-s3 Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license
// that can be found in the LICENSE file.

/*
Package evidence moves compliance evidence files into and out of an Amazon S3 bucket and
provisions least-privilege credentials for the bucket.

evidence-s3 is a command line tool intended to be chained by an operator (or a CI job) collecting
screenshots and other artefacts for a compliance audit. It supports the following commands:

  - whoami, to display the AWS account and principal the current credentials resolve to
  - upload, to upload an evidence file under a key derived from its path and category ("family")
  - download, to list the bucket contents, download an evidence file or create a pre-signed link to it
  - credentials, to create the evidence bucket, a read-only or write-only policy and a user bound to it
*/
package evidence
