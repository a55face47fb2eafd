package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/dustin/go-humanize"

	"github.com/govready/evidence-s3/auth"
	"github.com/govready/evidence-s3/objects"
)

var DOWNLOAD = Download{
	dir: ".",
	aws: awsOptions{
		credentials: DEFAULT_CREDENTIALS,
		profile:     DEFAULT_PROFILE,
	},
}

type Download struct {
	bucket   string
	file     string
	dir      string
	keys     string
	metadata bool
	url      bool
	verify   bool
	aws      awsOptions
}

func (d *Download) Name() string {
	return "download"
}

func (d *Download) FlagSet() *flag.FlagSet {
	flagset := flag.NewFlagSet("download", flag.ExitOnError)

	flagset.StringVar(&d.bucket, "bucket", d.bucket, "Name of the source bucket")
	flagset.StringVar(&d.file, "file", d.file, "Key of the evidence file to download. Lists the bucket contents if not specified")
	flagset.StringVar(&d.dir, "dir", d.dir, "Directory for downloaded evidence files")
	flagset.BoolVar(&d.metadata, "metadata", d.metadata, "Displays the object metadata")
	flagset.BoolVar(&d.url, "url", d.url, "Creates a pre-signed download link instead of downloading the file")
	flagset.BoolVar(&d.verify, "verify", d.verify, "Verifies the RSA signature of the downloaded file")
	flagset.StringVar(&d.keys, "keys", d.keys, "Directory of RSA public keys ('<signed-by>.pub') for --verify")
	d.aws.flags(flagset)

	return flagset
}

func (d *Download) Description() string {
	return "Downloads evidence from an S3 bucket, or lists the bucket contents"
}

func (d *Download) Usage() string {
	return "download --bucket <bucket> [--file <key>] [--dir <dir>] [--metadata] [--url] [--verify] [--keys <dir>]"
}

func (d *Download) Help() {
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Usage: %s download [options] --bucket <bucket> [--file <key>]\n", APP)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "    Downloads an evidence file from the bucket. If no file is specified, prints the keys of all")
	fmt.Fprintln(stdout, "    the files in the bucket (first page only). Existing local files are never overwritten.")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "      bucket      (required) Name of the source bucket (defaults to evidence.bucket in the config file)")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "    Options:")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "      file        (optional) Key of the evidence file to download")
	fmt.Fprintln(stdout, "      dir         (optional) Directory for the downloaded file (defaults to the current directory)")
	fmt.Fprintln(stdout, "      metadata    (optional) Displays the object metadata")
	fmt.Fprintf(stdout, "      url         (optional) Prints a pre-signed link to the file, valid for %v, instead of downloading it\n", objects.LinkExpiry)
	fmt.Fprintln(stdout, "      verify      (optional) Verifies the RSA signature of the downloaded file")
	fmt.Fprintf(stdout, "      keys        (optional) Directory of RSA public keys for --verify (defaults to %v)\n", DEFAULT_KEYSDIR)
	d.aws.help()
	fmt.Fprintln(stdout)
}

func (d *Download) Execute(ctx context.Context, options *Options) error {
	conf, err := loadConfig(options)
	if err != nil {
		return err
	}

	bucket := first(d.bucket, conf.Evidence.Bucket)
	if bucket == "" {
		return fmt.Errorf("download requires a --bucket")
	}

	d.keys = first(d.keys, conf.Evidence.Keys, DEFAULT_KEYSDIR)

	s, err := d.aws.session(conf)
	if err != nil {
		return err
	}

	return d.execute(ctx, objects.NewStore(s3.New(s)), bucket)
}

func (d *Download) execute(ctx context.Context, store *objects.Store, bucket string) error {
	switch {
	case strings.TrimSpace(d.file) == "":
		return d.list(ctx, store, bucket)

	case d.url:
		return d.link(ctx, store, bucket)

	default:
		return d.get(ctx, store, bucket)
	}
}

func (d *Download) list(ctx context.Context, store *objects.Store, bucket string) error {
	page, err := store.List(ctx, bucket, "")
	if err != nil {
		return err
	}

	for _, object := range page.Objects {
		if !d.metadata {
			fmt.Fprintln(stdout, object.Key)
			continue
		}

		metadata, err := store.Metadata(ctx, bucket, object.Key)
		if err != nil {
			return fmt.Errorf("could not retrieve metadata for %v (%w)", object.Key, err)
		}

		fmt.Fprintf(stdout, "%v %v\n", object.Key, objects.FormatMetadata(metadata))
	}

	debugf("listed %v objects in %v  truncated:%v  next:%v", len(page.Objects), bucket, page.Truncated, page.Next)

	if page.Truncated {
		fmt.Fprintf(stderr, "WARNING: List truncated at %v objects.\n", page.MaxKeys)
	}

	return nil
}

func (d *Download) link(ctx context.Context, store *objects.Store, bucket string) error {
	url, err := store.Presign(ctx, bucket, d.file)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, url)

	return nil
}

func (d *Download) get(ctx context.Context, store *objects.Store, bucket string) error {
	file, err := objects.LocalPath(first(d.dir, "."), d.file)
	if err != nil {
		return err
	}

	N, err := store.Get(ctx, bucket, d.file, file)
	if err != nil {
		return err
	}

	infof("Downloaded s3://%v/%v to %v (%v)", bucket, d.file, file, humanize.Bytes(uint64(N)))

	if !d.metadata && !d.verify {
		return nil
	}

	metadata, err := store.Metadata(ctx, bucket, d.file)
	if err != nil {
		return d.discard(file, fmt.Errorf("could not retrieve metadata for %v (%w)", d.file, err))
	}

	if d.metadata {
		fmt.Fprintf(stdout, "%v %v\n", d.file, objects.FormatMetadata(metadata))
	}

	if d.verify {
		signedBy, signature, err := auth.GetSignature(metadata)
		if err != nil {
			return d.discard(file, fmt.Errorf("%v: %w", d.file, err))
		}

		if err := auth.Verify(signedBy, file, signature, d.keys); err != nil {
			errorf("%v failed signature verification", file)
			return d.discard(file, err)
		}

		infof("Verified signature on %v (signed by %v)", file, signedBy)
	}

	return nil
}

// discard removes a downloaded file that could not be verified, so that an unverified copy is
// never left in place of the evidence.
func (d *Download) discard(file string, err error) error {
	if !d.verify {
		return err
	}

	if rmerr := os.Remove(file); rmerr != nil {
		warnf("could not remove unverified file %v (%v)", file, rmerr)
	} else {
		debugf("removed unverified file %v", file)
	}

	return err
}
