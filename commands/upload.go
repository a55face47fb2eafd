package commands

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/dustin/go-humanize"

	"github.com/govready/evidence-s3/auth"
	"github.com/govready/evidence-s3/objects"
)

var UPLOAD = Upload{
	aws: awsOptions{
		credentials: DEFAULT_CREDENTIALS,
		profile:     DEFAULT_PROFILE,
	},
}

type Upload struct {
	bucket   string
	file     string
	family   string
	strip    string
	sign     string
	metadata metadataFlag
	aws      awsOptions
}

// metadataFlag collects repeated --metadata KEY=VALUE flags. The list stays nil if the flag is
// never given.
type metadataFlag struct {
	pairs []string
}

func (m *metadataFlag) String() string {
	if m == nil {
		return ""
	}

	return strings.Join(m.pairs, ",")
}

func (m *metadataFlag) Set(v string) error {
	m.pairs = append(m.pairs, v)

	return nil
}

func (u *Upload) Name() string {
	return "upload"
}

func (u *Upload) FlagSet() *flag.FlagSet {
	flagset := flag.NewFlagSet("upload", flag.ExitOnError)

	flagset.StringVar(&u.bucket, "bucket", u.bucket, "Name of the destination bucket")
	flagset.StringVar(&u.file, "file", u.file, "Path to the evidence file to upload")
	flagset.StringVar(&u.family, "family", u.family, "Control family (category) used as the key prefix, e.g. AC")
	flagset.StringVar(&u.strip, "strip", u.strip, "Prefix to remove from the file path to create the object key. Defaults to the file basename")
	flagset.StringVar(&u.sign, "sign", u.sign, "RSA private key used to sign the evidence file")
	flagset.Var(&u.metadata, "metadata", "Object metadata as KEY=VALUE (repeatable)")
	u.aws.flags(flagset)

	return flagset
}

func (u *Upload) Description() string {
	return "Uploads an evidence file to an S3 bucket"
}

func (u *Upload) Usage() string {
	return "upload --bucket <bucket> --file <file> --family <family> [--metadata KEY=VALUE]... [--strip <prefix>] [--sign <keyfile>]"
}

func (u *Upload) Help() {
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Usage: %s upload [options] --bucket <bucket> --file <file> --family <family>\n", APP)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "    Uploads an evidence file to the bucket. The object key is the file name, prefixed by the")
	fmt.Fprintln(stdout, "    control family e.g. AC/screenshot.png. An existing object with the same key is replaced.")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "      bucket      (required) Name of the destination bucket (defaults to evidence.bucket in the config file)")
	fmt.Fprintln(stdout, "      file        (required) Path to the evidence file")
	fmt.Fprintln(stdout, "      family      (required) Control family used to namespace the object key (defaults to evidence.family in the config file)")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "    Options:")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "      metadata    (optional) KEY=VALUE metadata for the object. May be repeated, later keys replace earlier keys")
	fmt.Fprintln(stdout, "      strip       (optional) Prefix removed from the file path to create the key, e.g. --strip /home/auditor/evidence/")
	fmt.Fprintln(stdout, "      sign        (optional) RSA private key (PKCS#8 PEM) used to sign the evidence file")
	u.aws.help()
	fmt.Fprintln(stdout)
}

func (u *Upload) Execute(ctx context.Context, options *Options) error {
	conf, err := loadConfig(options)
	if err != nil {
		return err
	}

	bucket := first(u.bucket, conf.Evidence.Bucket)
	family := first(u.family, conf.Evidence.Family)

	if bucket == "" {
		return fmt.Errorf("upload requires a --bucket")
	}

	if strings.TrimSpace(u.file) == "" {
		return fmt.Errorf("upload requires a --file")
	}

	if family == "" {
		return fmt.Errorf("upload requires a --family")
	}

	key, err := objects.DeriveKey(u.file, family, u.strip)
	if err != nil {
		return err
	}

	metadata, err := objects.ParseMetadata(u.metadata.pairs)
	if err != nil {
		return err
	}

	if u.sign != "" {
		signedBy, signature, err := auth.Sign(u.file, u.sign)
		if err != nil {
			return fmt.Errorf("could not sign %v (%w)", u.file, err)
		}

		debugf("signed %v with key %v", u.file, signedBy)
		metadata = auth.AddSignature(metadata, signedBy, signature)
	}

	s, err := u.aws.session(conf)
	if err != nil {
		return err
	}

	return u.execute(ctx, objects.NewStore(s3.New(s)), bucket, key, metadata)
}

func (u *Upload) execute(ctx context.Context, store *objects.Store, bucket, key string, metadata map[string]string) error {
	debugf("uploading %v to s3://%v/%v  metadata:%v", u.file, bucket, key, objects.FormatMetadata(metadata))

	location, N, err := store.PutFile(ctx, bucket, key, u.file, metadata)
	if err != nil {
		return fmt.Errorf("upload of %v to s3://%v/%v failed (%w)", u.file, bucket, key, err)
	}

	infof("Uploaded %v to %v (%v)", u.file, location, humanize.Bytes(uint64(N)))

	fmt.Fprintf(stdout, "s3://%v/%v\n", bucket, key)

	return nil
}
