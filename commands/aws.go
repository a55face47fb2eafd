package commands

import (
	"flag"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/mitchellh/go-homedir"

	"github.com/govready/evidence-s3/config"
)

// awsOptions holds the AWS session flags shared by all commands. Flags left at their zero value
// are filled in from the configuration file and then from the compiled in defaults.
type awsOptions struct {
	credentials string
	profile     string
	region      string
	endpoint    string
	pathStyle   bool
}

func (a *awsOptions) flags(flagset *flag.FlagSet) {
	flagset.StringVar(&a.credentials, "credentials", a.credentials, "AWS credentials file (defaults to the AWS SDK credentials chain)")
	flagset.StringVar(&a.profile, "profile", a.profile, "AWS credentials profile")
	flagset.StringVar(&a.region, "region", a.region, fmt.Sprintf("AWS region (defaults to %v)", DEFAULT_REGION))
	flagset.StringVar(&a.endpoint, "endpoint", a.endpoint, "S3 compatible endpoint URL, e.g. for testing with a local object store")
	flagset.BoolVar(&a.pathStyle, "path-style", a.pathStyle, "Uses path style S3 URLs (required by most S3 compatible object stores)")
}

func (a *awsOptions) help() {
	fmt.Fprintf(stdout, "      credentials (optional) AWS credentials file. Defaults to the AWS SDK credentials chain (environment, shared credentials, instance role)\n")
	fmt.Fprintf(stdout, "      profile     (optional) AWS credentials profile\n")
	fmt.Fprintf(stdout, "      region      (optional) AWS region (defaults to %s)\n", DEFAULT_REGION)
	fmt.Fprintf(stdout, "      endpoint    (optional) S3 compatible endpoint URL\n")
	fmt.Fprintf(stdout, "      path-style  (optional) Uses path style S3 URLs\n")
}

func (a awsOptions) resolve(conf *config.Config) awsOptions {
	resolved := awsOptions{
		credentials: first(a.credentials, conf.AWS.Credentials, DEFAULT_CREDENTIALS),
		profile:     first(a.profile, conf.AWS.Profile, DEFAULT_PROFILE),
		region:      first(a.region, conf.AWS.Region, DEFAULT_REGION),
		endpoint:    first(a.endpoint, conf.AWS.Endpoint),
		pathStyle:   a.pathStyle || conf.AWS.PathStyle,
	}

	return resolved
}

func (a awsOptions) session(conf *config.Config) (*session.Session, error) {
	resolved := a.resolve(conf)

	cfg := aws.NewConfig().
		WithRegion(resolved.region).
		WithS3ForcePathStyle(resolved.pathStyle)

	if resolved.endpoint != "" {
		cfg = cfg.WithEndpoint(resolved.endpoint)
	}

	if resolved.credentials != "" {
		creds, err := getAWSCredentials(resolved.credentials, resolved.profile)
		if err != nil {
			return nil, err
		}

		cfg = cfg.WithCredentials(creds)
	}

	debugf("AWS session  region:%v  profile:%v  credentials:%v  endpoint:%v",
		resolved.region, resolved.profile, resolved.credentials, resolved.endpoint)

	return session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		Profile:           resolved.profile,
		SharedConfigState: session.SharedConfigEnable,
	})
}

func getAWSCredentials(file, profile string) (*credentials.Credentials, error) {
	path, err := homedir.Expand(file)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("invalid AWS credentials file (%w)", err)
	}

	return credentials.NewSharedCredentials(path, profile), nil
}
