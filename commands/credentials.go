package commands

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/govready/evidence-s3/provision"
)

var CREDENTIALS = Credentials{
	aws: awsOptions{
		credentials: DEFAULT_CREDENTIALS,
		profile:     DEFAULT_PROFILE,
	},
}

type Credentials struct {
	bucket string
	policy string
	user   string
	read   bool
	write  bool
	aws    awsOptions
}

func (c *Credentials) Name() string {
	return "credentials"
}

func (c *Credentials) FlagSet() *flag.FlagSet {
	flagset := flag.NewFlagSet("credentials", flag.ExitOnError)

	flagset.StringVar(&c.bucket, "bucket", c.bucket, "Name of the evidence bucket")
	flagset.StringVar(&c.policy, "policy", c.policy, "Name of the IAM policy")
	flagset.StringVar(&c.user, "user", c.user, "Name of the IAM user to which to attach the policy")
	flagset.BoolVar(&c.read, "read", c.read, "Creates a read-only policy")
	flagset.BoolVar(&c.write, "write", c.write, "Creates a write-only policy")
	c.aws.flags(flagset)

	return flagset
}

func (c *Credentials) Description() string {
	return "Sets up the evidence bucket and an IAM policy and user with read or write access to it"
}

func (c *Credentials) Usage() string {
	return "credentials --bucket <bucket> --policy <policy> --read|--write [--user <user>]"
}

func (c *Credentials) Help() {
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Usage: %s credentials [options] --bucket <bucket> --policy <policy> --read|--write\n", APP)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "    Creates the evidence bucket (private, with all public access blocked), a read-only or")
	fmt.Fprintln(stdout, "    write-only IAM policy for the bucket and an IAM user with the policy attached. Existing")
	fmt.Fprintln(stdout, "    buckets, policies and users are reused.")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "      bucket      (required) Name of the evidence bucket")
	fmt.Fprintln(stdout, "      policy      (required) Name of the IAM policy")
	fmt.Fprintln(stdout, "      read        (required) Creates a read-only policy. Mutually exclusive with --write")
	fmt.Fprintln(stdout, "      write       (required) Creates a write-only policy. Mutually exclusive with --read")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "    Options:")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "      user        (optional) Name of the IAM user to create and attach the policy to")
	c.aws.help()
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "    Examples:")
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "      %s credentials --read  --bucket govready-es-srv-01 --policy govready-es-srv-01+read  --user govready-es-srv-01+read\n", APP)
	fmt.Fprintf(stdout, "      %s credentials --write --bucket govready-es-srv-01 --policy govready-es-srv-01+write --user govready-es-srv-01+write\n", APP)
	fmt.Fprintln(stdout)
}

func (c *Credentials) Execute(ctx context.Context, options *Options) error {
	conf, err := loadConfig(options)
	if err != nil {
		return err
	}

	bucket := first(c.bucket, conf.Evidence.Bucket)
	if bucket == "" {
		return fmt.Errorf("credentials requires a --bucket")
	}

	if strings.TrimSpace(c.policy) == "" {
		return fmt.Errorf("credentials requires a --policy")
	}

	access, err := provision.AccessFor(c.read, c.write)
	if err != nil {
		return fmt.Errorf("credentials requires exactly one of --read or --write (%w)", err)
	}

	s, err := c.aws.session(conf)
	if err != nil {
		return err
	}

	region := c.aws.resolve(conf).region
	p := provision.NewProvisioner(s3.New(s), iam.New(s), region)

	return c.execute(ctx, p, provision.Request{
		Bucket: bucket,
		Policy: c.policy,
		User:   c.user,
		Access: access,
	})
}

func (c *Credentials) execute(ctx context.Context, p *provision.Provisioner, rq provision.Request) error {
	report := p.Provision(ctx, rq)

	for _, err := range report.Errors {
		errorf("%v", err)
	}

	if report.BucketCreated {
		infof("Created bucket %v", rq.Bucket)
	}

	switch {
	case report.Policy.Created:
		infof("Created %v policy %v (%v)", rq.Access, rq.Policy, report.Policy.ARN)
		if report.Policy.Truncated {
			warnf("policy list was truncated - policy %v may be a duplicate of an existing policy", rq.Policy)
		}

	case report.Policy.ARN != "":
		warnf("--%v ignored because policy %v already exists", rq.Access, rq.Policy)
		if rq.User != "" {
			infof("Attaching existing policy %v.", report.Policy.ARN)
		}
	}

	if report.UserCreated {
		infof("Created user %v", rq.User)
	}

	if report.Attached {
		infof("Attached policy %v to user %v", rq.Policy, rq.User)
	}

	if report.Policy.ARN != "" {
		fmt.Fprintln(stdout, report.Policy.ARN)
	}

	return report.Err()
}
