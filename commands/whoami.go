package commands

import (
	"context"
	"flag"
	"fmt"

	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"

	"github.com/govready/evidence-s3/identity"
)

var WHOAMI = WhoAmI{
	aws: awsOptions{
		credentials: DEFAULT_CREDENTIALS,
		profile:     DEFAULT_PROFILE,
	},
	alias: false,
}

type WhoAmI struct {
	aws   awsOptions
	alias bool
}

func (w *WhoAmI) Name() string {
	return "whoami"
}

func (w *WhoAmI) FlagSet() *flag.FlagSet {
	flagset := flag.NewFlagSet("whoami", flag.ExitOnError)

	flagset.BoolVar(&w.alias, "alias", w.alias, "Also displays the IAM account alias")
	w.aws.flags(flagset)

	return flagset
}

func (w *WhoAmI) Description() string {
	return "Displays the AWS account and principal used by the current credentials"
}

func (w *WhoAmI) Usage() string {
	return "whoami [--alias]"
}

func (w *WhoAmI) Help() {
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Usage: %s whoami [options]\n", APP)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "    Displays the AWS account and principal that the AWS SDK resolves the current credentials to")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "    Options:")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "      alias       (optional) Also displays the IAM account alias")
	w.aws.help()
	fmt.Fprintln(stdout)
}

func (w *WhoAmI) Execute(ctx context.Context, options *Options) error {
	conf, err := loadConfig(options)
	if err != nil {
		return err
	}

	s, err := w.aws.session(conf)
	if err != nil {
		return err
	}

	return w.execute(ctx, sts.New(s), iam.New(s))
}

func (w *WhoAmI) execute(ctx context.Context, stsclient stsiface.STSAPI, iamclient iamiface.IAMAPI) error {
	id, err := identity.WhoAmI(ctx, stsclient)
	if err != nil {
		return err
	}

	debugf("caller identity  account:%v  arn:%v  user-id:%v", id.Account, id.ARN, id.UserID)

	fmt.Fprintln(stdout, id)

	if w.alias {
		alias, err := identity.Alias(ctx, iamclient)
		if err != nil {
			return fmt.Errorf("could not retrieve account alias (%w)", err)
		}

		if alias == "" {
			warnf("account #%v does not have an alias", id.Account)
		} else {
			fmt.Fprintf(stdout, "Account alias: %v\n", alias)
		}
	}

	return nil
}
