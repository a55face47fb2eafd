package commands

import (
	"context"
	"flag"
	"fmt"
)

const VERSION = "v0.1.0"

type Version struct {
	Application string
	Version     string
}

func (v *Version) Name() string {
	return "version"
}

func (v *Version) FlagSet() *flag.FlagSet {
	return flag.NewFlagSet("version", flag.ExitOnError)
}

func (v *Version) Description() string {
	return fmt.Sprintf("Displays the current version of %v", v.Application)
}

func (v *Version) Usage() string {
	return "version"
}

func (v *Version) Help() {
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Displays the %s version in the format v<major>.<minor>.<build> e.g. v1.00.10\n", v.Application)
	fmt.Fprintln(stdout)
}

func (v *Version) Execute(ctx context.Context, options *Options) error {
	fmt.Fprintf(stdout, "%v\n", v.Version)

	return nil
}
