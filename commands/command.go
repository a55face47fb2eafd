package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/govready/evidence-s3/config"
	"github.com/govready/evidence-s3/log"
)

const APP = "evidence-s3"

type Options struct {
	Config string
	Debug  bool
}

type Command interface {
	Name() string
	FlagSet() *flag.FlagSet
	Description() string
	Usage() string
	Help()
	Execute(ctx context.Context, options *Options) error
}

// Command output goes to stdout, diagnostics and warnings to stderr.
var stdout io.Writer = os.Stdout
var stderr io.Writer = os.Stderr

// Parse finds the command named by the first argument and parses the remaining arguments with
// the command's flagset. Returns nil if there are no arguments.
func Parse(cli []Command, args []string) (Command, error) {
	if len(args) == 0 {
		return nil, nil
	}

	for _, c := range cli {
		if c.Name() == args[0] {
			flagset := c.FlagSet()
			if err := flagset.Parse(args[1:]); err != nil {
				return nil, err
			}

			return c, nil
		}
	}

	return nil, fmt.Errorf("invalid command: %v", args[0])
}

func loadConfig(options *Options) (*config.Config, error) {
	conf := config.NewConfig()

	if options != nil {
		if err := conf.Load(options.Config); err != nil {
			return nil, fmt.Errorf("could not load configuration (%w)", err)
		}
	}

	if conf.Log.Level != "" {
		log.SetLevel(conf.Log.Level)
	}

	return conf, nil
}

// first returns the first non-blank value, which lets command line flags override the
// configuration file.
func first(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}

	return ""
}

func helpOptions(flagset *flag.FlagSet) {
	count := 0
	flag.VisitAll(func(f *flag.Flag) {
		count++
	})

	flagset.VisitAll(func(f *flag.Flag) {
		fmt.Fprintf(stdout, "    --%-13s %s\n", f.Name, f.Usage)
	})

	if count > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "  Options:")
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(stdout, "    --%-13s %s\n", f.Name, f.Usage)
		})
	}
}

func debugf(format string, args ...any) {
	log.Debugf(format, args...)
}

func infof(format string, args ...any) {
	log.Infof(format, args...)
}

func warnf(format string, args ...any) {
	log.Warnf(format, args...)
}

func errorf(format string, args ...any) {
	log.Errorf(format, args...)
}
