package commands

import (
	"context"
	"flag"
	"fmt"
)

type Help struct {
	cli     []Command
	flagset *flag.FlagSet
}

func NewHelp(cli []Command) *Help {
	return &Help{
		cli: cli,
	}
}

func (h *Help) Name() string {
	return "help"
}

func (h *Help) FlagSet() *flag.FlagSet {
	h.flagset = flag.NewFlagSet("help", flag.ExitOnError)

	return h.flagset
}

func (h *Help) Description() string {
	return "Displays the help for a command"
}

func (h *Help) Usage() string {
	return "help [command]"
}

func (h *Help) Help() {
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Usage: %s help [command]\n", APP)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "    Displays the list of commands or the detailed help for a command")
	fmt.Fprintln(stdout)
}

func (h *Help) Execute(ctx context.Context, options *Options) error {
	if h.flagset == nil || h.flagset.NArg() == 0 {
		h.PrintUsage()
		return nil
	}

	name := h.flagset.Arg(0)
	if name == h.Name() {
		h.Help()
		return nil
	}

	for _, c := range h.cli {
		if c.Name() == name {
			c.Help()
			return nil
		}
	}

	return fmt.Errorf("invalid command: %v", name)
}

// PrintUsage prints the general usage and the list of commands.
func (h *Help) PrintUsage() {
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Usage: %s [--config <file>] [--debug] <command> [options]\n", APP)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "  Commands:")
	fmt.Fprintln(stdout)
	for _, c := range h.cli {
		fmt.Fprintf(stdout, "    %-13s %s\n", c.Name(), c.Description())
	}
	fmt.Fprintf(stdout, "    %-13s %s\n", h.Name(), h.Description())
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Use '%s help <command>' for the options of a command\n", APP)
	fmt.Fprintln(stdout)
	helpOptions(flag.NewFlagSet("", flag.ContinueOnError))
	fmt.Fprintln(stdout)
}
