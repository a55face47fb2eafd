package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/govready/evidence-s3/commands"
	"github.com/govready/evidence-s3/log"
)

var cli = []commands.Command{
	&commands.WHOAMI,
	&commands.UPLOAD,
	&commands.DOWNLOAD,
	&commands.CREDENTIALS,
	&commands.Version{
		Application: commands.APP,
		Version:     commands.VERSION,
	},
}

var help = commands.NewHelp(cli)

var options = commands.Options{
	Config: commands.DEFAULT_CONFIG,
	Debug:  false,
}

func main() {
	flag.StringVar(&options.Config, "config", options.Config, "configuration file with the default AWS and evidence bucket settings")
	flag.BoolVar(&options.Debug, "debug", options.Debug, "Enable debugging information")
	flag.Parse()

	cmd, err := commands.Parse(append(cli, help), flag.Args())
	if err != nil {
		fmt.Printf("\nError parsing command line: %v\n\n", err)
		os.Exit(1)
	}

	if cmd == nil {
		help.PrintUsage()
		os.Exit(1)
	}

	log.SetDebug(options.Debug)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err = cmd.Execute(ctx, &options)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "\n   ERROR: %v\n\n", err)
		os.Exit(1)
	}
}
