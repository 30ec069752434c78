// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/connector/cmd/connector/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// application carries the process streams and logger shared by every
// command.
type application struct {
	ctx     context.Context
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
	verbose bool
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	global := pflag.NewFlagSet("connector", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(io.Discard)
	envFile := global.String("env-file", "", "load environment variables from this dotenv file first")
	verbose := global.BoolP("verbose", "v", false, "log at debug level")

	app := &application{ctx: ctx, stdin: stdin, stdout: stdout, stderr: stderr}
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			app.rootCommand().PrintHelp(stderr)
			return nil
		}
		return fmt.Errorf("%w\n\nRun 'connector --help' for usage.", err)
	}
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("loading env file %s: %w", *envFile, err)
		}
	}
	app.verbose = *verbose
	app.logger = cli.NewLogger(stderr, *verbose)
	return app.rootCommand().Execute(global.Args())
}

func (a *application) rootCommand() *cli.Command {
	return &cli.Command{
		Name:        "connector",
		Description: "Encode sensor readings into FEAGI neuron payloads and ship them to a sink.",
		HelpOutput:  a.stderr,
		Subcommands: []*cli.Command{
			a.demoCommand(),
			a.inspectCommand(),
			a.genomeCommand(),
			a.motorCommand(),
			a.runCommand(),
			a.sinkCommand(),
			a.versionCommand(),
		},
	}
}
