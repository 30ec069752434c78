// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/connector/cmd/connector/cli"
	"github.com/bureau-foundation/connector/lib/genome"
)

func (a *application) genomeCommand() *cli.Command {
	return &cli.Command{
		Name:    "genome",
		Summary: "Validate and repair genome files",
		Subcommands: []*cli.Command{
			a.genomeValidateCommand(),
			a.genomeFixCommand(),
		},
	}
}

func (a *application) genomeValidateCommand() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:    "validate",
		Summary: "Report genome errors and warnings",
		Description: `Check a genome (JSON or JSONC) and print every error and warning.
Exits 1 when the genome has errors.`,
		Usage: "connector genome validate FILE [--json]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("validate", pflag.ContinueOnError)
			flagSet.BoolVar(&asJSON, "json", false, "print the result as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: connector genome validate FILE")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading genome: %w", err)
			}
			result, err := genome.Validate(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if asJSON {
				encoder := json.NewEncoder(a.stdout)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(result); err != nil {
					return err
				}
			} else {
				for _, message := range result.Errors {
					fmt.Fprintf(a.stdout, "error: %s\n", message)
				}
				for _, message := range result.Warnings {
					fmt.Fprintf(a.stdout, "warning: %s\n", message)
				}
				status := "valid"
				if !result.Valid {
					status = "invalid"
				}
				fmt.Fprintf(a.stdout, "%s: %s (%d errors, %d warnings)\n",
					args[0], status, len(result.Errors), len(result.Warnings))
			}
			if !result.Valid {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func (a *application) genomeFixCommand() *cli.Command {
	var output string
	return &cli.Command{
		Name:    "fix",
		Summary: "Apply automatic genome fixes",
		Description: `Repair the fixable problems in a genome and write the result to
--output, or to stdout. Comments are not preserved.`,
		Usage: "connector genome fix FILE [--output FILE]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("fix", pflag.ContinueOnError)
			flagSet.StringVarP(&output, "output", "o", "", "write the fixed genome here instead of stdout")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: connector genome fix FILE [--output FILE]")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading genome: %w", err)
			}
			fixed, fixes, err := genome.AutoFix(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if output == "" {
				_, err := fmt.Fprint(a.stdout, fixed)
				a.logger.Info("fixed genome", "path", args[0], "fixes", fixes)
				return err
			}
			if err := os.WriteFile(output, []byte(fixed), 0o644); err != nil {
				return fmt.Errorf("writing fixed genome: %w", err)
			}
			a.logger.Info("fixed genome", "path", args[0], "output", output, "fixes", fixes)
			return nil
		},
	}
}
