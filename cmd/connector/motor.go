// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/connector/cmd/connector/cli"
	"github.com/bureau-foundation/connector/lib/bytestructure"
	"github.com/bureau-foundation/connector/lib/config"
	"github.com/bureau-foundation/connector/lib/motor"
)

func (a *application) motorCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "motor",
		Summary: "Decode motor payload files",
		Description: `Build the motor cache from the config file and apply each payload file
to it in order, printing every channel the payload updates. Neuron
structures are decoded directly; multi-structures have each neuron
member applied in turn. Without --config the file named by
CONNECTOR_CONFIG is used.`,
		Usage: "connector motor [--config FILE] PAYLOAD...",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("motor", pflag.ContinueOnError)
			flagSet.StringVarP(&configPath, "config", "c", "", "config file (default: $CONNECTOR_CONFIG)")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Replay recorded motor output", Command: "connector motor --config robot.yaml frame-*.bin"},
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: connector motor [--config FILE] PAYLOAD...")
			}
			return a.decodeMotor(configPath, args)
		},
	}
}

func (a *application) decodeMotor(configPath string, paths []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if len(cfg.Motors.Areas) == 0 {
		return fmt.Errorf("config declares no motor areas")
	}
	cache, err := config.BuildMotorCache(cfg.Motors, motor.Options{Logger: a.logger.With("command", "motor")})
	if err != nil {
		return err
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
		structure, err := bytestructure.FromBytes(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		leaves := []bytestructure.Structure{structure}
		if structure.IsMulti() {
			leaves = leaves[:0]
			for i := range structure.Count() {
				leaf, err := structure.Extract(i)
				if err != nil {
					return fmt.Errorf("%s: structure %d: %w", path, i, err)
				}
				if leaf.Type() == bytestructure.TypeNeuronXYZP {
					leaves = append(leaves, leaf)
				}
			}
		}

		fmt.Fprintf(a.stdout, "%s:\n", path)
		for _, leaf := range leaves {
			updates, err := cache.DecodeBytes(leaf)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			for _, update := range updates {
				fmt.Fprintf(a.stdout, "  %s[%d] %s raw=%g value=%g\n",
					update.Area, update.Channel, update.MotorType.Key(), update.Raw, update.Value)
			}
		}
	}
	return nil
}
