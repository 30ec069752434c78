// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/connector/cmd/connector/cli"
	"github.com/bureau-foundation/connector/lib/bytestructure"
	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/neuron"
	"github.com/bureau-foundation/connector/lib/processor"
	"github.com/bureau-foundation/connector/lib/sensor"
)

func (a *application) demoCommand() *cli.Command {
	var output, sideChannel string
	return &cli.Command{
		Name:    "demo",
		Summary: "Encode a proximity reading and print the payload",
		Description: `Encode one proximity reading end to end.

The demo registers proximity group 1 with three channels of 1x1x10,
runs channel 2 through rolling_average(1) and linear_scale(0..50),
feeds it a raw 70.0 and encodes the cache. The scaled value clamps to
1.0. With --json the neuron payload is combined with the given JSON
document and both parts are extracted back out and compared.`,
		Usage: "connector demo [--output FILE] [--json FILE]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("demo", pflag.ContinueOnError)
			flagSet.StringVarP(&output, "output", "o", "", "write the payload bytes to this file")
			flagSet.StringVar(&sideChannel, "json", "", "combine the payload with this JSON (or JSONC) document")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Write a payload with a JSON side channel", Command: "connector demo --json meta.json --output payload.bin"},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return a.demo(output, sideChannel)
		},
	}
}

// demoChannel is the channel the demo pipeline runs on.
const demoChannel cortical.ChannelIndex = 2

func demoCache(options sensor.Options) (*sensor.Cache, error) {
	cache := sensor.New(options)
	if err := cache.RegisterArea(cortical.Proximity, 1, 3, cortical.Dimensions{Width: 1, Height: 1, Depth: 10}); err != nil {
		return nil, err
	}
	average, err := processor.NewRollingAverage(1, 0)
	if err != nil {
		return nil, err
	}
	scale, err := processor.NewLinearScale(0, 50, 25)
	if err != nil {
		return nil, err
	}
	if err := cache.RegisterChannel(cortical.Proximity, 1, demoChannel, []processor.Processor{average, scale}, false); err != nil {
		return nil, err
	}
	return cache, nil
}

func (a *application) demo(output, sideChannel string) error {
	cache, err := demoCache(sensor.Options{Logger: a.logger})
	if err != nil {
		return fmt.Errorf("building demo cache: %w", err)
	}
	if err := cache.UpdateScalar(70, cortical.Proximity, 1, demoChannel); err != nil {
		return fmt.Errorf("updating proximity: %w", err)
	}
	neurons, err := cache.EncodeToNeurons()
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	printNeurons(a.stdout, neurons, "")

	payload, err := neurons.Encode()
	if err != nil {
		return fmt.Errorf("encoding neuron map: %w", err)
	}

	if sideChannel != "" {
		document, err := readJSONC(sideChannel)
		if err != nil {
			return err
		}
		combined, err := bytestructure.Combine(payload, document)
		if err != nil {
			return fmt.Errorf("combining payload: %w", err)
		}
		for i, original := range []bytestructure.Structure{payload, document} {
			extracted, err := combined.Extract(i)
			if err != nil {
				return fmt.Errorf("extracting structure %d: %w", i, err)
			}
			if !extracted.Equal(original) {
				return fmt.Errorf("structure %d changed in the combined payload", i)
			}
		}
		fmt.Fprintf(a.stdout, "extracted %d structures byte-identical\n", combined.Count())
		payload = combined
	}

	fmt.Fprintf(a.stdout, "payload: %s, %s, digest %s\n",
		describeStructure(payload), datasize.ByteSize(payload.Len()), payload.Digest())

	if output != "" {
		if err := os.WriteFile(output, payload.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing payload: %w", err)
		}
		a.logger.Info("wrote payload", "path", output, "bytes", payload.Len())
	}
	return nil
}

// readJSONC reads a JSON or JSONC file as a JSON structure.
func readJSONC(path string) (bytestructure.Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bytestructure.Structure{}, fmt.Errorf("reading %s: %w", path, err)
	}
	document, err := bytestructure.NewRawJSON(jsonc.ToJSON(data))
	if err != nil {
		return bytestructure.Structure{}, fmt.Errorf("%s: %w", path, err)
	}
	return document, nil
}

func printNeurons(w io.Writer, neurons *neuron.Map, indent string) {
	for id, collection := range neurons.All() {
		fmt.Fprintf(w, "%sarea %s: %d neurons\n", indent, id, collection.Len())
		for _, point := range collection.Points() {
			fmt.Fprintf(w, "%s  %s\n", indent, point)
		}
	}
}

// describeStructure names a structure's type, listing the leaf types
// of a holder.
func describeStructure(s bytestructure.Structure) string {
	if !s.IsMulti() {
		return s.Type().String()
	}
	var leaves []string
	for _, leaf := range s.Types() {
		leaves = append(leaves, leaf.String())
	}
	return fmt.Sprintf("%s (%s)", s.Type(), strings.Join(leaves, ", "))
}
