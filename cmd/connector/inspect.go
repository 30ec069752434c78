// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/c2h5oh/datasize"

	"github.com/bureau-foundation/connector/cmd/connector/cli"
	"github.com/bureau-foundation/connector/lib/bytestructure"
	"github.com/bureau-foundation/connector/lib/neuron"
)

func (a *application) inspectCommand() *cli.Command {
	return &cli.Command{
		Name:    "inspect",
		Summary: "Describe a payload file",
		Description: `Parse a payload file and print its structure types, sizes and, for
neuron structures, the neuron count of every cortical area.`,
		Usage: "connector inspect FILE",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: connector inspect FILE")
			}
			return a.inspect(args[0])
		},
	}
}

func (a *application) inspect(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}
	structure, err := bytestructure.FromBytes(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(a.stdout, "%s: %s v%d, %s, digest %s\n",
		path, structure.Type(), structure.Version(), datasize.ByteSize(structure.Len()), structure.Digest())
	if !structure.IsMulti() {
		if err := describeLeaf(a.stdout, structure, "  "); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	}
	for i := range structure.Count() {
		leaf, err := structure.Extract(i)
		if err != nil {
			return fmt.Errorf("%s: structure %d: %w", path, i, err)
		}
		fmt.Fprintf(a.stdout, "  [%d] %s, %s\n", i, leaf.Type(), datasize.ByteSize(leaf.Len()))
		if err := describeLeaf(a.stdout, leaf, "      "); err != nil {
			return fmt.Errorf("%s: structure %d: %w", path, i, err)
		}
	}
	return nil
}

func describeLeaf(w io.Writer, leaf bytestructure.Structure, indent string) error {
	switch leaf.Type() {
	case bytestructure.TypeNeuronXYZP:
		neurons, err := neuron.Decode(leaf)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s%d areas, %d neurons\n", indent, neurons.Len(), neurons.NeuronCount())
		for id, collection := range neurons.All() {
			fmt.Fprintf(w, "%s%s  %d neurons\n", indent, id, collection.Len())
		}
	case bytestructure.TypeJSON:
		document, err := leaf.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%sjson document, %s\n", indent, datasize.ByteSize(len(document)))
	}
	return nil
}
