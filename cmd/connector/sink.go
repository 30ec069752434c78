// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/connector/agent"
	"github.com/bureau-foundation/connector/cmd/connector/cli"
	"github.com/bureau-foundation/connector/lib/bytestructure"
	"github.com/bureau-foundation/connector/lib/neuron"
)

func (a *application) sinkCommand() *cli.Command {
	var listen, maxPayload string
	return &cli.Command{
		Name:    "sink",
		Summary: "Accept agents and log their payloads",
		Description: `Listen for agent connections, verify and decompress every sensory
payload and log a summary of it. Runs until interrupted.`,
		Usage: "connector sink [--listen ADDR] [--max-payload SIZE]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("sink", pflag.ContinueOnError)
			flagSet.StringVar(&listen, "listen", net.JoinHostPort(agent.DefaultHost, strconv.Itoa(agent.DefaultRegistrationPort)), "TCP listen address")
			flagSet.StringVar(&maxPayload, "max-payload", "4MB", "largest accepted uncompressed payload")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			var limit datasize.ByteSize
			if err := limit.UnmarshalText([]byte(maxPayload)); err != nil {
				return fmt.Errorf("--max-payload %q: %w", maxPayload, err)
			}
			if limit == 0 || limit.Bytes() > math.MaxUint32 {
				return fmt.Errorf("--max-payload %s out of range", limit)
			}
			listener, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", listen, err)
			}
			return a.serveSink(a.ctx, listener, int(limit.Bytes()))
		},
	}
}

// serveSink runs a logging sink on listener until ctx ends.
func (a *application) serveSink(ctx context.Context, listener net.Listener, maxPayload int) error {
	logger := a.logger.With("command", "sink")
	sink := agent.NewSink(agent.SinkOptions{
		Handler:        func(_ context.Context, delivery agent.Delivery) error { return logDelivery(a, delivery) },
		MaxPayloadSize: maxPayload,
		Logger:         logger,
		Observer: func(event agent.Event) {
			if event.Kind == agent.EventRejected {
				logger.Warn("frame rejected", "agent_id", event.AgentID, "sequence", event.Sequence, "code", event.Code)
			}
		},
	})
	return sink.Serve(ctx, listener)
}

func logDelivery(a *application, delivery agent.Delivery) error {
	structure := delivery.Structure
	attrs := []any{
		"agent_id", delivery.AgentID,
		"sequence", delivery.Sequence,
		"bytes", structure.Len(),
		"structures", structure.Count(),
	}
	for i := range structure.Count() {
		leaf, err := structure.Extract(i)
		if err != nil {
			return err
		}
		if leaf.Type() != bytestructure.TypeNeuronXYZP {
			continue
		}
		neurons, err := neuron.Decode(leaf)
		if err != nil {
			return fmt.Errorf("structure %d: %w", i, err)
		}
		for id, collection := range neurons.All() {
			attrs = append(attrs, id.String(), collection.Len())
		}
	}
	a.logger.Info("received payload", attrs...)
	return nil
}
