// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/connector/agent"
	"github.com/bureau-foundation/connector/cmd/connector/cli"
	"github.com/bureau-foundation/connector/lib/config"
	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/sensor"
)

func (a *application) runCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "run",
		Summary: "Stream stdin samples to a sink",
		Description: `Build the sensor cache from the config file, register the agent and
stream samples read from stdin. Each line is

  SENSOR GROUP CHANNEL VALUE

for example "proximity 1 2 70.0". Blank lines and lines starting with
# are ignored. The cache is encoded and sent every sensors.send_interval
and once more when stdin closes. A registration lost by a heartbeat or a
send is re-established with the configured retries, and a payload whose
send lost it is sent again. Without --config the file named by
CONNECTOR_CONFIG is used.`,
		Usage: "connector run [--config FILE]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.StringVarP(&configPath, "config", "c", "", "config file (default: $CONNECTOR_CONFIG)")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Replay a recorded sensor log", Command: "connector run --config robot.yaml < samples.txt"},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return a.runAgent(configPath)
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func (a *application) runAgent(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	settings, err := agentConfig(cfg.Agent)
	if err != nil {
		return err
	}
	logger := a.logger.With("command", "run", "agent_id", settings.AgentID)

	cache, err := config.BuildCache(cfg.Sensors, sensor.Options{Logger: logger})
	if err != nil {
		return err
	}
	client, err := agent.NewClient(settings, agent.ClientOptions{Logger: logger})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		cancel()
		closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), settings.ConnectionTimeout)
		defer closeCancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Warn("deregistering agent failed", "error", err)
		}
	}()

	heartbeat := make(chan error, 1)
	startHeartbeat := func() { go func() { heartbeat <- client.RunHeartbeat(ctx) }() }
	startHeartbeat()

	samples := make(chan sample)
	go readSamples(ctx, a.stdin, samples, logger)

	ticker := time.NewTicker(cfg.Sensors.SendInterval.Std())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-heartbeat:
			if err == nil {
				heartbeat = nil
				continue
			}
			if err := reconnect(ctx, client, logger, "heartbeat", err); err != nil {
				return err
			}
			startHeartbeat()
		case update, ok := <-samples:
			if !ok {
				return flush(ctx, cache, client, logger)
			}
			if err := cache.UpdateScalar(update.value, update.sensorType, update.group, update.channel); err != nil {
				logger.Warn("dropping sample", "error", err)
			}
		case <-ticker.C:
			if err := flush(ctx, cache, client, logger); err != nil {
				return err
			}
		}
	}
}

// reconnect re-registers after a failed heartbeat or send. A failure
// while the registration still holds is returned as is; a lost
// registration is re-established with Connect, and only a failed
// Connect ends the run.
func reconnect(ctx context.Context, client *agent.Client, logger *slog.Logger, operation string, cause error) error {
	if client.IsRegistered() {
		return fmt.Errorf("%s: %w", operation, cause)
	}
	logger.Warn("registration lost, reconnecting", "operation", operation, "error", cause)
	if err := client.Connect(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// flush encodes the cache and sends it. A rejected payload is logged
// and dropped. When the registration was lost the payload is sent
// again once the agent has reconnected, since encoding already cleared
// the cache's freshness.
func flush(ctx context.Context, cache *sensor.Cache, client *agent.Client, logger *slog.Logger) error {
	neurons, err := cache.EncodeToNeurons()
	if err != nil {
		logger.Warn("skipping send", "error", err)
		return nil
	}
	if neurons.Len() == 0 {
		return nil
	}
	structure, err := neurons.Encode()
	if err != nil {
		return fmt.Errorf("encoding sensory payload: %w", err)
	}

	for attempt := 0; ; attempt++ {
		err = client.SendSensoryStructure(ctx, structure)
		if err == nil {
			logger.Debug("sent sensory payload",
				"areas", neurons.Len(),
				"neurons", neurons.NeuronCount(),
				"bytes", structure.Len(),
			)
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		var remote *agent.RemoteError
		if client.IsRegistered() && errors.As(err, &remote) {
			logger.Warn("sink rejected payload", "code", remote.Code, "error", err)
			return nil
		}
		if attempt > 0 {
			return fmt.Errorf("sending sensory payload after reconnecting: %w", err)
		}
		if err := reconnect(ctx, client, logger, "sending sensory payload", err); err != nil {
			return err
		}
	}
}

// sample is one parsed stdin line.
type sample struct {
	sensorType cortical.SensorType
	group      cortical.GroupIndex
	channel    cortical.ChannelIndex
	value      float32
}

// parseSample parses "SENSOR GROUP CHANNEL VALUE". ok is false for
// blank and comment lines.
func parseSample(line string) (update sample, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return sample{}, false, nil
	}
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return sample{}, false, fmt.Errorf("want SENSOR GROUP CHANNEL VALUE, got %d fields", len(fields))
	}

	sensorType, err := cortical.ParseSensorType(fields[0])
	if err != nil {
		return sample{}, false, err
	}
	if sensorType.Kind() != cortical.DataScalar {
		return sample{}, false, fmt.Errorf("%s takes image frames, not scalar samples", sensorType.Key())
	}
	group, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return sample{}, false, fmt.Errorf("group %q: %w", fields[1], err)
	}
	channel, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return sample{}, false, fmt.Errorf("channel %q: %w", fields[2], err)
	}
	value, err := strconv.ParseFloat(fields[3], 32)
	if err != nil {
		return sample{}, false, fmt.Errorf("value %q: %w", fields[3], err)
	}
	return sample{
		sensorType: sensorType,
		group:      cortical.GroupIndex(group),
		channel:    cortical.ChannelIndex(channel),
		value:      float32(value),
	}, true, nil
}

// readSamples parses r line by line into samples and closes samples at
// end of input. Unparseable lines are logged and skipped.
func readSamples(ctx context.Context, r io.Reader, samples chan<- sample, logger *slog.Logger) {
	defer close(samples)
	scanner := bufio.NewScanner(r)
	for number := 1; scanner.Scan(); number++ {
		update, ok, err := parseSample(scanner.Text())
		if err != nil {
			logger.Warn("skipping input line", "line", number, "error", err)
			continue
		}
		if !ok {
			continue
		}
		select {
		case samples <- update:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("reading stdin", "error", err)
	}
}
