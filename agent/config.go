// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"encoding/json"
	"errors"
	"maps"
	"math"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/connector/lib/compress"
	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
	"github.com/bureau-foundation/connector/lib/processor"
)

// Default endpoint layout, matching a sink started with defaults on the
// local host.
const (
	DefaultHost              = "127.0.0.1"
	DefaultRegistrationPort  = 30001
	DefaultSensoryPort       = 5558
	DefaultMotorPort         = 5564
	DefaultVisualizationPort = 5562
	DefaultControlPort       = 5563
)

const (
	DefaultHeartbeatInterval   = 5 * time.Second
	DefaultConnectionTimeout   = 5 * time.Second
	DefaultRegistrationRetries = 3
	DefaultRetryBackoff        = 500 * time.Millisecond
	DefaultMaxPayloadSize      = 4 << 20

	// maxRetryBackoff caps the doubling registration backoff.
	maxRetryBackoff = 30 * time.Second

	maxAgentIDLength = 128
)

// Endpoints are host:port addresses. The client dials Registration and
// carries every frame over that one connection; the remaining
// endpoints are advertised to the sink at registration.
type Endpoints struct {
	Registration  string `cbor:"registration"`
	Sensory       string `cbor:"sensory,omitempty"`
	Motor         string `cbor:"motor,omitempty"`
	Visualization string `cbor:"visualization,omitempty"`
	Control       string `cbor:"control,omitempty"`
}

// Config describes one agent. Build it with [NewConfig] and the With
// methods, each of which returns a modified copy:
//
//	config := agent.NewConfig("robot-1", agent.Sensory).
//		WithFeagiEndpoints("10.0.0.5", 30001, 5558, 5564, 5562, 5563).
//		WithHeartbeatInterval(2 * time.Second)
//
// Call [Config.Validate] (or [NewClient], which calls it) before use.
type Config struct {
	AgentID   string
	AgentType AgentType
	Endpoints Endpoints

	// HeartbeatInterval is the period of [Client.RunHeartbeat]. Zero
	// disables heartbeats.
	HeartbeatInterval time.Duration

	// ConnectionTimeout bounds each dial and each frame/ack exchange.
	ConnectionTimeout time.Duration

	// RegistrationRetries is the number of additional registration
	// attempts after the first one fails.
	RegistrationRetries int

	// RetryBackoff is the wait before the first retry. It doubles on
	// every subsequent retry.
	RetryBackoff time.Duration

	// Compression is the envelope applied to sensory payloads.
	Compression compress.Tag

	// MaxPayloadSize bounds the uncompressed size of one sensory
	// payload.
	MaxPayloadSize int

	Vision *VisionCapability
	Motor  *MotorCapability

	// Custom holds raw JSON capability values by name.
	Custom map[string]json.RawMessage
}

// NewConfig returns a configuration with default endpoints on
// [DefaultHost] and default timing.
func NewConfig(agentID string, agentType AgentType) Config {
	return Config{
		AgentID:             agentID,
		AgentType:           agentType,
		HeartbeatInterval:   DefaultHeartbeatInterval,
		ConnectionTimeout:   DefaultConnectionTimeout,
		RegistrationRetries: DefaultRegistrationRetries,
		RetryBackoff:        DefaultRetryBackoff,
		Compression:         compress.LZ4,
		MaxPayloadSize:      DefaultMaxPayloadSize,
	}.WithFeagiEndpoints(DefaultHost, DefaultRegistrationPort, DefaultSensoryPort,
		DefaultMotorPort, DefaultVisualizationPort, DefaultControlPort)
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// WithFeagiEndpoints sets every endpoint from one host and five ports.
func (c Config) WithFeagiEndpoints(host string, registrationPort, sensoryPort, motorPort, visualizationPort, controlPort int) Config {
	c.Endpoints = Endpoints{
		Registration:  hostPort(host, registrationPort),
		Sensory:       hostPort(host, sensoryPort),
		Motor:         hostPort(host, motorPort),
		Visualization: hostPort(host, visualizationPort),
		Control:       hostPort(host, controlPort),
	}
	return c
}

// WithRegistrationEndpoint overrides the dialed endpoint.
func (c Config) WithRegistrationEndpoint(endpoint string) Config {
	c.Endpoints.Registration = endpoint
	return c
}

// WithSensoryEndpoint overrides the advertised sensory endpoint.
func (c Config) WithSensoryEndpoint(endpoint string) Config {
	c.Endpoints.Sensory = endpoint
	return c
}

// WithMotorEndpoint overrides the advertised motor endpoint.
func (c Config) WithMotorEndpoint(endpoint string) Config {
	c.Endpoints.Motor = endpoint
	return c
}

func (c Config) WithHeartbeatInterval(interval time.Duration) Config {
	c.HeartbeatInterval = interval
	return c
}

func (c Config) WithConnectionTimeout(timeout time.Duration) Config {
	c.ConnectionTimeout = timeout
	return c
}

func (c Config) WithRegistrationRetries(retries int) Config {
	c.RegistrationRetries = retries
	return c
}

func (c Config) WithRetryBackoff(backoff time.Duration) Config {
	c.RetryBackoff = backoff
	return c
}

func (c Config) WithCompression(tag compress.Tag) Config {
	c.Compression = tag
	return c
}

func (c Config) WithMaxPayloadSize(size int) Config {
	c.MaxPayloadSize = size
	return c
}

// WithVisionCapability advertises a width×height×channels camera feed
// landing in area.
func (c Config) WithVisionCapability(modality string, width, height, channels uint32, area cortical.ID) Config {
	c.Vision = &VisionCapability{
		Modality: modality,
		Width:    width,
		Height:   height,
		Channels: channels,
		Area:     area,
	}
	return c
}

// WithMotorCapability advertises outputCount motor outputs read from
// areas.
func (c Config) WithMotorCapability(modality string, outputCount uint32, areas []cortical.ID) Config {
	c.Motor = &MotorCapability{
		Modality:    modality,
		OutputCount: outputCount,
		Areas:       slices.Clone(areas),
	}
	return c
}

// WithCustomCapability adds a named JSON capability value. The value
// is checked by [Config.Validate].
func (c Config) WithCustomCapability(name string, value json.RawMessage) Config {
	custom := maps.Clone(c.Custom)
	if custom == nil {
		custom = make(map[string]json.RawMessage)
	}
	custom[name] = slices.Clone(value)
	c.Custom = custom
	return c
}

// Validate reports every problem with the configuration at once. Each
// joined error is a configuration error.
func (c Config) Validate() error {
	var errs []error

	switch {
	case c.AgentID == "":
		errs = append(errs, fault.Configurationf("agent id is required"))
	case len(c.AgentID) > maxAgentIDLength:
		errs = append(errs, fault.Configurationf("agent id is %d bytes, maximum is %d", len(c.AgentID), maxAgentIDLength))
	case strings.ContainsFunc(c.AgentID, isSpaceOrControl):
		errs = append(errs, fault.Configurationf("agent id %q contains whitespace or control characters", c.AgentID))
	}
	if !c.AgentType.Valid() {
		errs = append(errs, fault.Configurationf("agent type %d is not valid", uint8(c.AgentType)))
	}

	if c.Endpoints.Registration == "" {
		errs = append(errs, fault.Configurationf("registration endpoint is required"))
	}
	for _, endpoint := range []struct{ name, address string }{
		{"registration", c.Endpoints.Registration},
		{"sensory", c.Endpoints.Sensory},
		{"motor", c.Endpoints.Motor},
		{"visualization", c.Endpoints.Visualization},
		{"control", c.Endpoints.Control},
	} {
		if endpoint.address == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(endpoint.address); err != nil {
			errs = append(errs, fault.Configurationf("%s endpoint %q: %v", endpoint.name, endpoint.address, err))
		}
	}

	if c.HeartbeatInterval < 0 {
		errs = append(errs, fault.Configurationf("heartbeat interval %s is negative", c.HeartbeatInterval))
	}
	if c.ConnectionTimeout <= 0 {
		errs = append(errs, fault.Configurationf("connection timeout must be positive, got %s", c.ConnectionTimeout))
	}
	if c.RegistrationRetries < 0 {
		errs = append(errs, fault.Configurationf("registration retries %d is negative", c.RegistrationRetries))
	}
	if c.RetryBackoff < 0 {
		errs = append(errs, fault.Configurationf("retry backoff %s is negative", c.RetryBackoff))
	}
	if _, err := compress.ParseTag(c.Compression.String()); err != nil {
		errs = append(errs, err)
	}
	if c.MaxPayloadSize <= 0 || uint64(c.MaxPayloadSize) > math.MaxUint32 {
		errs = append(errs, fault.Configurationf("max payload size %d outside 1..%d", c.MaxPayloadSize, uint64(math.MaxUint32)))
	}

	if vision := c.Vision; vision != nil {
		if vision.Modality == "" {
			errs = append(errs, fault.Configurationf("vision capability: modality is required"))
		}
		if vision.Width == 0 || vision.Height == 0 {
			errs = append(errs, fault.Configurationf("vision capability: resolution %dx%d must be positive", vision.Width, vision.Height))
		}
		if vision.Channels == 0 || vision.Channels > processor.MaxColorChannels {
			errs = append(errs, fault.Configurationf("vision capability: channel count %d outside 1..%d", vision.Channels, processor.MaxColorChannels))
		}
		if vision.Area.IsZero() {
			errs = append(errs, fault.Configurationf("vision capability: cortical area is required"))
		}
	}
	if motor := c.Motor; motor != nil {
		if motor.Modality == "" {
			errs = append(errs, fault.Configurationf("motor capability: modality is required"))
		}
		if motor.OutputCount == 0 {
			errs = append(errs, fault.Configurationf("motor capability: output count must be positive"))
		}
		if len(motor.Areas) == 0 {
			errs = append(errs, fault.Configurationf("motor capability: at least one cortical area is required"))
		}
		for i, area := range motor.Areas {
			if area.IsZero() {
				errs = append(errs, fault.Configurationf("motor capability: cortical area %d is empty", i))
			}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(c.Custom)) {
		if name == "" {
			errs = append(errs, fault.Configurationf("custom capability with empty name"))
		}
		if !json.Valid(c.Custom[name]) {
			errs = append(errs, fault.Configurationf("custom capability %q is not valid JSON", name))
		}
	}

	return errors.Join(errs...)
}

func isSpaceOrControl(r rune) bool {
	return r <= ' ' || r == 0x7f
}

// Capabilities assembles the registration document.
func (c Config) Capabilities() (Capabilities, error) {
	capabilities := Capabilities{Vision: c.Vision, Motor: c.Motor}
	if len(c.Custom) > 0 {
		capabilities.Custom = make(map[string]any, len(c.Custom))
		for name, raw := range c.Custom {
			var value any
			if err := json.Unmarshal(raw, &value); err != nil {
				return Capabilities{}, fault.Configurationf("custom capability %q: %v", name, err)
			}
			capabilities.Custom[name] = value
		}
	}
	return capabilities, nil
}
