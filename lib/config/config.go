// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/connector/lib/compress"
	"github.com/bureau-foundation/connector/lib/fault"
	"github.com/bureau-foundation/connector/lib/sensor"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "CONNECTOR_CONFIG"

// Config is the master configuration for the connector.
type Config struct {
	// Agent configures registration with the sink.
	Agent AgentConfig `yaml:"agent"`

	// Sensors declares the sensor areas fed by this connector.
	Sensors SensorsConfig `yaml:"sensors"`

	// Motors declares the motor areas this connector decodes.
	Motors MotorsConfig `yaml:"motors"`
}

// AgentConfig configures the agent client.
type AgentConfig struct {
	// ID identifies the agent to the sink. Required.
	ID string `yaml:"id"`

	// Type is the agent role: sensory, motor, both, visualization or
	// infrastructure.
	// Default: sensory
	Type string `yaml:"type"`

	// Host is the sink host used with Ports.
	// Default: 127.0.0.1
	Host string `yaml:"host"`

	// Ports are combined with Host to form the endpoints.
	Ports PortsConfig `yaml:"ports"`

	// RegistrationEndpoint, when set, replaces Host:Ports.Registration
	// as the dialed address.
	RegistrationEndpoint string `yaml:"registration_endpoint"`

	// HeartbeatInterval is the heartbeat period; 0s disables heartbeats.
	// Default: 5s
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`

	// ConnectionTimeout bounds each dial and frame exchange.
	// Default: 5s
	ConnectionTimeout Duration `yaml:"connection_timeout"`

	// RegistrationRetries is the number of retries after a failed
	// registration.
	// Default: 3
	RegistrationRetries int `yaml:"registration_retries"`

	// RetryBackoff is the wait before the first registration retry.
	// Default: 500ms
	RetryBackoff Duration `yaml:"retry_backoff"`

	// Compression is the payload envelope: none, lz4, zstd or bg4_lz4.
	// Default: lz4
	Compression string `yaml:"compression"`

	// MaxPayloadSize bounds one uncompressed sensory payload.
	// Default: 4MB
	MaxPayloadSize datasize.ByteSize `yaml:"max_payload_size"`

	// Vision advertises a camera capability.
	Vision *VisionConfig `yaml:"vision,omitempty"`

	// Motor advertises a motor capability.
	Motor *MotorConfig `yaml:"motor,omitempty"`

	// Custom capabilities are arbitrary YAML values, sent as JSON.
	Custom map[string]any `yaml:"custom,omitempty"`
}

// PortsConfig holds the sink's port layout.
type PortsConfig struct {
	Registration  int `yaml:"registration"`
	Sensory       int `yaml:"sensory"`
	Motor         int `yaml:"motor"`
	Visualization int `yaml:"visualization"`
	Control       int `yaml:"control"`
}

// VisionConfig describes a camera capability.
type VisionConfig struct {
	Modality string `yaml:"modality"`
	Width    uint32 `yaml:"width"`
	Height   uint32 `yaml:"height"`
	Channels uint32 `yaml:"channels"`
	// Area is the cortical ID frames land in, for example ivcc00.
	Area string `yaml:"area"`
}

// MotorConfig describes a motor capability.
type MotorConfig struct {
	Modality    string   `yaml:"modality"`
	OutputCount uint32   `yaml:"output_count"`
	Areas       []string `yaml:"areas"`
}

// SensorsConfig declares the sensor cache.
type SensorsConfig struct {
	// StalePolicy is "exclude" (skip channels not updated since the
	// last encode) or "fail" (refuse to encode).
	// Default: exclude
	StalePolicy string `yaml:"stale_policy"`

	// SendInterval is how often "connector run" encodes and sends.
	// Default: 100ms
	SendInterval Duration `yaml:"send_interval"`

	// Areas are registered in order.
	Areas []AreaConfig `yaml:"areas"`
}

// AreaConfig declares one cortical area and its channels.
type AreaConfig struct {
	// Type is the sensor type key, for example proximity.
	Type string `yaml:"type"`

	// Group is the area's grouping index.
	Group uint8 `yaml:"group"`

	// Channels is the channel count. Every channel is registered.
	Channels uint32 `yaml:"channels"`

	// Dimensions are the per-channel dimensions.
	Dimensions DimensionsConfig `yaml:"dimensions"`

	// Coder overrides the sensor type's default coder: linear,
	// split_sign, image or psp_bidirectional.
	Coder string `yaml:"coder,omitempty"`

	// AllowStale makes channels emit on every encode, updated or not.
	AllowStale bool `yaml:"allow_stale"`

	// Processors are the default pipeline for every channel. An empty
	// list means identity.
	Processors []ProcessorConfig `yaml:"processors"`

	// Overrides replace the defaults for individual channels.
	Overrides []ChannelConfig `yaml:"overrides,omitempty"`
}

// MotorsConfig declares the motor cache.
type MotorsConfig struct {
	// Areas are registered in order.
	Areas []MotorAreaConfig `yaml:"areas"`
}

// MotorAreaConfig declares one motor area. Channels are one neuron
// wide; Depth sets how many z layers carry the value.
type MotorAreaConfig struct {
	// Type is the motor type key, for example rotary_motor.
	Type string `yaml:"type"`

	Group    uint8  `yaml:"group"`
	Channels uint32 `yaml:"channels"`
	Depth    uint32 `yaml:"depth"`

	// FrameHandling is absolute or incremental.
	// Default: absolute
	FrameHandling string `yaml:"frame_handling,omitempty"`

	// Positioning is linear or fractional.
	// Default: linear
	Positioning string `yaml:"positioning,omitempty"`

	// Processors post-process every channel's decoded value. An empty
	// list means identity.
	Processors []ProcessorConfig `yaml:"processors,omitempty"`
}

// DimensionsConfig is a width/height/depth triple.
type DimensionsConfig struct {
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
	Depth  uint32 `yaml:"depth"`
}

// ChannelConfig overrides settings for one channel. Nil fields keep
// the area's defaults.
type ChannelConfig struct {
	Channel    uint32            `yaml:"channel"`
	AllowStale *bool             `yaml:"allow_stale,omitempty"`
	Processors []ProcessorConfig `yaml:"processors,omitempty"`
}

// ProcessorConfig describes one pipeline stage. Type selects which of
// the remaining fields apply:
//
//   - rolling_average: window, seed
//   - linear_scale, strict_linear_scale, signed_linear_scale: lower,
//     upper, initial
//   - identity, image_identity: none
type ProcessorConfig struct {
	Type    string  `yaml:"type"`
	Window  int     `yaml:"window,omitempty"`
	Seed    float32 `yaml:"seed,omitempty"`
	Lower   float32 `yaml:"lower,omitempty"`
	Upper   float32 `yaml:"upper,omitempty"`
	Initial float32 `yaml:"initial,omitempty"`
}

// Duration is a time.Duration written in time.ParseDuration syntax.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fault.Configurationf("invalid duration %q: %v", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the default configuration. It is the base the config
// file is decoded onto, not a fallback: the file is required.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Type: "sensory",
			Host: "127.0.0.1",
			Ports: PortsConfig{
				Registration:  30001,
				Sensory:       5558,
				Motor:         5564,
				Visualization: 5562,
				Control:       5563,
			},
			HeartbeatInterval:   Duration(5 * time.Second),
			ConnectionTimeout:   Duration(5 * time.Second),
			RegistrationRetries: 3,
			RetryBackoff:        Duration(500 * time.Millisecond),
			Compression:         "lz4",
			MaxPayloadSize:      4 * datasize.MB,
		},
		Sensors: SensorsConfig{
			StalePolicy:  "exclude",
			SendInterval: Duration(100 * time.Millisecond),
		},
	}
}

// Load loads configuration from the file named by CONNECTOR_CONFIG.
// There is no fallback: if the variable is unset, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fault.Configurationf("%s environment variable not set; "+
			"set it to the path of your connector.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads, expands and validates the configuration at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML onto [Default], expands variables and validates
// the result. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fault.Configurationf("parsing config: %v", err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// agent identity and addresses.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Agent.ID = expandVars(c.Agent.ID, vars)
	c.Agent.Host = expandVars(c.Agent.Host, vars)
	c.Agent.RegistrationEndpoint = expandVars(c.Agent.RegistrationEndpoint, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors that do not need the
// sensor registry. [BuildCache] reports area-level mistakes.
func (c *Config) Validate() error {
	var errs []error

	if c.Agent.ID == "" {
		errs = append(errs, fault.Configurationf("agent.id is required"))
	}
	if c.Agent.Host == "" && c.Agent.RegistrationEndpoint == "" {
		errs = append(errs, fault.Configurationf("agent.host or agent.registration_endpoint is required"))
	}
	if c.Agent.HeartbeatInterval < 0 {
		errs = append(errs, fault.Configurationf("agent.heartbeat_interval must not be negative"))
	}
	if c.Agent.ConnectionTimeout <= 0 {
		errs = append(errs, fault.Configurationf("agent.connection_timeout must be positive"))
	}
	if _, err := compress.ParseTag(c.Agent.Compression); err != nil {
		errs = append(errs, fmt.Errorf("agent.compression: %w", err))
	}
	if c.Agent.MaxPayloadSize == 0 {
		errs = append(errs, fault.Configurationf("agent.max_payload_size must be positive"))
	}

	if _, err := sensor.ParseStalePolicy(c.Sensors.StalePolicy); err != nil {
		errs = append(errs, fmt.Errorf("sensors.stale_policy: %w", err))
	}
	if c.Sensors.SendInterval <= 0 {
		errs = append(errs, fault.Configurationf("sensors.send_interval must be positive"))
	}
	for i, area := range c.Sensors.Areas {
		if area.Type == "" {
			errs = append(errs, fault.Configurationf("sensors.areas[%d].type is required", i))
		}
		if area.Channels == 0 {
			errs = append(errs, fault.Configurationf("sensors.areas[%d].channels must be positive", i))
		}
	}

	for i, area := range c.Motors.Areas {
		if area.Type == "" {
			errs = append(errs, fault.Configurationf("motors.areas[%d].type is required", i))
		}
		if area.Channels == 0 {
			errs = append(errs, fault.Configurationf("motors.areas[%d].channels must be positive", i))
		}
	}

	return errors.Join(errs...)
}
