// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the connector.
//
// Configuration is loaded from a single file specified by either the
// CONNECTOR_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search.
//
// The file has three sections. "agent" describes how the connector
// registers with a sink: identity, endpoints, timing, compression and
// capabilities. "sensors" declares the cortical areas the connector
// feeds, the processors each channel runs, and how often the cache is
// encoded and sent. [BuildCache] turns the sensors section into a
// ready [sensor.Cache]:
//
//	sensors:
//	  stale_policy: exclude
//	  send_interval: 100ms
//	  areas:
//	    - type: proximity
//	      group: 0
//	      channels: 1
//	      dimensions: {width: 1, height: 1, depth: 20}
//	      processors:
//	        - {type: rolling_average, window: 5, seed: 0}
//	        - {type: linear_scale, lower: 0, upper: 100}
//
// "motors" declares the motor areas decoded from incoming neuron maps;
// [BuildMotorCache] turns it into a [motor.Cache]:
//
//	motors:
//	  areas:
//	    - type: rotary_motor
//	      group: 0
//	      channels: 2
//	      depth: 20
//	      frame_handling: absolute
//	      positioning: linear
//
// Variable expansion is performed on the agent id, host and endpoint
// after loading: ${HOME}, ${VAR} and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// Sizes use human-readable units ("4MB", parsed by datasize) and
// durations use time.ParseDuration syntax ("5s").
package config
