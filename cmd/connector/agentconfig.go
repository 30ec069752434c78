// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/bureau-foundation/connector/agent"
	"github.com/bureau-foundation/connector/lib/compress"
	"github.com/bureau-foundation/connector/lib/config"
	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
)

// agentConfig converts the agent section of a config file into a
// validated [agent.Config].
func agentConfig(section config.AgentConfig) (agent.Config, error) {
	agentType, err := agent.ParseAgentType(section.Type)
	if err != nil {
		return agent.Config{}, fmt.Errorf("agent.type: %w", err)
	}
	tag, err := compress.ParseTag(section.Compression)
	if err != nil {
		return agent.Config{}, fmt.Errorf("agent.compression: %w", err)
	}
	if section.MaxPayloadSize.Bytes() > math.MaxUint32 {
		return agent.Config{}, fault.Configurationf("agent.max_payload_size %s exceeds 4GB", section.MaxPayloadSize)
	}

	ports := section.Ports
	result := agent.NewConfig(section.ID, agentType).
		WithFeagiEndpoints(section.Host, ports.Registration, ports.Sensory, ports.Motor, ports.Visualization, ports.Control).
		WithHeartbeatInterval(section.HeartbeatInterval.Std()).
		WithConnectionTimeout(section.ConnectionTimeout.Std()).
		WithRegistrationRetries(section.RegistrationRetries).
		WithRetryBackoff(section.RetryBackoff.Std()).
		WithCompression(tag).
		WithMaxPayloadSize(int(section.MaxPayloadSize.Bytes()))
	if section.RegistrationEndpoint != "" {
		result = result.WithRegistrationEndpoint(section.RegistrationEndpoint)
	}

	var errs []error
	if vision := section.Vision; vision != nil {
		area, err := cortical.ParseID(vision.Area)
		if err != nil {
			errs = append(errs, fault.Configurationf("agent.vision.area: %v", err))
		} else {
			result = result.WithVisionCapability(vision.Modality, vision.Width, vision.Height, vision.Channels, area)
		}
	}
	if motor := section.Motor; motor != nil {
		areas := make([]cortical.ID, 0, len(motor.Areas))
		for i, text := range motor.Areas {
			area, err := cortical.ParseID(text)
			if err != nil {
				errs = append(errs, fault.Configurationf("agent.motor.areas[%d]: %v", i, err))
				continue
			}
			areas = append(areas, area)
		}
		result = result.WithMotorCapability(motor.Modality, motor.OutputCount, areas)
	}
	for _, name := range slices.Sorted(maps.Keys(section.Custom)) {
		value, err := json.Marshal(section.Custom[name])
		if err != nil {
			errs = append(errs, fault.Configurationf("agent.custom.%s: %v", name, err))
			continue
		}
		result = result.WithCustomCapability(name, value)
	}
	if err := errors.Join(errs...); err != nil {
		return agent.Config{}, err
	}
	if err := result.Validate(); err != nil {
		return agent.Config{}, err
	}
	return result, nil
}
