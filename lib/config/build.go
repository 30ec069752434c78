// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
	"github.com/bureau-foundation/connector/lib/motor"
	"github.com/bureau-foundation/connector/lib/processor"
	"github.com/bureau-foundation/connector/lib/sensor"
)

// BuildCache registers every configured area and channel on a new
// cache. The stale policy comes from the config; the clock and logger
// come from options.
func BuildCache(sensors SensorsConfig, options sensor.Options) (*sensor.Cache, error) {
	policy, err := sensor.ParseStalePolicy(sensors.StalePolicy)
	if err != nil {
		return nil, fmt.Errorf("sensors.stale_policy: %w", err)
	}
	options.StalePolicy = policy
	cache := sensor.New(options)

	for i, area := range sensors.Areas {
		if err := registerArea(cache, area); err != nil {
			return nil, fmt.Errorf("sensors.areas[%d] (%s group %d): %w", i, area.Type, area.Group, err)
		}
	}
	return cache, nil
}

// BuildMotorCache registers every configured motor area on a new
// cache and installs its processors on each channel.
func BuildMotorCache(motors MotorsConfig, options motor.Options) (*motor.Cache, error) {
	cache := motor.New(options)
	for i, area := range motors.Areas {
		if err := registerMotorArea(cache, area); err != nil {
			return nil, fmt.Errorf("motors.areas[%d] (%s group %d): %w", i, area.Type, area.Group, err)
		}
	}
	return cache, nil
}

func registerMotorArea(cache *motor.Cache, area MotorAreaConfig) error {
	motorType, err := cortical.ParseMotorType(area.Type)
	if err != nil {
		return err
	}
	frames, err := motor.ParseFrameHandling(area.FrameHandling)
	if err != nil {
		return err
	}
	positioning, err := motor.ParsePositioning(area.Positioning)
	if err != nil {
		return err
	}
	group := cortical.GroupIndex(area.Group)
	if err := cache.RegisterArea(motorType, group, cortical.ChannelCount(area.Channels), area.Depth, frames, positioning); err != nil {
		return err
	}
	if len(area.Processors) == 0 {
		return nil
	}
	for channel := range area.Channels {
		processors, err := buildProcessors(area.Processors, cortical.DataScalar, cortical.Dimensions{Width: 1, Height: 1, Depth: 1})
		if err != nil {
			return fmt.Errorf("channel %d: %w", channel, err)
		}
		if err := cache.SetPipeline(motorType, group, cortical.ChannelIndex(channel), processors...); err != nil {
			return err
		}
	}
	return nil
}

func registerArea(cache *sensor.Cache, area AreaConfig) error {
	sensorType, err := cortical.ParseSensorType(area.Type)
	if err != nil {
		return err
	}
	group := cortical.GroupIndex(area.Group)
	dims := cortical.Dimensions{
		Width:  area.Dimensions.Width,
		Height: area.Dimensions.Height,
		Depth:  area.Dimensions.Depth,
	}
	coder := sensor.DefaultCoder(sensorType)
	if area.Coder != "" {
		if coder, err = sensor.ParseCoder(area.Coder); err != nil {
			return err
		}
	}
	if err := cache.RegisterArea(sensorType, group, cortical.ChannelCount(area.Channels), dims); err != nil {
		return err
	}

	overrides := make(map[uint32]ChannelConfig, len(area.Overrides))
	for _, override := range area.Overrides {
		if override.Channel >= area.Channels {
			return fault.Configurationf("override for channel %d, area has %d channels", override.Channel, area.Channels)
		}
		if _, exists := overrides[override.Channel]; exists {
			return fault.Configurationf("channel %d is overridden twice", override.Channel)
		}
		overrides[override.Channel] = override
	}

	for channel := range area.Channels {
		stages := area.Processors
		allowStale := area.AllowStale
		if override, ok := overrides[channel]; ok {
			if override.Processors != nil {
				stages = override.Processors
			}
			if override.AllowStale != nil {
				allowStale = *override.AllowStale
			}
		}
		processors, err := buildProcessors(stages, sensorType.Kind(), dims)
		if err != nil {
			return fmt.Errorf("channel %d: %w", channel, err)
		}
		if err := cache.RegisterChannelWithCoder(sensorType, group, cortical.ChannelIndex(channel), processors, allowStale, coder); err != nil {
			return err
		}
	}
	return nil
}

// buildProcessors constructs a fresh pipeline for one channel; stages
// carry state, so channels never share instances. An empty list yields
// the identity stage for the sensor's data kind.
func buildProcessors(stages []ProcessorConfig, kind cortical.DataKind, dims cortical.Dimensions) ([]processor.Processor, error) {
	if len(stages) == 0 {
		stages = []ProcessorConfig{{Type: "identity"}}
		if kind == cortical.DataImage {
			stages[0].Type = "image_identity"
		}
	}
	processors := make([]processor.Processor, 0, len(stages))
	for i, stage := range stages {
		stageProcessor, err := buildProcessor(stage, dims)
		if err != nil {
			return nil, fmt.Errorf("processor %d (%s): %w", i, stage.Type, err)
		}
		processors = append(processors, stageProcessor)
	}
	return processors, nil
}

func buildProcessor(stage ProcessorConfig, dims cortical.Dimensions) (processor.Processor, error) {
	switch stage.Type {
	case "rolling_average":
		return built(processor.NewRollingAverage(stage.Window, stage.Seed))
	case "linear_scale":
		return built(processor.NewLinearScale(stage.Lower, stage.Upper, stage.Initial))
	case "strict_linear_scale":
		return built(processor.NewStrictLinearScale(stage.Lower, stage.Upper, stage.Initial))
	case "signed_linear_scale":
		return built(processor.NewSignedLinearScale(stage.Lower, stage.Upper, stage.Initial))
	case "identity":
		return processor.NewIdentity(), nil
	case "image_identity":
		initial, err := processor.NewImageFrame(dims.Width, dims.Height, dims.Depth)
		if err != nil {
			return nil, err
		}
		return built(processor.NewImageIdentity(initial))
	default:
		return nil, fault.Configurationf("unknown processor type %q", stage.Type)
	}
}

// built converts a constructor result without leaking a typed nil into
// the interface.
func built[P processor.Processor](p P, err error) (processor.Processor, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
