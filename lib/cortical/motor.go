// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cortical

import (
	"fmt"
	"strconv"

	"github.com/bureau-foundation/connector/lib/fault"
)

// MotorType is the closed set of output cortical area types.
type MotorType uint8

const (
	RotaryMotor MotorType = iota + 1
	PositionalServo
	GazeControl
	MotorMisc
)

type motorDefinition struct {
	friendlyName string
	key          string
	base         string
	signed       bool
	maxDepth     uint32
}

// motorDefinitions is indexed by MotorType. The base strings are
// protocol constants.
var motorDefinitions = [...]motorDefinition{
	RotaryMotor: {
		friendlyName: "Rotary Motor",
		key:          "rotary_motor",
		base:         "omot",
		signed:       true,
		maxDepth:     maxAxis,
	},
	PositionalServo: {
		friendlyName: "Positional Servo",
		key:          "positional_servo",
		base:         "opse",
		maxDepth:     maxAxis,
	},
	GazeControl: {
		friendlyName: "Gaze Control",
		key:          "gaze_control",
		base:         "ogaz",
		maxDepth:     maxAxis,
	},
	MotorMisc: {
		friendlyName: "Miscellaneous Motor",
		key:          "misc_motor",
		base:         "omis",
		maxDepth:     maxAxis,
	},
}

// MotorTypes returns every motor type in declaration order.
func MotorTypes() []MotorType {
	types := make([]MotorType, 0, len(motorDefinitions)-1)
	for t := RotaryMotor; int(t) < len(motorDefinitions); t++ {
		types = append(types, t)
	}
	return types
}

// Valid reports whether t is one of the declared motor types.
func (t MotorType) Valid() bool {
	return t >= RotaryMotor && int(t) < len(motorDefinitions)
}

func (t MotorType) definition() motorDefinition {
	if !t.Valid() {
		return motorDefinition{friendlyName: fmt.Sprintf("MotorType(%d)", uint8(t))}
	}
	return motorDefinitions[t]
}

// String returns the human-readable name.
func (t MotorType) String() string { return t.definition().friendlyName }

// Key returns the snake_case identifier used in configuration files.
func (t MotorType) Key() string { return t.definition().key }

// Base returns the four-byte ID prefix.
func (t MotorType) Base() string { return t.definition().base }

// Signed reports whether the type's values span -1..1 rather than
// 0..1. Signed channels split their depth in two: the lower half
// carries positive values, the upper half negative ones.
func (t MotorType) Signed() bool { return t.definition().signed }

// MinDepth is the smallest channel depth the type accepts.
func (t MotorType) MinDepth() uint32 {
	if t.Signed() {
		return 2
	}
	return 1
}

// MaxDepth is the largest channel depth the type accepts.
func (t MotorType) MaxDepth() uint32 { return t.definition().maxDepth }

// ID returns the cortical ID of the area for the given group.
func (t MotorType) ID(group GroupIndex) (ID, error) {
	if !t.Valid() {
		return ID{}, fault.Configurationf("unknown motor type %d", uint8(t))
	}
	return ParseID(fmt.Sprintf("%s%02x", t.Base(), uint8(group)))
}

// ParseMotorType resolves a configuration key ("rotary_motor") to its
// motor type.
func ParseMotorType(key string) (MotorType, error) {
	for _, t := range MotorTypes() {
		if t.Key() == key {
			return t, nil
		}
	}
	return 0, fault.Configurationf("unknown motor type %q", key)
}

// MotorTypeFromID reverses [MotorType.ID].
func MotorTypeFromID(id ID) (MotorType, GroupIndex, error) {
	if id.Category() != CategoryMotor {
		return 0, 0, fault.Validationf("cortical id %s is a %s area, not a motor area", id, id.Category())
	}
	text := id.String()
	for _, t := range MotorTypes() {
		if text[:4] != t.Base() {
			continue
		}
		group, err := strconv.ParseUint(text[4:], 16, 8)
		if err != nil {
			return 0, 0, fault.Validationf("cortical id %s: group suffix %q is not two hex digits", id, text[4:])
		}
		return t, GroupIndex(group), nil
	}
	return 0, 0, fault.Validationf("cortical id %s does not name a known motor type", id)
}
