// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package motor

import (
	"fmt"

	"github.com/goki/mat32"

	"github.com/bureau-foundation/connector/lib/fault"
	"github.com/bureau-foundation/connector/lib/neuron"
)

// FrameHandling decides how a decoded value combines with the
// channel's previous value.
type FrameHandling uint8

const (
	// Absolute replaces the value every frame the area appears in. A
	// channel with no firing neuron in such a frame reads 0.
	Absolute FrameHandling = iota

	// Incremental adds each frame's value to the previous one,
	// clamped to the type's range. A channel with no firing neuron
	// keeps its value.
	Incremental
)

// String returns "absolute" or "incremental".
func (f FrameHandling) String() string {
	switch f {
	case Absolute:
		return "absolute"
	case Incremental:
		return "incremental"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// ParseFrameHandling parses a frame handling name. The empty string
// is Absolute.
func ParseFrameHandling(name string) (FrameHandling, error) {
	switch name {
	case "", "absolute":
		return Absolute, nil
	case "incremental":
		return Incremental, nil
	default:
		return 0, fault.Configurationf("unknown frame handling %q (want absolute or incremental)", name)
	}
}

// Positioning maps the z position of firing neurons to a magnitude.
type Positioning uint8

const (
	// Linear reads the strongest firing neuron: layer z of n reads
	// z/(n-1), so the deepest layer is full scale. A one-layer channel
	// reads 1 whenever it fires.
	Linear Positioning = iota

	// Fractional sums 2^-(z+1) over the firing layers, so layer 0
	// is worth one half and each deeper layer half as much again.
	Fractional
)

// String returns "linear" or "fractional".
func (p Positioning) String() string {
	switch p {
	case Linear:
		return "linear"
	case Fractional:
		return "fractional"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// ParsePositioning parses a positioning name. The empty string is
// Linear.
func ParsePositioning(name string) (Positioning, error) {
	switch name {
	case "", "linear":
		return Linear, nil
	case "fractional":
		return Fractional, nil
	default:
		return 0, fault.Configurationf("unknown positioning %q (want linear or fractional)", name)
	}
}

// layout is the z geometry of one channel.
type layout struct {
	depth       uint32
	signed      bool
	positioning Positioning
}

// span is the number of layers one sign occupies.
func (l layout) span() uint32 {
	if l.signed {
		return l.depth / 2
	}
	return l.depth
}

// decode turns the points of one channel into a value. active is
// false when no point fires. Points must already lie inside the
// channel.
func (l layout) decode(points []neuron.Point) (value float32, active bool) {
	span := l.span()
	switch l.positioning {
	case Fractional:
		var positive, negative float32
		seen := make(map[uint32]bool, len(points))
		for _, point := range points {
			if !(point.P > 0) || seen[point.Z] {
				continue
			}
			seen[point.Z] = true
			active = true
			if point.Z < span {
				positive += fraction(point.Z)
			} else {
				negative += fraction(point.Z - span)
			}
		}
		return positive - negative, active

	default:
		var strongest neuron.Point
		for _, point := range points {
			if !(point.P > 0) {
				continue
			}
			if !active || point.P > strongest.P || (point.P == strongest.P && point.Z < strongest.Z) {
				strongest = point
				active = true
			}
		}
		if !active {
			return 0, false
		}
		position, sign := strongest.Z, float32(1)
		if position >= span {
			position, sign = position-span, -1
		}
		if span == 1 {
			return sign, true
		}
		return sign * float32(position) / float32(span-1), true
	}
}

func fraction(position uint32) float32 {
	return mat32.Pow(2, -float32(position+1))
}

// bounds is the value range of the layout.
func (l layout) bounds() (lower, upper float32) {
	if l.signed {
		return -1, 1
	}
	return 0, 1
}

// combine applies frame handling to a decoded value.
func combine(frames FrameHandling, previous, decoded float32, lower, upper float32) float32 {
	if frames == Incremental {
		return mat32.Clamp(previous+decoded, lower, upper)
	}
	return decoded
}
