// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cortical

import (
	"fmt"

	"github.com/bureau-foundation/connector/lib/fault"
)

// GroupIndex distinguishes multiple areas of the same sensor type
// (two cameras, three proximity arrays). It is encoded into the ID as
// two hex digits.
type GroupIndex uint8

// ChannelIndex addresses one channel inside an area.
type ChannelIndex uint32

// ChannelCount is the number of channels an area declares. Zero is
// invalid.
type ChannelCount uint32

// Dimensions is the neuron grid occupied by a single channel.
type Dimensions struct {
	Width  uint32 `yaml:"width" json:"width"`
	Height uint32 `yaml:"height" json:"height"`
	Depth  uint32 `yaml:"depth" json:"depth"`
}

// NewDimensions returns validated dimensions. Every axis must be
// positive.
func NewDimensions(width, height, depth uint32) (Dimensions, error) {
	dimensions := Dimensions{Width: width, Height: height, Depth: depth}
	if err := dimensions.Validate(); err != nil {
		return Dimensions{}, err
	}
	return dimensions, nil
}

// Validate reports an ErrValidation error if any axis is zero.
func (d Dimensions) Validate() error {
	if d.Width == 0 || d.Height == 0 || d.Depth == 0 {
		return fault.Validationf("channel dimensions %s: every axis must be positive", d)
	}
	return nil
}

// Volume returns the neuron count of one channel.
func (d Dimensions) Volume() uint64 {
	return uint64(d.Width) * uint64(d.Height) * uint64(d.Depth)
}

// String renders the dimensions as "WxHxD".
func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%dx%d", d.Width, d.Height, d.Depth)
}

// DimensionRange bounds the channel dimensions a sensor type accepts,
// inclusive on both ends.
type DimensionRange struct {
	Min Dimensions
	Max Dimensions
}

// Contains reports whether every axis of d lies inside the range.
func (r DimensionRange) Contains(d Dimensions) bool {
	return d.Width >= r.Min.Width && d.Width <= r.Max.Width &&
		d.Height >= r.Min.Height && d.Height <= r.Max.Height &&
		d.Depth >= r.Min.Depth && d.Depth <= r.Max.Depth
}

// String renders the range as "min..max".
func (r DimensionRange) String() string {
	return r.Min.String() + ".." + r.Max.String()
}
