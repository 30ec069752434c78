// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"fmt"

	"github.com/goki/mat32"

	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
	"github.com/bureau-foundation/connector/lib/neuron"
	"github.com/bureau-foundation/connector/lib/processor"
)

// Coder converts one channel value into neuron points.
type Coder uint8

const (
	// CoderLinear encodes a scalar (normally 0..1) as one point.
	CoderLinear Coder = iota + 1

	// CoderSplitSign encodes a scalar in -1..1 as one point whose
	// depth half carries the sign.
	CoderSplitSign

	// CoderImage encodes every pixel channel of a frame as one point.
	CoderImage

	// CoderBidirectional encodes a scalar in -1..1 by position: the
	// magnitude picks a layer within one half of the depth, positive
	// values in the lower half and negative values in the upper half.
	CoderBidirectional
)

// String returns the configuration name of the coder.
func (c Coder) String() string {
	switch c {
	case CoderLinear:
		return "linear"
	case CoderSplitSign:
		return "split_sign"
	case CoderImage:
		return "image"
	case CoderBidirectional:
		return "psp_bidirectional"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCoder parses a coder configuration name.
func ParseCoder(name string) (Coder, error) {
	switch name {
	case "linear":
		return CoderLinear, nil
	case "split_sign":
		return CoderSplitSign, nil
	case "image":
		return CoderImage, nil
	case "psp_bidirectional":
		return CoderBidirectional, nil
	default:
		return 0, fault.Configurationf("unknown coder %q (want linear, split_sign, image or psp_bidirectional)", name)
	}
}

// DefaultCoder returns the coder a sensor type uses unless
// registration names another one.
func DefaultCoder(sensorType cortical.SensorType) Coder {
	switch sensorType {
	case cortical.ImageCameraCenter:
		return CoderImage
	case cortical.Accelerometer, cortical.Gyroscope:
		return CoderSplitSign
	case cortical.Proximity, cortical.Infrared, cortical.Battery, cortical.Shock, cortical.MiscData:
		return CoderLinear
	default:
		return CoderLinear
	}
}

// Kind returns the sample kind the coder accepts.
func (c Coder) Kind() cortical.DataKind {
	if c == CoderImage {
		return cortical.DataImage
	}
	return cortical.DataScalar
}

// checkDimensions verifies the coder can place points inside a
// channel of the given dimensions.
func (c Coder) checkDimensions(dims cortical.Dimensions) error {
	switch c {
	case CoderLinear, CoderImage:
		return nil
	case CoderSplitSign, CoderBidirectional:
		if dims.Depth < 2 {
			return fault.Configurationf("%s coder needs channel depth of at least 2, got %s", c, dims)
		}
		return nil
	default:
		return fault.Configurationf("unknown coder %d", uint8(c))
	}
}

// checkSample verifies a value can be encoded into a channel of
// the given dimensions.
func (c Coder) checkSample(sample processor.Sample, dims cortical.Dimensions) error {
	if sample.Kind() != c.Kind() {
		return fault.Validationf("%s coder takes %s samples, got %s", c, c.Kind(), sample.Kind())
	}
	switch c {
	case CoderImage:
		frame, _ := sample.ImageValue()
		if frame.Dimensions() != dims {
			return fault.Validationf("image frame %s does not match channel dimensions %s", frame.Dimensions(), dims)
		}
	case CoderBidirectional:
		value, _ := sample.ScalarValue()
		if !(value >= -1 && value <= 1) {
			return fault.Validationf("%s coder takes values in -1..1, got %v", c, value)
		}
	}
	return nil
}

// encode appends the points for one channel value to collection.
// The sample must already have passed checkSample.
func (c Coder) encode(sample processor.Sample, channel cortical.ChannelIndex, dims cortical.Dimensions, collection *neuron.Collection) {
	originX := uint32(channel) * dims.Width
	switch c {
	case CoderLinear:
		value, _ := sample.ScalarValue()
		collection.Append(neuron.Point{X: originX, P: value})

	case CoderSplitSign:
		value, _ := sample.ScalarValue()
		if value >= 0 {
			collection.Append(neuron.Point{X: originX, P: value})
		} else {
			collection.Append(neuron.Point{X: originX, Z: dims.Depth / 2, P: mat32.Abs(value)})
		}

	case CoderBidirectional:
		value, _ := sample.ScalarValue()
		half := dims.Depth / 2
		layer := uint32(mat32.Round(mat32.Abs(value) * float32(half-1)))
		if value < 0 {
			layer += half
		}
		collection.Append(neuron.Point{X: originX, Z: layer, P: 1})

	case CoderImage:
		frame, _ := sample.ImageValue()
		collection.Grow(int(frame.Dimensions().Volume()))
		frame.Each(func(x, y, color uint32, value float32) {
			collection.Append(neuron.Point{X: originX + x, Y: y, Z: color, P: value})
		})
	}
}
