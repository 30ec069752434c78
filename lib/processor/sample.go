// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"fmt"
	"slices"

	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
)

// Sample is one scalar or image value flowing through a pipeline. The
// zero Sample has no kind and is rejected by every processor.
type Sample struct {
	kind   cortical.DataKind
	scalar float32
	image  *ImageFrame
}

// Scalar returns a scalar sample.
func Scalar(value float32) Sample {
	return Sample{kind: cortical.DataScalar, scalar: value}
}

// Image returns an image sample. The sample references frame; callers
// that keep mutating frame should pass a Clone.
func Image(frame *ImageFrame) Sample {
	return Sample{kind: cortical.DataImage, image: frame}
}

// Kind returns DataScalar, DataImage, or zero for the zero Sample.
func (s Sample) Kind() cortical.DataKind { return s.kind }

// IsZero reports whether s was never assigned a value.
func (s Sample) IsZero() bool { return s.kind == 0 }

// ScalarValue returns the scalar and true, or 0 and false for an image
// sample.
func (s Sample) ScalarValue() (float32, bool) {
	return s.scalar, s.kind == cortical.DataScalar
}

// ImageValue returns the frame and true, or nil and false for a scalar
// sample.
func (s Sample) ImageValue() (*ImageFrame, bool) {
	return s.image, s.kind == cortical.DataImage && s.image != nil
}

// String renders scalars as their value and images as WxHxC.
func (s Sample) String() string {
	switch s.kind {
	case cortical.DataScalar:
		return fmt.Sprintf("%g", s.scalar)
	case cortical.DataImage:
		if s.image == nil {
			return "image(nil)"
		}
		return fmt.Sprintf("image(%dx%dx%d)", s.image.width, s.image.height, s.image.channels)
	default:
		return "empty"
	}
}

func (s Sample) requireScalar(processor string) (float32, error) {
	value, ok := s.ScalarValue()
	if !ok {
		return 0, fault.Validationf("%s takes scalar samples, got %s", processor, s.kind)
	}
	return value, nil
}

func (s Sample) requireImage(processor string) (*ImageFrame, error) {
	frame, ok := s.ImageValue()
	if !ok {
		return nil, fault.Validationf("%s takes image samples, got %s", processor, s.kind)
	}
	return frame, nil
}

// MaxColorChannels is the largest supported color channel count
// (RGBA).
const MaxColorChannels = 4

// ImageFrame is a row-major height x width x channels grid of float32
// pixel intensities. Row 0 is the top of the image.
type ImageFrame struct {
	width    uint32
	height   uint32
	channels uint32
	pixels   []float32
}

// NewImageFrame returns a black frame of the given shape.
func NewImageFrame(width, height, channels uint32) (*ImageFrame, error) {
	if err := validateShape(width, height, channels); err != nil {
		return nil, err
	}
	return &ImageFrame{
		width:    width,
		height:   height,
		channels: channels,
		pixels:   make([]float32, uint64(width)*uint64(height)*uint64(channels)),
	}, nil
}

// ImageFrameFromPixels wraps a copy of pixels, which must hold exactly
// width*height*channels values in row-major order.
func ImageFrameFromPixels(width, height, channels uint32, pixels []float32) (*ImageFrame, error) {
	if err := validateShape(width, height, channels); err != nil {
		return nil, err
	}
	want := uint64(width) * uint64(height) * uint64(channels)
	if uint64(len(pixels)) != want {
		return nil, fault.Validationf("image frame %dx%dx%d needs %d pixels, got %d",
			width, height, channels, want, len(pixels))
	}
	return &ImageFrame{width: width, height: height, channels: channels, pixels: slices.Clone(pixels)}, nil
}

func validateShape(width, height, channels uint32) error {
	if width == 0 || height == 0 {
		return fault.Validationf("image frame %dx%d: width and height must be positive", width, height)
	}
	if channels == 0 || channels > MaxColorChannels {
		return fault.Validationf("image frame: %d color channels, want 1 to %d", channels, MaxColorChannels)
	}
	return nil
}

// Width returns the frame width in pixels.
func (f *ImageFrame) Width() uint32 { return f.width }

// Height returns the frame height in pixels.
func (f *ImageFrame) Height() uint32 { return f.height }

// Channels returns the number of color channels per pixel.
func (f *ImageFrame) Channels() uint32 { return f.channels }

// Dimensions returns the frame shape as cortical channel dimensions:
// width, height, and color channels as depth.
func (f *ImageFrame) Dimensions() cortical.Dimensions {
	return cortical.Dimensions{Width: f.width, Height: f.height, Depth: f.channels}
}

func (f *ImageFrame) index(x, y, channel uint32) int {
	return int((uint64(y)*uint64(f.width)+uint64(x))*uint64(f.channels) + uint64(channel))
}

func (f *ImageFrame) inBounds(x, y, channel uint32) bool {
	return x < f.width && y < f.height && channel < f.channels
}

// Pixel returns one color channel of one pixel.
func (f *ImageFrame) Pixel(x, y, channel uint32) (float32, error) {
	if !f.inBounds(x, y, channel) {
		return 0, fault.Validationf("pixel (%d, %d, %d) outside %dx%dx%d frame", x, y, channel, f.width, f.height, f.channels)
	}
	return f.pixels[f.index(x, y, channel)], nil
}

// SetPixel sets one color channel of one pixel.
func (f *ImageFrame) SetPixel(x, y, channel uint32, value float32) error {
	if !f.inBounds(x, y, channel) {
		return fault.Validationf("pixel (%d, %d, %d) outside %dx%dx%d frame", x, y, channel, f.width, f.height, f.channels)
	}
	f.pixels[f.index(x, y, channel)] = value
	return nil
}

// Pixels returns a copy of the pixel data in row-major order.
func (f *ImageFrame) Pixels() []float32 { return slices.Clone(f.pixels) }

// Clone returns an independent copy of the frame.
func (f *ImageFrame) Clone() *ImageFrame {
	clone := *f
	clone.pixels = slices.Clone(f.pixels)
	return &clone
}

// SameShape reports whether both frames have identical width, height
// and channel count.
func (f *ImageFrame) SameShape(other *ImageFrame) bool {
	return f.width == other.width && f.height == other.height && f.channels == other.channels
}

// Equal reports whether both frames have the same shape and pixels.
func (f *ImageFrame) Equal(other *ImageFrame) bool {
	return f.SameShape(other) && slices.Equal(f.pixels, other.pixels)
}

// Each calls visit for every pixel channel in row-major order.
func (f *ImageFrame) Each(visit func(x, y, channel uint32, value float32)) {
	i := 0
	for y := range f.height {
		for x := range f.width {
			for channel := range f.channels {
				visit(x, y, channel, f.pixels[i])
				i++
			}
		}
	}
}
