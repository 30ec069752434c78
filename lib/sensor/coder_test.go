// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"errors"
	"testing"

	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
	"github.com/bureau-foundation/connector/lib/neuron"
	"github.com/bureau-foundation/connector/lib/processor"
)

func TestSplitSignCoder(t *testing.T) {
	cache, _ := newTestCache(t, StaleExclude)
	dims := cortical.Dimensions{Width: 1, Height: 1, Depth: 6}
	mustRegisterArea(t, cache, cortical.Accelerometer, 0, 3, dims)
	for index := range cortical.ChannelIndex(3) {
		signed, err := processor.NewSignedLinearScale(-10, 10, 0)
		if err != nil {
			t.Fatal(err)
		}
		mustRegisterChannel(t, cache, cortical.Accelerometer, 0, index, []processor.Processor{signed}, false)
	}

	for index, raw := range []float32{5, -5, 0} {
		if err := cache.UpdateScalar(raw, cortical.Accelerometer, 0, cortical.ChannelIndex(index)); err != nil {
			t.Fatal(err)
		}
	}
	neurons, err := cache.EncodeToNeurons()
	if err != nil {
		t.Fatal(err)
	}

	want := []neuron.Point{
		{X: 0, Z: 0, P: 0.5},
		{X: 1, Z: 3, P: 0.5},
		{X: 2, Z: 0, P: 0},
	}
	collection := collectionFor(t, neurons, "iacc00")
	if collection.Len() != len(want) {
		t.Fatalf("got %d points, want %d", collection.Len(), len(want))
	}
	for i, point := range want {
		if got := collection.At(i); got != point {
			t.Errorf("point %d = %v, want %v", i, got, point)
		}
	}
}

func TestBidirectionalCoder(t *testing.T) {
	cache, _ := newTestCache(t, StaleExclude)
	dims := cortical.Dimensions{Width: 1, Height: 1, Depth: 10}
	mustRegisterArea(t, cache, cortical.Gyroscope, 0, 5, dims)
	for index := range cortical.ChannelIndex(5) {
		signed, err := processor.NewSignedLinearScale(-10, 10, 0)
		if err != nil {
			t.Fatal(err)
		}
		if err := cache.RegisterChannelWithCoder(cortical.Gyroscope, 0, index, []processor.Processor{signed}, false, CoderBidirectional); err != nil {
			t.Fatalf("RegisterChannelWithCoder(%d): %v", index, err)
		}
	}

	for index, raw := range []float32{10, -10, 5, -5, 0} {
		if err := cache.UpdateScalar(raw, cortical.Gyroscope, 0, cortical.ChannelIndex(index)); err != nil {
			t.Fatal(err)
		}
	}
	neurons, err := cache.EncodeToNeurons()
	if err != nil {
		t.Fatal(err)
	}

	// Depth 10 gives each sign five layers: full scale is layer 4 of
	// its half, and negative values start at z = 5.
	want := []neuron.Point{
		{X: 0, Z: 4, P: 1},
		{X: 1, Z: 9, P: 1},
		{X: 2, Z: 2, P: 1},
		{X: 3, Z: 7, P: 1},
		{X: 4, Z: 0, P: 1},
	}
	collection := collectionFor(t, neurons, "igyr00")
	if collection.Len() != len(want) {
		t.Fatalf("got %d points, want %d", collection.Len(), len(want))
	}
	for i, point := range want {
		if got := collection.At(i); got != point {
			t.Errorf("point %d = %v, want %v", i, got, point)
		}
	}
}

func TestBidirectionalCoderLimits(t *testing.T) {
	cache, _ := newTestCache(t, StaleExclude)
	mustRegisterArea(t, cache, cortical.Gyroscope, 0, 1, cortical.Dimensions{Width: 1, Height: 1, Depth: 4})
	if err := cache.RegisterChannelWithCoder(cortical.Gyroscope, 0, 0, identity(), false, CoderBidirectional); err != nil {
		t.Fatalf("RegisterChannelWithCoder: %v", err)
	}
	if err := cache.UpdateScalar(1.5, cortical.Gyroscope, 0, 0); !errors.Is(err, fault.ErrValidation) {
		t.Errorf("out-of-range value error = %v, want ErrValidation", err)
	}

	if err := CoderBidirectional.checkDimensions(cortical.Dimensions{Width: 1, Height: 1, Depth: 1}); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("depth 1 error = %v, want ErrConfiguration", err)
	}
}

func TestImageCoder(t *testing.T) {
	cache, _ := newTestCache(t, StaleExclude)
	dims := cortical.Dimensions{Width: 2, Height: 2, Depth: 1}
	mustRegisterArea(t, cache, cortical.ImageCameraCenter, 0, 2, dims)

	blank, err := processor.NewImageFrame(2, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	imageIdentity, err := processor.NewImageIdentity(blank)
	if err != nil {
		t.Fatal(err)
	}
	mustRegisterChannel(t, cache, cortical.ImageCameraCenter, 0, 1, []processor.Processor{imageIdentity}, false)

	frame, err := processor.ImageFrameFromPixels(2, 2, 1, []float32{0.1, 0.2, 0.3, 0.4})
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.UpdateImage(frame, cortical.ImageCameraCenter, 0, 1); err != nil {
		t.Fatalf("UpdateImage: %v", err)
	}
	neurons, err := cache.EncodeToNeurons()
	if err != nil {
		t.Fatal(err)
	}

	// Channel 1 of a 2-wide area starts at x = 2.
	want := []neuron.Point{
		{X: 2, Y: 0, Z: 0, P: 0.1},
		{X: 3, Y: 0, Z: 0, P: 0.2},
		{X: 2, Y: 1, Z: 0, P: 0.3},
		{X: 3, Y: 1, Z: 0, P: 0.4},
	}
	collection := collectionFor(t, neurons, "ivcc00")
	if collection.Len() != len(want) {
		t.Fatalf("got %d points, want %d", collection.Len(), len(want))
	}
	for i, point := range want {
		if got := collection.At(i); got != point {
			t.Errorf("point %d = %v, want %v", i, got, point)
		}
	}

	wrong, _ := processor.NewImageFrame(3, 2, 1)
	if err := cache.UpdateImage(wrong, cortical.ImageCameraCenter, 0, 1); !errors.Is(err, fault.ErrValidation) {
		t.Errorf("wrong frame shape error = %v, want ErrValidation", err)
	}
}

func TestImageCoderColorDepth(t *testing.T) {
	frame, err := processor.ImageFrameFromPixels(1, 1, 3, []float32{1, 0.5, 0.25})
	if err != nil {
		t.Fatal(err)
	}
	collection := neuron.NewCollection(0)
	CoderImage.encode(processor.Image(frame), 0, frame.Dimensions(), collection)

	for color, want := range []float32{1, 0.5, 0.25} {
		point := collection.At(color)
		if point.Z != uint32(color) || point.P != want {
			t.Errorf("color %d: got %v, want z=%d p=%v", color, point, color, want)
		}
	}
}

func TestDefaultCoder(t *testing.T) {
	tests := []struct {
		sensorType cortical.SensorType
		want       Coder
	}{
		{cortical.Proximity, CoderLinear},
		{cortical.Battery, CoderLinear},
		{cortical.Accelerometer, CoderSplitSign},
		{cortical.Gyroscope, CoderSplitSign},
		{cortical.ImageCameraCenter, CoderImage},
	}
	for _, test := range tests {
		if got := DefaultCoder(test.sensorType); got != test.want {
			t.Errorf("DefaultCoder(%s) = %s, want %s", test.sensorType, got, test.want)
		}
	}
	// Every sensor type's default coder accepts its sample kind.
	for _, sensorType := range cortical.SensorTypes() {
		if DefaultCoder(sensorType).Kind() != sensorType.Kind() {
			t.Errorf("DefaultCoder(%s) takes %s, sensor produces %s",
				sensorType, DefaultCoder(sensorType).Kind(), sensorType.Kind())
		}
	}
}

func TestParseCoder(t *testing.T) {
	for _, coder := range []Coder{CoderLinear, CoderSplitSign, CoderImage, CoderBidirectional} {
		parsed, err := ParseCoder(coder.String())
		if err != nil || parsed != coder {
			t.Errorf("ParseCoder(%q) = %v, %v", coder.String(), parsed, err)
		}
	}
	if _, err := ParseCoder("fourier"); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("unknown coder error = %v, want ErrConfiguration", err)
	}
}
