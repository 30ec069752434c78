// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package motor

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/connector/lib/clock"
	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
	"github.com/bureau-foundation/connector/lib/neuron"
	"github.com/bureau-foundation/connector/lib/processor"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	wheels = cortical.MustParseID("omot00")
	servo  = cortical.MustParseID("opse01")
)

// newTestCache registers a two-channel rotary motor area (depth 10,
// absolute, linear) and a one-channel servo area (depth 5,
// incremental, linear).
func newTestCache(t *testing.T) (*Cache, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch)
	cache := New(Options{Clock: fake})
	if err := cache.RegisterArea(cortical.RotaryMotor, 0, 2, 10, Absolute, Linear); err != nil {
		t.Fatalf("RegisterArea(rotary): %v", err)
	}
	if err := cache.RegisterArea(cortical.PositionalServo, 1, 1, 5, Incremental, Linear); err != nil {
		t.Fatalf("RegisterArea(servo): %v", err)
	}
	return cache, fake
}

func mapOf(areas map[cortical.ID][]neuron.Point) *neuron.Map {
	neurons := neuron.NewMap()
	for id, points := range areas {
		neurons.Insert(id, neuron.CollectionOf(points...))
	}
	return neurons
}

func read(t *testing.T, cache *Cache, motorType cortical.MotorType, group cortical.GroupIndex, index cortical.ChannelIndex) float32 {
	t.Helper()
	value, err := cache.ReadChannel(motorType, group, index)
	if err != nil {
		t.Fatalf("ReadChannel(%s, %d, %d): %v", motorType, group, index, err)
	}
	return value
}

func TestRegisterAreaErrors(t *testing.T) {
	tests := []struct {
		name      string
		motorType cortical.MotorType
		channels  cortical.ChannelCount
		depth     uint32
		frames    FrameHandling
		want      string
	}{
		{"unknown type", cortical.MotorType(77), 1, 4, Absolute, "unknown motor type"},
		{"no channels", cortical.PositionalServo, 0, 4, Absolute, "channel count must be positive"},
		{"zero depth", cortical.PositionalServo, 1, 0, Absolute, "outside"},
		{"signed depth too small", cortical.RotaryMotor, 1, 1, Absolute, "outside"},
		{"signed odd depth", cortical.RotaryMotor, 1, 5, Absolute, "must be even"},
		{"unknown frames", cortical.PositionalServo, 1, 4, FrameHandling(9), "unknown frame handling"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cache := New(Options{})
			err := cache.RegisterArea(test.motorType, 0, test.channels, test.depth, test.frames, Linear)
			if !errors.Is(err, fault.ErrConfiguration) || !strings.Contains(err.Error(), test.want) {
				t.Errorf("error = %v, want ErrConfiguration containing %q", err, test.want)
			}
		})
	}
}

func TestRegisterAreaTwice(t *testing.T) {
	cache, _ := newTestCache(t)
	if err := cache.RegisterArea(cortical.RotaryMotor, 0, 2, 10, Absolute, Linear); err != nil {
		t.Errorf("identical re-registration: %v", err)
	}
	err := cache.RegisterArea(cortical.RotaryMotor, 0, 2, 10, Absolute, Fractional)
	if !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("conflicting re-registration error = %v, want ErrConfiguration", err)
	}
	if got := cache.Areas(); len(got) != 2 || got[0] != wheels || got[1] != servo {
		t.Errorf("Areas() = %v, want [omot00 opse01]", got)
	}
}

func TestDecodeAbsolute(t *testing.T) {
	cache, fake := newTestCache(t)
	updates, err := cache.DecodeNeurons(mapOf(map[cortical.ID][]neuron.Point{
		wheels: {{X: 0, Z: 4, P: 1}, {X: 1, Z: 7, P: 1}},
	}))
	if err != nil {
		t.Fatalf("DecodeNeurons: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(updates))
	}
	if updates[0].Channel != 0 || updates[0].Value != 1 || updates[1].Channel != 1 || updates[1].Value != -0.5 {
		t.Errorf("updates = %+v, want channel 0 at 1 and channel 1 at -0.5", updates)
	}
	if updates[0].Area != wheels || updates[0].MotorType != cortical.RotaryMotor || !updates[0].At.Equal(epoch) {
		t.Errorf("update metadata = %+v", updates[0])
	}

	// An absolute frame that no longer fires channel 1 returns it to 0.
	fake.Advance(time.Second)
	if _, err := cache.DecodeNeurons(mapOf(map[cortical.ID][]neuron.Point{
		wheels: {{X: 0, Z: 2, P: 1}},
	})); err != nil {
		t.Fatalf("DecodeNeurons: %v", err)
	}
	if got := read(t, cache, cortical.RotaryMotor, 0, 0); got != 0.5 {
		t.Errorf("channel 0 = %v, want 0.5", got)
	}
	if got := read(t, cache, cortical.RotaryMotor, 0, 1); got != 0 {
		t.Errorf("channel 1 = %v, want 0", got)
	}
	_, updatedAt, err := cache.ReadRaw(cortical.RotaryMotor, 0, 1)
	if err != nil || !updatedAt.Equal(epoch.Add(time.Second)) {
		t.Errorf("ReadRaw time = %v, %v, want %v", updatedAt, err, epoch.Add(time.Second))
	}
}

func TestDecodeIncremental(t *testing.T) {
	cache, _ := newTestCache(t)
	step := mapOf(map[cortical.ID][]neuron.Point{servo: {{X: 0, Z: 2, P: 1}}})
	for i, want := range []float32{0.5, 1, 1} {
		if _, err := cache.DecodeNeurons(step); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if got := read(t, cache, cortical.PositionalServo, 1, 0); got != want {
			t.Errorf("after decode %d: servo = %v, want %v", i, got, want)
		}
	}

	// A silent frame leaves an incremental channel alone and reports
	// no update for it.
	updates, err := cache.DecodeNeurons(mapOf(map[cortical.ID][]neuron.Point{servo: {{X: 0, Z: 2, P: 0}}}))
	if err != nil {
		t.Fatalf("DecodeNeurons: %v", err)
	}
	if len(updates) != 0 {
		t.Errorf("silent frame produced updates %+v", updates)
	}
	if got := read(t, cache, cortical.PositionalServo, 1, 0); got != 1 {
		t.Errorf("servo after silent frame = %v, want 1", got)
	}
}

func TestDecodeSkipsAbsentAndUnknownAreas(t *testing.T) {
	cache, _ := newTestCache(t)
	if _, err := cache.DecodeNeurons(mapOf(map[cortical.ID][]neuron.Point{wheels: {{X: 0, Z: 4, P: 1}}})); err != nil {
		t.Fatalf("DecodeNeurons: %v", err)
	}
	updates, err := cache.DecodeNeurons(mapOf(map[cortical.ID][]neuron.Point{
		cortical.MustParseID("ogaz03"): {{X: 40, Z: 40, P: 1}},
		cortical.MustParseID("ipro00"): {{X: 0, P: 1}},
	}))
	if err != nil {
		t.Fatalf("DecodeNeurons: %v", err)
	}
	if len(updates) != 0 {
		t.Errorf("unregistered areas produced updates %+v", updates)
	}
	if got := read(t, cache, cortical.RotaryMotor, 0, 0); got != 1 {
		t.Errorf("channel 0 = %v, want 1 kept from the earlier frame", got)
	}
}

func TestDecodeIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name   string
		points []neuron.Point
	}{
		{"channel out of range", []neuron.Point{{X: 0, Z: 1, P: 1}, {X: 1, Z: 0, P: 1}}},
		{"depth out of range", []neuron.Point{{X: 0, Z: 5, P: 1}}},
		{"nonzero y", []neuron.Point{{X: 0, Y: 1, Z: 0, P: 1}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cache, _ := newTestCache(t)
			// The wheels area decodes first, so its channels are
			// staged before the servo area fails.
			_, err := cache.DecodeNeurons(mapOf(map[cortical.ID][]neuron.Point{
				wheels: {{X: 0, Z: 4, P: 1}},
				servo:  test.points,
			}))
			if !errors.Is(err, fault.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			if got := read(t, cache, cortical.RotaryMotor, 0, 0); got != 0 {
				t.Errorf("wheel 0 = %v after a rejected map, want 0", got)
			}
			if _, updatedAt, _ := cache.ReadRaw(cortical.RotaryMotor, 0, 0); !updatedAt.IsZero() {
				t.Errorf("wheel 0 updated at %v after a rejected map, want never", updatedAt)
			}
		})
	}
}

func TestPipelineFailureRestoresEveryChannel(t *testing.T) {
	cache, _ := newTestCache(t)
	average, err := processor.NewRollingAverage(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.SetPipeline(cortical.RotaryMotor, 0, 0, average); err != nil {
		t.Fatalf("SetPipeline: %v", err)
	}
	strict, err := processor.NewStrictLinearScale(0, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.SetPipeline(cortical.RotaryMotor, 0, 1, strict); err != nil {
		t.Fatalf("SetPipeline: %v", err)
	}

	// Channel 1 decodes to -1, which the strict scale rejects after
	// channel 0's average has already taken its sample.
	_, err = cache.DecodeNeurons(mapOf(map[cortical.ID][]neuron.Point{
		wheels: {{X: 0, Z: 4, P: 1}, {X: 1, Z: 9, P: 1}},
	}))
	if !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("DecodeNeurons error = %v, want ErrValidation from the strict scale", err)
	}
	if got := read(t, cache, cortical.RotaryMotor, 0, 0); got != 0 {
		t.Errorf("channel 0 = %v after the rejected map, want 0", got)
	}

	if _, err := cache.DecodeNeurons(mapOf(map[cortical.ID][]neuron.Point{
		wheels: {{X: 0, Z: 4, P: 1}, {X: 1, Z: 4, P: 1}},
	})); err != nil {
		t.Fatalf("DecodeNeurons: %v", err)
	}
	if got := read(t, cache, cortical.RotaryMotor, 0, 0); got != 0.5 {
		t.Errorf("channel 0 average = %v, want 0.5 from one sample of 1 and the seed", got)
	}
	raw, _, err := cache.ReadRaw(cortical.RotaryMotor, 0, 0)
	if err != nil || raw != 1 {
		t.Errorf("channel 0 raw = %v, %v, want 1", raw, err)
	}
}

func TestSetPipelineErrors(t *testing.T) {
	cache, _ := newTestCache(t)
	if err := cache.SetPipeline(cortical.RotaryMotor, 0, 5, processor.NewIdentity()); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("channel out of range error = %v, want ErrConfiguration", err)
	}
	if err := cache.SetPipeline(cortical.GazeControl, 0, 0, processor.NewIdentity()); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("unregistered area error = %v, want ErrConfiguration", err)
	}
	if err := cache.SetPipeline(cortical.RotaryMotor, 0, 0); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("empty pipeline error = %v, want ErrConfiguration", err)
	}
}

func TestCallbacks(t *testing.T) {
	cache, _ := newTestCache(t)
	var got []string
	record := func(name string) func(Update) {
		return func(update Update) {
			got = append(got, name)
			// Callbacks run without the cache lock held.
			if _, err := cache.ReadChannel(update.MotorType, update.Group, update.Channel); err != nil {
				t.Errorf("ReadChannel inside callback: %v", err)
			}
		}
	}
	first, err := cache.OnUpdate(cortical.RotaryMotor, 0, 1, record("wheel 1 first"))
	if err != nil {
		t.Fatalf("OnUpdate: %v", err)
	}
	if _, err := cache.OnUpdate(cortical.RotaryMotor, 0, 1, record("wheel 1 second")); err != nil {
		t.Fatalf("OnUpdate: %v", err)
	}
	if _, err := cache.OnUpdate(cortical.RotaryMotor, 0, 0, record("wheel 0")); err != nil {
		t.Fatalf("OnUpdate: %v", err)
	}
	if _, err := cache.OnUpdate(cortical.PositionalServo, 1, 0, record("servo")); err != nil {
		t.Fatalf("OnUpdate: %v", err)
	}

	frame := mapOf(map[cortical.ID][]neuron.Point{wheels: {{X: 1, Z: 3, P: 1}}})
	if _, err := cache.DecodeNeurons(frame); err != nil {
		t.Fatalf("DecodeNeurons: %v", err)
	}
	want := []string{"wheel 0", "wheel 1 first", "wheel 1 second"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("callbacks ran %v, want %v", got, want)
	}

	if !cache.RemoveCallback(first) {
		t.Fatal("RemoveCallback reported an unknown id")
	}
	if cache.RemoveCallback(first) {
		t.Error("second RemoveCallback succeeded")
	}
	got = nil
	if _, err := cache.DecodeNeurons(frame); err != nil {
		t.Fatalf("DecodeNeurons: %v", err)
	}
	want = []string{"wheel 0", "wheel 1 second"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("callbacks ran %v after removal, want %v", got, want)
	}

	if _, err := cache.OnUpdate(cortical.RotaryMotor, 0, 9, record("nowhere")); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("OnUpdate on a missing channel error = %v, want ErrConfiguration", err)
	}
	if _, err := cache.OnUpdate(cortical.RotaryMotor, 0, 0, nil); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("OnUpdate with nil callback error = %v, want ErrConfiguration", err)
	}
}

func TestDecodeBytes(t *testing.T) {
	cache, _ := newTestCache(t)
	structure, err := mapOf(map[cortical.ID][]neuron.Point{servo: {{X: 0, Z: 1, P: 1}}}).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	updates, err := cache.DecodeBytes(structure)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if len(updates) != 1 || updates[0].Area != servo || updates[0].Value != 0.25 {
		t.Errorf("updates = %+v, want servo at 0.25", updates)
	}
}

func TestConcurrentDecodeAndRead(t *testing.T) {
	cache, _ := newTestCache(t)
	frame := mapOf(map[cortical.ID][]neuron.Point{wheels: {{X: 0, Z: 4, P: 1}}})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 50 {
				if _, err := cache.DecodeNeurons(frame); err != nil {
					t.Errorf("DecodeNeurons: %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				if _, err := cache.ReadChannel(cortical.RotaryMotor, 0, 0); err != nil {
					t.Errorf("ReadChannel: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if got := read(t, cache, cortical.RotaryMotor, 0, 0); got != 1 {
		t.Errorf("channel 0 = %v, want 1", got)
	}
}
