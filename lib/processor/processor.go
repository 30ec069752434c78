// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"fmt"
	"slices"

	"github.com/goki/mat32"

	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
)

// Processor is one stage of a channel pipeline. Processors preserve
// sample kind: output has the same kind as input.
type Processor interface {
	// Kind is the sample kind the processor accepts and produces.
	Kind() cortical.DataKind

	// Process transforms one sample, updating any internal state.
	Process(sample Sample) (Sample, error)

	// Initial is the value a channel holds before its first update.
	Initial() Sample

	// Reset restores the processor to its freshly constructed state.
	Reset()

	// Name identifies the processor in errors and logs.
	Name() string
}

// Stateful is implemented by processors whose Process changes state
// that later samples depend on. Snapshot captures that state; calling
// the returned function puts it back.
type Stateful interface {
	Snapshot() (restore func())
}

func checkFinite(processor string, value float32) error {
	if mat32.IsNaN(value) || mat32.IsInf(value, 0) {
		return fault.Validationf("%s: input %v is not finite", processor, value)
	}
	return nil
}

// RollingAverage returns the mean of the most recent window samples.
// The history starts filled with the seed, so the first outputs are
// pulled toward it.
type RollingAverage struct {
	seed    float32
	history []float32
	next    int
}

// NewRollingAverage creates a rolling average over window samples with
// the history pre-filled with seed.
func NewRollingAverage(window int, seed float32) (*RollingAverage, error) {
	if window < 1 {
		return nil, fault.Configurationf("rolling average window must be at least 1, got %d", window)
	}
	if mat32.IsNaN(seed) || mat32.IsInf(seed, 0) {
		return nil, fault.Configurationf("rolling average seed must be finite, got %v", seed)
	}
	average := &RollingAverage{seed: seed, history: make([]float32, window)}
	average.Reset()
	return average, nil
}

func (r *RollingAverage) Name() string            { return fmt.Sprintf("rolling_average(%d)", len(r.history)) }
func (r *RollingAverage) Kind() cortical.DataKind { return cortical.DataScalar }
func (r *RollingAverage) Initial() Sample         { return Scalar(r.seed) }

// Window returns the history length.
func (r *RollingAverage) Window() int { return len(r.history) }

func (r *RollingAverage) Reset() {
	for i := range r.history {
		r.history[i] = r.seed
	}
	r.next = 0
}

func (r *RollingAverage) Snapshot() func() {
	history, next := slices.Clone(r.history), r.next
	return func() {
		copy(r.history, history)
		r.next = next
	}
}

func (r *RollingAverage) Process(sample Sample) (Sample, error) {
	value, err := sample.requireScalar(r.Name())
	if err != nil {
		return Sample{}, err
	}
	if err := checkFinite(r.Name(), value); err != nil {
		return Sample{}, err
	}
	r.history[r.next] = value
	r.next = (r.next + 1) % len(r.history)

	// Summing in float64 keeps a window of identical values exact.
	var sum float64
	for _, entry := range r.history {
		sum += float64(entry)
	}
	return Scalar(float32(sum / float64(len(r.history)))), nil
}

// LinearScale maps [lower, upper] onto [0, 1], or onto [-1, 1] for
// the signed variant.
type LinearScale struct {
	lower   float32
	upper   float32
	initial float32
	strict  bool
	signed  bool
}

// NewLinearScale maps [lower, upper] onto [0, 1], clamping inputs
// outside the domain. initial is the raw value assumed before the
// first sample.
func NewLinearScale(lower, upper, initial float32) (*LinearScale, error) {
	return newLinearScale(lower, upper, initial, false, false)
}

// NewStrictLinearScale is NewLinearScale but rejects out-of-domain
// inputs with a fault.ErrValidation error.
func NewStrictLinearScale(lower, upper, initial float32) (*LinearScale, error) {
	return newLinearScale(lower, upper, initial, true, false)
}

// NewSignedLinearScale maps [lower, upper] onto [-1, 1], clamping.
func NewSignedLinearScale(lower, upper, initial float32) (*LinearScale, error) {
	return newLinearScale(lower, upper, initial, false, true)
}

func newLinearScale(lower, upper, initial float32, strict, signed bool) (*LinearScale, error) {
	for _, bound := range []float32{lower, upper, initial} {
		if mat32.IsNaN(bound) || mat32.IsInf(bound, 0) {
			return nil, fault.Configurationf("linear scale bounds and initial value must be finite, got [%v, %v] initial %v",
				lower, upper, initial)
		}
	}
	if lower >= upper {
		return nil, fault.Configurationf("linear scale lower bound %v must be below upper bound %v", lower, upper)
	}
	if strict && (initial < lower || initial > upper) {
		return nil, fault.Configurationf("linear scale initial value %v outside [%v, %v]", initial, lower, upper)
	}
	return &LinearScale{lower: lower, upper: upper, initial: initial, strict: strict, signed: signed}, nil
}

func (l *LinearScale) Name() string {
	target := "0_1"
	if l.signed {
		target = "m1_1"
	}
	return fmt.Sprintf("linear_scale_%s[%g, %g]", target, l.lower, l.upper)
}

func (l *LinearScale) Kind() cortical.DataKind { return cortical.DataScalar }
func (l *LinearScale) Reset()                  {}

// Bounds returns the input domain.
func (l *LinearScale) Bounds() (lower, upper float32) { return l.lower, l.upper }

func (l *LinearScale) Initial() Sample { return Scalar(l.scale(l.initial)) }

func (l *LinearScale) Process(sample Sample) (Sample, error) {
	value, err := sample.requireScalar(l.Name())
	if err != nil {
		return Sample{}, err
	}
	if err := checkFinite(l.Name(), value); err != nil {
		return Sample{}, err
	}
	if l.strict && (value < l.lower || value > l.upper) {
		return Sample{}, fault.Validationf("%s: input %v outside domain", l.Name(), value)
	}
	return Scalar(l.scale(value)), nil
}

// scale applies the affine map. The result is clamped after the
// arithmetic so rounding can never leave the output range.
func (l *LinearScale) scale(value float32) float32 {
	value = mat32.Min(mat32.Max(value, l.lower), l.upper)
	unit := (value - l.lower) / (l.upper - l.lower)
	unit = mat32.Min(mat32.Max(unit, 0), 1)
	if l.signed {
		return mat32.Min(mat32.Max(unit*2-1, -1), 1)
	}
	return unit
}

// Identity passes scalars through unchanged. Its initial value is 0.
type Identity struct{}

// NewIdentity returns a scalar pass-through processor.
func NewIdentity() *Identity { return &Identity{} }

func (*Identity) Name() string            { return "identity" }
func (*Identity) Kind() cortical.DataKind { return cortical.DataScalar }
func (*Identity) Initial() Sample         { return Scalar(0) }
func (*Identity) Reset()                  {}

func (i *Identity) Process(sample Sample) (Sample, error) {
	value, err := sample.requireScalar(i.Name())
	if err != nil {
		return Sample{}, err
	}
	if err := checkFinite(i.Name(), value); err != nil {
		return Sample{}, err
	}
	return sample, nil
}

// ImageIdentity passes image frames through unchanged. Frames must
// match the shape of the initial frame.
type ImageIdentity struct {
	initial *ImageFrame
}

// NewImageIdentity returns an image pass-through whose initial value
// is a copy of initial.
func NewImageIdentity(initial *ImageFrame) (*ImageIdentity, error) {
	if initial == nil {
		return nil, fault.Configurationf("image identity needs an initial frame")
	}
	return &ImageIdentity{initial: initial.Clone()}, nil
}

func (*ImageIdentity) Name() string            { return "image_identity" }
func (*ImageIdentity) Kind() cortical.DataKind { return cortical.DataImage }
func (i *ImageIdentity) Initial() Sample       { return Image(i.initial.Clone()) }
func (*ImageIdentity) Reset()                  {}

// Process returns a copy of the frame so the caller may reuse its
// buffer for the next capture.
func (i *ImageIdentity) Process(sample Sample) (Sample, error) {
	frame, err := sample.requireImage(i.Name())
	if err != nil {
		return Sample{}, err
	}
	if !frame.SameShape(i.initial) {
		return Sample{}, fault.Validationf("%s: frame %s does not match expected %s",
			i.Name(), frame.Dimensions(), i.initial.Dimensions())
	}
	return Image(frame.Clone()), nil
}

var (
	_ Processor = (*RollingAverage)(nil)
	_ Processor = (*LinearScale)(nil)
	_ Processor = (*Identity)(nil)
	_ Processor = (*ImageIdentity)(nil)
	_ Stateful  = (*RollingAverage)(nil)
)
