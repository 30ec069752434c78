// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
)

func TestPipelineProximityChain(t *testing.T) {
	t.Parallel()

	average, err := NewRollingAverage(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	scale, err := NewLinearScale(0, 50, 25)
	if err != nil {
		t.Fatal(err)
	}
	pipeline, err := NewPipeline(average, scale)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	if pipeline.Kind() != cortical.DataScalar {
		t.Errorf("Kind() = %s, want scalar", pipeline.Kind())
	}
	if got := scalarOf(t, pipeline.Initial()); got != 0.5 {
		t.Errorf("Initial() = %v, want 0.5 (last stage)", got)
	}

	out, err := pipeline.Run(Scalar(70))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := scalarOf(t, out); got != 1 {
		t.Errorf("Run(70) = %v, want 1 (clamped)", got)
	}
	if got := pipeline.String(); !strings.Contains(got, "rolling_average(1) -> linear_scale") {
		t.Errorf("String() = %q", got)
	}
}

func TestPipelineRejectsMixedKinds(t *testing.T) {
	t.Parallel()

	frame, _ := NewImageFrame(2, 2, 1)
	image, _ := NewImageIdentity(frame)
	if _, err := NewPipeline(NewIdentity(), image); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("mixed kinds error = %v, want ErrConfiguration", err)
	}
	if _, err := NewPipeline(); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("empty pipeline error = %v, want ErrConfiguration", err)
	}
	if _, err := NewPipeline(NewIdentity(), nil); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("nil stage error = %v, want ErrConfiguration", err)
	}
}

func TestPipelineRunErrors(t *testing.T) {
	t.Parallel()

	strict, _ := NewStrictLinearScale(0, 1, 0)
	pipeline, err := NewPipeline(NewIdentity(), strict)
	if err != nil {
		t.Fatal(err)
	}

	frame, _ := NewImageFrame(1, 1, 1)
	if _, err := pipeline.Run(Image(frame)); !errors.Is(err, fault.ErrValidation) {
		t.Errorf("wrong kind error = %v, want ErrValidation", err)
	}

	_, err = pipeline.Run(Scalar(2))
	if !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("strict stage error = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "stage 1") {
		t.Errorf("error %q does not name the failing stage", err)
	}
}

func TestPipelineResetsStages(t *testing.T) {
	t.Parallel()

	average, _ := NewRollingAverage(2, 0)
	pipeline, err := NewPipeline(average)
	if err != nil {
		t.Fatal(err)
	}
	pipeline.Run(Scalar(10))
	pipeline.Reset()
	out, _ := pipeline.Run(Scalar(10))
	if got := scalarOf(t, out); got != 5 {
		t.Errorf("after Reset: got %v, want 5", got)
	}
}

func TestPipelineRunIsAllOrNothing(t *testing.T) {
	t.Parallel()

	average, _ := NewRollingAverage(2, 0)
	scale, _ := NewStrictLinearScale(0, 50, 0)
	pipeline, err := NewPipeline(average, scale)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	if _, err := pipeline.Run(Scalar(1000)); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("Run(1000) error = %v, want ErrValidation", err)
	}
	out, err := pipeline.Run(Scalar(20))
	if err != nil {
		t.Fatalf("Run(20) after a rejected run: %v", err)
	}
	// The window holds the seed and 20, so the average is 10.
	if got := scalarOf(t, out); got != 0.2 {
		t.Errorf("Run(20) = %v, want 0.2", got)
	}
}

func TestPipelineCheckpointRestoresStatefulStages(t *testing.T) {
	t.Parallel()

	average, _ := NewRollingAverage(2, 0)
	pipeline, err := NewPipeline(average, NewIdentity())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if _, err := pipeline.Run(Scalar(4)); err != nil {
		t.Fatal(err)
	}

	restore := pipeline.Checkpoint()
	for _, value := range []float32{100, 200, 300} {
		if _, err := pipeline.Run(Scalar(value)); err != nil {
			t.Fatal(err)
		}
	}
	restore()

	out, err := pipeline.Run(Scalar(8))
	if err != nil {
		t.Fatal(err)
	}
	if got := scalarOf(t, out); got != 6 {
		t.Errorf("Run(8) after restore = %v, want 6 (mean of 4 and 8)", got)
	}
}
