// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
)

// Pipeline runs processors in order; each stage's output feeds the
// next, and the last stage's output is the channel's value.
type Pipeline struct {
	stages []Processor
}

// NewPipeline validates and assembles stages. A pipeline needs at
// least one stage, and every stage must accept the same sample kind.
func NewPipeline(stages ...Processor) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, fault.Configurationf("processor pipeline needs at least one stage")
	}
	for i, stage := range stages {
		if stage == nil {
			return nil, fault.Configurationf("processor pipeline stage %d is nil", i)
		}
		if i > 0 && stage.Kind() != stages[i-1].Kind() {
			return nil, fault.Configurationf("processor pipeline stage %d (%s) takes %s samples but stage %d (%s) produces %s",
				i, stage.Name(), stage.Kind(), i-1, stages[i-1].Name(), stages[i-1].Kind())
		}
	}
	return &Pipeline{stages: slices.Clone(stages)}, nil
}

// Kind is the sample kind the pipeline accepts.
func (p *Pipeline) Kind() cortical.DataKind { return p.stages[0].Kind() }

// Len returns the number of stages.
func (p *Pipeline) Len() int { return len(p.stages) }

// Initial is the last stage's initial value.
func (p *Pipeline) Initial() Sample { return p.stages[len(p.stages)-1].Initial() }

// Run passes sample through every stage. It is all or nothing: when a
// stage fails, every stateful stage is put back the way it was before
// the call.
func (p *Pipeline) Run(sample Sample) (Sample, error) {
	if sample.Kind() != p.Kind() {
		return Sample{}, fault.Validationf("pipeline %s takes %s samples, got %s", p, p.Kind(), sample.Kind())
	}
	restore := p.Checkpoint()
	current := sample
	for i, stage := range p.stages {
		next, err := stage.Process(current)
		if err != nil {
			restore()
			return Sample{}, fmt.Errorf("stage %d: %w", i, err)
		}
		current = next
	}
	return current, nil
}

// Checkpoint snapshots every [Stateful] stage. The returned function
// restores them; callers that reject a successful Run's output use it
// to undo the run.
func (p *Pipeline) Checkpoint() (restore func()) {
	var restores []func()
	for _, stage := range p.stages {
		if stateful, ok := stage.(Stateful); ok {
			restores = append(restores, stateful.Snapshot())
		}
	}
	return func() {
		for _, undo := range restores {
			undo()
		}
	}
}

// Reset resets every stage.
func (p *Pipeline) Reset() {
	for _, stage := range p.stages {
		stage.Reset()
	}
}

// String lists the stage names joined with " -> ".
func (p *Pipeline) String() string {
	names := make([]string, len(p.stages))
	for i, stage := range p.stages {
		names[i] = stage.Name()
	}
	return strings.Join(names, " -> ")
}
