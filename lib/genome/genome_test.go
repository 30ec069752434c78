// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package genome

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/connector/lib/fault"
)

func baseGenome() map[string]any {
	return map[string]any{
		"version":      "2.0.0",
		"genome_id":    "g-test123",
		"genome_title": "Test Genome",
		"blueprint": map[string]any{
			"ipro00": map[string]any{
				"block_boundaries":     []any{1, 1, 10},
				"per_voxel_neuron_cnt": 1,
				"relative_coordinate":  []any{0, 0, 0},
			},
			"___pwr": map[string]any{
				"block_boundaries":     []any{1, 1, 1},
				"per_voxel_neuron_cnt": 1,
				"relative_coordinate":  []any{0, 0, 0},
			},
		},
		"physiology": map[string]any{
			"simulation_timestep":    0.01,
			"max_age":                100,
			"quantization_precision": "fp32",
		},
		"neuron_morphologies": map[string]any{},
		"brain_regions":       map[string]any{},
		"stats":               map[string]any{},
	}
}

func marshal(t *testing.T, genome map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(genome)
	if err != nil {
		t.Fatalf("marshal genome: %v", err)
	}
	return data
}

// signed marshals genome after setting its signatures to the values
// Sign computes.
func signed(t *testing.T, genome map[string]any) []byte {
	t.Helper()
	delete(genome, keySignatures)
	signatures, err := Sign(marshal(t, genome))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	genome[keySignatures] = signatures
	return marshal(t, genome)
}

func blueprintArea(genome map[string]any, id string) map[string]any {
	return genome["blueprint"].(map[string]any)[id].(map[string]any)
}

func TestValidateValidGenome(t *testing.T) {
	result, err := Validate(signed(t, baseGenome()))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid || len(result.Errors) != 0 || len(result.Warnings) != 0 {
		t.Errorf("got %+v, want valid with no errors or warnings", result)
	}
}

func TestValidateAcceptsComments(t *testing.T) {
	const source = `{
		// FEAGI 2.x genome
		"version": "2.1",
		"genome_id": "g-commented",
		"blueprint": {
			"iinf00": {"block_boundaries": [1, 1, 4], "per_voxel_neuron_cnt": 2, "relative_coordinate": [3, 0, 0],},
		},
		/* defaults */
		"physiology": {"simulation_timestep": 0.025, "max_age": 10000000, "quantization_precision": "int8"},
		"neuron_morphologies": {},
		"brain_regions": {},
	}`
	signatures, err := Sign([]byte(source))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	encoded, _ := json.Marshal(signatures)
	withSignatures := strings.Replace(source, `"brain_regions": {},`, `"brain_regions": {}, "signatures": `+string(encoded)+`,`, 1)

	result, err := Validate([]byte(withSignatures))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid || len(result.Warnings) != 0 {
		t.Errorf("got %+v, want valid with no warnings", result)
	}
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(genome map[string]any)
		afterSign    func(genome map[string]any)
		wantErrors   []string
		wantWarnings []string
	}{
		{
			name:   "two-component version",
			mutate: func(g map[string]any) { g["version"] = "2.0" },
		},
		{
			name:       "missing version",
			mutate:     func(g map[string]any) { delete(g, "version") },
			wantErrors: []string{"version is missing"},
		},
		{
			name:       "old version",
			mutate:     func(g map[string]any) { g["version"] = "1.9.0" },
			wantErrors: []string{"version 1.9.0 is not supported"},
		},
		{
			name:       "future version",
			mutate:     func(g map[string]any) { g["version"] = "3.0.0" },
			wantErrors: []string{"is not supported"},
		},
		{
			name:       "unparseable version",
			mutate:     func(g map[string]any) { g["version"] = "two" },
			wantErrors: []string{`version "two" is not a semantic version`},
		},
		{
			name:       "numeric version",
			mutate:     func(g map[string]any) { g["version"] = 2 },
			wantErrors: []string{"version is a number, want a string"},
		},
		{
			name:       "missing genome id",
			mutate:     func(g map[string]any) { delete(g, "genome_id") },
			wantErrors: []string{"genome_id is missing"},
		},
		{
			name:         "unprefixed genome id",
			mutate:       func(g map[string]any) { g["genome_id"] = "test123" },
			wantWarnings: []string{`genome_id "test123" does not start with "g-"`},
		},
		{
			name:       "missing blueprint",
			mutate:     func(g map[string]any) { delete(g, "blueprint") },
			wantErrors: []string{"blueprint is missing"},
		},
		{
			name: "invalid blueprint key",
			mutate: func(g map[string]any) {
				g["blueprint"].(map[string]any)["bad id"] = map[string]any{}
			},
			wantErrors: []string{`blueprint key "bad id"`},
		},
		{
			name:       "zero block boundary",
			mutate:     func(g map[string]any) { blueprintArea(g, "ipro00")["block_boundaries"] = []any{1, 0, 10} },
			wantErrors: []string{"blueprint.ipro00.block_boundaries[1] is 0"},
		},
		{
			name:       "short block boundaries",
			mutate:     func(g map[string]any) { blueprintArea(g, "ipro00")["block_boundaries"] = []any{1, 1} },
			wantErrors: []string{"blueprint.ipro00.block_boundaries must be an array of three integers"},
		},
		{
			name:       "zero neurons per voxel",
			mutate:     func(g map[string]any) { blueprintArea(g, "___pwr")["per_voxel_neuron_cnt"] = 0 },
			wantErrors: []string{"blueprint.___pwr.per_voxel_neuron_cnt must be an integer of at least 1"},
		},
		{
			name:         "missing relative coordinate",
			mutate:       func(g map[string]any) { delete(blueprintArea(g, "ipro00"), "relative_coordinate") },
			wantWarnings: []string{"blueprint.ipro00.relative_coordinate is missing"},
		},
		{
			name:       "missing physiology",
			mutate:     func(g map[string]any) { delete(g, "physiology") },
			wantErrors: []string{"physiology is missing"},
		},
		{
			name: "bad physiology values",
			mutate: func(g map[string]any) {
				g["physiology"] = map[string]any{"simulation_timestep": -1, "max_age": 0, "quantization_precision": "fp64"}
			},
			wantErrors: []string{
				"physiology.simulation_timestep must be a positive number",
				"physiology.max_age must be a positive number",
				"physiology.quantization_precision must be one of fp32, fp16, int8",
			},
		},
		{
			name:         "missing optional sections",
			mutate:       func(g map[string]any) { delete(g, "neuron_morphologies"); delete(g, "brain_regions") },
			wantWarnings: []string{"neuron_morphologies is missing", "brain_regions is missing"},
		},
		{
			name:       "section of the wrong type",
			mutate:     func(g map[string]any) { g["brain_regions"] = []any{} },
			wantErrors: []string{"brain_regions is an array, want an object"},
		},
		{
			name: "stale signature",
			afterSign: func(g map[string]any) {
				blueprintArea(g, "ipro00")["per_voxel_neuron_cnt"] = 4
			},
			wantWarnings: []string{
				"signatures.genome does not match",
				"signatures.blueprint does not match",
			},
		},
		{
			name:         "missing signatures",
			afterSign:    func(g map[string]any) { delete(g, "signatures") },
			wantWarnings: []string{"signatures are missing"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			genome := baseGenome()
			if test.mutate != nil {
				test.mutate(genome)
			}
			signed(t, genome)
			if test.afterSign != nil {
				test.afterSign(genome)
			}

			result, err := Validate(marshal(t, genome))
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if result.Valid != (len(test.wantErrors) == 0) {
				t.Errorf("Valid = %v, errors %q", result.Valid, result.Errors)
			}
			checkMessages(t, "errors", result.Errors, test.wantErrors)
			checkMessages(t, "warnings", result.Warnings, test.wantWarnings)
		})
	}
}

func checkMessages(t *testing.T, kind string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("got %d %s %q, want %d %q", len(got), kind, got, len(want), want)
		return
	}
	for i := range want {
		if !strings.Contains(got[i], want[i]) {
			t.Errorf("%s[%d] = %q, want it to contain %q", kind, i, got[i], want[i])
		}
	}
}

func TestValidateUnparseable(t *testing.T) {
	for _, input := range []string{
		"",
		"not json",
		"[1, 2, 3]",
		`"genome"`,
		`{"version": "2.0.0"} {}`,
		`{"version": `,
	} {
		t.Run(input, func(t *testing.T) {
			_, err := Validate([]byte(input))
			if !errors.Is(err, fault.ErrDecode) {
				t.Errorf("got %v, want a decode error", err)
			}
			if _, _, err := AutoFix([]byte(input)); !errors.Is(err, fault.ErrDecode) {
				t.Errorf("AutoFix got %v, want a decode error", err)
			}
		})
	}
}

func TestAutoFix(t *testing.T) {
	const broken = `{
		"version": "2.0",
		"genome_id": "g-test123",
		"blueprint": {
			"ipro00": {"block_boundaries": [0, 2, 0], "per_voxel_neuron_cnt": 0}
		},
		"brain_regions": {},
		"signatures": {"genome": "abc", "blueprint": "def", "physiology": "ghi"},
		"stats": {}
	}`

	before, err := Validate([]byte(broken))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if before.Valid {
		t.Fatal("broken genome validated")
	}

	fixed, fixes, err := AutoFix([]byte(broken))
	if err != nil {
		t.Fatalf("AutoFix: %v", err)
	}
	// Two boundaries, neuron count, coordinate, physiology,
	// morphologies and three signatures.
	if fixes != 9 {
		t.Errorf("got %d fixes, want 9", fixes)
	}

	after, err := Validate([]byte(fixed))
	if err != nil {
		t.Fatalf("Validate fixed: %v", err)
	}
	if !after.Valid || len(after.Warnings) != 0 {
		t.Errorf("fixed genome: got %+v, want valid with no warnings\n%s", after, fixed)
	}

	var document map[string]any
	if err := json.Unmarshal([]byte(fixed), &document); err != nil {
		t.Fatalf("fixed output is not JSON: %v", err)
	}
	physiology := document["physiology"].(map[string]any)
	if physiology["quantization_precision"] != DefaultQuantizationPrecision {
		t.Errorf("quantization_precision = %v, want %s", physiology["quantization_precision"], DefaultQuantizationPrecision)
	}
	if physiology["simulation_timestep"] != DefaultSimulationTimestep {
		t.Errorf("simulation_timestep = %v, want %v", physiology["simulation_timestep"], DefaultSimulationTimestep)
	}
	if document["stats"] == nil {
		t.Error("AutoFix dropped an unrelated section")
	}

	again, fixes, err := AutoFix([]byte(fixed))
	if err != nil {
		t.Fatalf("second AutoFix: %v", err)
	}
	if fixes != 0 || again != fixed {
		t.Errorf("second AutoFix applied %d fixes, want a no-op", fixes)
	}
}

func TestAutoFixLeavesUnfixableProblems(t *testing.T) {
	genome := baseGenome()
	delete(genome, "version")
	genome["genome_id"] = "legacy"

	fixed, fixes, err := AutoFix(signed(t, genome))
	if err != nil {
		t.Fatalf("AutoFix: %v", err)
	}
	if fixes != 0 {
		t.Errorf("got %d fixes, want 0", fixes)
	}
	result, err := Validate([]byte(fixed))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	checkMessages(t, "errors", result.Errors, []string{"version is missing"})
	checkMessages(t, "warnings", result.Warnings, []string{`does not start with "g-"`})
}

func TestSign(t *testing.T) {
	first, err := Sign([]byte(`{"blueprint": {"a": 1, "b": 2}, "physiology": {"max_age": 5}}`))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	reordered, err := Sign([]byte(`{"physiology":{"max_age":5},"blueprint":{"b":2,"a":1},"signatures":{"genome":"x"}}`))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if first != reordered {
		t.Errorf("key order or signatures changed the result: %+v vs %+v", first, reordered)
	}
	if len(first.Genome) != 64 {
		t.Errorf("signature %q is %d characters, want 64 hex", first.Genome, len(first.Genome))
	}

	changed, err := Sign([]byte(`{"blueprint": {"a": 1, "b": 3}, "physiology": {"max_age": 5}}`))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if changed.Blueprint == first.Blueprint || changed.Genome == first.Genome {
		t.Error("blueprint change did not change the blueprint and genome signatures")
	}
	if changed.Physiology != first.Physiology {
		t.Error("blueprint change altered the physiology signature")
	}
}
