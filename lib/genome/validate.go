// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package genome

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/bureau-foundation/connector/lib/cortical"
)

// supportedVersions is the genome format range this package checks.
var supportedVersions = mustConstraint(">= 2.0.0, < 3.0.0")

func mustConstraint(text string) *semver.Constraints {
	constraint, err := semver.NewConstraint(text)
	if err != nil {
		panic("genome: version constraint: " + err.Error())
	}
	return constraint
}

// Validate checks a genome document. The returned error is non-nil
// only when data cannot be parsed as a JSON object; every other
// problem is reported in the Result.
func Validate(data []byte) (Result, error) {
	genome, err := parse(data)
	if err != nil {
		return Result{}, err
	}
	check := &checker{genome: genome}
	if err := check.run(); err != nil {
		return Result{}, err
	}
	return check.result(), nil
}

// AutoFix repairs the fixable problems in data and returns the fixed
// document as indented JSON along with the number of fixes applied.
// Problems without a fix are left in place; run Validate on the
// output to see them. Comments in the input are not preserved.
func AutoFix(data []byte) (string, int, error) {
	genome, err := parse(data)
	if err != nil {
		return "", 0, err
	}
	check := &checker{genome: genome, fix: true}
	if err := check.run(); err != nil {
		return "", 0, err
	}
	fixed, err := json.MarshalIndent(map[string]any(genome), "", "  ")
	if err != nil {
		return "", 0, fmt.Errorf("encoding fixed genome: %w", err)
	}
	return string(fixed) + "\n", check.fixes, nil
}

// checker walks a genome once. With fix set it repairs what it can in
// place and counts the repairs instead of reporting them.
type checker struct {
	genome   document
	fix      bool
	fixes    int
	errors   []string
	warnings []string
}

func (c *checker) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *checker) warnf(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

// repair applies apply when fixing and reports message otherwise.
func (c *checker) repair(report func(string, ...any), apply func(), format string, args ...any) {
	if c.fix {
		apply()
		c.fixes++
		return
	}
	report(format, args...)
}

func (c *checker) result() Result {
	return Result{
		Valid:    len(c.errors) == 0,
		Errors:   nonNil(c.errors),
		Warnings: nonNil(c.warnings),
	}
}

func nonNil(messages []string) []string {
	if messages == nil {
		return []string{}
	}
	return messages
}

func (c *checker) run() error {
	c.checkVersion()
	c.checkGenomeID()
	c.checkBlueprint()
	c.checkPhysiology()
	c.checkOptionalSection(keyNeuronMorphologies)
	c.checkOptionalSection(keyBrainRegions)
	// Signatures last: fixes above change what they cover.
	return c.checkSignatures()
}

func (c *checker) checkVersion() {
	raw, ok := c.genome[keyVersion]
	if !ok {
		c.errorf("version is missing")
		return
	}
	text, ok := raw.(string)
	if !ok {
		c.errorf("version is %s, want a string", describe(raw))
		return
	}
	version, err := semver.NewVersion(text)
	if err != nil {
		c.errorf("version %q is not a semantic version: %v", text, err)
		return
	}
	if !supportedVersions.Check(version) {
		c.errorf("version %s is not supported (want %s)", version, supportedVersions)
	}
}

func (c *checker) checkGenomeID() {
	raw, ok := c.genome[keyGenomeID]
	if !ok {
		c.errorf("genome_id is missing")
		return
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		c.errorf("genome_id must be a non-empty string")
		return
	}
	if !strings.HasPrefix(id, "g-") {
		c.warnf("genome_id %q does not start with \"g-\"", id)
	}
}

func (c *checker) checkBlueprint() {
	raw, ok := c.genome[keyBlueprint]
	if !ok {
		c.errorf("blueprint is missing")
		return
	}
	blueprint, ok := raw.(map[string]any)
	if !ok {
		c.errorf("blueprint is %s, want an object", describe(raw))
		return
	}
	for _, key := range slices.Sorted(maps.Keys(blueprint)) {
		if _, err := cortical.ParseID(key); err != nil {
			c.errorf("blueprint key %q: %v", key, err)
			continue
		}
		area, ok := blueprint[key].(map[string]any)
		if !ok {
			c.errorf("blueprint.%s is %s, want an object", key, describe(blueprint[key]))
			continue
		}
		c.checkArea("blueprint."+key, area)
	}
}

func (c *checker) checkArea(path string, area map[string]any) {
	if raw, ok := area["block_boundaries"]; !ok {
		c.errorf("%s.block_boundaries is missing", path)
	} else if boundaries, ok := raw.([]any); !ok || len(boundaries) != 3 {
		c.errorf("%s.block_boundaries must be an array of three integers", path)
	} else {
		for i, component := range boundaries {
			value, ok := integer(component)
			switch {
			case !ok || value < 0:
				c.errorf("%s.block_boundaries[%d] is %v, want a positive integer", path, i, component)
			case value == 0:
				c.repair(c.errorf, func() { boundaries[i] = json.Number("1") },
					"%s.block_boundaries[%d] is 0, want a positive integer", path, i)
			}
		}
	}

	if value, ok := integer(area["per_voxel_neuron_cnt"]); !ok || value < 1 {
		c.repair(c.errorf, func() { area["per_voxel_neuron_cnt"] = json.Number("1") },
			"%s.per_voxel_neuron_cnt must be an integer of at least 1", path)
	}

	if _, ok := area["relative_coordinate"]; !ok {
		c.repair(c.warnf, func() {
			area["relative_coordinate"] = []any{json.Number("0"), json.Number("0"), json.Number("0")}
		}, "%s.relative_coordinate is missing", path)
	}
}

func (c *checker) checkPhysiology() {
	raw, ok := c.genome[keyPhysiology]
	if !ok {
		c.repair(c.errorf, func() { c.genome[keyPhysiology] = defaultPhysiology() }, "physiology is missing")
		return
	}
	physiology, ok := raw.(map[string]any)
	if !ok {
		c.errorf("physiology is %s, want an object", describe(raw))
		return
	}

	if value, ok := number(physiology["simulation_timestep"]); !ok || value <= 0 {
		c.repair(c.errorf, func() { physiology["simulation_timestep"] = jsonNumber(DefaultSimulationTimestep) },
			"physiology.simulation_timestep must be a positive number")
	}
	if value, ok := number(physiology["max_age"]); !ok || value <= 0 {
		c.repair(c.errorf, func() { physiology["max_age"] = jsonNumber(DefaultMaxAge) },
			"physiology.max_age must be a positive number")
	}
	if precision, _ := physiology["quantization_precision"].(string); !slices.Contains(QuantizationPrecisions, precision) {
		c.repair(c.errorf, func() { physiology["quantization_precision"] = DefaultQuantizationPrecision },
			"physiology.quantization_precision must be one of %s", strings.Join(QuantizationPrecisions, ", "))
	}
}

func defaultPhysiology() map[string]any {
	return map[string]any{
		"simulation_timestep":    jsonNumber(DefaultSimulationTimestep),
		"max_age":                jsonNumber(DefaultMaxAge),
		"quantization_precision": DefaultQuantizationPrecision,
	}
}

func (c *checker) checkOptionalSection(key string) {
	raw, ok := c.genome[key]
	if !ok {
		c.repair(c.warnf, func() { c.genome[key] = map[string]any{} }, "%s is missing", key)
		return
	}
	if _, ok := raw.(map[string]any); !ok {
		c.errorf("%s is %s, want an object", key, describe(raw))
	}
}

func (c *checker) checkSignatures() error {
	want, err := c.genome.signatures()
	if err != nil {
		return err
	}
	raw, ok := c.genome[keySignatures]
	if !ok {
		c.repair(c.warnf, func() {
			c.genome[keySignatures] = map[string]any{
				"genome":     want.Genome,
				"blueprint":  want.Blueprint,
				"physiology": want.Physiology,
			}
		}, "signatures are missing")
		return nil
	}
	signatures, ok := raw.(map[string]any)
	if !ok {
		c.errorf("signatures is %s, want an object", describe(raw))
		return nil
	}
	for _, section := range []struct {
		name string
		want string
	}{
		{"genome", want.Genome},
		{"blueprint", want.Blueprint},
		{"physiology", want.Physiology},
	} {
		if got, _ := signatures[section.name].(string); got != section.want {
			c.repair(c.warnf, func() { signatures[section.name] = section.want },
				"signatures.%s does not match the %s section", section.name, section.name)
		}
	}
	return nil
}

// integer returns value as an int64 when it is a JSON number without
// a fractional part.
func integer(value any) (int64, bool) {
	number, ok := value.(json.Number)
	if !ok {
		return 0, false
	}
	parsed, err := number.Int64()
	return parsed, err == nil
}

func number(value any) (float64, bool) {
	number, ok := value.(json.Number)
	if !ok {
		return 0, false
	}
	parsed, err := number.Float64()
	return parsed, err == nil
}

func jsonNumber(value float64) json.Number {
	return json.Number(strconv.FormatFloat(value, 'f', -1, 64))
}
