// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package genome

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/connector/lib/fault"
)

// Top-level section names.
const (
	keyVersion            = "version"
	keyGenomeID           = "genome_id"
	keyBlueprint          = "blueprint"
	keyPhysiology         = "physiology"
	keyNeuronMorphologies = "neuron_morphologies"
	keyBrainRegions       = "brain_regions"
	keySignatures         = "signatures"
)

// Physiology defaults inserted by AutoFix.
const (
	DefaultSimulationTimestep    = 0.025
	DefaultMaxAge                = 10_000_000
	DefaultQuantizationPrecision = "fp32"
)

// QuantizationPrecisions lists the accepted quantization_precision
// values.
var QuantizationPrecisions = []string{"fp32", "fp16", "int8"}

// Result is the outcome of Validate. Valid is true when Errors is
// empty; warnings never make a genome invalid.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// document is a decoded genome. Numbers stay json.Number so that
// rewriting a genome does not change how untouched values are spelled.
type document map[string]any

func parse(data []byte) (document, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fault.Decodef("parsing genome: %v", err)
	}
	if decoder.More() {
		return nil, fault.Decodef("parsing genome: trailing data after the top-level object")
	}
	object, ok := value.(map[string]any)
	if !ok {
		return nil, fault.Decodef("parsing genome: top level is %s, want an object", describe(value))
	}
	return document(object), nil
}

// signatureKey domain-separates genome signatures from structure
// digests.
var signatureKey = func() [32]byte {
	var key [32]byte
	copy(key[:], "connector.genome.signature.v1")
	return key
}()

// sign returns the hex keyed-BLAKE3 digest of value's canonical JSON.
func sign(value any) (string, error) {
	canonical, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("canonicalizing section: %w", err)
	}
	hasher, err := blake3.NewKeyed(signatureKey[:])
	if err != nil {
		panic("genome: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write(canonical)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Signatures holds the three section signatures a genome carries.
type Signatures struct {
	Genome     string `json:"genome"`
	Blueprint  string `json:"blueprint"`
	Physiology string `json:"physiology"`
}

// Sign computes the signatures data should carry. It does not check
// anything else about the genome.
func Sign(data []byte) (Signatures, error) {
	genome, err := parse(data)
	if err != nil {
		return Signatures{}, err
	}
	return genome.signatures()
}

func (d document) signatures() (Signatures, error) {
	unsigned := make(map[string]any, len(d))
	for key, value := range d {
		if key != keySignatures {
			unsigned[key] = value
		}
	}
	var signatures Signatures
	var err error
	if signatures.Genome, err = sign(unsigned); err != nil {
		return Signatures{}, err
	}
	if signatures.Blueprint, err = sign(d[keyBlueprint]); err != nil {
		return Signatures{}, err
	}
	if signatures.Physiology, err = sign(d[keyPhysiology]); err != nil {
		return Signatures{}, err
	}
	return signatures, nil
}

// describe names a decoded JSON value's type for messages.
func describe(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "a boolean"
	case json.Number:
		return "a number"
	case string:
		return "a string"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
