// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package neuron

import (
	"iter"
	"slices"

	"github.com/bureau-foundation/connector/lib/cortical"
	"github.com/bureau-foundation/connector/lib/fault"
)

// Map associates cortical areas with the points emitted into them.
// Iteration follows insertion order. The zero value is not usable;
// call [NewMap].
type Map struct {
	order []cortical.ID
	areas map[cortical.ID]*Collection
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{areas: make(map[cortical.ID]*Collection)}
}

// Insert stores collection under id, replacing any previous
// collection. A replaced ID keeps its original position in the
// iteration order. The map takes ownership of collection.
func (m *Map) Insert(id cortical.ID, collection *Collection) {
	if collection == nil {
		collection = &Collection{}
	}
	if _, exists := m.areas[id]; !exists {
		m.order = append(m.order, id)
	}
	m.areas[id] = collection
}

// InsertNew stores collection under id and fails if id is already
// present.
func (m *Map) InsertNew(id cortical.ID, collection *Collection) error {
	if _, exists := m.areas[id]; exists {
		return fault.Configurationf("cortical area %s is already in the neuron map", id)
	}
	m.Insert(id, collection)
	return nil
}

// Get returns the collection for id.
func (m *Map) Get(id cortical.ID) (*Collection, bool) {
	collection, ok := m.areas[id]
	return collection, ok
}

// Contains reports whether id has a collection.
func (m *Map) Contains(id cortical.ID) bool {
	_, ok := m.areas[id]
	return ok
}

// Remove deletes id and returns whether it was present.
func (m *Map) Remove(id cortical.ID) bool {
	if _, ok := m.areas[id]; !ok {
		return false
	}
	delete(m.areas, id)
	m.order = slices.DeleteFunc(m.order, func(candidate cortical.ID) bool { return candidate == id })
	return true
}

// Len returns the number of areas.
func (m *Map) Len() int { return len(m.order) }

// IDs returns the area IDs in insertion order.
func (m *Map) IDs() []cortical.ID { return slices.Clone(m.order) }

// All iterates areas in insertion order.
func (m *Map) All() iter.Seq2[cortical.ID, *Collection] {
	return func(yield func(cortical.ID, *Collection) bool) {
		for _, id := range m.order {
			if !yield(id, m.areas[id]) {
				return
			}
		}
	}
}

// NeuronCount returns the total number of points across all areas.
func (m *Map) NeuronCount() int {
	total := 0
	for _, collection := range m.areas {
		total += collection.Len()
	}
	return total
}

// Equal reports whether both maps hold the same areas with equal
// collections. Area order is ignored; point order within an area is
// not.
func (m *Map) Equal(other *Map) bool {
	if m.Len() != other.Len() {
		return false
	}
	for id, collection := range m.areas {
		otherCollection, ok := other.areas[id]
		if !ok || !collection.Equal(otherCollection) {
			return false
		}
	}
	return true
}
