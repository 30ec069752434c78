// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package neuron

import (
	"fmt"
	"slices"
)

// Point is one neuron activation.
type Point struct {
	X, Y, Z uint32
	P       float32
}

// String formats the point as (x, y, z)=p.
func (p Point) String() string {
	return fmt.Sprintf("(%d, %d, %d)=%g", p.X, p.Y, p.Z, p.P)
}

// Collection is the ordered set of points for one cortical area.
// The zero value is an empty collection ready for use.
type Collection struct {
	points []Point
}

// NewCollection returns an empty collection with room for capacity
// points.
func NewCollection(capacity int) *Collection {
	return &Collection{points: make([]Point, 0, max(capacity, 0))}
}

// CollectionOf returns a collection holding a copy of points.
func CollectionOf(points ...Point) *Collection {
	return &Collection{points: slices.Clone(points)}
}

// Len returns the number of points.
func (c *Collection) Len() int { return len(c.points) }

// At returns point i. It panics if i is out of range, like a slice
// index.
func (c *Collection) At(i int) Point { return c.points[i] }

// Points returns a copy of the points in order.
func (c *Collection) Points() []Point { return slices.Clone(c.points) }

// Append adds one point.
func (c *Collection) Append(point Point) { c.points = append(c.points, point) }

// AppendPoints adds points in order.
func (c *Collection) AppendPoints(points ...Point) { c.points = append(c.points, points...) }

// Grow ensures room for n more points without reallocating.
func (c *Collection) Grow(n int) { c.points = slices.Grow(c.points, n) }

// Reset empties the collection, keeping its storage for the next
// encode cycle.
func (c *Collection) Reset() { c.points = c.points[:0] }

// Equal reports whether both collections hold the same points in the
// same order. Potentials compare with ==, so NaN never matches.
func (c *Collection) Equal(other *Collection) bool {
	return slices.Equal(c.points, other.points)
}

// Bounds returns the largest X, Y and Z seen, which is the minimum
// area size (minus one per axis) that can hold every point. All zero
// for an empty collection.
func (c *Collection) Bounds() (maxX, maxY, maxZ uint32) {
	for _, point := range c.points {
		maxX = max(maxX, point.X)
		maxY = max(maxY, point.Y)
		maxZ = max(maxZ, point.Z)
	}
	return maxX, maxY, maxZ
}
