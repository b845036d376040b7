// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package smallvec implements Ints, a fixed-capacity vector of ints stored inline (no heap allocation),
// with bounds checking on every access.
//
// It is used for shapes and permutations of tiling problems, whose rank is bounded by MaxRank.
package smallvec

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// MaxRank is the maximum rank of a tensor accepted by the tiling engine.
const MaxRank = 8

// Capacity of Ints: one more than MaxRank, for the trailing unit axis appended to small shapes.
const Capacity = MaxRank + 1

// Ints is a fixed-capacity vector of ints. The zero value is an empty vector.
//
// It's a value type: copying it copies the elements.
type Ints struct {
	n    int
	data [Capacity]int
}

// Of returns an Ints with the given values. It panics if there are more than Capacity values.
func Of(values ...int) (v Ints) {
	v.Append(values...)
	return
}

// Len returns the number of elements.
func (v Ints) Len() int { return v.n }

// At returns the element at index i. Negative indices count from the end.
// It panics if the index is out of bounds.
func (v Ints) At(i int) int {
	return v.data[v.index(i)]
}

// Set element at index i. Negative indices count from the end.
func (v *Ints) Set(i, value int) {
	v.data[v.index(i)] = value
}

func (v Ints) index(i int) int {
	adjusted := i
	if adjusted < 0 {
		adjusted += v.n
	}
	if adjusted < 0 || adjusted >= v.n {
		exceptions.Panicf("smallvec.Ints index %d out of bounds for length %d", i, v.n)
	}
	return adjusted
}

// Append values to the vector. It panics if the capacity is exceeded.
func (v *Ints) Append(values ...int) {
	if v.n+len(values) > Capacity {
		exceptions.Panicf("smallvec.Ints capacity %d exceeded: have %d elements, appending %d",
			Capacity, v.n, len(values))
	}
	copy(v.data[v.n:], values)
	v.n += len(values)
}

// Slice returns a copy of the elements as a Go slice.
func (v Ints) Slice() []int {
	s := make([]int, v.n)
	copy(s, v.data[:v.n])
	return s
}

// Product of all elements. The product of an empty vector is 1.
func (v Ints) Product() int {
	p := 1
	for _, x := range v.data[:v.n] {
		p *= x
	}
	return p
}

// Equal returns whether both vectors hold the same elements.
func (v Ints) Equal(other Ints) bool {
	return v.n == other.n && v.data == other.data
}

// String implements fmt.Stringer.
func (v Ints) String() string {
	return fmt.Sprintf("%v", v.data[:v.n])
}
