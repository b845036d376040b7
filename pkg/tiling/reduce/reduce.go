// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package reduce validates a permutation and reduces a (shape, permutation) pair to its
// canonical form: axes of size 1 are dropped and runs of source axes that stay consecutive
// in the permutation are merged into one.
//
// Reduction doesn't change the data movement: the reduced pair moves the same elements
// from/to the same flat offsets as the original one.
package reduce

import (
	"fmt"
	"slices"

	"github.com/gomlx/optiling/pkg/support/smallvec"
	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Pair is a reduced transposition problem: source shape, permutation and the resulting
// destination shape, with OutShape[ii] == InShape[Perm[ii]].
type Pair struct {
	InShape, OutShape, Perm smallvec.Ints

	// Groups lists, for each reduced source axis, the original (non-unit) axes merged into it.
	Groups [][]int
}

// Rank of the reduced problem.
func (p Pair) Rank() int { return p.InShape.Len() }

// Volume returns the total number of elements.
func (p Pair) Volume() int { return p.InShape.Product() }

// IsIdentity returns whether the reduced permutation is the identity. After reduction
// this only happens with rank 1.
func (p Pair) IsIdentity() bool {
	return xslices.IsIota(p.Perm.Slice())
}

// String implements fmt.Stringer.
func (p Pair) String() string {
	return fmt.Sprintf("%v -> %v (perm=%v)", p.InShape, p.OutShape, p.Perm)
}

// ValidatePerm checks that perm is a permutation of [0, rank): right length, values in range and
// no repeated axes.
func ValidatePerm(perm []int, rank int) error {
	if len(perm) != rank {
		return errors.Errorf("permutation %v has %d axes, but the shape has rank %d", perm, len(perm), rank)
	}
	axesSet := slices.Clone(perm)
	slices.Sort(axesSet)
	for ii, axis := range axesSet {
		if axis < 0 || axis >= rank {
			return errors.Errorf("invalid axis %d in permutation %v, it must be within [0, %d)", axis, perm, rank)
		}
		if ii > 0 && axis == axesSet[ii-1] {
			return errors.Errorf("invalid permutation %v, axis %d is repeated, each axis must appear exactly once",
				perm, axis)
		}
	}
	return nil
}

// ValidateShape checks the rank is within [1, smallvec.MaxRank] and that every dimension is > 0.
func ValidateShape(shape []int) error {
	if len(shape) == 0 || len(shape) > smallvec.MaxRank {
		return errors.Errorf("shape %v has rank %d, it must be within [1, %d]", shape, len(shape), smallvec.MaxRank)
	}
	for axis, dim := range shape {
		if dim <= 0 {
			return errors.Errorf("shape %v has invalid dimension %d on axis %d, dimensions must be > 0", shape, dim, axis)
		}
	}
	return nil
}

// Reduce validates shape and perm and returns the reduced Pair.
//
// If all axes have size 1, the result is the identity on a single axis of size 1.
func Reduce(shape, perm []int) (Pair, error) {
	if err := ValidateShape(shape); err != nil {
		return Pair{}, err
	}
	if err := ValidatePerm(perm, len(shape)); err != nil {
		return Pair{}, err
	}

	// Keep only the non-unit axes, in destination order.
	dstOrder := make([]int, 0, len(perm))
	for _, axis := range perm {
		if shape[axis] > 1 {
			dstOrder = append(dstOrder, axis)
		}
	}
	if len(dstOrder) == 0 {
		return Pair{
			InShape:  smallvec.Of(1),
			OutShape: smallvec.Of(1),
			Perm:     smallvec.Of(0),
			Groups:   [][]int{{}},
		}, nil
	}

	// Merge runs of source axes that are consecutive (ignoring unit axes) in destination order.
	next := make(map[int]int, len(dstOrder)) // Next non-unit source axis.
	prev := -1
	for axis := range shape {
		if shape[axis] > 1 {
			if prev >= 0 {
				next[prev] = axis
			}
			prev = axis
		}
	}
	var dstGroups [][]int
	for ii, axis := range dstOrder {
		if ii > 0 {
			last := dstGroups[len(dstGroups)-1]
			if n, found := next[last[len(last)-1]]; found && n == axis {
				dstGroups[len(dstGroups)-1] = append(last, axis)
				continue
			}
		}
		dstGroups = append(dstGroups, []int{axis})
	}

	// Source order of the groups is given by their first axis.
	srcGroups := slices.Clone(dstGroups)
	slices.SortFunc(srcGroups, func(a, b []int) int { return a[0] - b[0] })
	var p Pair
	p.Groups = srcGroups
	for _, group := range srcGroups {
		dim := 1
		for _, axis := range group {
			dim *= shape[axis]
		}
		p.InShape.Append(dim)
	}
	for _, group := range dstGroups {
		srcAxis := slices.IndexFunc(srcGroups, func(g []int) bool { return g[0] == group[0] })
		p.Perm.Append(srcAxis)
		p.OutShape.Append(p.InShape.At(srcAxis))
	}
	return p, nil
}

// Plain validates shape and perm and returns them as a Pair without any reduction: one group per
// axis, unit axes included. It's used when the axes carry more than their dimensions, e.g. the real
// strides of a padded layout conversion.
func Plain(shape, perm []int) (Pair, error) {
	if err := ValidateShape(shape); err != nil {
		return Pair{}, err
	}
	if err := ValidatePerm(perm, len(shape)); err != nil {
		return Pair{}, err
	}
	var p Pair
	for axis, dim := range shape {
		p.InShape.Append(dim)
		p.Groups = append(p.Groups, []int{axis})
	}
	for _, axis := range perm {
		p.Perm.Append(axis)
		p.OutShape.Append(shape[axis])
	}
	return p, nil
}
