// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide missing functionality to the slices package, mostly
// shape arithmetic over []int dimensions.
package xslices

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"golang.org/x/exp/constraints"
)

// At takes an element at the given `index`, where `index` can be negative, in which case it takes from the end
// of the slice.
func At[T any](slice []T, index int) T {
	if index < 0 {
		index = len(slice) + index
	}
	return slice[index]
}

// Last returns the last element of a slice.
func Last[T any](slice []T) T {
	return At(slice, -1)
}

// Product returns the product of all values of the slice. The product of an empty slice is 1.
func Product[T constraints.Integer](slice []T) T {
	p := T(1)
	for _, v := range slice {
		p *= v
	}
	return p
}

// ProductFrom returns the product of slice[start:], the size of everything to the right of an axis.
//
// A negative start counts from the end, as in At: ProductFrom(shape, -2) is the product of the
// last two dimensions. A start past the end yields 1.
func ProductFrom[T constraints.Integer](slice []T, start int) T {
	if start < 0 {
		start += len(slice)
		if start < 0 {
			exceptions.Panicf("xslices.ProductFrom(%v, %d): start out of range", slice, start-len(slice))
		}
	}
	if start >= len(slice) {
		return 1
	}
	return Product(slice[start:])
}

// ProductRange returns the product of slice[from:to].
func ProductRange[T constraints.Integer](slice []T, from, to int) T {
	if from >= to {
		return 1
	}
	return Product(slice[from:to])
}

// Iota returns a slice of incremental int values, starting with start and of length len.
// Eg: Iota(3, 2) -> []int{3, 4}
func Iota[T constraints.Integer](start T, len int) (slice []T) {
	slice = make([]T, len)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return
}

// IsIota returns whether slice is [0, 1, ..., len(slice)-1], that is, an identity permutation.
func IsIota[T constraints.Integer](slice []T) bool {
	for ii, v := range slice {
		if v != T(ii) {
			return false
		}
	}
	return true
}

// Permute returns out[ii] = values[perm[ii]].
func Permute[T any](values []T, perm []int) []T {
	out := make([]T, len(perm))
	for ii, axis := range perm {
		out[ii] = values[axis]
	}
	return out
}

// Inverse returns the inverse of the permutation perm: Inverse(perm)[perm[ii]] == ii.
func Inverse(perm []int) []int {
	inv := make([]int, len(perm))
	for ii, axis := range perm {
		inv[axis] = ii
	}
	return inv
}

// Strides returns the row-major strides, in elements, for the given dimensions.
func Strides(dims []int) []int {
	strides := make([]int, len(dims))
	for axis := range dims {
		strides[axis] = ProductFrom(dims, axis+1)
	}
	return strides
}

// Unravel decomposes the flat row-major index into per-axis indices over dims, writing them into indices.
// len(indices) must be len(dims).
func Unravel(flat int, dims []int, indices []int) {
	for axis := len(dims) - 1; axis >= 0; axis-- {
		indices[axis] = flat % dims[axis]
		flat /= dims[axis]
	}
}

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// ToInt64 converts a slice of ints to int64, the width used by serialized tiling blocks.
func ToInt64[T constraints.Integer](slice []T) []int64 {
	return Map(slice, func(v T) int64 { return int64(v) })
}

// Flag creates a flag for []T with the given name, description and default value.
// It takes as input a parser for an individual T value.
func Flag[T any](name string, defaultValue []T, usage string,
	parserFn func(valueStr string) (T, error)) *[]T {
	f := &genericSliceFlagImpl[T]{
		parsedSlice: defaultValue,
		parserFn:    parserFn,
	}
	flag.Var(f, name, usage)
	return &f.parsedSlice
}

// IntsFlag creates a flag for a comma-separated list of ints.
func IntsFlag(name string, defaultValue []int, usage string) *[]int {
	return Flag(name, defaultValue, usage, func(valueStr string) (int, error) {
		return strconv.Atoi(strings.TrimSpace(valueStr))
	})
}

// genericSliceFlagImpl implements flag.Value for a generic type.
type genericSliceFlagImpl[T any] struct {
	parsedSlice []T
	parserFn    func(valueStr string) (T, error)
}

func (f *genericSliceFlagImpl[T]) String() string {
	if len(f.parsedSlice) == 0 {
		return ""
	}
	parts := make([]string, len(f.parsedSlice))
	for ii, elem := range f.parsedSlice {
		parts[ii] = fmt.Sprintf("%v", elem)
	}
	return strings.Join(parts, ",")
}

func (f *genericSliceFlagImpl[T]) Set(listStr string) error {
	if listStr == "" {
		f.parsedSlice = make([]T, 0)
		return nil
	}
	parts := strings.Split(listStr, ",")
	f.parsedSlice = make([]T, len(parts))
	var err error
	for ii, part := range parts {
		f.parsedSlice[ii], err = f.parserFn(part)
		if err != nil {
			return err
		}
	}
	return nil
}
