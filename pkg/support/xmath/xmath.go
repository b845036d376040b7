// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xmath holds the small integer algebra used by the tiling calculators:
// ceiling/floor divisions, block alignment, the greatest common divisor and an integer square root.
//
// The divisions degrade silently when the divisor is zero: they return the dividend
// unchanged. Every calculator above this package inherits that behavior, so it is kept
// as is. Build with the tag "optilingdebug" to turn a zero divisor into a panic.
package xmath

import (
	"github.com/gomlx/exceptions"
	"golang.org/x/exp/constraints"
)

// CeilDiv returns ⌈a/b⌉ for non-negative a and positive b.
// If b == 0 it returns a.
func CeilDiv[T constraints.Integer](a, b T) T {
	if b == 0 {
		zeroDivisor("CeilDiv", int64(a))
		return a
	}
	return (a + b - 1) / b
}

// FloorDiv returns ⌊a/b⌋ for non-negative a and positive b.
// If b == 0 it returns a.
func FloorDiv[T constraints.Integer](a, b T) T {
	if b == 0 {
		zeroDivisor("FloorDiv", int64(a))
		return a
	}
	return a / b
}

// AlignUp rounds a up to the next multiple of align.
// If align == 0 it returns a.
func AlignUp[T constraints.Integer](a, align T) T {
	if align == 0 {
		zeroDivisor("AlignUp", int64(a))
		return a
	}
	return CeilDiv(a, align) * align
}

// AlignDown rounds a down to a multiple of align.
// If align == 0 it returns a.
func AlignDown[T constraints.Integer](a, align T) T {
	if align == 0 {
		zeroDivisor("AlignDown", int64(a))
		return a
	}
	return (a / align) * align
}

// IsAligned returns whether a is a multiple of align. Zero align is never aligned.
func IsAligned[T constraints.Integer](a, align T) bool {
	return align != 0 && a%align == 0
}

// GCD returns the greatest common divisor of a and b, both non-negative. GCD(a, 0) == a.
func GCD[T constraints.Integer](a, b T) T {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ISqrt returns ⌊√n⌋ for n >= 0.
func ISqrt(n int) int {
	if n < 0 {
		exceptions.Panicf("xmath.ISqrt(%d): negative value", n)
	}
	if n < 2 {
		return n
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

func zeroDivisor(fn string, dividend int64) {
	if debugChecks {
		exceptions.Panicf("xmath.%s(%d, 0): zero divisor", fn, dividend)
	}
}
