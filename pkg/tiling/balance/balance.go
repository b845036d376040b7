// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package balance splits work across the parallel cores.
//
// All calculators split their work units with Across: every core but the last gets the same
// share, a multiple of the alignment, and the last core gets the remainder. When the remainder is
// smaller than the alignment (e.g. less than one hardware block of elements) work is moved so that
// no core transfers less than one aligned unit.
package balance

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/optiling/pkg/support/xmath"
)

// Split of a volume across cores.
type Split struct {
	// Volume split, in units.
	Volume int

	// Share of every "normal" core, a multiple of the alignment.
	Share int

	// Used is the number of cores that get any work.
	Used int

	// Counts and Starts of each used core: core ii owns units [Starts[ii], Starts[ii]+Counts[ii]).
	Counts, Starts []int
}

// Last returns the number of units of the last used core.
func (s Split) Last() int {
	return s.Counts[s.Used-1]
}

// String implements fmt.Stringer.
func (s Split) String() string {
	return fmt.Sprintf("Split{volume=%d, share=%d, used=%d, last=%d}", s.Volume, s.Share, s.Used, s.Last())
}

// Across splits volume units across at most coreNum cores.
//
// The normal core share is ⌈volume/coreNum⌉ rounded up to a multiple of align, and the number of
// used cores follows from it. If the last core would get a positive remainder smaller than align,
// either the first core hands align units over to the last core (when its share is at least
// 2*align), or the remainder is merged into the previous core, using one core less.
//
// Every start is a multiple of align. A volume smaller than align uses one core.
func Across(volume, coreNum, align int) Split {
	if volume <= 0 || coreNum <= 0 {
		exceptions.Panicf("balance.Across(volume=%d, coreNum=%d): both must be > 0", volume, coreNum)
	}
	if align <= 0 {
		align = 1
	}
	share := xmath.AlignUp(xmath.CeilDiv(volume, coreNum), align)
	used := xmath.CeilDiv(volume, share)
	s := Split{Volume: volume, Share: share, Used: used}
	s.Counts = make([]int, used)
	s.Starts = make([]int, used)
	for ii := range used {
		s.Starts[ii] = ii * share
		s.Counts[ii] = share
	}
	last := volume - (used-1)*share
	s.Counts[used-1] = last
	if used > 1 && last < align {
		if share >= 2*align {
			// First core hands over align units: all following starts shift back by align.
			s.Counts[0] -= align
			for ii := 1; ii < used; ii++ {
				s.Starts[ii] -= align
			}
			s.Counts[used-1] += align
		} else {
			s.Used--
			s.Counts = s.Counts[:s.Used]
			s.Starts = s.Starts[:s.Used]
			s.Counts[s.Used-1] += last
		}
	}
	return s
}

// SplitAlign returns the alignment, in units, for Across so that every core starts writing on a
// block boundary of the destination.
//
// The units are the row-major enumeration of dims, and the unit at indices idx starts at the
// destination offset Σ idx[a]*strides[a]. Units of one core write a contiguous destination range,
// up to the positions the enumeration skips at the end of each axis, which must be block aligned.
//
// It picks the innermost axis where the core splits can fall: a multiple g of its index starts on
// a block (g = blockElems/gcd(blockElems, strides[a])), g divides the axis (so it stays aligned when
// the axis wraps) and the strides of all outer axes are block multiples. Axis 0 always qualifies,
// possibly with an alignment larger than the number of units: Across then uses one core.
func SplitAlign(dims, strides []int, blockElems int) int {
	if len(dims) != len(strides) {
		exceptions.Panicf("balance.SplitAlign(dims=%v, strides=%v): lengths differ", dims, strides)
	}
	inner := 1
	for axis := len(dims) - 1; axis >= 0; axis-- {
		g := blockElems / xmath.GCD(blockElems, strides[axis])
		if (axis == 0 || dims[axis]%g == 0) && outerAligned(strides[:axis], blockElems) {
			return g * inner
		}
		inner *= dims[axis]
	}
	return inner
}

func outerAligned(strides []int, blockElems int) bool {
	for _, stride := range strides {
		if stride%blockElems != 0 {
			return false
		}
	}
	return true
}

// Even splits total into parts as evenly as possible: the first total%parts parts get one extra unit.
// It returns the counts and starts of each part.
func Even(total, parts int) (counts, starts []int) {
	if parts <= 0 {
		exceptions.Panicf("balance.Even(total=%d, parts=%d): parts must be > 0", total, parts)
	}
	counts = make([]int, parts)
	starts = make([]int, parts)
	base, rem := total/parts, total%parts
	pos := 0
	for ii := range parts {
		counts[ii] = base
		if ii < rem {
			counts[ii]++
		}
		starts[ii] = pos
		pos += counts[ii]
	}
	return
}

// Loops returns the number of full loops of perLoop units in count, and the remaining tail.
// If perLoop is 0, it returns (0, count).
func Loops(count, perLoop int) (loops, tail int) {
	if perLoop <= 0 {
		return 0, count
	}
	return count / perLoop, count % perLoop
}
