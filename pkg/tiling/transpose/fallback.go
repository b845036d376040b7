// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transpose

import (
	"slices"

	"github.com/gomlx/optiling/pkg/support/xmath"
	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/gomlx/optiling/pkg/tiling/balance"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
)

// FallbackReason tells why a transposed last axis ended up in one of the fallback scenarios. It is
// serialized as the sub-scenario.
type FallbackReason int

const (
	// NoSpecialization: no specialized scenario applies.
	NoSpecialization FallbackReason = iota

	// NColRowInfeasible: no N x Col x Row sub-model is admissible.
	NColRowInfeasible

	// SwapInfeasible: the block transposition tile doesn't fit the UB.
	SwapInfeasible

	// BorrowInfeasible: the borrow analysis failed.
	BorrowInfeasible

	// PaddedConversion: a layout conversion with padding, see TileConversion.
	PaddedConversion
)

var fallbackReasonNames = [...]string{
	"NoSpecialization", "NColRowInfeasible", "SwapInfeasible", "BorrowInfeasible", "PaddedConversion"}

// String implements fmt.Stringer.
func (r FallbackReason) String() string {
	if r < 0 || int(r) >= len(fallbackReasonNames) {
		return "FallbackReason(?)"
	}
	return fallbackReasonNames[r]
}

// fallbackScenario selects among the fallbacks for a transposed last axis: FatToThin when only the
// source last axis is wide, ThinToFat when only the destination one is, TransposeCommon otherwise.
func fallbackScenario(p *problem) scenario.Scenario {
	wideSrc := p.bytes(p.srcLast()) >= hw.WideBurstBytes
	wideDst := p.bytes(p.dstLast()) >= hw.WideBurstBytes
	switch {
	case wideSrc && !wideDst:
		return scenario.TransposeFatToThin
	case !wideSrc && wideDst:
		return scenario.TransposeThinToFat
	}
	return scenario.TransposeCommon
}

// FallbackTiling is always feasible: it moves one row at a time (or several short rows per loop),
// where a row is a destination row gathered from the source with stride Stride, or, for
// TransposeFatToThin, a source row scattered into the destination with stride Stride.
//
// Each gathered (or scattered) element takes one block of the first half of the UB, and the
// packed row goes to the second half. Rows longer than the UB allows are moved in chunks.
//
// The units are the row chunks: row by row, or for TransposeFatToThin chunk by chunk, so that a
// core scatters whole columns of the destination.
type FallbackTiling struct {
	scenario scenario.Scenario
	Reason   FallbackReason

	RowLen, RowChunk, NumChunks, TailChunk int

	// Stride between consecutive elements of a row on the other side.
	Stride int

	// UnitsPerLoop is the number of units (rows, or row chunks) moved per loop.
	UnitsPerLoop int

	// OuterDims of the rows side, RowStrides their strides on the rows side and OuterStrides on
	// the other side.
	OuterDims, RowStrides, OuterStrides []int

	// Split of the units.
	Split balance.Split

	be int
}

var _ Plan = (*FallbackTiling)(nil)

func tileFallback(p *problem, s scenario.Scenario, reason FallbackReason) *FallbackTiling {
	t := &FallbackTiling{scenario: s, Reason: reason, be: p.be}
	srcRows := s == scenario.TransposeFatToThin
	if srcRows {
		t.RowLen = p.srcLast()
		t.Stride = p.scatter[p.rank-1]
		t.OuterDims = slices.Clone(p.src[:p.rank-1])
		t.RowStrides = slices.Clone(p.srcStrides[:p.rank-1])
		t.OuterStrides = slices.Clone(p.scatter[:p.rank-1])
	} else {
		t.RowLen = p.dstLast()
		t.Stride = p.gather[p.rank-1]
		t.OuterDims = slices.Clone(p.dst[:p.rank-1])
		t.RowStrides = slices.Clone(p.dstStrides[:p.rank-1])
		t.OuterStrides = slices.Clone(p.gather[:p.rank-1])
	}
	halfBlocks := p.c.UBBlocks / 2
	t.RowChunk = t.RowLen
	if t.RowChunk > halfBlocks {
		t.RowChunk = xmath.AlignDown(halfBlocks, p.be)
	}
	if srcRows {
		// At least one chunk per core.
		t.RowChunk = min(t.RowChunk, xmath.AlignUp(xmath.CeilDiv(t.RowLen, p.c.CoreNum), p.be))
	}
	t.NumChunks = xmath.CeilDiv(t.RowLen, t.RowChunk)
	t.TailChunk = t.RowLen - (t.NumChunks-1)*t.RowChunk
	t.UnitsPerLoop = max(1, halfBlocks/t.RowChunk)
	rows := xslices.Product(t.OuterDims)
	t.Split = balance.Across(rows*t.NumChunks, p.c.CoreNum, t.align(p, rows))
	return t
}

// align returns the alignment of the core splits, in units, so that every core starts writing on a
// block of the destination.
func (t *FallbackTiling) align(p *problem, rows int) int {
	if t.scenario == scenario.TransposeFatToThin {
		// A core writes the destination positions [k0, k1) of the source last axis, for all the
		// other axes.
		q := slices.Index(p.perm, p.rank-1)
		if q > 0 && p.dstStrides[q-1]%p.be != 0 {
			return rows * t.NumChunks
		}
		return rows * p.be / xmath.GCD(p.be, t.RowChunk*t.Stride)
	}
	if p.padded {
		dims := append(slices.Clone(t.OuterDims), t.NumChunks)
		return balance.SplitAlign(dims, append(slices.Clone(t.RowStrides), t.RowChunk), p.be)
	}
	return balance.SplitAlign([]int{rows, t.NumChunks}, []int{t.RowLen, t.RowChunk}, p.be)
}

func (t *FallbackTiling) Scenario() scenario.Scenario { return t.scenario }
func (t *FallbackTiling) SubScenario() int            { return int(t.Reason) }
func (t *FallbackTiling) UsedCores() int              { return t.Split.Used }

func (t *FallbackTiling) UBUsage() int {
	units := min(t.UnitsPerLoop, t.Split.Share)
	return units*t.RowChunk*t.be + units*xmath.AlignUp(t.RowChunk, t.be)
}

// Fixed: {rowLen, rowChunk, numChunks, tailChunk, stride, unitsPerLoop, outerRank, outerDims...,
// rowStrides..., outerStrides...}.
func (t *FallbackTiling) Fixed() []int64 {
	return record(
		ints(t.RowLen, t.RowChunk, t.NumChunks, t.TailChunk, t.Stride, t.UnitsPerLoop, len(t.OuterDims)),
		xslices.ToInt64(t.OuterDims), xslices.ToInt64(t.RowStrides), xslices.ToInt64(t.OuterStrides))
}

// Record: {unitStart, unitCount, loops, tailUnits}.
func (t *FallbackTiling) Record(core int) []int64 {
	count := t.Split.Counts[core]
	loops, tail := balance.Loops(count, t.UnitsPerLoop)
	return ints(t.Split.Starts[core], count, loops, tail)
}
