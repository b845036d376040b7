// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transpose

import (
	"slices"

	"github.com/gomlx/optiling/pkg/support/sets"
	"github.com/gomlx/optiling/pkg/support/xmath"
	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/gomlx/optiling/pkg/tiling/balance"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
)

const (
	// maxBorrowedPerSide is the maximum number of axes borrowed from the source or from the destination.
	maxBorrowedPerSide = 2

	// maxLeftoverAxes is the maximum number of axes not borrowed, iterated outside the UB.
	maxLeftoverAxes = 3

	// The borrowed run of each side reaches 1/borrowWidthDivisor of the UB, and
	// 1/(borrowWidthDivisor*lastTransposedDivisor) of it when the last axis is transposed.
	borrowWidthDivisor    = 64
	lastTransposedDivisor = 16
)

// borrowWidth returns the number of elements the borrowed run of each side must reach: a fraction
// of the UB, at least one block.
func borrowWidth(p *problem) int {
	width := p.c.UBElems() / borrowWidthDivisor
	if p.lastTransposed() {
		width /= lastTransposedDivisor
	}
	return max(p.be, xmath.AlignDown(width, p.be))
}

// BorrowedAxis is a source axis folded into the UB tile: Step elements of it per iteration,
// in Loops iterations, the last one taking Tail elements.
type BorrowedAxis struct {
	Axis, Step, Loops, Tail int
}

// LoopSlot is one level of the iteration over tiles: Count iterations over Axis, advancing Step
// elements of the axis per iteration, that is SrcStride elements in the source and DstStride in
// the destination.
type LoopSlot struct {
	Axis, Count, Step, SrcStride, DstStride int
}

// borrowAnalysis is the outcome of a feasible borrow analysis.
type borrowAnalysis struct {
	srcCount, dstCount int
	dup                bool
	borrowed           []BorrowedAxis
	loops              []LoopSlot
	tile               int
}

// trailingRun returns the minimal run of axes, given innermost first, whose product reaches width.
// The outermost axis of the run may be partially taken: its step is the number of its elements
// needed. It returns false if all axes together don't reach width.
func trailingRun(axes, dims []int, width int) (run []BorrowedAxis, ok bool) {
	inner := 1
	for _, axis := range axes {
		dim := dims[axis]
		if inner*dim >= width {
			run = append(run, BorrowedAxis{Axis: axis, Step: min(dim, xmath.CeilDiv(width, inner))})
			return run, true
		}
		run = append(run, BorrowedAxis{Axis: axis, Step: dim})
		inner *= dim
	}
	return run, false
}

// analyzeBorrow finds the axes to borrow into the UB so that both the reads from the source and the
// writes to the destination move at least borrowWidth elements at a time.
//
// When the same axis is borrowed by both sides, the larger step is used, so both address streams
// advance together. It returns false if more than maxBorrowedPerSide axes would be needed on one
// side, if the tile doesn't fit a quarter of the UB, or if more than maxLeftoverAxes axes are left
// out of the tile.
func analyzeBorrow(p *problem) (a borrowAnalysis, ok bool) {
	srcAxes := make([]int, p.rank)
	dstAxes := make([]int, p.rank)
	for ii := range p.rank {
		srcAxes[ii] = p.rank - 1 - ii
		dstAxes[ii] = p.perm[p.rank-1-ii]
	}
	width := borrowWidth(p)
	srcRun, srcOk := trailingRun(srcAxes, p.src, width)
	dstRun, dstOk := trailingRun(dstAxes, p.src, width)
	if !srcOk || !dstOk || len(srcRun) > maxBorrowedPerSide || len(dstRun) > maxBorrowedPerSide {
		return
	}

	steps := make(map[int]int, len(srcRun)+len(dstRun))
	srcSet, dstSet := sets.Make[int](), sets.Make[int]()
	for _, b := range srcRun {
		steps[b.Axis] = b.Step
		srcSet.Insert(b.Axis)
	}
	for _, b := range dstRun {
		steps[b.Axis] = max(steps[b.Axis], b.Step)
		dstSet.Insert(b.Axis)
	}
	a.srcCount, a.dstCount = len(srcRun), len(dstRun)
	a.dup = len(srcSet.Intersect(dstSet)) > 0
	union := srcSet.Union(dstSet)
	if p.rank-len(union) > maxLeftoverAxes {
		return
	}

	a.tile = 1
	for _, axis := range sets.Sorted(union) {
		step, dim := steps[axis], p.src[axis]
		loops := xmath.CeilDiv(dim, step)
		a.borrowed = append(a.borrowed, BorrowedAxis{
			Axis: axis, Step: step, Loops: loops, Tail: dim - (loops-1)*step,
		})
		a.tile *= step
	}
	if a.tile > p.c.HalfUBElems()/2 {
		return
	}

	// Loops over the tiles, in destination order.
	for q, axis := range p.perm {
		step, borrowed := steps[axis]
		if !borrowed {
			step = 1
		}
		count := xmath.CeilDiv(p.src[axis], step)
		if borrowed && count == 1 {
			continue
		}
		a.loops = append(a.loops, LoopSlot{
			Axis: axis, Count: count, Step: step,
			SrcStride: step * p.srcStrides[axis], DstStride: step * p.dstStrides[q],
		})
	}
	ok = true
	return
}

// iterationAlign returns the alignment of the core splits, in iterations, so that every core starts
// writing on a block of the destination. It picks the innermost loop slot where a split can fall,
// the same way balance.SplitAlign does, also requiring that the destination axis of the slot wraps
// on a block boundary.
func (a borrowAnalysis) iterationAlign(p *problem) int {
	inner := 1
	for s := len(a.loops) - 1; s >= 0; s-- {
		slot := a.loops[s]
		q := slices.Index(p.perm, slot.Axis)
		g := p.be / xmath.GCD(p.be, slot.DstStride)
		if (s == 0 || slot.Count%g == 0) && (q == 0 || p.dstStrides[q-1]%p.be == 0) {
			return g * inner
		}
		inner *= slot.Count
	}
	return inner
}

// BorrowTiling moves tiles made of the borrowed axes through the UB: each iteration reads a tile
// from the source into the first buffer at UBSrcOffset, permutes it into the second buffer at
// UBDstOffset and writes it to the destination.
type BorrowTiling struct {
	scenario scenario.Scenario

	// SrcDims and Perm of the reduced problem.
	SrcDims, Perm []int

	// SrcBorrowed and DstBorrowed are the number of axes borrowed by each side, and Dup whether an
	// axis is borrowed by both.
	SrcBorrowed, DstBorrowed int
	Dup                      bool

	Borrowed []BorrowedAxis
	Loops    []LoopSlot

	Tile, UBSrcOffset, UBDstOffset int

	// Split of the iterations, the loop slots taken as a mixed radix number.
	Split balance.Split
}

var _ Plan = (*BorrowTiling)(nil)

func tileBorrow(p *problem, a borrowAnalysis) *BorrowTiling {
	t := &BorrowTiling{
		scenario:    scenario.Borrow1,
		SrcDims:     slices.Clone(p.src),
		Perm:        slices.Clone(p.perm),
		SrcBorrowed: a.srcCount,
		DstBorrowed: a.dstCount,
		Dup:         a.dup,
		Borrowed:    a.borrowed,
		Loops:       a.loops,
		Tile:        a.tile,
		UBDstOffset: xmath.AlignUp(a.tile, p.be),
	}
	if a.srcCount == 2 || a.dstCount == 2 {
		t.scenario = scenario.Borrow2
	}
	t.Split = balance.Across(t.iterations(), p.c.CoreNum, a.iterationAlign(p))
	return t
}

func (t *BorrowTiling) loopCounts() []int {
	return xslices.Map(t.Loops, func(slot LoopSlot) int { return slot.Count })
}

func (t *BorrowTiling) iterations() int {
	return xslices.Product(t.loopCounts())
}

func (t *BorrowTiling) Scenario() scenario.Scenario { return t.scenario }
func (t *BorrowTiling) UsedCores() int              { return t.Split.Used }
func (t *BorrowTiling) UBUsage() int                { return t.UBDstOffset + t.Tile }

// SubScenario encodes srcBorrowed*100 + dstBorrowed*10 + dup.
func (t *BorrowTiling) SubScenario() int {
	sub := t.SrcBorrowed*100 + t.DstBorrowed*10
	if t.Dup {
		sub++
	}
	return sub
}

// Fixed: {rank, srcDims..., perm..., numBorrowed, (axis, step, loops, tail)..., numLoops,
// (axis, count, step, srcStride, dstStride)..., ubSrcOffset, ubDstOffset}.
func (t *BorrowTiling) Fixed() []int64 {
	fixed := record(ints(len(t.SrcDims)), xslices.ToInt64(t.SrcDims), xslices.ToInt64(t.Perm), ints(len(t.Borrowed)))
	for _, b := range t.Borrowed {
		fixed = append(fixed, ints(b.Axis, b.Step, b.Loops, b.Tail)...)
	}
	fixed = append(fixed, int64(len(t.Loops)))
	for _, slot := range t.Loops {
		fixed = append(fixed, ints(slot.Axis, slot.Count, slot.Step, slot.SrcStride, slot.DstStride)...)
	}
	return append(fixed, ints(t.UBSrcOffset, t.UBDstOffset)...)
}

// Record: {iterStart, iterCount, initLoopIndices...}.
func (t *BorrowTiling) Record(core int) []int64 {
	start := t.Split.Starts[core]
	return record(ints(start, t.Split.Counts[core]), initIndices(start, t.loopCounts()))
}
