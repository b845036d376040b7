// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transpose

import (
	"slices"

	"github.com/gomlx/optiling/pkg/support/xmath"
	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/gomlx/optiling/pkg/tiling/balance"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
)

// RowsTiling handles a not transposed last axis: the destination is a sequence of rows of RowLen
// elements, each copied from one contiguous source row.
//
// LargeLastAxis copies each row with one burst into a block aligned slot of the UB. SmallLastAxis
// gathers rows into aligned slots of the first half of the UB and packs them contiguously into the
// second half, so the write to the destination is one burst per loop.
type RowsTiling struct {
	scenario scenario.Scenario

	RowLen, RowsPerLoop int

	// OuterDims are the destination dimensions except the last, and OuterSrcStrides the source
	// stride of each of them.
	OuterDims, OuterSrcStrides []int

	// Split of the rows.
	Split balance.Split

	slot int // Aligned row length in the UB.
}

var _ Plan = (*RowsTiling)(nil)

func tileRows(p *problem, s scenario.Scenario) *RowsTiling {
	t := &RowsTiling{
		scenario:        s,
		RowLen:          p.dstLast(),
		OuterDims:       slices.Clone(p.dst[:p.rank-1]),
		OuterSrcStrides: slices.Clone(p.gather[:p.rank-1]),
	}
	t.slot = xmath.AlignUp(t.RowLen, p.be)
	if s == scenario.LargeLastAxis {
		t.RowsPerLoop = xmath.FloorDiv(p.c.UBElems(), t.slot)
	} else {
		t.RowsPerLoop = xmath.FloorDiv(p.c.HalfUBElems(), t.slot)
	}
	rows := xmath.FloorDiv(p.volume, t.RowLen)
	// Each core starts on a block of the destination.
	t.Split = balance.Across(rows, p.c.CoreNum, balance.SplitAlign([]int{rows}, []int{t.RowLen}, p.be))
	return t
}

func (t *RowsTiling) Scenario() scenario.Scenario { return t.scenario }
func (t *RowsTiling) SubScenario() int            { return 0 }
func (t *RowsTiling) UsedCores() int              { return t.Split.Used }

func (t *RowsTiling) UBUsage() int {
	rows := min(t.RowsPerLoop, t.Split.Share)
	if t.scenario == scenario.SmallLastAxis {
		return rows*t.slot + rows*t.RowLen
	}
	return rows * t.slot
}

// Fixed: {rowLen, rowsPerLoop, outerRank, outerDims..., outerSrcStrides...}.
func (t *RowsTiling) Fixed() []int64 {
	return record(ints(t.RowLen, t.RowsPerLoop, len(t.OuterDims)),
		xslices.ToInt64(t.OuterDims), xslices.ToInt64(t.OuterSrcStrides))
}

// Record: {rowStart, rowCount, loops, tailRows, initIndices...}.
func (t *RowsTiling) Record(core int) []int64 {
	start, count := t.Split.Starts[core], t.Split.Counts[core]
	loops, tail := balance.Loops(count, t.RowsPerLoop)
	return record(ints(start, count, loops, tail), initIndices(start, t.OuterDims))
}

// HugeTiling handles a not transposed last axis too long for the UB: rows are copied in chunks of
// Chunk elements, and the work unit is one chunk.
type HugeTiling struct {
	RowLen, Chunk, NumChunks, TailChunk int
	OuterDims, OuterSrcStrides          []int

	// Split of the units: rows x chunks, chunks being the fastest moving.
	Split balance.Split
}

var _ Plan = (*HugeTiling)(nil)

func tileHuge(p *problem) *HugeTiling {
	t := &HugeTiling{
		RowLen:          p.dstLast(),
		OuterDims:       slices.Clone(p.dst[:p.rank-1]),
		OuterSrcStrides: slices.Clone(p.gather[:p.rank-1]),
	}
	t.Chunk = min(t.RowLen, xmath.AlignDown(p.c.HalfUBElems(), p.be))
	t.NumChunks = xmath.CeilDiv(t.RowLen, t.Chunk)
	t.TailChunk = t.RowLen - (t.NumChunks-1)*t.Chunk
	rows := xmath.FloorDiv(p.volume, t.RowLen)
	align := balance.SplitAlign([]int{rows, t.NumChunks}, []int{t.RowLen, t.Chunk}, p.be)
	t.Split = balance.Across(rows*t.NumChunks, p.c.CoreNum, align)
	return t
}

func (t *HugeTiling) Scenario() scenario.Scenario { return scenario.HugeLastAxis }
func (t *HugeTiling) SubScenario() int            { return 0 }
func (t *HugeTiling) UsedCores() int              { return t.Split.Used }
func (t *HugeTiling) UBUsage() int                { return t.Chunk }

// Fixed: {rowLen, chunk, numChunks, tailChunk, outerRank, outerDims..., outerSrcStrides...}.
func (t *HugeTiling) Fixed() []int64 {
	return record(ints(t.RowLen, t.Chunk, t.NumChunks, t.TailChunk, len(t.OuterDims)),
		xslices.ToInt64(t.OuterDims), xslices.ToInt64(t.OuterSrcStrides))
}

// Record: {unitStart, unitCount, initIndices..., initChunk}.
func (t *HugeTiling) Record(core int) []int64 {
	start := t.Split.Starts[core]
	row, chunk := start/t.NumChunks, start%t.NumChunks
	return record(ints(start, t.Split.Counts[core]), initIndices(row, t.OuterDims), ints(chunk))
}
