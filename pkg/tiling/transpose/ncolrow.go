// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transpose

import (
	"fmt"

	"github.com/gomlx/optiling/pkg/support/xmath"
	"github.com/gomlx/optiling/pkg/tiling/balance"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
)

// nColRowDims are the quantities the N x Col x Row sub-models decide on. Source is [N, Col, Row] and
// destination [N, Row, Col].
type nColRowDims struct {
	n, col, row        int
	tileCol, tileRow   int
	colTiles, rowTiles int
	cores              int
	colWide, rowWide   bool
}

// Factors of the core grid: NF*ColF*RowF == number of cores.
type Factors struct {
	NF, ColF, RowF int
}

// String implements fmt.Stringer.
func (f Factors) String() string { return fmt.Sprintf("%dx%dx%d", f.NF, f.ColF, f.RowF) }

// nColRowModel is one way of laying out the cores over the N, Col tiles and Row tiles.
type nColRowModel struct {
	priority int // Lower is preferred.
	name     string
	decide   func(d nColRowDims) (Factors, bool)
}

// nColRowModels are evaluated all, and the admissible one with the lowest priority wins.
var nColRowModels = []nColRowModel{
	{priority: 1, name: "n-even-wide", decide: func(d nColRowDims) (Factors, bool) {
		return Factors{d.cores, 1, 1}, d.n%d.cores == 0 && d.colWide && d.rowWide
	}},
	{priority: 2, name: "n-first", decide: func(d nColRowDims) (Factors, bool) {
		return Factors{d.cores, 1, 1}, d.n >= d.cores
	}},
	{priority: 3, name: "col-tiles", decide: func(d nColRowDims) (Factors, bool) {
		return Factors{1, d.cores, 1}, d.colTiles%d.cores == 0
	}},
	{priority: 4, name: "row-tiles", decide: func(d nColRowDims) (Factors, bool) {
		return Factors{1, 1, d.cores}, d.rowTiles%d.cores == 0
	}},
	{priority: 5, name: "n-col", decide: func(d nColRowDims) (Factors, bool) {
		if !d.colWide {
			return Factors{}, false
		}
		nF, ok := largestFactor(d.cores, d.n, d.colTiles)
		return Factors{nF, d.cores / nF, 1}, ok
	}},
	{priority: 6, name: "n-row", decide: func(d nColRowDims) (Factors, bool) {
		// Col too narrow to parallelize: N and Row share the cores.
		if d.colWide {
			return Factors{}, false
		}
		nF, ok := largestFactor(d.cores, d.n, d.rowTiles)
		return Factors{nF, 1, d.cores / nF}, ok
	}},
	{priority: 7, name: "col-row", decide: func(d nColRowDims) (Factors, bool) {
		colF, ok := largestFactor(d.cores, d.colTiles, d.rowTiles)
		return Factors{1, colF, d.cores / colF}, ok
	}},
	{priority: 8, name: "three-way", decide: func(d nColRowDims) (Factors, bool) {
		for nF := min(d.cores, d.n); nF >= 1; nF-- {
			if d.cores%nF != 0 {
				continue
			}
			rest := d.cores / nF
			if colF, ok := largestFactor(rest, d.colTiles, d.rowTiles); ok {
				return Factors{nF, colF, rest / colF}, true
			}
		}
		return Factors{}, false
	}},
}

// largestFactor returns the largest divisor f of cores with f <= maxF and cores/f <= maxRest.
func largestFactor(cores, maxF, maxRest int) (int, bool) {
	for f := min(cores, maxF); f >= 1; f-- {
		if cores%f == 0 && cores/f <= maxRest {
			return f, true
		}
	}
	return 0, false
}

// nColRowChoice is the result of the sub-model selection.
type nColRowChoice struct {
	dims    nColRowDims
	model   nColRowModel
	factors Factors
}

// nColRowApplies returns whether the N x Col x Row decomposition should be tried: source [N, Col, Row],
// permutation {0, 2, 1}, N > 1, Col and Row at least one block each and a large enough volume.
func nColRowApplies(p *problem) bool {
	if p.rank != 3 || p.perm[0] != 0 || p.perm[1] != 2 || p.perm[2] != 1 {
		return false
	}
	return p.src[0] >= 2 && p.src[1] >= p.be && p.src[2] >= p.be && p.bytes(p.volume) >= hw.NColRowMinBytes
}

// selectNColRow evaluates every sub-model and returns the admissible one with the lowest priority.
func selectNColRow(p *problem) (choice nColRowChoice, ok bool) {
	tile := squareTile(p.c.UBElems(), p.be)
	if tile == 0 {
		return
	}
	d := nColRowDims{n: p.src[0], col: p.src[1], row: p.src[2], cores: p.c.CoreNum}
	d.tileCol, d.tileRow = min(tile, d.col), min(tile, d.row)
	d.colTiles, d.rowTiles = xmath.CeilDiv(d.col, d.tileCol), xmath.CeilDiv(d.row, d.tileRow)
	d.colWide = p.bytes(d.col) >= hw.WideBurstBytes
	d.rowWide = p.bytes(d.row) >= hw.WideBurstBytes
	choice.dims = d
	for _, model := range nColRowModels {
		factors, admissible := model.decide(d)
		if !admissible || factors.NF > d.n || factors.ColF > d.colTiles || factors.RowF > d.rowTiles ||
			!disjointBlocks(d, factors, p.be) {
			continue
		}
		if !ok || model.priority < choice.model.priority {
			choice.model, choice.factors, ok = model, factors, true
		}
	}
	return
}

// disjointBlocks returns whether the core grid writes disjoint destination blocks: cores splitting
// the Col tiles need block aligned destination rows, and cores splitting N or the Row tiles need
// block aligned [Row, Col] slices, unless N is 1.
func disjointBlocks(d nColRowDims, f Factors, be int) bool {
	if f.ColF > 1 && d.col%be != 0 {
		return false
	}
	if f.NF*f.RowF > 1 && d.n > 1 && (d.row*d.col)%be != 0 {
		return false
	}
	return true
}

// NColRowTiling transposes [N, Col, Row] to [N, Row, Col] in tiles of TileCol x TileRow, with the
// cores laid out in a Factors grid over N, the Col tiles and the Row tiles.
type NColRowTiling struct {
	N, Col, Row        int
	TileCol, TileRow   int
	ColTiles, RowTiles int
	TailCol, TailRow   int
	Factors            Factors

	// Model is the priority of the selected sub-model, and ModelName its name.
	Model     int
	ModelName string

	nCounts, nStarts     []int
	colCounts, colStarts []int
	rowCounts, rowStarts []int
}

var _ Plan = (*NColRowTiling)(nil)

func tileNColRow(choice nColRowChoice) *NColRowTiling {
	d := choice.dims
	t := &NColRowTiling{
		N: d.n, Col: d.col, Row: d.row,
		TileCol: d.tileCol, TileRow: d.tileRow,
		ColTiles: d.colTiles, RowTiles: d.rowTiles,
		Factors:   choice.factors,
		Model:     choice.model.priority,
		ModelName: choice.model.name,
	}
	t.TailCol = t.Col - (t.ColTiles-1)*t.TileCol
	t.TailRow = t.Row - (t.RowTiles-1)*t.TileRow
	t.nCounts, t.nStarts = balance.Even(t.N, t.Factors.NF)
	t.colCounts, t.colStarts = balance.Even(t.ColTiles, t.Factors.ColF)
	t.rowCounts, t.rowStarts = balance.Even(t.RowTiles, t.Factors.RowF)
	return t
}

func (t *NColRowTiling) Scenario() scenario.Scenario { return scenario.NColRow }
func (t *NColRowTiling) SubScenario() int            { return t.Model }
func (t *NColRowTiling) UsedCores() int              { return t.Factors.NF * t.Factors.ColF * t.Factors.RowF }
func (t *NColRowTiling) UBUsage() int                { return 2 * t.TileCol * t.TileRow }

// Fixed: {N, col, row, tileCol, tileRow, colTiles, rowTiles, tailCol, tailRow, nF, colF, rowF}.
func (t *NColRowTiling) Fixed() []int64 {
	return ints(t.N, t.Col, t.Row, t.TileCol, t.TileRow, t.ColTiles, t.RowTiles, t.TailCol, t.TailRow,
		t.Factors.NF, t.Factors.ColF, t.Factors.RowF)
}

// Record: {nStart, nCount, colTileStart, colTileCount, rowTileStart, rowTileCount}.
// Cores are numbered (nIdx*colF + colIdx)*rowF + rowIdx.
func (t *NColRowTiling) Record(core int) []int64 {
	rowIdx := core % t.Factors.RowF
	colIdx := (core / t.Factors.RowF) % t.Factors.ColF
	nIdx := core / (t.Factors.RowF * t.Factors.ColF)
	return ints(t.nStarts[nIdx], t.nCounts[nIdx], t.colStarts[colIdx], t.colCounts[colIdx],
		t.rowStarts[rowIdx], t.rowCounts[rowIdx])
}
