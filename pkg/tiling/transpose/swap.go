// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transpose

import (
	"slices"

	"github.com/gomlx/optiling/pkg/support/xmath"
	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/gomlx/optiling/pkg/tiling/balance"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
)

// squareTile returns the largest multiple of be such that two tiles of tile x tile elements (input and
// transposed output) fit in the UB, or 0 if not even a be x be tile fits.
func squareTile(ubElems, be int) int {
	t := xmath.AlignDown(xmath.ISqrt(ubElems/2), be)
	if t < be {
		return 0
	}
	return t
}

// SwapTiling transposes the last two axes, both block aligned: source [batch..., M, K] to destination
// [batch..., K, M], in tiles of TileM x TileK elements. Batch axes may be permuted among themselves.
type SwapTiling struct {
	M, K           int
	TileM, TileK   int
	MTiles, KTiles int
	TailM, TailK   int

	// BatchDims are the destination batch dimensions, and BatchSrcStrides the source stride of each of them.
	BatchDims, BatchSrcStrides []int

	// Split of the units: batch x mTiles x kTiles, in this order.
	Split balance.Split
}

var _ Plan = (*SwapTiling)(nil)

// swapTileSize returns the tile size for the last two axes swap, or ok=false if the scenario is
// not feasible. The tile is halved while there are fewer units than cores, down to one block.
func swapTileSize(p *problem) (tile int, ok bool) {
	tile = squareTile(p.c.UBElems(), p.be)
	if tile == 0 {
		return 0, false
	}
	m, k := p.src[p.rank-2], p.src[p.rank-1]
	tile = min(tile, xmath.AlignUp(max(m, k), p.be))
	batch := xslices.ProductRange(p.src, 0, p.rank-2)
	units := func(t int) int {
		return batch * xmath.CeilDiv(m, min(t, m)) * xmath.CeilDiv(k, min(t, k))
	}
	for units(tile) < p.c.CoreNum && tile > p.be {
		tile = max(p.be, xmath.AlignDown(tile/2, p.be))
	}
	return tile, true
}

func tileSwap(p *problem, tile int) *SwapTiling {
	t := &SwapTiling{
		M:               p.src[p.rank-2],
		K:               p.src[p.rank-1],
		BatchDims:       slices.Clone(p.dst[:p.rank-2]),
		BatchSrcStrides: slices.Clone(p.gather[:p.rank-2]),
	}
	t.TileM, t.TileK = min(tile, t.M), min(tile, t.K)
	t.MTiles, t.KTiles = xmath.CeilDiv(t.M, t.TileM), xmath.CeilDiv(t.K, t.TileK)
	t.TailM = t.M - (t.MTiles-1)*t.TileM
	t.TailK = t.K - (t.KTiles-1)*t.TileK
	units := xslices.Product(t.BatchDims) * t.MTiles * t.KTiles
	t.Split = balance.Across(units, p.c.CoreNum, 1)
	return t
}

func (t *SwapTiling) Scenario() scenario.Scenario { return scenario.LastTwoAlignedSwap }
func (t *SwapTiling) SubScenario() int            { return 0 }
func (t *SwapTiling) UsedCores() int              { return t.Split.Used }
func (t *SwapTiling) UBUsage() int                { return 2 * t.TileM * t.TileK }

// Fixed: {M, K, tileM, tileK, mTiles, kTiles, tailM, tailK, batchRank, batchDims..., batchSrcStrides...}.
func (t *SwapTiling) Fixed() []int64 {
	return record(
		ints(t.M, t.K, t.TileM, t.TileK, t.MTiles, t.KTiles, t.TailM, t.TailK, len(t.BatchDims)),
		xslices.ToInt64(t.BatchDims), xslices.ToInt64(t.BatchSrcStrides))
}

// Record: {unitStart, unitCount}.
func (t *SwapTiling) Record(core int) []int64 {
	return ints(t.Split.Starts[core], t.Split.Counts[core])
}
