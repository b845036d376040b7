// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transpose

import (
	"github.com/gomlx/optiling/pkg/core/dtypes"
	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/gomlx/optiling/pkg/tiling/reduce"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
)

// Plan is the tiling computed by one of the calculators for one scenario.
//
// Plans are immutable values: the calculators build them in one go, and the serializer
// only reads them.
type Plan interface {
	// Scenario and SubScenario are written in the header of the serialized block.
	Scenario() scenario.Scenario
	SubScenario() int

	// UsedCores is the number of cores to launch, and the number of per-core records.
	UsedCores() int

	// Fixed returns the section of parameters shared by all cores.
	Fixed() []int64

	// Record returns the parameters of the given core. All records of a plan have the same length.
	Record(core int) []int64

	// UBUsage returns the peak number of elements staged in the on-chip buffer by one core.
	UBUsage() int
}

// problem holds the reduced permutation and the derived quantities shared by the calculators.
type problem struct {
	pair     reduce.Pair
	rank     int
	src, dst []int // Source and destination dimensions.
	perm     []int
	volume   int

	srcStrides, dstStrides []int

	// gather[q] is the source stride of destination axis q; scatter[a] the destination stride of source axis a.
	gather, scatter []int

	// padded is set for the conversions whose strides address the real tensors, not the dense
	// padded dimensions.
	padded bool

	c      hw.Constants
	dtype  dtypes.DType
	es, be int // Element size and elements per block.
}

func newProblem(pair reduce.Pair, c hw.Constants) *problem {
	p := &problem{
		pair:   pair,
		rank:   pair.Rank(),
		src:    pair.InShape.Slice(),
		dst:    pair.OutShape.Slice(),
		perm:   pair.Perm.Slice(),
		volume: pair.Volume(),
		c:      c,
		dtype:  c.DType,
		es:     c.ElemSize(),
		be:     c.BlockElems(),
	}
	p.setStrides(xslices.Strides(p.src), xslices.Strides(p.dst))
	return p
}

func (p *problem) setStrides(src, dst []int) {
	p.srcStrides, p.dstStrides = src, dst
	p.gather = xslices.Permute(p.srcStrides, p.perm)
	p.scatter = xslices.Permute(p.dstStrides, xslices.Inverse(p.perm))
}

// srcLast and dstLast return the length of the last axis of the source and of the destination.
func (p *problem) srcLast() int { return p.src[p.rank-1] }
func (p *problem) dstLast() int { return p.dst[p.rank-1] }

// lastTransposed returns whether the source last axis moves.
func (p *problem) lastTransposed() bool { return p.perm[p.rank-1] != p.rank-1 }

// bytes converts a number of elements to bytes.
func (p *problem) bytes(elems int) int { return elems * p.es }

// initIndices returns the indices of the flat position pos over dims, as int64.
func initIndices(pos int, dims []int) []int64 {
	indices := make([]int, len(dims))
	xslices.Unravel(pos, dims, indices)
	return xslices.ToInt64(indices)
}

// record builds a per-core record from its parts.
func record(parts ...[]int64) []int64 {
	size := 0
	for _, part := range parts {
		size += len(part)
	}
	rec := make([]int64, 0, size)
	for _, part := range parts {
		rec = append(rec, part...)
	}
	return rec
}

// ints converts the values to []int64.
func ints(values ...int) []int64 {
	return xslices.ToInt64(values)
}
