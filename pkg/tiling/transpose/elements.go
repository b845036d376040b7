// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transpose

import (
	"slices"

	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/gomlx/optiling/pkg/tiling/balance"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
)

// IdentityTiling is a straight copy of Volume elements, split across cores in whole blocks.
type IdentityTiling struct {
	Volume, PerLoop int
	Split           balance.Split
}

var _ Plan = (*IdentityTiling)(nil)

func tileIdentity(p *problem) *IdentityTiling {
	t := &IdentityTiling{
		Volume:  p.volume,
		PerLoop: p.c.HalfUBElems(),
	}
	t.Split = balance.Across(p.volume, p.c.CoreNum, p.be)
	return t
}

func (t *IdentityTiling) Scenario() scenario.Scenario { return scenario.Identity }
func (t *IdentityTiling) SubScenario() int            { return 0 }
func (t *IdentityTiling) UsedCores() int              { return t.Split.Used }
func (t *IdentityTiling) Fixed() []int64              { return ints(t.Volume, t.PerLoop) }
func (t *IdentityTiling) UBUsage() int                { return min(t.PerLoop, t.Split.Share) }

// Record: {start, count, loops, tail}.
func (t *IdentityTiling) Record(core int) []int64 {
	count := t.Split.Counts[core]
	loops, tail := balance.Loops(count, t.PerLoop)
	return ints(t.Split.Starts[core], count, loops, tail)
}

// SmallShapeTiling handles volumes below hw.SmallShapeBytes: the destination is split in whole
// blocks of elements, and each element is gathered from the source by its indices.
//
// A trailing unit axis is appended to the destination shape, so the kernel always sees the last
// axis as not transposed.
type SmallShapeTiling struct {
	Volume, PerLoop int

	// Dims of the destination, with the trailing unit axis, and the source stride of each of its axes.
	Dims, SrcStrides []int

	Split balance.Split
}

var _ Plan = (*SmallShapeTiling)(nil)

func tileSmallShape(p *problem) *SmallShapeTiling {
	t := &SmallShapeTiling{
		Volume:     p.volume,
		PerLoop:    p.c.HalfUBElems(),
		Dims:       append(slices.Clone(p.dst), 1),
		SrcStrides: append(slices.Clone(p.gather), 1),
	}
	// Cores are assigned by the actual element count: each core gets at least one block.
	t.Split = balance.Across(p.volume, p.c.CoreNum, p.be)
	return t
}

func (t *SmallShapeTiling) Scenario() scenario.Scenario { return scenario.SmallShape }
func (t *SmallShapeTiling) SubScenario() int            { return 0 }
func (t *SmallShapeTiling) UsedCores() int              { return t.Split.Used }
func (t *SmallShapeTiling) UBUsage() int                { return min(t.PerLoop, t.Split.Share) }

// Fixed: {volume, perLoop, rank, dims..., srcStrides...}.
func (t *SmallShapeTiling) Fixed() []int64 {
	return record(ints(t.Volume, t.PerLoop, len(t.Dims)), xslices.ToInt64(t.Dims), xslices.ToInt64(t.SrcStrides))
}

// Record: {dstStart, count, loops, tail, initIndices...}.
func (t *SmallShapeTiling) Record(core int) []int64 {
	start, count := t.Split.Starts[core], t.Split.Counts[core]
	loops, tail := balance.Loops(count, t.PerLoop)
	return record(ints(start, count, loops, tail), initIndices(start, t.Dims))
}

// VendorTiling is the vendor fast path: the kernel gets the raw shape and permutation, and a
// block aligned split of the destination.
type VendorTiling struct {
	SrcDims, Perm []int
	Split         balance.Split
	ubElems       int
}

var _ Plan = (*VendorTiling)(nil)

func tileVendor(p *problem) *VendorTiling {
	return &VendorTiling{
		SrcDims: slices.Clone(p.src),
		Perm:    slices.Clone(p.perm),
		Split:   balance.Across(p.volume, p.c.CoreNum, p.be),
		ubElems: p.c.UBElems(),
	}
}

func (t *VendorTiling) Scenario() scenario.Scenario { return scenario.VendorFastPath }
func (t *VendorTiling) SubScenario() int            { return 0 }
func (t *VendorTiling) UsedCores() int              { return t.Split.Used }
func (t *VendorTiling) UBUsage() int                { return t.ubElems / 2 }

// Fixed: {rank, volume, srcDims..., perm...}.
func (t *VendorTiling) Fixed() []int64 {
	return record(ints(len(t.SrcDims), t.Split.Volume), xslices.ToInt64(t.SrcDims), xslices.ToInt64(t.Perm))
}

// Record: {dstStart, count}.
func (t *VendorTiling) Record(core int) []int64 {
	return ints(t.Split.Starts[core], t.Split.Counts[core])
}
