// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hw holds the hardware constants a tiling is computed for, and the fixed thresholds
// used when classifying a transposition.
package hw

import (
	"fmt"

	"github.com/gomlx/optiling/pkg/core/dtypes"
	"github.com/pkg/errors"
)

const (
	// BlockBytes is the minimum transfer granularity between off-chip memory and the on-chip buffer (UB).
	BlockBytes = 32

	// MinUBBlocks is the smallest on-chip buffer accepted, in blocks.
	MinUBBlocks = 64

	// MaxRank of the tensors handled.
	MaxRank = 8

	// SmallShapeBytes is the total volume below which a transposition is handled by the
	// small-shape scenario.
	SmallShapeBytes = 8 * 1024

	// HugeLastAxisBytes is the last axis length above (or at) which a not transposed last axis is
	// copied in fixed size chunks.
	HugeLastAxisBytes = 64 * 1024

	// WideBurstBytes is the last axis length from which a single burst per row is efficient.
	WideBurstBytes = 256

	// NColRowMinBytes is the minimum volume for the N x Col x Row scenario to amortize its set up.
	NColRowMinBytes = 64 * 1024

	// VendorCoreMarker is the core count that identifies the vendor specific fast path.
	VendorCoreMarker = 96
)

// Constants describes the target hardware and element type of one tiling request.
type Constants struct {
	// CoreNum is the number of independent parallel execution units.
	CoreNum int

	// UBBlocks is the size of the on-chip scratch buffer, in BlockBytes blocks.
	UBBlocks int

	// DType of the elements being moved.
	DType dtypes.DType
}

// Validate returns an error if the constants can't be used for tiling.
func (c Constants) Validate() error {
	if c.CoreNum <= 0 {
		return errors.Errorf("invalid core count %d: must be > 0", c.CoreNum)
	}
	if c.UBBlocks < MinUBBlocks {
		return errors.Errorf("invalid UB size of %d blocks: must be >= %d blocks", c.UBBlocks, MinUBBlocks)
	}
	if !c.DType.IsValid() {
		return errors.Errorf("invalid dtype %s", c.DType)
	}
	if BlockBytes%c.DType.Size() != 0 {
		return errors.Errorf("dtype %s of %d bytes doesn't divide the %d bytes block", c.DType, c.DType.Size(), BlockBytes)
	}
	return nil
}

// ElemSize returns the size in bytes of one element.
func (c Constants) ElemSize() int { return c.DType.Size() }

// BlockElems returns the number of elements in one block.
func (c Constants) BlockElems() int { return c.DType.BlockElems(BlockBytes) }

// UBElems returns the capacity of the on-chip buffer in elements.
func (c Constants) UBElems() int { return c.UBBlocks * c.BlockElems() }

// HalfUBElems returns half of UBElems, rounded down to whole blocks: scenarios that stage the
// data in a first half of the buffer and rearrange it into the second half use this as budget.
func (c Constants) HalfUBElems() int { return (c.UBBlocks / 2) * c.BlockElems() }

// C0 returns the packing width of blocked formats for the dtype.
func (c Constants) C0() int { return c.DType.PackWidth() }

// String implements fmt.Stringer.
func (c Constants) String() string {
	return fmt.Sprintf("{cores=%d, ub=%d blocks, dtype=%s}", c.CoreNum, c.UBBlocks, c.DType)
}
