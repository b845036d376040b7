// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simulate

import (
	"testing"

	"github.com/gomlx/optiling/pkg/tiling/normalize"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
	"github.com/gomlx/optiling/pkg/tiling/serialize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handPlan is a plan written out by hand.
type handPlan struct {
	scenario scenario.Scenario
	fixed    []int64
	records  [][]int64
}

func (p handPlan) Scenario() scenario.Scenario { return p.scenario }
func (p handPlan) SubScenario() int            { return 0 }
func (p handPlan) UsedCores() int              { return len(p.records) }
func (p handPlan) Fixed() []int64              { return p.fixed }
func (p handPlan) Record(core int) []int64     { return p.records[core] }

func TestReference(t *testing.T) {
	// [2, 3] transposed: destination [3, 2] holds source offsets column by column.
	assert.Equal(t, []int{0, 3, 1, 4, 2, 5}, Reference([]int{2, 3}, []int{1, 0}))
	assert.Equal(t, []int{0, 1, 2, 3}, Reference([]int{4}, []int{0}))
	// [2, 2, 2] with perm {2, 0, 1}.
	assert.Equal(t, []int{0, 2, 4, 6, 1, 3, 5, 7}, Reference([]int{2, 2, 2}, []int{2, 0, 1}))
}

func TestIdentity(t *testing.T) {
	b := serialize.Encode(handPlan{
		scenario: scenario.Identity,
		fixed:    []int64{40, 16},
		records:  [][]int64{{0, 32, 2, 0}, {32, 8, 0, 8}},
	}, nil)
	require.NoError(t, Check(b, Transposition([]int{40}, []int{0}), 16))

	// Missing elements.
	b = serialize.Encode(handPlan{
		scenario: scenario.Identity,
		fixed:    []int64{40, 16},
		records:  [][]int64{{0, 32, 2, 0}},
	}, nil)
	err := Check(b, Transposition([]int{40}, []int{0}), 16)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0 times")

	// Inconsistent loops.
	b = serialize.Encode(handPlan{
		scenario: scenario.Identity,
		fixed:    []int64{40, 16},
		records:  [][]int64{{0, 40, 1, 0}},
	}, nil)
	_, err = Run(b)
	require.Error(t, err)
}

func TestRows(t *testing.T) {
	// Source [3, 2, 4] perm {1, 0, 2}: destination rows of 4 elements, outer destination dims [2, 3]
	// with source strides [4, 8].
	b := serialize.Encode(handPlan{
		scenario: scenario.SmallLastAxis,
		fixed:    []int64{4, 8, 2, 2, 3, 4, 8},
		records:  [][]int64{{0, 4, 0, 4, 0, 0}, {4, 2, 0, 2, 1, 1}},
	}, nil)
	require.NoError(t, Check(b, Transposition([]int{3, 2, 4}, []int{1, 0, 2}), 16))

	// Wrong init indices.
	b = serialize.Encode(handPlan{
		scenario: scenario.SmallLastAxis,
		fixed:    []int64{4, 8, 2, 2, 3, 4, 8},
		records:  [][]int64{{0, 4, 0, 4, 0, 0}, {4, 2, 0, 2, 1, 0}},
	}, nil)
	_, err := Run(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init indices")
}

func TestSwap(t *testing.T) {
	// Source [4, 6] to [6, 4], tiles 4x4: units (mTile=0, kTile=0) and (0, 1).
	b := serialize.Encode(handPlan{
		scenario: scenario.LastTwoAlignedSwap,
		fixed:    []int64{4, 6, 4, 4, 1, 2, 4, 2, 0},
		records:  [][]int64{{0, 1}, {1, 1}},
	}, nil)
	require.NoError(t, Check(b, Transposition([]int{4, 6}, []int{1, 0}), 16))
}

func TestVendor(t *testing.T) {
	b := serialize.Encode(handPlan{
		scenario: scenario.VendorFastPath,
		fixed:    []int64{3, 24, 2, 3, 4, 2, 0, 1},
		records:  [][]int64{{0, 16}, {16, 8}},
	}, nil)
	require.NoError(t, Check(b, Transposition([]int{2, 3, 4}, []int{2, 0, 1}), 16))

	// Checked against the wrong permutation.
	err := Check(b, Transposition([]int{2, 3, 4}, []int{1, 0, 2}), 16)
	require.Error(t, err)
}

func TestDoubleWrite(t *testing.T) {
	b := serialize.Encode(handPlan{
		scenario: scenario.VendorFastPath,
		fixed:    []int64{1, 8, 8, 0},
		records:  [][]int64{{0, 8}, {4, 4}},
	}, nil)
	err := Check(b, Transposition([]int{8}, []int{0}), 16)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 times")
}

func TestOutOfRange(t *testing.T) {
	b := serialize.Encode(handPlan{
		scenario: scenario.VendorFastPath,
		fixed:    []int64{1, 8, 8, 0},
		records:  [][]int64{{4, 8}},
	}, nil)
	_, err := Run(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of the tensors")
}

func TestShortFixedSection(t *testing.T) {
	b := serialize.Encode(handPlan{
		scenario: scenario.LastTwoAlignedSwap,
		fixed:    []int64{4, 6},
		records:  [][]int64{{0, 1}},
	}, nil)
	_, err := Run(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestBlockConflict(t *testing.T) {
	// Two cores writing halves of the same 8 elements block.
	b := serialize.Encode(handPlan{
		scenario: scenario.VendorFastPath,
		fixed:    []int64{1, 8, 8, 0},
		records:  [][]int64{{0, 4}, {4, 4}},
	}, nil)
	err := Check(b, Transposition([]int{8}, []int{0}), 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cores 0 and 1")
	require.NoError(t, Check(b, Transposition([]int{8}, []int{0}), 4))
	require.NoError(t, Check(b, Transposition([]int{8}, []int{0}), 0))

	trace, err := Run(b)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1, 1}, trace.Writer)
}

// paddedConversion is NCHW [1, 3, 1, 2] packed to NC1HWC0 with C0=4, lowered to the source
// "CTH" [1, 4, 2] (C padded from 3 to 4) permuted to "CHT" [1, 2, 4].
var paddedConversion = normalize.Lowered{
	Direction:  normalize.ToPacked,
	Labels:     "CTH",
	SrcShape:   []int{1, 4, 2},
	Perm:       []int{0, 2, 1},
	DstShape:   []int{1, 2, 4},
	Pads:       []normalize.Pad{{Axis: 0, Span: 2, Real: 3, Padded: 4}},
	SrcStrides: []int{8, 2, 1},
	DstStrides: []int{8, 4, 1},
	SrcVolume:  6,
	DstVolume:  8,
}

func TestConversion(t *testing.T) {
	want := Conversion(paddedConversion)
	assert.Equal(t, 6, want.SrcVolume)
	assert.Equal(t, []int{0, 2, 4, ZeroFill, 1, 3, 5, ZeroFill}, want.SrcOf)

	// Destination rows of 4 (the T axis) gathered with the real stride 2, one row per core. Fixed:
	// {rowLen, rowChunk, numChunks, tailChunk, stride, unitsPerLoop, 2, dims, rowStrides, otherStrides}.
	plan := handPlan{
		scenario: scenario.TransposeCommon,
		fixed:    []int64{4, 4, 1, 4, 2, 2, 2, 1, 2, 8, 4, 8, 1},
		records:  [][]int64{{0, 1, 0, 1}, {1, 1, 0, 1}},
	}
	b := serialize.Encode(plan, paddedConversion.Trailer())
	require.NoError(t, Check(b, want, 4))
	trace, err := Run(b)
	require.NoError(t, err)
	assert.Equal(t, 6, trace.SrcVolume)
	assert.Equal(t, 8, trace.DstVolume)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1}, trace.Reads)

	// Without the trailer the block addresses a dense padded source of 8 elements.
	err = Check(serialize.Encode(plan, nil), want, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 6 to 8")

	// Unpacking: the padding of the packed source is never read, nor written anywhere.
	unpack := normalize.Lowered{
		Direction:  normalize.FromPacked,
		SrcShape:   []int{1, 2, 4},
		Perm:       []int{0, 2, 1},
		DstShape:   []int{1, 4, 2},
		Pads:       []normalize.Pad{{Axis: 0, Span: 2, Real: 3, Padded: 4}},
		SrcStrides: []int{8, 4, 1},
		DstStrides: []int{8, 2, 1},
		SrcVolume:  8,
		DstVolume:  6,
	}
	want = Conversion(unpack)
	assert.Equal(t, 8, want.SrcVolume)
	assert.Equal(t, []int{0, 4, 1, 5, 2, 6}, want.SrcOf)
	// Rows of 2 (H) gathered with stride 4, over dims [1, 4] with real destination strides {8, 2}.
	b = serialize.Encode(handPlan{
		scenario: scenario.TransposeCommon,
		fixed:    []int64{2, 2, 1, 2, 4, 4, 2, 1, 4, 8, 2, 8, 1},
		records:  [][]int64{{0, 4, 1, 0}},
	}, unpack.Trailer())
	require.NoError(t, Check(b, want, 4))
	trace, err = Run(b)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 0, 1, 1, 1, 0}, trace.Reads)
}
