// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tiling

import (
	"testing"

	"github.com/gomlx/optiling/pkg/core/dtypes"
	"github.com/gomlx/optiling/pkg/core/formats"
	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/gomlx/optiling/pkg/tiling/normalize"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
	"github.com/gomlx/optiling/pkg/tiling/serialize"
	"github.com/gomlx/optiling/pkg/tiling/simulate"
	"github.com/gomlx/optiling/pkg/tiling/transpose"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultHW = hw.Constants{CoreNum: 32, UBBlocks: 8192, DType: dtypes.Float16}

// checkData verifies the block of the result moves the data right, without cores sharing a
// destination block.
func checkData(t *testing.T, res *Result) {
	require.NoError(t, simulate.Check(res.Block, res.Expected(), defaultHW.BlockElems()))
}

func TestTransposeIdentity(t *testing.T) {
	res := must.M1(Transpose("identity", defaultHW, []int{2, 3}, []int{0, 1}))
	assert.Equal(t, scenario.Identity, res.Scenario)
	assert.Equal(t, 1, res.UsedCores)
	assert.Equal(t, []int64{int64(scenario.Identity), 2, 4, 0}, res.Block.Header())
	checkData(t, res)
}

func TestTransDataNCHWToNC1HWC0(t *testing.T) {
	res, err := TransData("trans_data", defaultHW, formats.NCHW, formats.NC1HWC0, []int{2, 3, 5, 6}, []int{2, 1, 5, 6, 16})
	require.NoError(t, err)
	require.NotNil(t, res.Lowered)
	assert.Equal(t, []int{2, 1, 16, 30}, res.Lowered.SrcShape)
	assert.Equal(t, []int{0, 1, 3, 2}, res.Lowered.Perm)
	// Padded C: the lowered permutation is tiled as is, over the real source.
	assert.Equal(t, []int{2, 1, 16, 30}, res.Reduced.InShape.Slice())
	assert.Equal(t, []int{0, 1, 3, 2}, res.Reduced.Perm.Slice())
	assert.Equal(t, scenario.TransposeCommon, res.Scenario)
	assert.Equal(t, int(transpose.PaddedConversion), res.SubScenario)
	assert.Equal(t, 30, res.UsedCores)

	// The trailer follows the fallback fixed section: rows of 16 gathered with stride 30 (the real C
	// stride), over the real source strides {90, 480, 1} of N, C1 and HW.
	fixed := res.Block.Fixed()
	require.Len(t, fixed, 16+15)
	assert.Equal(t, []int64{16, 16, 1, 16, 30, 256, 3, 2, 1, 30, 480, 480, 16, 90, 480, 1}, fixed[:16])
	assert.Equal(t, []int64{1, 4, 2, 1, 16, 30, 0, 1, 3, 2, 1, 1, 2, 3, 16}, fixed[16:])

	want := res.Expected()
	assert.Equal(t, 180, want.SrcVolume)
	assert.Len(t, want.SrcOf, 960)
	checkData(t, res)
	trace, err := simulate.Run(res.Block)
	require.NoError(t, err)
	assert.Equal(t, 180, trace.SrcVolume)
	assert.Equal(t, simulate.ZeroFill, trace.SrcOf[3])
}

func TestTransDataFractalZ(t *testing.T) {
	res, err := TransData("trans_data", defaultHW, formats.HWCN, formats.FractalZ, []int{3, 3, 20, 17}, []int{18, 2, 16, 16})
	require.NoError(t, err)
	assert.Equal(t, scenario.TransposeCommon, res.Scenario)
	assert.Equal(t, int(transpose.PaddedConversion), res.SubScenario)
	assert.Equal(t, 32, res.UsedCores)
	checkData(t, res)

	res, err = TransData("trans_data", defaultHW, formats.FractalZ, formats.HWCN, []int{18, 2, 16, 16}, []int{3, 3, 20, 17})
	require.NoError(t, err)
	assert.Equal(t, normalize.FromPacked, res.Lowered.Direction)
	assert.Equal(t, int(transpose.PaddedConversion), res.SubScenario)
	// Rows of the real HWCN destination (17 elements of N) only start on a block every 4 HW positions.
	assert.Equal(t, 2, res.UsedCores)
	assert.Equal(t, 3060, len(res.Expected().SrcOf))
	checkData(t, res)

	// Without padding the conversion is reduced and classified as any transposition.
	res, err = TransData("trans_data", defaultHW, formats.HWCN, formats.FractalZ, []int{3, 3, 32, 16}, []int{18, 2, 16, 16})
	require.NoError(t, err)
	assert.False(t, res.Lowered.Padded())
	assert.Equal(t, scenario.LastTwoAlignedSwap, res.Scenario)
	checkData(t, res)
}

func TestTransDataPadded(t *testing.T) {
	cases := []struct {
		src, dst           formats.Format
		srcShape, dstShape []int
	}{
		{formats.NHWC, formats.NC1HWC0, []int{2, 5, 6, 20}, []int{2, 2, 5, 6, 16}},
		{formats.ND, formats.FractalNZ, []int{3, 20, 40}, []int{3, 3, 2, 16, 16}},
		{formats.NCDHW, formats.NDC1HWC0, []int{2, 7, 3, 4, 5}, []int{2, 3, 1, 4, 5, 16}},
		{formats.NCHW, formats.FractalZ, []int{17, 20, 3, 3}, []int{18, 2, 16, 16}},
	}
	for _, tc := range cases {
		t.Run(tc.src.String()+"-"+tc.dst.String(), func(t *testing.T) {
			res, err := TransData("pack", defaultHW, tc.src, tc.dst, tc.srcShape, tc.dstShape)
			require.NoError(t, err)
			require.True(t, res.Lowered.Padded())
			assert.Equal(t, xslices.Product(tc.srcShape), res.Expected().SrcVolume)
			checkData(t, res)

			res, err = TransData("unpack", defaultHW, tc.dst, tc.src, tc.dstShape, tc.srcShape)
			require.NoError(t, err)
			assert.Equal(t, xslices.Product(tc.srcShape), len(res.Expected().SrcOf))
			checkData(t, res)
		})
	}
}

func TestTransposeSwap(t *testing.T) {
	res := must.M1(Transpose("swap", defaultHW, []int{1024, 768}, []int{1, 0}))
	assert.Equal(t, scenario.LastTwoAlignedSwap, res.Scenario)
	assert.Equal(t, 24, res.UsedCores)
	checkData(t, res)
}

func TestTransposeHugeLastAxis(t *testing.T) {
	c := hw.Constants{CoreNum: 32, UBBlocks: 8192, DType: dtypes.Int8}
	res := must.M1(Transpose("huge", c, []int{60, 70, 196608}, []int{1, 0, 2}))
	assert.Equal(t, scenario.HugeLastAxis, res.Scenario)
	assert.Zero(t, len(res.Block.Data)%serialize.Alignment)
}

func TestTransposeSmallShape(t *testing.T) {
	res := must.M1(Transpose("small", defaultHW, []int{10, 20}, []int{1, 0}))
	assert.Equal(t, scenario.SmallShape, res.Scenario)
	// Fixed section: {200, perLoop, 3, 20, 10, 1, ...}: the trailing unit axis is appended.
	assert.Equal(t, []int64{200, 65536, 3, 20, 10, 1, 1, 20, 1}, res.Block.Fixed())
	var total int64
	for core := range res.UsedCores {
		total += res.Block.Record(core)[1]
	}
	assert.Equal(t, int64(200), total)
	checkData(t, res)

	// Round trip through the byte encoding.
	decoded, err := serialize.Decode(res.Block.Bytes(), res.UsedCores)
	require.NoError(t, err)
	assert.Equal(t, res.Block, decoded)
}

func TestErrors(t *testing.T) {
	_, err := TransData("trans_data", defaultHW, formats.NCHW, formats.FractalNZ, []int{2, 3, 5, 6}, []int{2, 3, 1, 16, 16})
	require.Error(t, err)
	assert.True(t, errors.Is(err, normalize.ErrUnsupportedPair))

	_, err = Transpose("bad_perm", defaultHW, []int{2, 3}, []int{0, 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad_perm")

	_, err = Transpose("bad_rank", defaultHW, []int{2, 3}, []int{0, 1, 2})
	require.Error(t, err)

	_, err = Transpose("bad_shape", defaultHW, []int{2, 0}, []int{1, 0})
	require.Error(t, err)

	_, err = Transpose("too_many_axes", defaultHW, []int{2, 2, 2, 2, 2, 2, 2, 2, 2}, []int{0, 1, 2, 3, 4, 5, 6, 7, 8})
	require.Error(t, err)

	_, err = Transpose("bad_hw", hw.Constants{CoreNum: 0, UBBlocks: 8192, DType: dtypes.Float16}, []int{2, 3}, []int{1, 0})
	require.Error(t, err)

	_, err = Tile(Request{Kind: Kind(7), OpName: "bad_kind", HW: defaultHW})
	require.Error(t, err)
}
