// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package normalize

import (
	"testing"

	"github.com/gomlx/optiling/pkg/core/formats"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNCHWToNC1HWC0(t *testing.T) {
	res, err := Normalize("test", formats.NCHW, formats.NC1HWC0, []int{2, 3, 5, 6}, []int{2, 1, 5, 6, 16}, 16)
	require.NoError(t, err)
	assert.Equal(t, ToPacked, res.Direction)
	assert.Equal(t, "NCH", res.SrcLabels)
	assert.Equal(t, "NCHT", res.DstLabels)
	assert.Equal(t, []int{2, 3, 30}, res.SrcShape)
	assert.Equal(t, []int{2, 1, 30, 16}, res.DstShape)

	l, err := Lower(res)
	require.NoError(t, err)
	assert.Equal(t, "NCTH", l.Labels)
	assert.Equal(t, []int{2, 1, 16, 30}, l.SrcShape)
	assert.Equal(t, []int{0, 1, 3, 2}, l.Perm)
	assert.Equal(t, []int{2, 1, 30, 16}, l.DstShape)
	assert.Equal(t, []Pad{{Axis: 1, Span: 2, Real: 3, Padded: 16}}, l.Pads)
	assert.Equal(t, []int64{1, 4, 2, 1, 16, 30, 0, 1, 3, 2, 1, 1, 2, 3, 16}, l.Trailer())

	// Strides and volumes of the real tensors: the source is the unpadded [2, 3, 30].
	assert.Equal(t, []int{90, 480, 30, 1}, l.SrcStrides)
	assert.Equal(t, []int{480, 480, 16, 1}, l.DstStrides)
	assert.Equal(t, 180, l.SrcVolume)
	assert.Equal(t, 960, l.DstVolume)
	assert.True(t, l.Padded())
	assert.False(t, l.IsPadding([]int{1, 0, 29, 2}))
	assert.True(t, l.IsPadding([]int{1, 0, 29, 3}))

	// Wrong C1.
	_, err = Normalize("test", formats.NCHW, formats.NC1HWC0, []int{2, 3, 5, 6}, []int{2, 2, 5, 6, 16}, 16)
	require.Error(t, err)
}

func TestNormalizeErrors(t *testing.T) {
	// Rank mismatch.
	_, err := Normalize("test", formats.NCHW, formats.NC1HWC0, []int{2, 3, 5}, []int{2, 1, 5, 6, 16}, 16)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsupportedPair))

	// No derivation for the pair.
	_, err = Normalize("test", formats.NCHW, formats.FractalNZ, []int{2, 3, 5, 6}, []int{2, 3, 1, 16, 16}, 16)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedPair))
	assert.False(t, Supported(formats.NCHW, formats.FractalNZ))

	// Zero dimension.
	_, err = Normalize("test", formats.NCHW, formats.NHWC, []int{2, 0, 5, 6}, []int{2, 5, 6, 0}, 16)
	require.Error(t, err)
}

func TestNormalizeFractalZ(t *testing.T) {
	// HWCN [3,3,20,17]: C1=2, HW=9, N padded to 32.
	res, err := Normalize("test", formats.HWCN, formats.FractalZ, []int{3, 3, 20, 17}, []int{18, 2, 16, 16}, 16)
	require.NoError(t, err)
	assert.Equal(t, "HCN", res.SrcLabels)
	assert.Equal(t, []int{9, 20, 17}, res.SrcShape)
	assert.Equal(t, "CHNT", res.DstLabels)
	assert.Equal(t, []int{2, 9, 32, 16}, res.DstShape)

	l, err := Lower(res)
	require.NoError(t, err)
	assert.Equal(t, "HCTN", l.Labels)
	assert.Equal(t, []int{9, 2, 16, 32}, l.SrcShape)
	assert.Equal(t, []int{1, 0, 3, 2}, l.Perm)
	assert.Equal(t, []int{2, 9, 32, 16}, l.DstShape)
	assert.Equal(t, []Pad{{Axis: 1, Span: 2, Real: 20, Padded: 32}, {Axis: 3, Span: 1, Real: 17, Padded: 32}}, l.Pads)
	assert.Equal(t, []int{340, 272, 17, 1}, l.SrcStrides)
	assert.Equal(t, 3060, l.SrcVolume)
	assert.Equal(t, 9216, l.DstVolume)
	// Destination [C1, HW, N, C0]: N=17 and C=1*16+4=20 are padding.
	assert.True(t, l.IsPadding([]int{0, 0, 17, 0}))
	assert.True(t, l.IsPadding([]int{1, 0, 0, 4}))
	assert.False(t, l.IsPadding([]int{1, 8, 16, 3}))

	// And back.
	back, err := Normalize("test", formats.FractalZ, formats.HWCN, []int{18, 2, 16, 16}, []int{3, 3, 20, 17}, 16)
	require.NoError(t, err)
	assert.Equal(t, FromPacked, back.Direction)
	assert.Equal(t, res.DstShape, back.SrcShape)
	assert.Equal(t, res.SrcShape, back.DstShape)
	lb, err := Lower(back)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 9, 32, 16}, lb.SrcShape)
	assert.Equal(t, []int{9, 2, 16, 32}, lb.DstShape)
	assert.Equal(t, l.Pads, lb.Pads)
	assert.Equal(t, []int{4608, 512, 16, 1}, lb.SrcStrides)
	assert.Equal(t, []int{340, 272, 17, 1}, lb.DstStrides)
	assert.Equal(t, 9216, lb.SrcVolume)
	assert.Equal(t, 3060, lb.DstVolume)
	assert.True(t, lb.IsPadding([]int{8, 1, 4, 0}))
	assert.True(t, lb.IsPadding([]int{0, 0, 0, 17}))
	assert.False(t, lb.IsPadding([]int{8, 1, 3, 16}))
}

func TestParseTrailer(t *testing.T) {
	res, err := Normalize("test", formats.FractalZ, formats.HWCN, []int{18, 2, 16, 16}, []int{3, 3, 20, 17}, 16)
	require.NoError(t, err)
	l, err := Lower(res)
	require.NoError(t, err)
	trailer := append(l.Trailer(), 7, 7)
	parsed, n, err := ParseTrailer(trailer)
	require.NoError(t, err)
	assert.Equal(t, len(trailer)-2, n)
	assert.Equal(t, l.Direction, parsed.Direction)
	assert.Equal(t, l.SrcShape, parsed.SrcShape)
	assert.Equal(t, l.Perm, parsed.Perm)
	assert.Equal(t, l.DstShape, parsed.DstShape)
	assert.Equal(t, l.Pads, parsed.Pads)
	assert.Equal(t, l.SrcVolume, parsed.SrcVolume)
	assert.Equal(t, l.DstVolume, parsed.DstVolume)

	_, _, err = ParseTrailer(l.Trailer()[:9])
	require.ErrorContains(t, err, "too short")
	// Pad not matching the axis size.
	_, _, err = ParseTrailer([]int64{1, 2, 4, 3, 1, 0, 1, 0, 1, 5, 8})
	require.Error(t, err)
	// Not a permutation.
	_, _, err = ParseTrailer([]int64{0, 2, 4, 3, 1, 1, 0})
	require.Error(t, err)
}

func TestNormalizeFractalNZ(t *testing.T) {
	res, err := Normalize("test", formats.ND, formats.FractalNZ, []int{3, 20, 40}, []int{3, 3, 2, 16, 16}, 16)
	require.NoError(t, err)
	assert.Equal(t, "HNC", res.SrcLabels)
	assert.Equal(t, []int{3, 20, 40}, res.SrcShape)
	assert.Equal(t, "HCNT", res.DstLabels)
	assert.Equal(t, []int{3, 3, 32, 16}, res.DstShape)

	l, err := Lower(res)
	require.NoError(t, err)
	assert.Equal(t, "HNCT", l.Labels)
	assert.Equal(t, []int{3, 32, 3, 16}, l.SrcShape)
	assert.Equal(t, []int{0, 2, 1, 3}, l.Perm)

	back, err := Normalize("test", formats.FractalNZ, formats.ND, []int{3, 3, 2, 16, 16}, []int{3, 20, 40}, 16)
	require.NoError(t, err)
	assert.Equal(t, res.DstShape, back.SrcShape)
	assert.Equal(t, res.SrcShape, back.DstShape)

	// Rank 1 ND is a single row.
	res, err = Normalize("test", formats.ND, formats.FractalNZ, []int{40}, []int{3, 1, 16, 16}, 16)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 40}, res.SrcShape)
}

// TestRoundTrip checks that both directions of every packing pair derive consistent shapes, and that
// with C multiple of C0 the unpacked C is recovered exactly.
func TestRoundTrip(t *testing.T) {
	const c0 = 16
	cases := []struct {
		unpacked, packed             formats.Format
		unpackedShape, packedShape []int
	}{
		{formats.NCHW, formats.NC1HWC0, []int{2, 32, 5, 6}, []int{2, 2, 5, 6, 16}},
		{formats.NHWC, formats.NC1HWC0, []int{2, 5, 6, 48}, []int{2, 3, 5, 6, 16}},
		{formats.NCDHW, formats.NDC1HWC0, []int{2, 16, 4, 5, 6}, []int{2, 4, 1, 5, 6, 16}},
		{formats.NDHWC, formats.NDC1HWC0, []int{2, 4, 5, 6, 32}, []int{2, 4, 2, 5, 6, 16}},
		{formats.NCHW, formats.FractalZ, []int{32, 16, 3, 3}, []int{9, 2, 16, 16}},
		{formats.NHWC, formats.FractalZ, []int{32, 3, 3, 16}, []int{9, 2, 16, 16}},
		{formats.HWCN, formats.FractalZ, []int{3, 3, 16, 32}, []int{9, 2, 16, 16}},
		{formats.NCDHW, formats.FractalZ3D, []int{16, 32, 2, 3, 3}, []int{36, 1, 16, 16}},
		{formats.DHWCN, formats.FractalZ3D, []int{2, 3, 3, 32, 16}, []int{36, 1, 16, 16}},
	}
	for _, tc := range cases {
		t.Run(tc.unpacked.String()+"-"+tc.packed.String(), func(t *testing.T) {
			fwd, err := Normalize("test", tc.unpacked, tc.packed, tc.unpackedShape, tc.packedShape, c0)
			require.NoError(t, err)
			bwd, err := Normalize("test", tc.packed, tc.unpacked, tc.packedShape, tc.unpackedShape, c0)
			require.NoError(t, err)
			assert.Equal(t, fwd.SrcLabels, bwd.DstLabels)
			assert.Equal(t, fwd.DstLabels, bwd.SrcLabels)
			assert.Equal(t, fwd.SrcShape, bwd.DstShape)
			assert.Equal(t, fwd.DstShape, bwd.SrcShape)

			lf, err := Lower(fwd)
			require.NoError(t, err)
			lb, err := Lower(bwd)
			require.NoError(t, err)
			assert.Equal(t, lf.DstShape, lb.SrcShape)
			assert.Equal(t, lf.SrcShape, lb.DstShape)
			// No C padding since C is a multiple of C0.
			for _, pad := range lf.Pads {
				assert.NotEqual(t, 2, pad.Span)
			}
		})
	}
}

func TestPermutationPairs(t *testing.T) {
	perm, err := PermBetween(formats.NCHW, formats.HWCN)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 1, 0}, perm)

	_, err = PermBetween(formats.NCHW, formats.NCDHW)
	require.True(t, errors.Is(err, ErrUnsupportedPair))

	res, err := Normalize("test", formats.NCHW, formats.NHWC, []int{2, 3, 5, 6}, []int{2, 5, 6, 3}, 16)
	require.NoError(t, err)
	assert.Equal(t, NoPacking, res.Direction)
	l, err := Lower(res)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3, 1}, l.Perm)
	assert.Empty(t, l.Pads)

	res, err = Normalize("test", formats.ND, formats.ND, []int{4, 5}, []int{4, 5}, 16)
	require.NoError(t, err)
	l, err = Lower(res)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, l.Perm)

	for pair := range table {
		assert.True(t, Supported(pair.Src, pair.Dst), "pair %s", pair)
	}
	assert.True(t, Supported(formats.DHWCN, formats.NDHWC))
	assert.Len(t, table, 19)
}

func TestPackedShape(t *testing.T) {
	shape, err := PackedShape(formats.NCHW, formats.NC1HWC0, []int{2, 3, 5, 6}, 16)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 5, 6, 16}, shape)

	shape, err = PackedShape(formats.HWCN, formats.FractalZ, []int{3, 3, 20, 17}, 16)
	require.NoError(t, err)
	assert.Equal(t, []int{18, 2, 16, 16}, shape)

	shape, err = PackedShape(formats.ND, formats.FractalNZ, []int{3, 20, 40}, 16)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 2, 16, 16}, shape)

	// Every derived shape is accepted by Normalize, in both directions.
	pairs := PackingPairs()
	require.Len(t, pairs, 10)
	for _, pair := range pairs {
		src := []int{2, 3, 4, 5, 6}[:formats.ExpectedRank(pair.Src)]
		if pair.Src == formats.ND {
			src = []int{7, 33}
		}
		dst, err := PackedShape(pair.Src, pair.Dst, src, 16)
		require.NoError(t, err, "pair %s", pair)
		_, err = Normalize("test", pair.Src, pair.Dst, src, dst, 16)
		require.NoError(t, err, "pair %s", pair)
		if Supported(pair.Dst, pair.Src) {
			_, err = Normalize("test", pair.Dst, pair.Src, dst, src, 16)
			require.NoError(t, err, "pair %s reversed", pair)
		}
	}
	assert.False(t, Supported(formats.FractalZ, formats.NHWC))

	_, err = PackedShape(formats.NC1HWC0, formats.NCHW, []int{2, 1, 5, 6, 16}, 16)
	assert.True(t, errors.Is(err, ErrUnsupportedPair))
	_, err = PackedShape(formats.NCHW, formats.NC1HWC0, []int{2, 3, 5}, 16)
	require.Error(t, err)
}
