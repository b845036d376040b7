// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package normalize maps a layout conversion (source format/shape, destination format/shape) to a
// canonical pair of merged shapes, labeled by the logical role of each merged axis.
//
// Labels use one letter per merged axis: N (batch or output channels), C (channels, or columns for
// FRACTAL_NZ), D (depth), H (spatial axes H*W merged, or the batch for FRACTAL_NZ) and T for
// the innermost packed C0 axis. E.g. NCHW [2,3,5,6] -> NC1HWC0 is "NCH" [2,3,30] -> "NCHT" [2,1,30,16].
//
// Each supported (source, destination) pair has its own derivation, registered in a lookup table.
// Lower then converts the labeled pair into a permutation problem that the transpose tiling handles.
package normalize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/optiling/pkg/core/formats"
	"github.com/gomlx/optiling/pkg/support/xmath"
	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// N0 is the padding granularity of the N axis in FRACTAL_Z formats, and of the rows in FRACTAL_NZ.
const N0 = 16

// ErrUnsupportedPair is returned (wrapped) when no derivation exists for a (source, destination) formats pair.
var ErrUnsupportedPair = errors.New("unsupported format pair")

// Direction of a layout conversion.
type Direction int

const (
	// NoPacking is a pure permutation of axes, e.g. NCHW -> NHWC.
	NoPacking Direction = iota

	// ToPacked converts to a packed format (NC1HWC0, FRACTAL_Z, ...): channels are padded to C1*C0 (and N
	// padded to a multiple of N0 for fractal formats).
	ToPacked

	// FromPacked converts from a packed format: padding is dropped.
	FromPacked
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case NoPacking:
		return "NoPacking"
	case ToPacked:
		return "ToPacked"
	case FromPacked:
		return "FromPacked"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Pair of formats: the key of the derivation table.
type Pair struct {
	Src, Dst formats.Format
}

// String implements fmt.Stringer.
func (p Pair) String() string { return p.Src.String() + "->" + p.Dst.String() }

// Result of the normalization: merged shapes and their axis labels.
type Result struct {
	Pair                 Pair
	Direction            Direction
	SrcLabels, DstLabels string
	SrcShape, DstShape   []int
}

// String implements fmt.Stringer.
func (r Result) String() string {
	return fmt.Sprintf("%s: %q%v -> %q%v", r.Pair, r.SrcLabels, r.SrcShape, r.DstLabels, r.DstShape)
}

// derivation computes the Result for one pair of formats. Shapes ranks are already validated.
type derivation func(srcShape, dstShape []int, c0 int) (Result, error)

// table of the derivations of every supported packing pair.
var table = map[Pair]derivation{
	{formats.NCHW, formats.NC1HWC0}:       toPacked(formats.NCHW, formats.NC1HWC0),
	{formats.NHWC, formats.NC1HWC0}:       toPacked(formats.NHWC, formats.NC1HWC0),
	{formats.NC1HWC0, formats.NCHW}:       fromPacked(formats.NC1HWC0, formats.NCHW),
	{formats.NC1HWC0, formats.NHWC}:       fromPacked(formats.NC1HWC0, formats.NHWC),
	{formats.NCDHW, formats.NDC1HWC0}:     toPacked(formats.NCDHW, formats.NDC1HWC0),
	{formats.NDHWC, formats.NDC1HWC0}:     toPacked(formats.NDHWC, formats.NDC1HWC0),
	{formats.NDC1HWC0, formats.NCDHW}:     fromPacked(formats.NDC1HWC0, formats.NCDHW),
	{formats.NDC1HWC0, formats.NDHWC}:     fromPacked(formats.NDC1HWC0, formats.NDHWC),
	{formats.NCHW, formats.FractalZ}:      toPacked(formats.NCHW, formats.FractalZ),
	{formats.HWCN, formats.FractalZ}:      toPacked(formats.HWCN, formats.FractalZ),
	{formats.NHWC, formats.FractalZ}:      toPacked(formats.NHWC, formats.FractalZ),
	{formats.FractalZ, formats.NCHW}:      fromPacked(formats.FractalZ, formats.NCHW),
	{formats.FractalZ, formats.HWCN}:      fromPacked(formats.FractalZ, formats.HWCN),
	{formats.NCDHW, formats.FractalZ3D}:   toPacked(formats.NCDHW, formats.FractalZ3D),
	{formats.DHWCN, formats.FractalZ3D}:   toPacked(formats.DHWCN, formats.FractalZ3D),
	{formats.FractalZ3D, formats.NCDHW}:   fromPacked(formats.FractalZ3D, formats.NCDHW),
	{formats.FractalZ3D, formats.DHWCN}:   fromPacked(formats.FractalZ3D, formats.DHWCN),
	{formats.ND, formats.FractalNZ}:       ndToNZ,
	{formats.FractalNZ, formats.ND}:       nzToND,
}

// Supported returns whether the pair of formats can be normalized, including pure permutations.
func Supported(src, dst formats.Format) bool {
	if src == dst {
		return true
	}
	if _, found := table[Pair{src, dst}]; found {
		return true
	}
	_, err := PermBetween(src, dst)
	return err == nil
}

// PackingPairs returns the supported conversions from an unpacked format to a packed one, sorted.
// Most of them are also supported in the opposite direction, see Supported.
func PackingPairs() []Pair {
	var pairs []Pair
	for pair := range table {
		if !pair.Src.IsPacked() {
			pairs = append(pairs, pair)
		}
	}
	slices.SortFunc(pairs, func(a, b Pair) int {
		if a.Src != b.Src {
			return int(a.Src) - int(b.Src)
		}
		return int(a.Dst) - int(b.Dst)
	})
	return pairs
}

// Normalize derives the merged shapes and labels of the conversion of srcShape in format src to
// dstShape in format dst, with packing width c0.
//
// opName is only used for logging. Rank mismatches and inconsistent shapes are logged and returned
// as errors, an unknown pair returns an error wrapping ErrUnsupportedPair.
func Normalize(opName string, src, dst formats.Format, srcShape, dstShape []int, c0 int) (Result, error) {
	pair := Pair{src, dst}
	if err := checkRank(opName, pair, "source", src, srcShape); err != nil {
		return Result{}, err
	}
	if err := checkRank(opName, pair, "destination", dst, dstShape); err != nil {
		return Result{}, err
	}
	for _, shape := range [][]int{srcShape, dstShape} {
		for _, dim := range shape {
			if dim <= 0 {
				klog.Errorf("%s: %s: invalid shapes %v -> %v, dimensions must be > 0", opName, pair, srcShape, dstShape)
				return Result{}, errors.Errorf("%s: %s: invalid shapes %v -> %v, dimensions must be > 0",
					opName, pair, srcShape, dstShape)
			}
		}
	}

	var (
		res Result
		err error
	)
	if fn, found := table[pair]; found {
		res, err = fn(srcShape, dstShape, c0)
	} else {
		res, err = permutation(src, dst, srcShape, dstShape)
	}
	if err != nil {
		if !errors.Is(err, ErrUnsupportedPair) {
			klog.Errorf("%s: %s: %v", opName, pair, err)
		}
		return Result{}, errors.WithMessagef(err, "%s: normalizing %s", opName, pair)
	}
	res.Pair = pair
	if klog.V(2).Enabled() {
		klog.Infof("%s: normalized %s", opName, res)
	}
	return res, nil
}

func checkRank(opName string, pair Pair, side string, format formats.Format, shape []int) error {
	if err := formats.CheckRank(format, len(shape)); err != nil {
		klog.Errorf("%s: %s: %s shape %v: %v", opName, pair, side, shape, err)
		return errors.WithMessagef(err, "%s: %s: %s shape %v", opName, pair, side, shape)
	}
	return nil
}

// unpacked describes a tensor in a format with one role per axis, merged by roles.
type unpacked struct {
	labels     string
	shape      []int
	n, c, d, s int // s is the merged spatial size H*W.
}

// mergeRoles merges H and W into one spatial axis labeled "H", and returns the label/shape for the
// unpacked format.
func mergeRoles(format formats.Format, shape []int) unpacked {
	u := unpacked{n: 1, c: 1, d: 1, s: 1}
	var sb strings.Builder
	for axis, role := range formats.Roles(format) {
		dim := shape[axis]
		switch role {
		case formats.RoleN:
			u.n = dim
			sb.WriteByte('N')
			u.shape = append(u.shape, dim)
		case formats.RoleC:
			u.c = dim
			sb.WriteByte('C')
			u.shape = append(u.shape, dim)
		case formats.RoleD:
			u.d = dim
			sb.WriteByte('D')
			u.shape = append(u.shape, dim)
		case formats.RoleH:
			u.s = dim
			sb.WriteByte('H')
			u.shape = append(u.shape, dim)
		case formats.RoleW:
			// Merged into the preceding H.
			u.s *= dim
			u.shape[len(u.shape)-1] *= dim
		}
	}
	u.labels = sb.String()
	return u
}

// packedLayout returns the labels, merged shape and the literal shape expected for the packed
// format, given the unpacked dimensions.
func packedLayout(format formats.Format, u unpacked, hw []int, c0 int) (labels string, merged, literal []int) {
	c1 := xmath.CeilDiv(u.c, c0)
	nPad := xmath.AlignUp(u.n, N0)
	switch format {
	case formats.NC1HWC0:
		return "NCHT", []int{u.n, c1, u.s, c0}, []int{u.n, c1, hw[0], hw[1], c0}
	case formats.NDC1HWC0:
		return "NDCHT", []int{u.n, u.d, c1, u.s, c0}, []int{u.n, u.d, c1, hw[0], hw[1], c0}
	case formats.FractalZ:
		return "CHNT", []int{c1, u.s, nPad, c0}, []int{c1 * u.s, nPad / N0, N0, c0}
	case formats.FractalZ3D:
		return "DCHNT", []int{u.d, c1, u.s, nPad, c0}, []int{u.d * c1 * u.s, nPad / N0, N0, c0}
	}
	return "", nil, nil
}

// spatial returns the H and W dimensions of an unpacked shape.
func spatial(format formats.Format, shape []int) []int {
	return []int{shape[formats.AxisIndex(format, formats.RoleH)], shape[formats.AxisIndex(format, formats.RoleW)]}
}

// toPacked returns the derivation from the unpacked format to a packed one.
func toPacked(from, to formats.Format) derivation {
	return func(srcShape, dstShape []int, c0 int) (Result, error) {
		u := mergeRoles(from, srcShape)
		labels, merged, literal := packedLayout(to, u, spatial(from, srcShape), c0)
		if !slices.Equal(literal, dstShape) {
			return Result{}, errors.Errorf("destination shape %v inconsistent with source shape %v: expected %v (C1=ceil(%d/%d)=%d)",
				dstShape, srcShape, literal, u.c, c0, xmath.CeilDiv(u.c, c0))
		}
		return Result{
			Direction: ToPacked,
			SrcLabels: u.labels, SrcShape: u.shape,
			DstLabels: labels, DstShape: merged,
		}, nil
	}
}

// fromPacked returns the derivation from a packed format to an unpacked one: the inverse of toPacked.
func fromPacked(from, to formats.Format) derivation {
	return func(srcShape, dstShape []int, c0 int) (Result, error) {
		u := mergeRoles(to, dstShape)
		labels, merged, literal := packedLayout(from, u, spatial(to, dstShape), c0)
		if !slices.Equal(literal, srcShape) {
			return Result{}, errors.Errorf("source shape %v inconsistent with destination shape %v: expected %v (C1=ceil(%d/%d)=%d)",
				srcShape, dstShape, literal, u.c, c0, xmath.CeilDiv(u.c, c0))
		}
		return Result{
			Direction: FromPacked,
			SrcLabels: labels, SrcShape: merged,
			DstLabels: u.labels, DstShape: u.shape,
		}, nil
	}
}

// PackedShape returns the literal shape of a tensor of the given shape in the unpacked format from,
// once converted to the packed format to with packing width c0.
//
// The pair (from, to) must be one of the supported packing conversions, otherwise it
// returns an error wrapping ErrUnsupportedPair.
func PackedShape(from, to formats.Format, shape []int, c0 int) ([]int, error) {
	if _, found := table[Pair{from, to}]; !found || from.IsPacked() {
		return nil, errors.Wrapf(ErrUnsupportedPair, "%s->%s is not a packing conversion", from, to)
	}
	if err := formats.CheckRank(from, len(shape)); err != nil {
		return nil, err
	}
	if to == formats.FractalNZ {
		return nzLiteral(shape, c0), nil
	}
	u := mergeRoles(from, shape)
	_, _, literal := packedLayout(to, u, spatial(from, shape), c0)
	return literal, nil
}

// ndMatrix returns the batch, rows (h) and columns (w) of an ND tensor seen as a batch of matrices.
// A rank 1 tensor is a single row.
func ndMatrix(shape []int) (batch, h, w int) {
	w = xslices.Last(shape)
	if len(shape) == 1 {
		return 1, 1, w
	}
	return xslices.ProductRange(shape, 0, len(shape)-2), shape[len(shape)-2], w
}

// nzLiteral returns the FRACTAL_NZ shape of an ND shape.
func nzLiteral(ndShape []int, c0 int) []int {
	_, h, w := ndMatrix(ndShape)
	var literal []int
	if len(ndShape) > 2 {
		literal = append(literal, ndShape[:len(ndShape)-2]...)
	}
	return append(literal, xmath.CeilDiv(w, c0), xmath.CeilDiv(h, N0), N0, c0)
}

func ndToNZ(srcShape, dstShape []int, c0 int) (Result, error) {
	batch, h, w := ndMatrix(srcShape)
	if literal := nzLiteral(srcShape, c0); !slices.Equal(literal, dstShape) {
		return Result{}, errors.Errorf("destination shape %v inconsistent with source shape %v: expected %v",
			dstShape, srcShape, literal)
	}
	return Result{
		Direction: ToPacked,
		SrcLabels: "HNC", SrcShape: []int{batch, h, w},
		DstLabels: "HCNT", DstShape: []int{batch, xmath.CeilDiv(w, c0), xmath.AlignUp(h, N0), c0},
	}, nil
}

func nzToND(srcShape, dstShape []int, c0 int) (Result, error) {
	batch, h, w := ndMatrix(dstShape)
	if literal := nzLiteral(dstShape, c0); !slices.Equal(literal, srcShape) {
		return Result{}, errors.Errorf("source shape %v inconsistent with destination shape %v: expected %v",
			srcShape, dstShape, literal)
	}
	return Result{
		Direction: FromPacked,
		SrcLabels: "HCNT", SrcShape: []int{batch, xmath.CeilDiv(w, c0), xmath.AlignUp(h, N0), c0},
		DstLabels: "HNC", DstShape: []int{batch, h, w},
	}, nil
}

// plainLabels are used for the axes of conversions to the same format.
const plainLabels = "abcdefgh"

// permutation handles pairs of formats that differ only by the order of the axes, and the
// conversions to the same format.
func permutation(src, dst formats.Format, srcShape, dstShape []int) (Result, error) {
	if src == dst {
		if !slices.Equal(srcShape, dstShape) {
			return Result{}, errors.Errorf("same format %s with different shapes %v and %v", src, srcShape, dstShape)
		}
		if len(srcShape) > len(plainLabels) {
			return Result{}, errors.Errorf("rank %d too large, at most %d axes supported", len(srcShape), len(plainLabels))
		}
		labels := plainLabels[:len(srcShape)]
		return Result{
			Direction: NoPacking,
			SrcLabels: labels, SrcShape: srcShape,
			DstLabels: labels, DstShape: dstShape,
		}, nil
	}
	perm, err := PermBetween(src, dst)
	if err != nil {
		return Result{}, err
	}
	if expected := xslices.Permute(srcShape, perm); !slices.Equal(expected, dstShape) {
		return Result{}, errors.Errorf("destination shape %v inconsistent with source shape %v: expected %v",
			dstShape, srcShape, expected)
	}
	return Result{
		Direction: NoPacking,
		SrcLabels: roleLetters(formats.Roles(src)), SrcShape: srcShape,
		DstLabels: roleLetters(formats.Roles(dst)), DstShape: dstShape,
	}, nil
}

func roleLetters(roles []formats.Role) string {
	var sb strings.Builder
	for _, role := range roles {
		sb.WriteString(role.String())
	}
	return sb.String()
}

// PermBetween returns the permutation that converts a tensor in format src to format dst, when both
// formats have the same roles in a different order (e.g. NCHW -> HWCN gives {2, 3, 1, 0}).
func PermBetween(src, dst formats.Format) ([]int, error) {
	srcRoles, dstRoles := formats.Roles(src), formats.Roles(dst)
	if srcRoles == nil || dstRoles == nil || len(srcRoles) != len(dstRoles) {
		return nil, errors.Wrapf(ErrUnsupportedPair, "%s->%s", src, dst)
	}
	perm := make([]int, len(dstRoles))
	for ii, role := range dstRoles {
		perm[ii] = formats.AxisIndex(src, role)
		if perm[ii] == formats.NotFound || role == formats.RoleC1 || role == formats.RoleC0 {
			return nil, errors.Wrapf(ErrUnsupportedPair, "%s->%s", src, dst)
		}
	}
	return perm, nil
}
