// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package normalize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Pad describes a padded axis (or pair of axes) of the expanded unpacked side of a conversion.
// Positions from Real to Padded are padding: written as zeros when packing, skipped when unpacking.
type Pad struct {
	// Axis is the first expanded axis, and Span the number of axes (2 for C split into C1 x C0).
	Axis, Span int

	// Real and Padded are the number of elements of the logical axis without and with the padding.
	Real, Padded int
}

// Lowered is a layout conversion expressed as a permutation of the source axes.
//
// The unpacked side is "expanded": its C axis is split into (C, T) = (C1, C0) and axes padded on
// the packed side get the padded size. The shapes are the logically padded ones, while the strides
// address the real tensors, and the Pads tell which positions are padding.
type Lowered struct {
	Direction Direction

	// Labels of the source axes, after expansion for ToPacked.
	Labels string

	// SrcShape, Perm and DstShape describe the permutation: DstShape[ii] == SrcShape[Perm[ii]].
	SrcShape, Perm, DstShape []int

	// Pads on the expanded side: source for ToPacked, destination for FromPacked.
	Pads []Pad

	// SrcStrides and DstStrides of each source and destination axis in the real tensors: on the
	// expanded side C1 has stride C0 times the one of C, and padded axes keep their real stride.
	// They are not set by ParseTrailer.
	SrcStrides, DstStrides []int

	// SrcVolume and DstVolume are the number of elements of the real tensors.
	SrcVolume, DstVolume int
}

// Padded returns whether the conversion has padding on its expanded side.
func (l Lowered) Padded() bool { return len(l.Pads) > 0 }

// IsPadding returns whether the element at the given destination indices of the permutation is
// padding: a zero of a packed destination, or an element of a packed source with no place in the
// unpacked destination.
func (l Lowered) IsPadding(dstIndices []int) bool {
	for _, pad := range l.Pads {
		var pos int
		if l.Direction == FromPacked {
			pos = dstIndices[pad.Axis]
			if pad.Span == 2 {
				pos = pos*l.DstShape[pad.Axis+1] + dstIndices[pad.Axis+1]
			}
		} else {
			pos = dstIndices[slices.Index(l.Perm, pad.Axis)]
			if pad.Span == 2 {
				pos = pos*l.SrcShape[pad.Axis+1] + dstIndices[slices.Index(l.Perm, pad.Axis+1)]
			}
		}
		if pos >= pad.Real {
			return true
		}
	}
	return false
}

// realVolumes returns the volumes of the real tensors: the padding is removed from the expanded side.
func (l Lowered) realVolumes() (src, dst int) {
	src, dst = xslices.Product(l.SrcShape), xslices.Product(l.SrcShape)
	for _, pad := range l.Pads {
		if l.Direction == FromPacked {
			dst = dst / pad.Padded * pad.Real
		} else {
			src = src / pad.Padded * pad.Real
		}
	}
	return
}

// String implements fmt.Stringer.
func (l Lowered) String() string {
	return fmt.Sprintf("%s %q%v perm=%v -> %v pads=%v", l.Direction, l.Labels, l.SrcShape, l.Perm, l.DstShape, l.Pads)
}

// Lower converts the normalized result into a permutation problem.
func Lower(res Result) (Lowered, error) {
	l := Lowered{Direction: res.Direction}
	switch res.Direction {
	case NoPacking, ToPacked:
		labels, shape, strides, pads, err := expand(res.SrcLabels, res.SrcShape, res.DstLabels, res.DstShape)
		if err != nil {
			return Lowered{}, err
		}
		l.Labels, l.SrcShape, l.SrcStrides, l.Pads = labels, shape, strides, pads
		l.Perm, err = permBetweenLabels(labels, res.DstLabels)
		if err != nil {
			return Lowered{}, err
		}
		l.DstShape = xslices.Permute(l.SrcShape, l.Perm)
		l.DstStrides = xslices.Strides(l.DstShape)

	case FromPacked:
		dstLabels, _, strides, pads, err := expand(res.DstLabels, res.DstShape, res.SrcLabels, res.SrcShape)
		if err != nil {
			return Lowered{}, err
		}
		l.Labels, l.SrcShape, l.Pads = res.SrcLabels, res.SrcShape, pads
		l.Perm, err = permBetweenLabels(res.SrcLabels, dstLabels)
		if err != nil {
			return Lowered{}, err
		}
		l.DstShape = xslices.Permute(l.SrcShape, l.Perm)
		l.SrcStrides, l.DstStrides = xslices.Strides(l.SrcShape), strides

	default:
		return Lowered{}, errors.Errorf("unknown direction %s", res.Direction)
	}
	l.SrcVolume, l.DstVolume = l.realVolumes()
	return l, nil
}

// expand the unpacked labels/shape to the axes of the packed side: C is split into (C, T) if the
// packed side has a T axis, and every axis takes the (padded) size of the packed side. It also
// returns the strides of the expanded axes in the real unpacked tensor.
func expand(labels string, shape []int, packedLabels string, packedShape []int) (string, []int, []int, []Pad, error) {
	packedDims := make(map[byte]int, len(packedLabels))
	for ii := range len(packedLabels) {
		packedDims[packedLabels[ii]] = packedShape[ii]
	}
	_, splitC := packedDims['T']
	var (
		sb                strings.Builder
		expanded, strides []int
		pads              []Pad
	)
	realStrides := xslices.Strides(shape)
	for ii := range len(labels) {
		letter, size, stride := labels[ii], shape[ii], realStrides[ii]
		if letter == 'C' && splitC {
			c1, c0 := packedDims['C'], packedDims['T']
			if c1*c0 != size {
				pads = append(pads, Pad{Axis: len(expanded), Span: 2, Real: size, Padded: c1 * c0})
			}
			if c1*c0 < size {
				return "", nil, nil, nil, errors.Errorf("axis C of %d elements doesn't fit in %d x %d packed axes", size, c1, c0)
			}
			sb.WriteString("CT")
			expanded = append(expanded, c1, c0)
			strides = append(strides, c0*stride, stride)
			continue
		}
		padded, found := packedDims[letter]
		if !found {
			return "", nil, nil, nil, errors.Errorf("axis %q of %q missing in %q", letter, labels, packedLabels)
		}
		if padded < size {
			return "", nil, nil, nil, errors.Errorf("axis %q has %d elements, more than the %d of the other side", letter, size, padded)
		}
		if padded > size {
			pads = append(pads, Pad{Axis: len(expanded), Span: 1, Real: size, Padded: padded})
		}
		sb.WriteByte(letter)
		expanded = append(expanded, padded)
		strides = append(strides, stride)
	}
	return sb.String(), expanded, strides, pads, nil
}

// permBetweenLabels returns perm such that dst[ii] is src[perm[ii]].
func permBetweenLabels(src, dst string) ([]int, error) {
	if len(src) != len(dst) {
		return nil, errors.Errorf("can't permute axes %q into %q", src, dst)
	}
	perm := make([]int, len(dst))
	for ii := range len(dst) {
		perm[ii] = strings.IndexByte(src, dst[ii])
		if perm[ii] < 0 {
			return nil, errors.Errorf("can't permute axes %q into %q: %q missing", src, dst, dst[ii])
		}
	}
	return perm, nil
}

// Trailer returns the serialized description of the conversion, appended to the fixed section of the
// tiling block: {direction, rank, srcShape..., perm..., numPads, (axis, span, real, padded)...}.
func (l Lowered) Trailer() []int64 {
	trailer := make([]int64, 0, 3+2*len(l.SrcShape)+4*len(l.Pads))
	trailer = append(trailer, int64(l.Direction), int64(len(l.SrcShape)))
	trailer = append(trailer, xslices.ToInt64(l.SrcShape)...)
	trailer = append(trailer, xslices.ToInt64(l.Perm)...)
	trailer = append(trailer, int64(len(l.Pads)))
	for _, pad := range l.Pads {
		trailer = append(trailer, int64(pad.Axis), int64(pad.Span), int64(pad.Real), int64(pad.Padded))
	}
	return trailer
}

// ParseTrailer is the inverse of Lowered.Trailer: it returns the conversion described at the start of
// values, without labels nor strides, and the number of values it takes.
func ParseTrailer(values []int64) (l Lowered, n int, err error) {
	next := func() int {
		if n >= len(values) {
			if err == nil {
				err = errors.Errorf("conversion trailer %v too short", values)
			}
			return 0
		}
		n++
		return int(values[n-1])
	}
	l.Direction = Direction(next())
	rank := next()
	if err == nil && (rank <= 0 || rank > len(values)) {
		return Lowered{}, 0, errors.Errorf("conversion trailer %v: invalid rank %d", values, rank)
	}
	l.SrcShape, l.Perm = make([]int, rank), make([]int, rank)
	for ii := range rank {
		l.SrcShape[ii] = next()
	}
	for ii := range rank {
		l.Perm[ii] = next()
	}
	numPads := next()
	for range numPads {
		if err != nil {
			break
		}
		l.Pads = append(l.Pads, Pad{Axis: next(), Span: next(), Real: next(), Padded: next()})
	}
	if err != nil {
		return Lowered{}, 0, err
	}
	if err = validateTrailer(l); err != nil {
		return Lowered{}, 0, errors.WithMessagef(err, "conversion trailer %v", values)
	}
	l.DstShape = xslices.Permute(l.SrcShape, l.Perm)
	l.SrcVolume, l.DstVolume = l.realVolumes()
	return l, n, nil
}

func validateTrailer(l Lowered) error {
	if l.Direction != NoPacking && l.Direction != ToPacked && l.Direction != FromPacked {
		return errors.Errorf("invalid direction %d", int(l.Direction))
	}
	seen := make([]bool, len(l.Perm))
	for _, axis := range l.Perm {
		if axis < 0 || axis >= len(l.Perm) || seen[axis] {
			return errors.Errorf("invalid permutation %v", l.Perm)
		}
		seen[axis] = true
	}
	for _, dim := range l.SrcShape {
		if dim <= 0 {
			return errors.Errorf("invalid shape %v", l.SrcShape)
		}
	}
	shape := l.SrcShape
	if l.Direction == FromPacked {
		shape = xslices.Permute(l.SrcShape, l.Perm)
	}
	for _, pad := range l.Pads {
		if pad.Span < 1 || pad.Span > 2 || pad.Axis < 0 || pad.Axis+pad.Span > len(shape) {
			return errors.Errorf("invalid pad %+v", pad)
		}
		size := shape[pad.Axis]
		if pad.Span == 2 {
			size *= shape[pad.Axis+1]
		}
		if pad.Padded != size || pad.Real <= 0 || pad.Real > pad.Padded {
			return errors.Errorf("pad %+v doesn't match the shape %v", pad, shape)
		}
	}
	return nil
}
