// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tiling computes the tiling block of the transposition kernel, for general permutations
// (Transpose) and for layout conversions between tensor formats (TransData).
//
// The pipeline is: normalize the layout pair (TransData only), lower it to a permutation over
// (possibly padded) axes, reduce the permutation, classify it into a scenario, compute the plan
// of that scenario and serialize it. Conversions with padding skip the reduction and the
// classification: they take the plan of transpose.TileConversion, over the real tensors.
//
// Example:
//
//	c := hw.Constants{CoreNum: 32, UBBlocks: 8192, DType: dtypes.Float16}
//	res, err := tiling.Transpose("Transpose_1", c, []int{1024, 768}, []int{1, 0})
//	if err != nil { ... }
//	launch(res.Block.Bytes(), res.UsedCores)
package tiling

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/optiling/pkg/core/formats"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/gomlx/optiling/pkg/tiling/normalize"
	"github.com/gomlx/optiling/pkg/tiling/reduce"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
	"github.com/gomlx/optiling/pkg/tiling/serialize"
	"github.com/gomlx/optiling/pkg/tiling/simulate"
	"github.com/gomlx/optiling/pkg/tiling/transpose"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Kind of tiling request.
type Kind int

const (
	// KindTranspose is a general permutation of the axes of Shape.
	KindTranspose Kind = iota

	// KindTransData is a layout conversion between two formats.
	KindTransData
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindTranspose:
		return "Transpose"
	case KindTransData:
		return "TransData"
	}
	return "Kind(?)"
}

// Request holds all the inputs of one tiling computation.
type Request struct {
	Kind Kind

	// OpName identifies the operation in logs and errors.
	OpName string

	HW hw.Constants

	// Shape and Perm of a KindTranspose request: destination axis q is source axis Perm[q].
	Shape, Perm []int

	// SrcFormat, DstFormat and their shapes for a KindTransData request.
	SrcFormat, DstFormat formats.Format
	SrcShape, DstShape   []int
}

// Result of a tiling computation.
type Result struct {
	Scenario    scenario.Scenario
	SubScenario int

	// UsedCores is the number of cores to launch, and the number of per-core records in Block.
	UsedCores int

	// Block is the serialized tiling, including the layout trailer for TransData.
	Block serialize.Block

	// Reduced permutation the plan was computed for. For conversions with padding it's the lowered
	// permutation, not reduced.
	Reduced reduce.Pair

	// Plan before serialization.
	Plan transpose.Plan

	// Lowered conversion, only for TransData.
	Lowered *normalize.Lowered
}

// Expected returns the data movement the block must implement, to verify it with simulate.Check.
func (r *Result) Expected() simulate.Expected {
	if r.Lowered != nil {
		return simulate.Conversion(*r.Lowered)
	}
	return simulate.Transposition(r.Reduced.InShape.Slice(), r.Reduced.Perm.Slice())
}

// Transpose computes the tiling of the permutation perm of a tensor of the given shape.
func Transpose(opName string, c hw.Constants, shape, perm []int) (*Result, error) {
	return Tile(Request{Kind: KindTranspose, OpName: opName, HW: c, Shape: shape, Perm: perm})
}

// TransData computes the tiling of the conversion of a tensor of srcShape in format src to
// dstShape in format dst.
//
// It returns an error wrapping normalize.ErrUnsupportedPair if the conversion is not supported.
func TransData(opName string, c hw.Constants, src, dst formats.Format, srcShape, dstShape []int) (*Result, error) {
	return Tile(Request{
		Kind: KindTransData, OpName: opName, HW: c,
		SrcFormat: src, DstFormat: dst, SrcShape: srcShape, DstShape: dstShape,
	})
}

// Tile computes the tiling of the request.
//
// Errors of the caller (invalid hardware constants, ranks, shapes or permutations and unsupported
// conversions) are logged and returned. Nothing is returned on failure.
func Tile(req Request) (*Result, error) {
	if err := req.HW.Validate(); err != nil {
		klog.Errorf("%s: %v", req.OpName, err)
		return nil, errors.WithMessagef(err, "%s", req.OpName)
	}

	res := &Result{}
	var (
		shape, perm []int
		trailer     []int64
		conv        *transpose.Conversion
	)
	switch req.Kind {
	case KindTranspose:
		shape, perm = req.Shape, req.Perm
	case KindTransData:
		normalized, err := normalize.Normalize(req.OpName, req.SrcFormat, req.DstFormat, req.SrcShape, req.DstShape, req.HW.C0())
		if err != nil {
			return nil, err
		}
		lowered, err := normalize.Lower(normalized)
		if err != nil {
			klog.Errorf("%s: %v", req.OpName, err)
			return nil, errors.WithMessagef(err, "%s: lowering %s", req.OpName, normalized.Pair)
		}
		res.Lowered = &lowered
		shape, perm = lowered.SrcShape, lowered.Perm
		trailer = lowered.Trailer()
		if lowered.Padded() {
			conv = &transpose.Conversion{SrcStrides: lowered.SrcStrides, DstStrides: lowered.DstStrides}
		}
	default:
		return nil, errors.Errorf("%s: invalid request kind %d", req.OpName, req.Kind)
	}

	var (
		pair reduce.Pair
		err  error
	)
	if conv != nil {
		pair, err = reduce.Plain(shape, perm)
	} else {
		pair, err = reduce.Reduce(shape, perm)
	}
	if err != nil {
		klog.Errorf("%s: %v", req.OpName, err)
		return nil, errors.WithMessagef(err, "%s", req.OpName)
	}
	res.Reduced = pair

	err = exceptions.TryCatch[error](func() {
		if conv != nil {
			res.Plan = transpose.TileConversion(pair, *conv, req.HW)
		} else {
			res.Plan = transpose.Tile(pair, req.HW)
		}
		res.Block = serialize.Encode(res.Plan, trailer)
	})
	if err != nil {
		klog.Errorf("%s: tiling %s failed: %+v", req.OpName, pair, err)
		return nil, errors.WithMessagef(err, "%s: tiling %s", req.OpName, pair)
	}
	res.Scenario = res.Plan.Scenario()
	res.SubScenario = res.Plan.SubScenario()
	res.UsedCores = res.Block.UsedCores
	if klog.V(1).Enabled() {
		klog.Infof("%s: %s %s on %d cores, block of %d values", req.OpName, req.Kind, res.Scenario, res.UsedCores, len(res.Block.Data))
	}
	return res, nil
}
