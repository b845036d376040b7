// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transpose

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/gomlx/optiling/pkg/tiling/reduce"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
	"k8s.io/klog/v2"
)

// Conversion holds the real strides of a layout conversion with padding, whose pair permutes the
// padded axes: the padded side of the pair has dimensions that don't exist in its real tensor.
type Conversion struct {
	// SrcStrides and DstStrides are the strides of each source and destination axis of the pair in
	// the real tensors.
	SrcStrides, DstStrides []int
}

// TileConversion computes the plan of a layout conversion with padding. The pair must not be
// reduced: its axes are the ones the strides of conv refer to.
//
// The plan always gathers destination rows (a FallbackTiling with the PaddedConversion reason),
// addressing both tensors with their real strides. The kernel takes the padding description from
// the trailer of the block: it writes zeros where a packed destination has padding, and it skips
// the destination positions that only exist in a packed source.
func TileConversion(pair reduce.Pair, conv Conversion, c hw.Constants) Plan {
	p := newProblem(pair, c)
	if len(conv.SrcStrides) != p.rank || len(conv.DstStrides) != p.rank {
		exceptions.Panicf("transpose.TileConversion(%s): strides %v and %v don't match the rank",
			pair, conv.SrcStrides, conv.DstStrides)
	}
	if p.rank < 2 || conv.DstStrides[p.rank-1] != 1 {
		exceptions.Panicf("transpose.TileConversion(%s): destination rows must be contiguous, got strides %v",
			pair, conv.DstStrides)
	}
	p.setStrides(conv.SrcStrides, conv.DstStrides)
	p.padded = true
	s := fallbackScenario(p)
	if s == scenario.TransposeFatToThin {
		s = scenario.TransposeCommon
	}
	if klog.V(1).Enabled() {
		klog.Infof("conversion %s on %s: scenario %s, real strides %v -> %v", pair, c, s, conv.SrcStrides, conv.DstStrides)
	}
	return tileFallback(p, s, PaddedConversion)
}
