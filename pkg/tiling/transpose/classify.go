// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transpose

import (
	"fmt"

	"github.com/gomlx/optiling/pkg/support/xmath"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/gomlx/optiling/pkg/tiling/reduce"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
	"k8s.io/klog/v2"
)

// Features are the predicates the classifier decides on.
type Features struct {
	Identity       bool
	LastTransposed bool

	// LastTwoSwapped: the last two source axes are swapped, and LastTwoAligned: both are block aligned.
	LastTwoSwapped, LastTwoAligned bool

	SrcLastAligned, DstLastAligned bool
	SrcLastWide, DstLastWide       bool
	SmallVolume                    bool
	HugeLast                       bool
	NColRow                        bool
}

// String implements fmt.Stringer.
func (f Features) String() string {
	type plain Features
	return fmt.Sprintf("%+v", plain(f))
}

func computeFeatures(p *problem) (f Features) {
	f.Identity = p.pair.IsIdentity()
	f.LastTransposed = p.lastTransposed()
	if p.rank >= 2 {
		f.LastTwoSwapped = p.perm[p.rank-1] == p.rank-2 && p.perm[p.rank-2] == p.rank-1
		f.LastTwoAligned = xmath.IsAligned(p.src[p.rank-1], p.be) && xmath.IsAligned(p.src[p.rank-2], p.be)
	}
	f.SrcLastAligned = xmath.IsAligned(p.srcLast(), p.be)
	f.DstLastAligned = xmath.IsAligned(p.dstLast(), p.be)
	f.SrcLastWide = p.bytes(p.srcLast()) >= hw.WideBurstBytes
	f.DstLastWide = p.bytes(p.dstLast()) >= hw.WideBurstBytes
	f.SmallVolume = p.bytes(p.volume) < hw.SmallShapeBytes
	f.HugeLast = !f.LastTransposed &&
		(p.bytes(p.srcLast()) >= hw.HugeLastAxisBytes || xmath.AlignUp(p.srcLast(), p.be) > p.c.HalfUBElems())
	f.NColRow = nColRowApplies(p)
	return
}

// Decision of the classifier.
type Decision struct {
	Scenario scenario.Scenario
	Features Features

	// Fallback is set when Scenario is one of the fallbacks for a transposed last axis.
	Fallback FallbackReason

	// Results of the feasibility analyses, reused by the calculators.
	swapTile int
	nColRow  nColRowChoice
	borrow   borrowAnalysis
}

// Classify selects the scenario of the reduced transposition pair for the hardware c.
//
// The first matching rule wins:
//
//  1. Identity permutation: Identity.
//  2. Vendor core count marker: VendorFastPath.
//  3. Volume below hw.SmallShapeBytes: SmallShape.
//  4. [N, Col, Row] -> [N, Row, Col], large enough: NColRow if a sub-model is admissible, else fallback.
//  5. Last two axes swapped and block aligned: LastTwoAlignedSwap, else fallback if the tile doesn't fit.
//  6. Last axis transposed, narrow on both sides and not aligned on both: Borrow1/Borrow2 if the
//     borrow analysis is feasible, else fallback.
//  7. Last axis not transposed and huge: HugeLastAxis.
//  8. Last axis not transposed: LargeLastAxis if wide, SmallLastAxis otherwise.
//
// Anything else (a transposed last axis) goes to a fallback: TransposeFatToThin, TransposeThinToFat
// or TransposeCommon. Classification is total and deterministic.
func Classify(pair reduce.Pair, c hw.Constants) Decision {
	return classify(newProblem(pair, c))
}

func classify(p *problem) Decision {
	d := Decision{Features: computeFeatures(p)}
	f := &d.Features
	fallback := func(reason FallbackReason) Decision {
		d.Scenario, d.Fallback = fallbackScenario(p), reason
		return d
	}
	switch {
	case f.Identity:
		d.Scenario = scenario.Identity
		return d
	case p.c.CoreNum == hw.VendorCoreMarker:
		d.Scenario = scenario.VendorFastPath
		return d
	case f.SmallVolume:
		d.Scenario = scenario.SmallShape
		return d
	}

	if f.NColRow {
		choice, ok := selectNColRow(p)
		if !ok {
			return fallback(NColRowInfeasible)
		}
		d.Scenario, d.nColRow = scenario.NColRow, choice
		return d
	}

	if f.LastTwoSwapped && f.LastTwoAligned {
		tile, ok := swapTileSize(p)
		if !ok {
			return fallback(SwapInfeasible)
		}
		d.Scenario, d.swapTile = scenario.LastTwoAlignedSwap, tile
		return d
	}

	if f.LastTransposed && !f.SrcLastWide && !f.DstLastWide && !(f.SrcLastAligned && f.DstLastAligned) {
		analysis, ok := analyzeBorrow(p)
		if !ok {
			return fallback(BorrowInfeasible)
		}
		d.borrow = analysis
		d.Scenario = scenario.Borrow1
		if analysis.srcCount == 2 || analysis.dstCount == 2 {
			d.Scenario = scenario.Borrow2
		}
		return d
	}

	switch {
	case f.LastTransposed:
		return fallback(NoSpecialization)
	case f.HugeLast:
		d.Scenario = scenario.HugeLastAxis
	case f.SrcLastWide:
		d.Scenario = scenario.LargeLastAxis
	default:
		d.Scenario = scenario.SmallLastAxis
	}
	return d
}

// Tile classifies the reduced pair and computes the plan of the selected scenario.
func Tile(pair reduce.Pair, c hw.Constants) Plan {
	p := newProblem(pair, c)
	d := classify(p)
	if klog.V(1).Enabled() {
		klog.Infof("transpose %s on %s: scenario %s (fallback reason %s)", pair, c, d.Scenario, d.Fallback)
	}
	if klog.V(2).Enabled() {
		klog.Infof("transpose %s features: %s", pair, d.Features)
	}
	return calculate(p, d)
}

// calculate runs the calculator of the decided scenario.
func calculate(p *problem, d Decision) Plan {
	switch d.Scenario {
	case scenario.Identity:
		return tileIdentity(p)
	case scenario.VendorFastPath:
		return tileVendor(p)
	case scenario.SmallShape:
		return tileSmallShape(p)
	case scenario.NColRow:
		return tileNColRow(d.nColRow)
	case scenario.LastTwoAlignedSwap:
		return tileSwap(p, d.swapTile)
	case scenario.Borrow1, scenario.Borrow2:
		return tileBorrow(p, d.borrow)
	case scenario.HugeLastAxis:
		return tileHuge(p)
	case scenario.LargeLastAxis, scenario.SmallLastAxis:
		return tileRows(p, d.Scenario)
	default:
		return tileFallback(p, d.Scenario, d.Fallback)
	}
}
