// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/gomlx/optiling/pkg/core/dtypes"
	"github.com/gomlx/optiling/pkg/core/formats"
	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/gomlx/optiling/pkg/tiling"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/gomlx/optiling/pkg/tiling/normalize"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
	"github.com/gomlx/optiling/pkg/tiling/simulate"
	"github.com/pkg/errors"
)

// coreChoices used when randomizing the hardware. 96 selects the vendor fast path.
var coreChoices = []int{1, 2, 7, 8, 24, 30, 32, 48, 96}

// minVolume accepted for the corpus: the smallest packed tensor, fully padded, has N0*32 elements.
const minVolume = normalize.N0 * 32

// generator of random tiling requests.
type generator struct {
	rng          *rand.Rand
	base         hw.Constants
	randomHW     bool
	maxVolume    int
	pairs        []normalize.Pair
	dtypeChoices []dtypes.DType
}

func newGenerator(seed int64, base hw.Constants, randomHW bool, maxVolume int) *generator {
	return &generator{
		rng:          rand.New(rand.NewSource(seed)),
		base:         base,
		randomHW:     randomHW,
		maxVolume:    maxVolume,
		pairs:        normalize.PackingPairs(),
		dtypeChoices: dtypes.Values(),
	}
}

// hardware returns the base hardware or a random one.
func (g *generator) hardware() hw.Constants {
	if !g.randomHW {
		return g.base
	}
	return hw.Constants{
		CoreNum:  coreChoices[g.rng.Intn(len(coreChoices))],
		UBBlocks: hw.MinUBBlocks << g.rng.Intn(8),
		DType:    g.dtypeChoices[g.rng.Intn(len(g.dtypeChoices))],
	}
}

// dims returns rank random dimensions, mostly small. The largest dimensions are halved until the
// total volume is <= budget.
func (g *generator) dims(rank, budget int) []int {
	shape := make([]int, rank)
	for axis := range shape {
		switch g.rng.Intn(6) {
		case 0:
			shape[axis] = 1 + g.rng.Intn(3)
		case 1:
			shape[axis] = 16 * (1 + g.rng.Intn(16))
		default:
			shape[axis] = 1 + g.rng.Intn(64)
		}
	}
	for xslices.Product(shape) > budget {
		largest := 0
		for axis, dim := range shape {
			if dim > shape[largest] {
				largest = axis
			}
		}
		if shape[largest] == 1 {
			break
		}
		shape[largest] = (shape[largest] + 1) / 2
	}
	return shape
}

// Next returns the ii-th request of the corpus: 3 out of 4 are transpositions.
func (g *generator) Next(ii int) tiling.Request {
	if g.rng.Intn(4) != 0 {
		return g.transpose(ii)
	}
	return g.transData(ii)
}

func (g *generator) transpose(ii int) tiling.Request {
	rank := 1 + g.rng.Intn(6)
	return tiling.Request{
		Kind:   tiling.KindTranspose,
		OpName: fmt.Sprintf("Transpose_%d", ii),
		HW:     g.hardware(),
		Shape:  g.dims(rank, g.maxVolume),
		Perm:   g.rng.Perm(rank),
	}
}

// transData draws one of the packing pairs, in either direction when both are supported.
// The padded volume is <= g.maxVolume, which must be >= minVolume.
func (g *generator) transData(ii int) tiling.Request {
	c := g.hardware()
	for {
		pair := g.pairs[g.rng.Intn(len(g.pairs))]
		rank := formats.ExpectedRank(pair.Src)
		if rank == 0 {
			rank = 1 + g.rng.Intn(4)
		}
		// Packing pads C up to C0 and N up to N0.
		src := g.dims(rank, max(1, g.maxVolume/c.C0()))
		dst, err := normalize.PackedShape(pair.Src, pair.Dst, src, c.C0())
		if err != nil {
			panic(errors.WithMessagef(err, "generating %s", pair))
		}
		if xslices.Product(dst) > g.maxVolume {
			continue
		}
		req := tiling.Request{
			Kind:      tiling.KindTransData,
			OpName:    fmt.Sprintf("TransData_%d", ii),
			HW:        c,
			SrcFormat: pair.Src, DstFormat: pair.Dst,
			SrcShape: src, DstShape: dst,
		}
		if g.rng.Intn(2) == 0 && normalize.Supported(pair.Dst, pair.Src) {
			req.SrcFormat, req.DstFormat = pair.Dst, pair.Src
			req.SrcShape, req.DstShape = dst, src
		}
		return req
	}
}

// outcome of the evaluation of one request.
type outcome struct {
	Scenario  scenario.Scenario
	UsedCores int
	UBBytes   int
	Checked   bool
	Err       error
}

// evaluate tiles the request twice and verifies the result: same block both times, cores and
// on-chip buffer within the hardware limits and, if the volume is <= maxCheckVolume, that the
// simulated block moves every element to its place without cores sharing a destination block.
func evaluate(req tiling.Request, maxCheckVolume int) (o outcome) {
	res, err := tiling.Tile(req)
	if err != nil {
		o.Err = err
		return
	}
	o.Scenario, o.UsedCores = res.Scenario, res.UsedCores
	o.UBBytes = res.Plan.UBUsage() * req.HW.ElemSize()

	again, err := tiling.Tile(req)
	if err != nil {
		o.Err = errors.WithMessage(err, "second evaluation")
		return
	}
	if !slices.Equal(res.Block.Data, again.Block.Data) {
		o.Err = errors.Errorf("%s: not deterministic: %v != %v", req.OpName, res.Block.Data, again.Block.Data)
		return
	}
	if o.UsedCores < 1 || o.UsedCores > req.HW.CoreNum {
		o.Err = errors.Errorf("%s: %d cores used, hardware has %d", req.OpName, o.UsedCores, req.HW.CoreNum)
		return
	}
	if ub := res.Plan.UBUsage(); ub > req.HW.UBElems() {
		o.Err = errors.Errorf("%s: uses %d elements of the buffer, hardware has %d", req.OpName, ub, req.HW.UBElems())
		return
	}
	if res.Reduced.Volume() <= maxCheckVolume {
		o.Err = simulate.Check(res.Block, res.Expected(), req.HW.BlockElems())
		if o.Err != nil {
			o.Err = errors.WithMessagef(o.Err, "%s: %s", req.OpName, res.Reduced)
			return
		}
		o.Checked = true
	}
	return
}

// scenarioStats aggregates the outcomes of one scenario.
type scenarioStats struct {
	Cases, Checked, Failed int
	Cores                  int
	MaxUBBytes             int
}

// coverage aggregates outcomes per scenario.
type coverage struct {
	ByScenario map[scenario.Scenario]*scenarioStats
	Failures   []error
	Errors     int
}

func newCoverage() *coverage {
	return &coverage{ByScenario: make(map[scenario.Scenario]*scenarioStats)}
}

// Add an outcome.
func (c *coverage) Add(o outcome) {
	if o.Err != nil && o.UsedCores == 0 {
		// Tiling itself failed, there is no scenario.
		c.Errors++
		c.Failures = append(c.Failures, o.Err)
		return
	}
	stats, found := c.ByScenario[o.Scenario]
	if !found {
		stats = &scenarioStats{}
		c.ByScenario[o.Scenario] = stats
	}
	stats.Cases++
	stats.Cores += o.UsedCores
	stats.MaxUBBytes = max(stats.MaxUBBytes, o.UBBytes)
	if o.Checked {
		stats.Checked++
	}
	if o.Err != nil {
		stats.Failed++
		c.Failures = append(c.Failures, o.Err)
	}
}

// NumFailures returns the number of requests that failed any verification.
func (c *coverage) NumFailures() int { return len(c.Failures) }
