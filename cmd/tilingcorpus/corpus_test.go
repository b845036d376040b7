// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/gomlx/optiling/pkg/core/dtypes"
	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/gomlx/optiling/pkg/tiling"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHW = hw.Constants{CoreNum: 32, UBBlocks: 8192, DType: dtypes.Float16}

func generate(seed int64, n int, randomHW bool, maxVolume int) []tiling.Request {
	g := newGenerator(seed, testHW, randomHW, maxVolume)
	requests := make([]tiling.Request, n)
	for ii := range requests {
		requests[ii] = g.Next(ii)
	}
	return requests
}

func TestGenerator(t *testing.T) {
	const maxVolume = 20_000
	requests := generate(7, 300, true, maxVolume)
	assert.Equal(t, requests, generate(7, 300, true, maxVolume))

	var numTransData int
	for _, req := range requests {
		require.NoError(t, req.HW.Validate())
		switch req.Kind {
		case tiling.KindTranspose:
			assert.LessOrEqual(t, xslices.Product(req.Shape), maxVolume)
			assert.Len(t, req.Perm, len(req.Shape))
		case tiling.KindTransData:
			numTransData++
			assert.LessOrEqual(t, xslices.Product(req.SrcShape), maxVolume)
			assert.LessOrEqual(t, xslices.Product(req.DstShape), maxVolume)
		}
	}
	assert.Greater(t, numTransData, 0)

	for _, req := range generate(7, 50, false, maxVolume) {
		assert.Equal(t, testHW, req.HW)
	}
}

func TestRun(t *testing.T) {
	requests := generate(42, 200, true, 20_000)
	cov, err := run(context.Background(), requests, 4, 20_000, false)
	require.NoError(t, err)
	for _, failure := range cov.Failures {
		t.Errorf("%+v", failure)
	}
	var cases, checked int
	for _, stats := range cov.ByScenario {
		cases += stats.Cases
		checked += stats.Checked
		assert.Zero(t, stats.Failed)
	}
	assert.Equal(t, len(requests), cases)
	assert.Equal(t, len(requests), checked)
	assert.Contains(t, cov.ByScenario, scenario.VendorFastPath)

	// Same coverage when evaluated sequentially.
	sequential, err := run(context.Background(), requests, 0, 20_000, false)
	require.NoError(t, err)
	assert.Equal(t, cov, sequential)

	var buf bytes.Buffer
	require.NoError(t, writeCoverage(&buf, cov))
	assert.Contains(t, buf.String(), "Scenario coverage")
	assert.Contains(t, buf.String(), "VendorFastPath")
	assert.Contains(t, buf.String(), "Total")
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := run(ctx, generate(1, 20, false, 4096), 2, 4096, false)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCoverageAdd(t *testing.T) {
	cov := newCoverage()
	cov.Add(outcome{Scenario: scenario.SmallShape, UsedCores: 4, UBBytes: 64, Checked: true})
	cov.Add(outcome{Scenario: scenario.SmallShape, UsedCores: 2, UBBytes: 128})
	cov.Add(outcome{Err: assert.AnError})
	assert.Equal(t, &scenarioStats{Cases: 2, Checked: 1, Cores: 6, MaxUBBytes: 128}, cov.ByScenario[scenario.SmallShape])
	assert.Equal(t, 1, cov.Errors)
	assert.Equal(t, 1, cov.NumFailures())
}
