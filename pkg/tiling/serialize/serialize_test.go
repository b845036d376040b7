// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package serialize

import (
	"testing"

	"github.com/gomlx/optiling/pkg/tiling/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlan struct {
	fixed   []int64
	records [][]int64
}

func (p fakePlan) Scenario() scenario.Scenario { return scenario.LastTwoAlignedSwap }
func (p fakePlan) SubScenario() int            { return 3 }
func (p fakePlan) UsedCores() int              { return len(p.records) }
func (p fakePlan) Fixed() []int64              { return p.fixed }
func (p fakePlan) Record(core int) []int64     { return p.records[core] }

func TestEncode(t *testing.T) {
	plan := fakePlan{
		fixed:   []int64{7, 8, 9},
		records: [][]int64{{0, 10}, {10, 5}},
	}
	b := Encode(plan, []int64{-1})
	require.NoError(t, b.Validate())
	// 4 header + 4 fixed + 2x2 records = 12, already aligned.
	assert.Equal(t, []int64{10, 4, 2, 3, 7, 8, 9, -1, 0, 10, 10, 5}, b.Data)
	assert.Equal(t, scenario.LastTwoAlignedSwap, b.Scenario())
	assert.Equal(t, 3, b.SubScenario())
	assert.Equal(t, []int64{7, 8, 9, -1}, b.Fixed())
	assert.Equal(t, []int64{10, 5}, b.Record(1))

	// Padding: 4 + 3 + 3x2 = 13 -> 16.
	plan.records = append(plan.records, []int64{15, 1})
	b = Encode(plan, nil)
	require.NoError(t, b.Validate())
	assert.Len(t, b.Data, 16)
	assert.Equal(t, []int64{0, 0, 0}, b.Data[13:])

	decoded, err := Decode(b.Bytes(), b.UsedCores)
	require.NoError(t, err)
	assert.Equal(t, b, decoded)
	assert.Equal(t, byte(10), b.Bytes()[0])

	// Wrong number of cores.
	_, err = Decode(b.Bytes(), 5)
	require.Error(t, err)
}

func TestEncodeInconsistentRecords(t *testing.T) {
	plan := fakePlan{records: [][]int64{{0, 10}, {10}}}
	require.Panics(t, func() { Encode(plan, nil) })
}

func TestValidate(t *testing.T) {
	require.Error(t, Block{Data: []int64{1, 2}, UsedCores: 1}.Validate())
	require.Error(t, Block{Data: []int64{99, 0, 0, 0}, UsedCores: 1}.Validate())
	require.Error(t, Block{Data: []int64{0, 0, 1, 0, 5, 7, 0, 0}, UsedCores: 1}.Validate())
	require.NoError(t, Block{Data: []int64{0, 0, 1, 0, 5, 0, 0, 0}, UsedCores: 1}.Validate())
}
