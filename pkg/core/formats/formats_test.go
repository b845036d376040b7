// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAxisIndex(t *testing.T) {
	assert.Equal(t, 0, AxisIndex(NCHW, RoleN))
	assert.Equal(t, 1, AxisIndex(NCHW, RoleC))
	assert.Equal(t, 3, AxisIndex(NHWC, RoleC))
	assert.Equal(t, 2, AxisIndex(HWCN, RoleC))
	assert.Equal(t, 3, AxisIndex(HWCN, RoleN))
	assert.Equal(t, 2, AxisIndex(NDC1HWC0, RoleC1))
	assert.Equal(t, 4, AxisIndex(NC1HWC0, RoleC0))
	assert.Equal(t, 3, AxisIndex(FractalZ, RoleC0))
	assert.Equal(t, NotFound, AxisIndex(ND, RoleC))
	assert.Equal(t, NotFound, AxisIndex(NCHW, RoleD))
	assert.Equal(t, NotFound, AxisIndex(FractalNZ, RoleN))
}

func TestExpectedRank(t *testing.T) {
	assert.Equal(t, 4, ExpectedRank(NCHW))
	assert.Equal(t, 5, ExpectedRank(NC1HWC0))
	assert.Equal(t, 6, ExpectedRank(NDC1HWC0))
	assert.Equal(t, 0, ExpectedRank(ND))
	require.NoError(t, CheckRank(ND, 3))
	require.NoError(t, CheckRank(FractalNZ, 5))
	require.Error(t, CheckRank(FractalNZ, 3))
	require.Error(t, CheckRank(NCHW, 5))
	require.Error(t, CheckRank(ND, 0))
}

func TestParse(t *testing.T) {
	for _, f := range FormatValues() {
		got, err := Parse(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	got, err := Parse("fractal_z_3d")
	require.NoError(t, err)
	assert.Equal(t, FractalZ3D, got)
	_, err = Parse("NCHW_BAD")
	require.Error(t, err)
	assert.True(t, NC1HWC0.IsPacked())
	assert.False(t, HWCN.IsPacked())
}

func TestRoles(t *testing.T) {
	assert.Equal(t, []Role{RoleN, RoleH, RoleW, RoleC}, Roles(NHWC))
	assert.Nil(t, Roles(FractalZ))
	assert.Equal(t, "C1", RoleC1.String())
}
