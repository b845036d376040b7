// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hw

import (
	"testing"

	"github.com/gomlx/optiling/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstants(t *testing.T) {
	c := Constants{CoreNum: 32, UBBlocks: 8192, DType: dtypes.Float16}
	require.NoError(t, c.Validate())
	assert.Equal(t, 2, c.ElemSize())
	assert.Equal(t, 16, c.BlockElems())
	assert.Equal(t, 8192*16, c.UBElems())
	assert.Equal(t, 4096*16, c.HalfUBElems())
	assert.Equal(t, 16, c.C0())

	c8 := Constants{CoreNum: 8, UBBlocks: 65, DType: dtypes.Int8}
	require.NoError(t, c8.Validate())
	assert.Equal(t, 32, c8.BlockElems())
	assert.Equal(t, 32*32, c8.HalfUBElems())
	assert.Equal(t, 32, c8.C0())

	require.Error(t, Constants{CoreNum: 0, UBBlocks: 8192, DType: dtypes.Float16}.Validate())
	require.Error(t, Constants{CoreNum: 1, UBBlocks: 8, DType: dtypes.Float16}.Validate())
	require.Error(t, Constants{CoreNum: 1, UBBlocks: 8192}.Validate())
}
