// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package reduce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePerm(t *testing.T) {
	require.NoError(t, ValidatePerm([]int{2, 0, 1}, 3))
	require.Error(t, ValidatePerm([]int{0, 1}, 3))
	require.Error(t, ValidatePerm([]int{0, 1, 3}, 3))
	require.Error(t, ValidatePerm([]int{0, 1, -1}, 3))
	require.Error(t, ValidatePerm([]int{0, 1, 1}, 3))
}

func TestValidateShape(t *testing.T) {
	require.NoError(t, ValidateShape([]int{1, 2, 3}))
	require.Error(t, ValidateShape(nil))
	require.Error(t, ValidateShape([]int{2, 0}))
	require.Error(t, ValidateShape([]int{1, 1, 1, 1, 1, 1, 1, 1, 1}))
}

func TestReduce(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		p, err := Reduce([]int{2, 3}, []int{0, 1})
		require.NoError(t, err)
		assert.Equal(t, []int{6}, p.InShape.Slice())
		assert.Equal(t, []int{0}, p.Perm.Slice())
		assert.True(t, p.IsIdentity())
		assert.Equal(t, [][]int{{0, 1}}, p.Groups)
	})

	t.Run("all ones", func(t *testing.T) {
		p, err := Reduce([]int{1, 1, 1}, []int{2, 1, 0})
		require.NoError(t, err)
		assert.Equal(t, []int{1}, p.InShape.Slice())
		assert.Equal(t, 1, p.Volume())
		assert.True(t, p.IsIdentity())
	})

	t.Run("merge", func(t *testing.T) {
		// [A, B, C, D] -> [C, D, A, B]: two groups swapped.
		p, err := Reduce([]int{2, 3, 4, 5}, []int{2, 3, 0, 1})
		require.NoError(t, err)
		assert.Equal(t, []int{6, 20}, p.InShape.Slice())
		assert.Equal(t, []int{1, 0}, p.Perm.Slice())
		assert.Equal(t, []int{20, 6}, p.OutShape.Slice())
		assert.Equal(t, [][]int{{0, 1}, {2, 3}}, p.Groups)
	})

	t.Run("drop unit axes", func(t *testing.T) {
		// Axis 1 has size 1: [2, 1, 16, 30] perm {0,1,3,2} -> [2, 16, 30] perm {0,2,1}.
		p, err := Reduce([]int{2, 1, 16, 30}, []int{0, 1, 3, 2})
		require.NoError(t, err)
		assert.Equal(t, []int{2, 16, 30}, p.InShape.Slice())
		assert.Equal(t, []int{0, 2, 1}, p.Perm.Slice())
		assert.Equal(t, []int{2, 30, 16}, p.OutShape.Slice())
	})

	t.Run("unit axis between merged axes", func(t *testing.T) {
		// Axes 0 and 2 become consecutive once axis 1 is dropped.
		p, err := Reduce([]int{4, 1, 5, 7}, []int{3, 0, 1, 2})
		require.NoError(t, err)
		assert.Equal(t, []int{20, 7}, p.InShape.Slice())
		assert.Equal(t, []int{1, 0}, p.Perm.Slice())
		assert.Equal(t, 140, p.Volume())
	})

	t.Run("no merge", func(t *testing.T) {
		p, err := Reduce([]int{60, 70, 196608}, []int{1, 0, 2})
		require.NoError(t, err)
		assert.Equal(t, []int{60, 70, 196608}, p.InShape.Slice())
		assert.Equal(t, []int{1, 0, 2}, p.Perm.Slice())
		assert.Equal(t, []int{70, 60, 196608}, p.OutShape.Slice())
	})

	t.Run("errors", func(t *testing.T) {
		_, err := Reduce([]int{2, 3}, []int{0, 0})
		require.Error(t, err)
		_, err = Reduce([]int{2, 0}, []int{1, 0})
		require.Error(t, err)
	})
}

func TestPlain(t *testing.T) {
	p, err := Plain([]int{2, 1, 16, 30}, []int{0, 1, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 16, 30}, p.InShape.Slice())
	assert.Equal(t, []int{2, 1, 30, 16}, p.OutShape.Slice())
	assert.Equal(t, []int{0, 1, 3, 2}, p.Perm.Slice())
	assert.Equal(t, [][]int{{0}, {1}, {2}, {3}}, p.Groups)

	_, err = Plain([]int{2, 3}, []int{0, 0})
	require.Error(t, err)
	_, err = Plain([]int{2, 0}, []int{1, 0})
	require.Error(t, err)
}
