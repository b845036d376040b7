// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package smallvec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInts(t *testing.T) {
	v := Of(2, 3, 5)
	require.Equal(t, 3, v.Len())
	require.Equal(t, 2, v.At(0))
	require.Equal(t, 5, v.At(-1))
	require.Equal(t, 30, v.Product())
	require.Equal(t, "[2 3 5]", v.String())

	v2 := v
	v2.Set(-1, 7)
	require.Equal(t, 5, v.At(2), "Ints must be a value type")
	require.Equal(t, 7, v2.At(2))
	require.False(t, v.Equal(v2))
	require.True(t, v.Equal(Of(2, 3, 5)))

	v.Append(1)
	require.Equal(t, []int{2, 3, 5, 1}, v.Slice())
	require.Equal(t, 1, Ints{}.Product())

	require.Panics(t, func() { _ = v.At(4) })
	require.Panics(t, func() { _ = v.At(-5) })
	require.Panics(t, func() { _ = Of(1, 2, 3, 4, 5, 6, 7, 8, 9, 10) })
	require.NotPanics(t, func() { _ = Of(1, 2, 3, 4, 5, 6, 7, 8, 9) })
}
