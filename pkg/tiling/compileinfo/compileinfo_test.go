// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package compileinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/optiling/pkg/core/dtypes"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	c := must.M1(Parse([]byte(`{"vars": {"core_num": 8, "ub_size": 131072, "dtype": "int8"}}`)))
	assert.Equal(t, hw.Constants{CoreNum: 8, UBBlocks: 4096, DType: dtypes.Int8}, c)

	// Flat, YAML, with defaults.
	c = must.M1(Parse([]byte("core_num: 2\nub_blocks: 64\n")))
	assert.Equal(t, hw.Constants{CoreNum: 2, UBBlocks: 64, DType: dtypes.Float16}, c)

	c = must.M1(Parse([]byte(`{}`)))
	assert.Equal(t, Default(), c)

	_, err := Parse([]byte(`{"vars": {"ub_size": 100}}`))
	require.Error(t, err)
	_, err = Parse([]byte(`{"vars": {"ub_size": 2048, "ub_blocks": 32}}`))
	require.Error(t, err)
	_, err = Parse([]byte(`{"vars": {"dtype": "complex"}}`))
	require.Error(t, err)
	_, err = Parse([]byte(`{"vars": {"core_num": -1}}`))
	require.Error(t, err)
	_, err = Parse([]byte(`{"vars": [`))
	require.Error(t, err)
}

func TestParseSettings(t *testing.T) {
	c := must.M1(ParseSettings(DefaultSettings))
	assert.Equal(t, Default(), c)

	c = must.M1(ParseSettings("core_num=96, ub_blocks=1024, dtype=float32"))
	assert.Equal(t, hw.Constants{CoreNum: 96, UBBlocks: 1024, DType: dtypes.Float32}, c)

	_, err := ParseSettings("core_num")
	require.Error(t, err)
	_, err = ParseSettings("cores=3")
	require.Error(t, err)
	_, err = ParseSettings("core_num=three")
	require.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(OPTILING_HARDWARE, "")
	assert.Equal(t, Default(), must.M1(FromEnv()))

	t.Setenv(OPTILING_HARDWARE, "core_num=4;dtype=bfloat16")
	assert.Equal(t, hw.Constants{CoreNum: 4, UBBlocks: 8192, DType: dtypes.BFloat16}, must.M1(FromEnv()))

	t.Setenv(OPTILING_HARDWARE, `{"vars": {"core_num": 16}}`)
	assert.Equal(t, 16, must.M1(FromEnv()).CoreNum)

	path := filepath.Join(t.TempDir(), "hw.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vars:\n  core_num: 48\n  dtype: float32\n"), 0o644))
	t.Setenv(OPTILING_HARDWARE, "@"+path)
	assert.Equal(t, hw.Constants{CoreNum: 48, UBBlocks: 8192, DType: dtypes.Float32}, must.M1(FromEnv()))

	t.Setenv(OPTILING_HARDWARE, "@"+path+".missing")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	t.Setenv(OPTILING_HARDWARE, "ub_blocks=1")
	_, err = FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), OPTILING_HARDWARE)
}
