// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package compileinfo builds the hardware constants of a tiling request from the op compile info,
// a settings string or the environment.
//
// The compile info is a JSON (or YAML) document like:
//
//	{"vars": {"core_num": 32, "ub_size": 262144, "dtype": "float16"}}
//
// where ub_size is in bytes. The UB size can instead be given in 32 bytes blocks with "ub_blocks".
// Missing values are taken from Default.
package compileinfo

import (
	"os"
	"strconv"
	"strings"

	"github.com/gomlx/optiling/pkg/core/dtypes"
	"github.com/gomlx/optiling/pkg/support/fsutil"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// OPTILING_HARDWARE is the environment variable with the hardware configuration to use.
//
// It is either a compile info document (if it starts with "{"), the path of a compile info file
// prefixed by "@" (e.g. "@~/ascend/hw.yaml") or a settings string, see ParseSettings.
const OPTILING_HARDWARE = "OPTILING_HARDWARE"

// DefaultSettings used by Default, in the ParseSettings format.
const DefaultSettings = "core_num=32;ub_size=262144;dtype=float16"

// Vars of the compile info. Zero values are not set.
type Vars struct {
	CoreNum  int    `yaml:"core_num"`
	UBSize   int    `yaml:"ub_size"`
	UBBlocks int    `yaml:"ub_blocks"`
	DType    string `yaml:"dtype"`
}

type compileInfo struct {
	Vars *Vars `yaml:"vars"`
}

// Default returns the default hardware constants: 32 cores, 256 KiB of UB and float16 elements.
func Default() hw.Constants {
	return hw.Constants{CoreNum: 32, UBBlocks: 8192, DType: dtypes.Float16}
}

// Parse the compile info document. The "vars" object may be omitted, with the values at the top level.
func Parse(data []byte) (hw.Constants, error) {
	var info compileInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return hw.Constants{}, errors.Wrap(err, "parsing compile info")
	}
	if info.Vars == nil {
		info.Vars = &Vars{}
		if err := yaml.Unmarshal(data, info.Vars); err != nil {
			return hw.Constants{}, errors.Wrap(err, "parsing compile info")
		}
	}
	return info.Vars.Constants()
}

// Load reads and parses the compile info file at path. A leading "~" is replaced by the home directory.
func Load(path string) (hw.Constants, error) {
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return hw.Constants{}, err
	}
	c, err := Parse(data)
	if err != nil {
		return hw.Constants{}, errors.WithMessagef(err, "compile info file %q", path)
	}
	return c, nil
}

// ParseSettings parses a list of "key=value" settings separated by ";" or ",", with the same keys
// as the compile info: e.g. "core_num=8;ub_blocks=1024;dtype=int8".
func ParseSettings(settings string) (hw.Constants, error) {
	var vars Vars
	parts := strings.FieldsFunc(settings, func(r rune) bool { return r == ';' || r == ',' })
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return hw.Constants{}, errors.Errorf("invalid setting %q in %q: it must be key=value", part, settings)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "dtype" {
			vars.DType = value
			continue
		}
		var target *int
		switch key {
		case "core_num":
			target = &vars.CoreNum
		case "ub_size":
			target = &vars.UBSize
		case "ub_blocks":
			target = &vars.UBBlocks
		default:
			return hw.Constants{}, errors.Errorf("unknown setting %q in %q", key, settings)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return hw.Constants{}, errors.Wrapf(err, "setting %q in %q", key, settings)
		}
		*target = n
	}
	return vars.Constants()
}

// FromEnv returns the hardware constants configured by $OPTILING_HARDWARE, or Default if it is not set.
func FromEnv() (hw.Constants, error) {
	config, found := os.LookupEnv(OPTILING_HARDWARE)
	if !found || strings.TrimSpace(config) == "" {
		return Default(), nil
	}
	var (
		c   hw.Constants
		err error
	)
	trimmed := strings.TrimSpace(config)
	switch {
	case strings.HasPrefix(trimmed, "{"):
		c, err = Parse([]byte(config))
	case strings.HasPrefix(trimmed, "@"):
		c, err = Load(trimmed[1:])
	default:
		c, err = ParseSettings(config)
	}
	if err != nil {
		return hw.Constants{}, errors.WithMessagef(err, "$%s=%q", OPTILING_HARDWARE, config)
	}
	klog.V(1).Infof("hardware from $%s: %s", OPTILING_HARDWARE, c)
	return c, nil
}

// Constants converts the vars to hardware constants, taking missing values from Default, and
// validates them.
func (v Vars) Constants() (hw.Constants, error) {
	c := Default()
	if v.CoreNum != 0 {
		c.CoreNum = v.CoreNum
	}
	switch {
	case v.UBSize != 0 && v.UBBlocks != 0:
		if v.UBSize != v.UBBlocks*hw.BlockBytes {
			return hw.Constants{}, errors.Errorf("ub_size=%d bytes and ub_blocks=%d are inconsistent", v.UBSize, v.UBBlocks)
		}
		c.UBBlocks = v.UBBlocks
	case v.UBSize != 0:
		if v.UBSize%hw.BlockBytes != 0 {
			return hw.Constants{}, errors.Errorf("ub_size=%d bytes is not a multiple of the %d bytes block", v.UBSize, hw.BlockBytes)
		}
		c.UBBlocks = v.UBSize / hw.BlockBytes
	case v.UBBlocks != 0:
		c.UBBlocks = v.UBBlocks
	}
	if v.DType != "" {
		dtype, err := dtypes.Parse(v.DType)
		if err != nil {
			return hw.Constants{}, err
		}
		c.DType = dtype
	}
	if err := c.Validate(); err != nil {
		return hw.Constants{}, err
	}
	return c, nil
}
