// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// optiling computes the tiling block of a transposition or of a layout conversion, and prints it.
//
// Examples:
//
//	optiling -shape=1024,768 -perm=1,0
//	optiling -src_format=NCHW -dst_format=NC1HWC0 -src_shape=2,3,5,6 -dst_shape=2,1,5,6,16 -output=yaml
//	OPTILING_HARDWARE="core_num=8;dtype=int8" optiling -shape=60,70,196608 -perm=1,0,2
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/optiling/pkg/core/formats"
	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/gomlx/optiling/pkg/tiling"
	"github.com/gomlx/optiling/pkg/tiling/compileinfo"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/gomlx/optiling/pkg/tiling/simulate"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagShape = xslices.IntsFlag("shape", nil, "Source shape of a transposition, e.g. -shape=1024,768.")
	flagPerm  = xslices.IntsFlag("perm", nil, "Permutation of a transposition: destination axis i is source axis perm[i].")

	flagSrcFormat = flag.String("src_format", "", "Source format of a layout conversion (e.g. NCHW). "+
		"If set, the tiling of a layout conversion is computed, and -shape/-perm are ignored.")
	flagDstFormat = flag.String("dst_format", "", "Destination format of a layout conversion (e.g. NC1HWC0).")
	flagSrcShape  = xslices.IntsFlag("src_shape", nil, "Source shape of a layout conversion.")
	flagDstShape  = xslices.IntsFlag("dst_shape", nil, "Destination shape of a layout conversion.")

	flagHW = flag.String("hw", "", fmt.Sprintf("Hardware settings, e.g. %q. "+
		"Defaults to $%s, or to the settings above if not set.", compileinfo.DefaultSettings, compileinfo.OPTILING_HARDWARE))
	flagCompileInfo = flag.String("compile_info", "", "Path to a compile info JSON (or YAML) file with the hardware "+
		"constants. It takes precedence over -hw.")

	flagOpName  = flag.String("op", "optiling", "Name of the op, used in logs and errors.")
	flagOutput  = flag.String("output", "table", "Output format: table, yaml, json or hex.")
	flagCheck   = flag.Bool("check", false, "Simulate the block and check that it moves every element to its place.")
	flagNoColor = flag.Bool("no_color", false, "Disable colors in the table output.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if len(flag.Args()) > 0 {
		klog.Errorf("Unexpected arguments %q. See 'optiling -help'.", flag.Args())
		os.Exit(1)
	}
	if *flagNoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	c := must.M1(hardware())
	res, err := compute(c)
	if err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
	if *flagCheck {
		if err := simulate.Check(res.Block, res.Expected(), c.BlockElems()); err != nil {
			klog.Errorf("Check failed: %+v", err)
			os.Exit(1)
		}
		klog.V(1).Infof("check passed")
	}
	r := newReport(*flagOpName, c, res)
	r.Checked = *flagCheck
	must.M(writeReport(os.Stdout, *flagOutput, r))
}

// hardware returns the hardware constants selected by the flags, or by the environment.
func hardware() (hw.Constants, error) {
	switch {
	case *flagCompileInfo != "":
		return compileinfo.Load(*flagCompileInfo)
	case *flagHW != "":
		return compileinfo.ParseSettings(*flagHW)
	}
	return compileinfo.FromEnv()
}

// compute the tiling requested by the flags.
func compute(c hw.Constants) (*tiling.Result, error) {
	if *flagSrcFormat == "" && *flagDstFormat == "" {
		if len(*flagShape) == 0 {
			return nil, errors.New("missing -shape (or -src_format and -dst_format), see 'optiling -help'")
		}
		perm := *flagPerm
		if len(perm) == 0 {
			// Default to reversing the axes.
			perm = xslices.Iota(0, len(*flagShape))
			slices.Reverse(perm)
		}
		return tiling.Transpose(*flagOpName, c, *flagShape, perm)
	}

	src, err := formats.Parse(*flagSrcFormat)
	if err != nil {
		return nil, errors.WithMessage(err, "-src_format")
	}
	dst, err := formats.Parse(*flagDstFormat)
	if err != nil {
		return nil, errors.WithMessage(err, "-dst_format")
	}
	return tiling.TransData(*flagOpName, c, src, dst, *flagSrcShape, *flagDstShape)
}
