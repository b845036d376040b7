// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// tilingcorpus tiles a corpus of random transpositions and layout conversions, verifies every
// result and prints the coverage of the scenarios.
//
// Each request is tiled twice (the blocks must be identical), the used cores and on-chip buffer
// must fit the hardware, and requests with a volume <= -max_check_volume are simulated to check
// that every element lands in its place.
//
// Examples:
//
//	tilingcorpus -n=10000 -seed=7
//	tilingcorpus -n=2000 -random_hw -parallelism=4
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/optiling/internal/workerspool"
	"github.com/gomlx/optiling/pkg/tiling"
	"github.com/gomlx/optiling/pkg/tiling/compileinfo"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagN              = flag.Int("n", 1000, "Number of random requests.")
	flagSeed           = flag.Int64("seed", 42, "Random seed: the same seed generates the same corpus.")
	flagMaxVolume      = flag.Int("max_volume", 1<<20, fmt.Sprintf("Maximum volume of the generated tensors, >= %d.", minVolume))
	flagMaxCheckVolume = flag.Int("max_check_volume", 1<<16, "Maximum volume of the tensors checked by simulation.")
	flagParallelism    = flag.Int("parallelism", -1, "Number of requests evaluated in parallel. "+
		"If 0 they are evaluated sequentially, if < 0 one per CPU.")
	flagHW = flag.String("hw", "", fmt.Sprintf("Hardware settings, e.g. %q. "+
		"Defaults to $%s, or to the settings above if not set.", compileinfo.DefaultSettings, compileinfo.OPTILING_HARDWARE))
	flagRandomHW    = flag.Bool("random_hw", false, "Randomize the hardware (cores, UB size and dtype) of each request.")
	flagMaxFailures = flag.Int("max_failures", 10, "Maximum number of failures printed.")
	flagNoProgress  = flag.Bool("no_progress", false, "Disable the progress bar.")
	flagNoColor     = flag.Bool("no_color", false, "Disable colors in the coverage table.")
)

// ProgressbarStyle to use. Consider progressbar.ThemeUnicode for a prettier version.
var ProgressbarStyle = progressbar.ThemeASCII

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagMaxVolume < minVolume {
		klog.Fatalf("-max_volume=%d must be >= %d", *flagMaxVolume, minVolume)
	}
	if *flagNoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	base := must.M1(hardware())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	g := newGenerator(*flagSeed, base, *flagRandomHW, *flagMaxVolume)
	requests := make([]tiling.Request, *flagN)
	for ii := range requests {
		requests[ii] = g.Next(ii)
	}

	cov, err := run(ctx, requests, *flagParallelism, *flagMaxCheckVolume, !*flagNoProgress)
	if err != nil {
		klog.Errorf("Interrupted: %v", err)
	}
	must.M(writeCoverage(os.Stdout, cov))
	if cov.NumFailures() > 0 {
		for ii, failure := range cov.Failures {
			if ii >= *flagMaxFailures {
				fmt.Printf("... %d more failures\n", cov.NumFailures()-ii)
				break
			}
			fmt.Printf("- %v\n", failure)
		}
		os.Exit(1)
	}
}

// hardware returns the base hardware constants, from -hw or from the environment.
func hardware() (hw.Constants, error) {
	if *flagHW != "" {
		return compileinfo.ParseSettings(*flagHW)
	}
	return compileinfo.FromEnv()
}

// run evaluates the requests with the given parallelism and returns the aggregated coverage. It
// returns an error only if ctx is cancelled, along with the coverage of what was evaluated.
func run(ctx context.Context, requests []tiling.Request, parallelism, maxCheckVolume int, showProgress bool) (*coverage, error) {
	pool := workerspool.New()
	if parallelism >= 0 {
		pool.SetMaxParallelism(parallelism)
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		term := termenv.NewOutput(os.Stdout)
		term.HideCursor()
		defer term.ShowCursor()
		bar = progressbar.NewOptions(len(requests),
			progressbar.OptionSetDescription("tiling"),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("requests"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(ProgressbarStyle),
			progressbar.OptionSetWriter(os.Stdout),
			progressbar.OptionOnCompletion(func() { fmt.Println() }),
		)
	}

	outcomes := make([]outcome, len(requests))
	done := make([]bool, len(requests))
	err := pool.ForEach(ctx, len(requests), func(_ context.Context, ii int) error {
		outcomes[ii] = evaluate(requests[ii], maxCheckVolume)
		done[ii] = true
		if bar != nil {
			_ = bar.Add(1)
		}
		return nil
	})

	cov := newCoverage()
	for ii, o := range outcomes {
		if done[ii] {
			cov.Add(o)
		}
	}
	return cov, err
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			Padding(0, 2, 0, 2)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			Padding(0, 2, 0, 2)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

// writeCoverage prints one row per scenario seen.
func writeCoverage(w io.Writer, cov *coverage) error {
	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row == lgtable.HeaderRow {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = evenRowStyle
			} else {
				s = oddRowStyle
			}
			if col > 1 {
				return s.Align(lipgloss.Right)
			}
			return s.Align(lipgloss.Left)
		}).
		Headers("ID", "Scenario", "Requests", "Checked", "Failed", "Avg. cores", "Max UB")

	var total scenarioStats
	for _, s := range scenario.ScenarioValues() {
		stats, found := cov.ByScenario[s]
		if !found {
			table.Row(fmt.Sprintf("%d", int(s)), s.String(), "-", "-", "-", "-", "-")
			continue
		}
		total.Cases += stats.Cases
		total.Checked += stats.Checked
		total.Failed += stats.Failed
		table.Row(fmt.Sprintf("%d", int(s)), s.String(),
			humanize.Comma(int64(stats.Cases)),
			humanize.Comma(int64(stats.Checked)),
			humanize.Comma(int64(stats.Failed)),
			fmt.Sprintf("%.1f", float64(stats.Cores)/float64(stats.Cases)),
			humanize.IBytes(uint64(stats.MaxUBBytes)))
	}
	table.Row("", "Total", humanize.Comma(int64(total.Cases)), humanize.Comma(int64(total.Checked)),
		humanize.Comma(int64(total.Failed+cov.Errors)), "", "")

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Scenario coverage"))
	sb.WriteString("\n")
	sb.WriteString(table.Render())
	sb.WriteString("\n")
	if cov.Errors > 0 {
		sb.WriteString(fmt.Sprintf("%s requests failed to tile\n", humanize.Comma(int64(cov.Errors))))
	}
	_, err := io.WriteString(w, sb.String())
	return errors.Wrap(err, "writing coverage")
}
