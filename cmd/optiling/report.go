// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/optiling/pkg/tiling"
	"github.com/gomlx/optiling/pkg/tiling/hw"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// report of one tiling, as printed.
type report struct {
	Op          string    `json:"op" yaml:"op"`
	Hardware    string    `json:"hardware" yaml:"hardware"`
	Scenario    string    `json:"scenario" yaml:"scenario"`
	ScenarioID  int       `json:"scenario_id" yaml:"scenario_id"`
	SubScenario int       `json:"sub_scenario" yaml:"sub_scenario"`
	UsedCores   int       `json:"used_cores" yaml:"used_cores"`
	Reduced     string    `json:"reduced" yaml:"reduced"`
	Lowered     string    `json:"lowered,omitempty" yaml:"lowered,omitempty"`
	UBBytes     int       `json:"ub_bytes" yaml:"ub_bytes"`
	BlockBytes  int       `json:"block_bytes" yaml:"block_bytes"`
	Checked     bool      `json:"checked" yaml:"checked"`
	Header      []int64   `json:"header" yaml:"header,flow"`
	Fixed       []int64   `json:"fixed" yaml:"fixed,flow"`
	Records     [][]int64 `json:"records" yaml:"records,flow"`

	block []byte
}

func newReport(opName string, c hw.Constants, res *tiling.Result) report {
	r := report{
		Op:          opName,
		Hardware:    c.String(),
		Scenario:    res.Scenario.String(),
		ScenarioID:  int(res.Scenario),
		SubScenario: res.SubScenario,
		UsedCores:   res.UsedCores,
		Reduced:     res.Reduced.String(),
		UBBytes:     res.Plan.UBUsage() * c.ElemSize(),
		Header:      res.Block.Header(),
		Fixed:       res.Block.Fixed(),
		block:       res.Block.Bytes(),
	}
	if res.Lowered != nil {
		r.Lowered = res.Lowered.String()
	}
	r.BlockBytes = len(r.block)
	for core := range res.UsedCores {
		r.Records = append(r.Records, res.Block.Record(core))
	}
	return r
}

// writeReport in the given format: table, yaml, json or hex.
func writeReport(w io.Writer, format string, r report) error {
	var err error
	switch strings.ToLower(format) {
	case "table":
		_, err = fmt.Fprintln(w, renderTables(r))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(r); err == nil {
			err = enc.Close()
		}
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(r)
	case "hex":
		_, err = fmt.Fprintln(w, hex.EncodeToString(r.block))
	default:
		return errors.Errorf("unknown output format %q, valid formats are table, yaml, json or hex", format)
	}
	return errors.Wrapf(err, "writing %s report", format)
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == lgtable.HeaderRow {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				return s.Align(lipgloss.Right)
			}
			return s.Align(lipgloss.Left)
		})
}

// maxRecordsShown in the table output: the records of the remaining cores are summarized.
const maxRecordsShown = 64

func renderTables(r report) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Tiling"))
	sb.WriteString("\n")
	summary := newPlainTable(false)
	summary.Row("op", r.Op)
	summary.Row("hardware", r.Hardware)
	if r.Lowered != "" {
		summary.Row("lowered", r.Lowered)
	}
	summary.Row("reduced", r.Reduced)
	summary.Row("scenario", fmt.Sprintf("%s (%d), sub-scenario %d", r.Scenario, r.ScenarioID, r.SubScenario))
	summary.Row("used cores", humanize.Comma(int64(r.UsedCores)))
	summary.Row("UB usage", humanize.IBytes(uint64(r.UBBytes)))
	summary.Row("block", fmt.Sprintf("%s values, %s", humanize.Comma(int64(r.BlockBytes/8)), humanize.IBytes(uint64(r.BlockBytes))))
	if r.Checked {
		summary.Row("check", "passed")
	}
	sb.WriteString(summary.Render())
	sb.WriteString("\n")

	sb.WriteString(titleStyle.Render("Fixed section"))
	sb.WriteString("\n")
	fixed := newPlainTable(false)
	fixed.Row("header", fmt.Sprint(r.Header))
	fixed.Row("fixed", fmt.Sprint(r.Fixed))
	sb.WriteString(fixed.Render())
	sb.WriteString("\n")

	sb.WriteString(titleStyle.Render("Per-core records"))
	sb.WriteString("\n")
	records := newPlainTable(true).Headers("Core", "Record")
	for core, rec := range r.Records {
		if core == maxRecordsShown {
			records.Row("...", fmt.Sprintf("%d more cores", len(r.Records)-maxRecordsShown))
			break
		}
		records.Row(fmt.Sprint(core), fmt.Sprint(rec))
	}
	sb.WriteString(records.Render())
	return sb.String()
}
