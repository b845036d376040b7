// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package scenario enumerates the execution scenarios of the transpose kernel.
//
// The numeric value of each Scenario is the id written in the first entry of a serialized tiling
// block, and must not change.
package scenario

// Scenario of execution selected by the classifier: each one is implemented by a different code path
// of the hardware kernel, and has its own tiling parameters layout.
type Scenario int

//go:generate go tool enumer -type=Scenario -output=gen_scenario_enumer.go scenario.go

const (
	// Identity is a straight copy, only split across cores.
	Identity Scenario = 0

	// LargeLastAxis: last axis not transposed, each row is copied with one wide burst.
	LargeLastAxis Scenario = 1

	// SmallLastAxis: last axis not transposed and narrow, rows are gathered and reassembled in the UB.
	SmallLastAxis Scenario = 2

	// HugeLastAxis: last axis not transposed and larger than the UB budget, rows are copied in chunks.
	HugeLastAxis Scenario = 3

	// TransposeCommon is the generic fallback for a transposed last axis. Always feasible.
	TransposeCommon Scenario = 4

	// TransposeFatToThin: fallback for a transposed last axis, with a wide source last axis and a
	// narrow destination last axis.
	TransposeFatToThin Scenario = 5

	// TransposeThinToFat is the symmetric of TransposeFatToThin.
	TransposeThinToFat Scenario = 6

	// Borrow1 borrows trailing axes into the UB with at most one borrowed axis on each side.
	Borrow1 Scenario = 7

	// Borrow2 borrows trailing axes into the UB with two borrowed axes on at least one side.
	Borrow2 Scenario = 8

	// NColRow splits a [N, Col, Row] -> [N, Row, Col] transposition in 3 levels.
	NColRow Scenario = 9

	// LastTwoAlignedSwap is the 2D block transposition of the last two axes, both block aligned.
	LastTwoAlignedSwap Scenario = 10

	// VendorFastPath is selected by the vendor core count marker, and skips all analysis.
	VendorFastPath Scenario = 11

	// SmallShape handles total volumes too small to be worth splitting by rows.
	SmallShape Scenario = 12
)

// IsTransposeFallback returns whether s is one of the guaranteed feasible fallbacks for a
// transposed last axis.
func (i Scenario) IsTransposeFallback() bool {
	return i == TransposeCommon || i == TransposeFatToThin || i == TransposeThinToFat
}
