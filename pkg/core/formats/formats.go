// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package formats defines the tensor memory layouts ("formats") handled by the layout conversion
// tiling, and the position of each logical axis role (N, C, D, H, W, C1, C0) within them.
package formats

import (
	"github.com/pkg/errors"
)

// Format of a tensor in memory.
//
// The names match the ones used in compile-info and graph attributes, e.g. "NC1HWC0", "FRACTAL_Z".
type Format int

//go:generate go tool enumer -type=Format -linecomment -output=gen_format_enumer.go formats.go

const (
	// ND is a plain row-major tensor of arbitrary rank.
	ND Format = iota // ND
	NCHW             // NCHW
	NHWC             // NHWC
	NCDHW            // NCDHW
	NDHWC            // NDHWC
	HWCN             // HWCN
	DHWCN            // DHWCN

	// NC1HWC0 ("5HD") splits the channels into C1=ceil(C/C0) groups of C0 channels, C0 innermost.
	NC1HWC0 // NC1HWC0

	// NDC1HWC0 is the 3D (with depth) version of NC1HWC0.
	NDC1HWC0 // NDC1HWC0

	// FractalZ is the weights layout [C1*H*W, N1, N0, C0], with N padded to a multiple of N0=16.
	FractalZ // FRACTAL_Z

	// FractalZ3D is the 3D weights layout [D*C1*H*W, N1, N0, C0].
	FractalZ3D // FRACTAL_Z_3D

	// FractalNZ is the matrix layout [batch..., W1, H1, H0, C0] of an ND tensor [batch..., H, W].
	FractalNZ // FRACTAL_NZ

	CHWN // CHWN
)

// Role of an axis in a format.
type Role int

const (
	RoleN Role = iota
	RoleC
	RoleD
	RoleH
	RoleW
	RoleC1
	RoleC0
)

var roleNames = [...]string{"N", "C", "D", "H", "W", "C1", "C0"}

// String implements fmt.Stringer.
func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "Role(?)"
	}
	return roleNames[r]
}

// NotFound is returned by AxisIndex when a format has no axis with the requested role.
const NotFound = -1

// layouts lists the roles of each axis of the formats with a fixed rank and one role per axis.
// Fractal formats merge several roles per axis and are not listed (only their C0 axis is
// addressable by role).
var layouts = map[Format][]Role{
	NCHW:     {RoleN, RoleC, RoleH, RoleW},
	NHWC:     {RoleN, RoleH, RoleW, RoleC},
	HWCN:     {RoleH, RoleW, RoleC, RoleN},
	CHWN:     {RoleC, RoleH, RoleW, RoleN},
	NCDHW:    {RoleN, RoleC, RoleD, RoleH, RoleW},
	NDHWC:    {RoleN, RoleD, RoleH, RoleW, RoleC},
	DHWCN:    {RoleD, RoleH, RoleW, RoleC, RoleN},
	NC1HWC0:  {RoleN, RoleC1, RoleH, RoleW, RoleC0},
	NDC1HWC0: {RoleN, RoleD, RoleC1, RoleH, RoleW, RoleC0},
}

// AxisIndex returns the 0-based position of the axis with the given role in format, or
// NotFound if the format has no such axis (e.g. ND has no C axis).
func AxisIndex(format Format, role Role) int {
	switch format {
	case FractalZ, FractalZ3D, FractalNZ:
		if role == RoleC0 {
			return 3
		}
		return NotFound
	}
	for ii, r := range layouts[format] {
		if r == role {
			return ii
		}
	}
	return NotFound
}

// Roles returns the role of each axis of format, or nil for formats that don't have one role per
// axis (ND and the fractal formats).
func Roles(format Format) []Role {
	roles := layouts[format]
	if roles == nil {
		return nil
	}
	return append([]Role(nil), roles...)
}

// ExpectedRank returns the rank of tensors in the given format, or 0 if the format accepts any rank (ND).
// FractalNZ returns the minimum rank, 4.
func ExpectedRank(format Format) int {
	switch format {
	case ND:
		return 0
	case FractalZ, FractalZ3D, FractalNZ:
		return 4
	}
	return len(layouts[format])
}

// CheckRank returns an error if rank is not valid for format.
func CheckRank(format Format, rank int) error {
	want := ExpectedRank(format)
	switch {
	case format == FractalNZ && rank < want:
		return errors.Errorf("format %s requires rank >= %d, got rank %d", format, want, rank)
	case format != FractalNZ && want > 0 && rank != want:
		return errors.Errorf("format %s requires rank %d, got rank %d", format, want, rank)
	case rank <= 0:
		return errors.Errorf("format %s requires rank > 0, got rank %d", format, rank)
	}
	return nil
}

// IsPacked returns whether the format stores channels (or columns) packed by C0 in the innermost axis.
func (i Format) IsPacked() bool {
	switch i {
	case NC1HWC0, NDC1HWC0, FractalZ, FractalZ3D, FractalNZ:
		return true
	}
	return false
}

// Parse a format name (case-insensitive), e.g. "NC1HWC0" or "fractal_z".
func Parse(name string) (Format, error) {
	f, err := FormatString(name)
	if err != nil {
		return ND, errors.Wrapf(err, "unknown format %q", name)
	}
	return f, nil
}
