// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package serialize flattens a tiling plan into the parameter block read by the kernel.
//
// The block is a sequence of int64 values:
//
//	{scenario, fixedLen, recordLen, subScenario, fixed[fixedLen]..., record_0[recordLen]..., record_1..., ...}
//
// zero padded to a multiple of 4 values (one 32 bytes block). There is one record per used core; the
// number of used cores is returned alongside the block, so the caller launches exactly that many.
package serialize

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
	"github.com/pkg/errors"
)

const (
	// HeaderLen is the number of int64 values of the header.
	HeaderLen = 4

	// Alignment of the block length, in int64 values: 4 values make one 32 bytes block.
	Alignment = 4

	// ValueBytes is the size of each serialized value.
	ValueBytes = 8
)

// Plan is what the serializer needs from a tiling plan.
type Plan interface {
	Scenario() scenario.Scenario
	SubScenario() int
	UsedCores() int
	Fixed() []int64
	Record(core int) []int64
}

// Block is a serialized tiling plan.
type Block struct {
	// Data is the flat block of parameters, including the header and the padding.
	Data []int64

	// UsedCores is the number of per-core records.
	UsedCores int
}

// Encode serializes the plan. The optional trailer is appended to the fixed section.
//
// It panics if the records of the plan don't all have the same length, a bug in the calculator.
func Encode(plan Plan, trailer []int64) Block {
	fixed := plan.Fixed()
	used := plan.UsedCores()
	recordLen := 0
	if used > 0 {
		recordLen = len(plan.Record(0))
	}
	fixedLen := len(fixed) + len(trailer)
	size := HeaderLen + fixedLen + used*recordLen
	data := make([]int64, 0, alignUp(size))
	data = append(data, int64(plan.Scenario()), int64(fixedLen), int64(recordLen), int64(plan.SubScenario()))
	data = append(data, fixed...)
	data = append(data, trailer...)
	for core := range used {
		rec := plan.Record(core)
		if len(rec) != recordLen {
			exceptions.Panicf("serialize: scenario %s core %d has a record of length %d, core 0 has %d",
				plan.Scenario(), core, len(rec), recordLen)
		}
		data = append(data, rec...)
	}
	data = data[:alignUp(size)] // New values were zeroed by make.
	return Block{Data: data, UsedCores: used}
}

func alignUp(n int) int {
	return (n + Alignment - 1) / Alignment * Alignment
}

// Header returns the {scenario, fixedLen, recordLen, subScenario} header.
func (b Block) Header() []int64 { return b.Data[:HeaderLen] }

// Scenario of the block.
func (b Block) Scenario() scenario.Scenario { return scenario.Scenario(b.Data[0]) }

// FixedLen is the length of the fixed section.
func (b Block) FixedLen() int { return int(b.Data[1]) }

// RecordLen is the length of each per-core record.
func (b Block) RecordLen() int { return int(b.Data[2]) }

// SubScenario of the block.
func (b Block) SubScenario() int { return int(b.Data[3]) }

// Fixed returns the fixed section.
func (b Block) Fixed() []int64 {
	return b.Data[HeaderLen : HeaderLen+b.FixedLen()]
}

// Record returns the record of the given core.
func (b Block) Record(core int) []int64 {
	if core < 0 || core >= b.UsedCores {
		exceptions.Panicf("serialize: core %d out of range, block has %d records", core, b.UsedCores)
	}
	start := HeaderLen + b.FixedLen() + core*b.RecordLen()
	return b.Data[start : start+b.RecordLen()]
}

// Validate checks the header against the block length and the padding.
func (b Block) Validate() error {
	if len(b.Data) < HeaderLen || len(b.Data)%Alignment != 0 {
		return errors.Errorf("invalid block length %d: must be >= %d and a multiple of %d", len(b.Data), HeaderLen, Alignment)
	}
	if !b.Scenario().IsAScenario() {
		return errors.Errorf("invalid scenario id %d", b.Data[0])
	}
	if b.FixedLen() < 0 || b.RecordLen() < 0 || b.UsedCores <= 0 {
		return errors.Errorf("invalid block header %v with %d used cores", b.Data[:HeaderLen], b.UsedCores)
	}
	size := HeaderLen + b.FixedLen() + b.UsedCores*b.RecordLen()
	if alignUp(size) != len(b.Data) {
		return errors.Errorf("block of length %d doesn't match its header %v with %d used cores (expected length %d)",
			len(b.Data), b.Data[:HeaderLen], b.UsedCores, alignUp(size))
	}
	for ii := size; ii < len(b.Data); ii++ {
		if b.Data[ii] != 0 {
			return errors.Errorf("non-zero padding value %d at position %d", b.Data[ii], ii)
		}
	}
	return nil
}

// Bytes returns the block encoded as little-endian int64 values.
func (b Block) Bytes() []byte {
	buf := make([]byte, len(b.Data)*ValueBytes)
	for ii, v := range b.Data {
		binary.LittleEndian.PutUint64(buf[ii*ValueBytes:], uint64(v))
	}
	return buf
}

// Decode the little-endian encoded block, and validates it.
func Decode(buf []byte, usedCores int) (Block, error) {
	if len(buf)%ValueBytes != 0 {
		return Block{}, errors.Errorf("invalid encoded block of %d bytes, not a multiple of %d", len(buf), ValueBytes)
	}
	b := Block{Data: make([]int64, len(buf)/ValueBytes), UsedCores: usedCores}
	for ii := range b.Data {
		b.Data[ii] = int64(binary.LittleEndian.Uint64(buf[ii*ValueBytes:]))
	}
	if err := b.Validate(); err != nil {
		return Block{}, err
	}
	return b, nil
}

// String implements fmt.Stringer, with one line for the header and fixed section, and one per core.
func (b Block) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "%s(sub=%d) fixed=%v", b.Scenario(), b.SubScenario(), b.Fixed())
	for core := range b.UsedCores {
		_, _ = fmt.Fprintf(&sb, "\n  core %d: %v", core, b.Record(core))
	}
	return sb.String()
}
