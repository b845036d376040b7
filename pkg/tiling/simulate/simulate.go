// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package simulate interprets a serialized tiling block the way the kernel would, without moving
// any data: it records, for each destination offset, the source offset copied into it and the core
// that wrote it.
//
// It's the reference used to check that the plans cover every element exactly once, that the data
// lands where a naive transposition puts it, and that no two cores write the same destination block.
package simulate

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/gomlx/optiling/pkg/tiling/normalize"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
	"github.com/gomlx/optiling/pkg/tiling/serialize"
	"github.com/pkg/errors"
)

// ZeroFill is the SrcOf value of a destination element written with zero: the padding of a packed
// destination.
const ZeroFill = -2

// Trace of the copies described by a block.
type Trace struct {
	SrcVolume, DstVolume int

	// SrcOf[dst] is the source offset copied to the destination offset dst, ZeroFill, or -1 if never
	// written.
	SrcOf []int

	// Writes and Reads count the accesses to each destination and source offset.
	Writes, Reads []int

	// Writer[dst] is the core that last wrote the destination offset dst, or -1.
	Writer []int

	core int
}

func newTrace(srcVolume, dstVolume int) *Trace {
	if srcVolume <= 0 || dstVolume <= 0 {
		exceptions.Panicf("invalid volumes %d and %d", srcVolume, dstVolume)
	}
	t := &Trace{
		SrcVolume: srcVolume,
		DstVolume: dstVolume,
		SrcOf:     make([]int, dstVolume),
		Writes:    make([]int, dstVolume),
		Reads:     make([]int, srcVolume),
		Writer:    make([]int, dstVolume),
	}
	for ii := range t.SrcOf {
		t.SrcOf[ii] = -1
		t.Writer[ii] = -1
	}
	return t
}

// copy one element.
func (t *Trace) copy(dst, src int) {
	if dst < 0 || dst >= t.DstVolume || src < 0 || src >= t.SrcVolume {
		exceptions.Panicf("copy from source offset %d (of %d) to destination offset %d (of %d) out of the tensors",
			src, t.SrcVolume, dst, t.DstVolume)
	}
	t.write(dst, src)
	t.Reads[src]++
}

// zero writes a zero to one element.
func (t *Trace) zero(dst int) {
	if dst < 0 || dst >= t.DstVolume {
		exceptions.Panicf("zero fill of destination offset %d out of the volume %d", dst, t.DstVolume)
	}
	t.write(dst, ZeroFill)
}

func (t *Trace) write(dst, src int) {
	t.SrcOf[dst] = src
	t.Writes[dst]++
	t.Writer[dst] = t.core
}

// reader consumes the values of a fixed section or record.
type reader struct {
	what   string
	values []int64
	pos    int
}

func (r *reader) next() int {
	if r.pos >= len(r.values) {
		exceptions.Panicf("%s too short: %d values", r.what, len(r.values))
	}
	r.pos++
	return int(r.values[r.pos-1])
}

func (r *reader) take(n int) []int {
	if n < 0 || n > len(r.values)-r.pos {
		exceptions.Panicf("%s too short: reading %d values at position %d, of %d", r.what, n, r.pos, len(r.values))
	}
	out := make([]int, n)
	for ii := range out {
		out[ii] = r.next()
	}
	return out
}

// rest returns the values not read yet.
func (r *reader) rest() []int64 {
	values := r.values[r.pos:]
	r.pos = len(r.values)
	return values
}

// interpreter of one scenario: parses the fixed section and returns the source and destination
// volumes and a function to run the record of each core.
type interpreter func(b serialize.Block, fixed *reader) (srcVolume, dstVolume int, runCore func(t *Trace, rec *reader))

var interpreters = map[scenario.Scenario]interpreter{
	scenario.Identity:           identity,
	scenario.LargeLastAxis:      rows,
	scenario.SmallLastAxis:      rows,
	scenario.HugeLastAxis:       huge,
	scenario.TransposeCommon:    fallback,
	scenario.TransposeFatToThin: fallback,
	scenario.TransposeThinToFat: fallback,
	scenario.Borrow1:            borrow,
	scenario.Borrow2:            borrow,
	scenario.NColRow:            nColRow,
	scenario.LastTwoAlignedSwap: swap,
	scenario.VendorFastPath:     vendor,
	scenario.SmallShape:         smallShape,
}

// Run interprets the block and returns the trace of its copies.
func Run(b serialize.Block) (trace *Trace, err error) {
	if err = b.Validate(); err != nil {
		return nil, err
	}
	fn, found := interpreters[b.Scenario()]
	if !found {
		return nil, errors.Errorf("no interpreter for scenario %s", b.Scenario())
	}
	err = exceptions.TryCatch[error](func() {
		srcVolume, dstVolume, runCore := fn(b, &reader{what: b.Scenario().String() + " fixed section", values: b.Fixed()})
		trace = newTrace(srcVolume, dstVolume)
		for core := range b.UsedCores {
			trace.core = core
			runCore(trace, &reader{what: b.Scenario().String() + " core record", values: b.Record(core)})
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "simulating %s", b.Scenario())
	}
	return trace, nil
}

// Reference returns, for each destination offset of the transposition of srcDims by perm, the source
// offset it holds.
func Reference(srcDims, perm []int) []int {
	dstDims := xslices.Permute(srcDims, perm)
	gather := xslices.Permute(xslices.Strides(srcDims), perm)
	volume := xslices.Product(srcDims)
	ref := make([]int, volume)
	indices := make([]int, len(dstDims))
	for dst := range volume {
		src := 0
		for q, idx := range indices {
			src += idx * gather[q]
		}
		ref[dst] = src
		increment(indices, dstDims)
	}
	return ref
}

// Expected data movement of a block.
type Expected struct {
	// SrcOf[dst] is the source offset expected at the destination offset dst, or ZeroFill.
	SrcOf []int

	// SrcVolume is the number of source elements.
	SrcVolume int
}

// Transposition returns the expected movement of the transposition of srcDims by perm.
func Transposition(srcDims, perm []int) Expected {
	return Expected{SrcOf: Reference(srcDims, perm), SrcVolume: xslices.Product(srcDims)}
}

// Conversion returns the expected movement of a lowered layout conversion over the real tensors:
// the padding of a packed destination holds zeros, and the padding of a packed source is not read.
func Conversion(l normalize.Lowered) Expected {
	want := Expected{SrcOf: make([]int, l.DstVolume), SrcVolume: l.SrcVolume}
	for ii := range want.SrcOf {
		want.SrcOf[ii] = -1
	}
	gather := xslices.Permute(l.SrcStrides, l.Perm)
	indices := make([]int, len(l.DstShape))
	for range xslices.Product(l.DstShape) {
		switch {
		case !l.IsPadding(indices):
			want.SrcOf[dot(indices, l.DstStrides)] = dot(indices, gather)
		case l.Direction == normalize.ToPacked:
			want.SrcOf[dot(indices, l.DstStrides)] = ZeroFill
		}
		increment(indices, l.DstShape)
	}
	return want
}

// Check runs the block and verifies it against the expected movement: every destination element
// written exactly once with the right source element (or zero), and every source element read as
// many times as it's expected, that is once or, for the padding of a packed source, never.
//
// If blockElems > 0 it also verifies that no destination block of blockElems elements is written by
// more than one core: cores writing parts of the same block would race on it.
func Check(b serialize.Block, want Expected, blockElems int) error {
	trace, err := Run(b)
	if err != nil {
		return err
	}
	if trace.DstVolume != len(want.SrcOf) || trace.SrcVolume != want.SrcVolume {
		return errors.Errorf("%s block moves %d elements to %d, expected %d to %d", b.Scenario(),
			trace.SrcVolume, trace.DstVolume, want.SrcVolume, len(want.SrcOf))
	}
	expectedReads := make([]int, want.SrcVolume)
	for dst, src := range want.SrcOf {
		if trace.Writes[dst] != 1 {
			return errors.Errorf("%s block writes destination offset %d %d times", b.Scenario(), dst, trace.Writes[dst])
		}
		if trace.SrcOf[dst] != src {
			return errors.Errorf("%s block copies source offset %d to destination offset %d, expected source offset %d",
				b.Scenario(), trace.SrcOf[dst], dst, src)
		}
		if src >= 0 {
			expectedReads[src]++
		}
	}
	for src, reads := range trace.Reads {
		if reads != expectedReads[src] {
			return errors.Errorf("%s block reads source offset %d %d times, expected %d", b.Scenario(), src, reads, expectedReads[src])
		}
	}
	if blockElems > 0 {
		return checkBlocks(b, trace, blockElems)
	}
	return nil
}

// checkBlocks verifies every destination block is written by one core.
func checkBlocks(b serialize.Block, trace *Trace, blockElems int) error {
	for start := 0; start < trace.DstVolume; start += blockElems {
		end := min(start+blockElems, trace.DstVolume)
		writer := -1
		for dst := start; dst < end; dst++ {
			core := trace.Writer[dst]
			if core < 0 {
				continue
			}
			if writer >= 0 && core != writer {
				return errors.Errorf("%s block has cores %d and %d writing the destination block [%d, %d)",
					b.Scenario(), writer, core, start, end)
			}
			writer = core
		}
	}
	return nil
}

// increment the mixed radix number indices over dims, the last axis being the fastest. It wraps around
// to zero.
func increment(indices, dims []int) {
	for axis := len(indices) - 1; axis >= 0; axis-- {
		indices[axis]++
		if indices[axis] < dims[axis] {
			return
		}
		indices[axis] = 0
	}
}

// dot returns Σ indices[ii]*strides[ii].
func dot(indices, strides []int) int {
	sum := 0
	for ii, idx := range indices {
		sum += idx * strides[ii]
	}
	return sum
}

// checkInit verifies the init indices of a record are the unraveled start position.
func checkInit(what string, start int, dims, indices []int) {
	expected := make([]int, len(dims))
	xslices.Unravel(start, dims, expected)
	if !slices.Equal(expected, indices) {
		exceptions.Panicf("%s: init indices %v for start %d, expected %v", what, indices, start, expected)
	}
}

// checkLoops verifies loops*perLoop + tail == count.
func checkLoops(what string, count, perLoop, loops, tail int) {
	if loops*perLoop+tail != count || tail < 0 || (perLoop > 0 && tail >= perLoop) {
		exceptions.Panicf("%s: %d loops of %d plus tail %d don't make %d", what, loops, perLoop, tail, count)
	}
}
