// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simulate

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/optiling/pkg/support/xslices"
	"github.com/gomlx/optiling/pkg/tiling/normalize"
	"github.com/gomlx/optiling/pkg/tiling/scenario"
	"github.com/gomlx/optiling/pkg/tiling/serialize"
	"github.com/pkg/errors"
)

func identity(_ serialize.Block, fixed *reader) (int, int, func(*Trace, *reader)) {
	volume, perLoop := fixed.next(), fixed.next()
	return volume, volume, func(t *Trace, rec *reader) {
		start, count, loops, tail := rec.next(), rec.next(), rec.next(), rec.next()
		checkLoops("identity", count, perLoop, loops, tail)
		for ii := range count {
			t.copy(start+ii, start+ii)
		}
	}
}

func rows(_ serialize.Block, fixed *reader) (int, int, func(*Trace, *reader)) {
	rowLen, rowsPerLoop, outerRank := fixed.next(), fixed.next(), fixed.next()
	dims, strides := fixed.take(outerRank), fixed.take(outerRank)
	if rowsPerLoop <= 0 {
		exceptions.Panicf("rows: invalid rowsPerLoop %d", rowsPerLoop)
	}
	volume := rowLen * xslices.Product(dims)
	return volume, volume, func(t *Trace, rec *reader) {
		rowStart, rowCount, loops, tail := rec.next(), rec.next(), rec.next(), rec.next()
		indices := rec.take(outerRank)
		checkLoops("rows", rowCount, rowsPerLoop, loops, tail)
		checkInit("rows", rowStart, dims, indices)
		for row := rowStart; row < rowStart+rowCount; row++ {
			src := dot(indices, strides)
			for k := range rowLen {
				t.copy(row*rowLen+k, src+k)
			}
			increment(indices, dims)
		}
	}
}

func huge(_ serialize.Block, fixed *reader) (int, int, func(*Trace, *reader)) {
	rowLen, chunk, numChunks, tailChunk, outerRank := fixed.next(), fixed.next(), fixed.next(), fixed.next(), fixed.next()
	dims, strides := fixed.take(outerRank), fixed.take(outerRank)
	if (numChunks-1)*chunk+tailChunk != rowLen || tailChunk <= 0 || tailChunk > chunk {
		exceptions.Panicf("huge: %d chunks of %d with tail %d don't make a row of %d", numChunks, chunk, tailChunk, rowLen)
	}
	volume := rowLen * xslices.Product(dims)
	return volume, volume, func(t *Trace, rec *reader) {
		unitStart, unitCount := rec.next(), rec.next()
		indices := rec.take(outerRank)
		c := rec.next()
		row := unitStart / numChunks
		checkInit("huge", row, dims, indices)
		if c != unitStart%numChunks {
			exceptions.Panicf("huge: init chunk %d for unit %d, expected %d", c, unitStart, unitStart%numChunks)
		}
		for range unitCount {
			size := chunk
			if c == numChunks-1 {
				size = tailChunk
			}
			src := dot(indices, strides) + c*chunk
			dst := row*rowLen + c*chunk
			for k := range size {
				t.copy(dst+k, src+k)
			}
			c++
			if c == numChunks {
				c = 0
				row++
				increment(indices, dims)
			}
		}
	}
}

// fallback units are row chunks, taken row by row, or chunk by chunk when scattering source rows.
// A trailing conversion with pads masks the padding of the destination rows.
func fallback(b serialize.Block, fixed *reader) (int, int, func(*Trace, *reader)) {
	rowLen, rowChunk, numChunks, tailChunk := fixed.next(), fixed.next(), fixed.next(), fixed.next()
	stride, unitsPerLoop, outerRank := fixed.next(), fixed.next(), fixed.next()
	dims, rowStrides, otherStrides := fixed.take(outerRank), fixed.take(outerRank), fixed.take(outerRank)
	if (numChunks-1)*rowChunk+tailChunk != rowLen || tailChunk <= 0 || tailChunk > rowChunk {
		exceptions.Panicf("fallback: %d chunks of %d with tail %d don't make a row of %d", numChunks, rowChunk, tailChunk, rowLen)
	}
	srcRows := b.Scenario() == scenario.TransposeFatToThin
	rows := xslices.Product(dims)
	srcVolume, dstVolume := rows*rowLen, rows*rowLen
	var conv *normalize.Lowered
	if trailer := fixed.rest(); len(trailer) > 0 {
		l, _, err := normalize.ParseTrailer(trailer)
		if err != nil {
			panic(errors.WithMessage(err, "fallback"))
		}
		if l.Padded() {
			if srcRows || len(l.DstShape) != outerRank+1 {
				exceptions.Panicf("fallback: padded conversion %v doesn't match rows of rank %d", l.DstShape, outerRank+1)
			}
			conv = &l
			srcVolume, dstVolume = l.SrcVolume, l.DstVolume
		}
	}
	indices := make([]int, outerRank+1)
	return srcVolume, dstVolume, func(t *Trace, rec *reader) {
		unitStart, unitCount, loops, tail := rec.next(), rec.next(), rec.next(), rec.next()
		checkLoops("fallback", unitCount, unitsPerLoop, loops, tail)
		for unit := unitStart; unit < unitStart+unitCount; unit++ {
			row, c := unit/numChunks, unit%numChunks
			if srcRows {
				c, row = unit/rows, unit%rows
			}
			size := rowChunk
			if c == numChunks-1 {
				size = tailChunk
			}
			xslices.Unravel(row, dims, indices[:outerRank])
			base, other := dot(indices[:outerRank], rowStrides), dot(indices[:outerRank], otherStrides)
			for k := c * rowChunk; k < c*rowChunk+size; k++ {
				indices[outerRank] = k
				switch {
				case srcRows:
					t.copy(other+k*stride, base+k)
				case conv != nil && conv.IsPadding(indices):
					if conv.Direction == normalize.ToPacked {
						t.zero(base + k)
					}
				default:
					t.copy(base+k, other+k*stride)
				}
			}
		}
	}
}

func borrow(_ serialize.Block, fixed *reader) (int, int, func(*Trace, *reader)) {
	rank := fixed.next()
	dims, perm := fixed.take(rank), fixed.take(rank)
	srcStrides := xslices.Strides(dims)
	scatter := xslices.Permute(xslices.Strides(xslices.Permute(dims, perm)), xslices.Inverse(perm))

	type borrowed struct{ axis, step, loops, tail int }
	numBorrowed := fixed.next()
	tile := make([]borrowed, numBorrowed)
	for ii := range tile {
		tile[ii] = borrowed{fixed.next(), fixed.next(), fixed.next(), fixed.next()}
		if tile[ii].axis < 0 || tile[ii].axis >= rank ||
			(tile[ii].loops-1)*tile[ii].step+tile[ii].tail != dims[tile[ii].axis] {
			exceptions.Panicf("borrow: invalid borrowed axis %+v for dims %v", tile[ii], dims)
		}
	}
	numLoops := fixed.next()
	counts := make([]int, numLoops)
	loopOfAxis := make(map[int]int, numLoops)
	srcLoopStrides, dstLoopStrides := make([]int, numLoops), make([]int, numLoops)
	for ii := range numLoops {
		axis := fixed.next()
		counts[ii] = fixed.next()
		_ = fixed.next() // step, implied by the strides.
		srcLoopStrides[ii], dstLoopStrides[ii] = fixed.next(), fixed.next()
		loopOfAxis[axis] = ii
	}
	_, _ = fixed.next(), fixed.next() // UB offsets.

	extents := make([]int, numBorrowed)
	tileIdx := make([]int, numBorrowed)
	volume := xslices.Product(dims)
	return volume, volume, func(t *Trace, rec *reader) {
		iterStart, iterCount := rec.next(), rec.next()
		loopIdx := rec.take(numLoops)
		checkInit("borrow", iterStart, counts, loopIdx)
		for range iterCount {
			srcBase, dstBase := dot(loopIdx, srcLoopStrides), dot(loopIdx, dstLoopStrides)
			for ii, b := range tile {
				extents[ii] = b.step
				if slot, found := loopOfAxis[b.axis]; found && loopIdx[slot] == counts[slot]-1 {
					extents[ii] = b.tail
				} else if b.loops == 1 {
					extents[ii] = b.tail
				}
				tileIdx[ii] = 0
			}
			for range xslices.Product(extents) {
				src, dst := srcBase, dstBase
				for ii, b := range tile {
					src += tileIdx[ii] * srcStrides[b.axis]
					dst += tileIdx[ii] * scatter[b.axis]
				}
				t.copy(dst, src)
				increment(tileIdx, extents)
			}
			increment(loopIdx, counts)
		}
	}
}

func nColRow(b serialize.Block, fixed *reader) (int, int, func(*Trace, *reader)) {
	n, col, row := fixed.next(), fixed.next(), fixed.next()
	tileCol, tileRow, colTiles, rowTiles := fixed.next(), fixed.next(), fixed.next(), fixed.next()
	tailCol, tailRow := fixed.next(), fixed.next()
	nF, colF, rowF := fixed.next(), fixed.next(), fixed.next()
	if nF*colF*rowF != b.UsedCores {
		exceptions.Panicf("nColRow: factors %dx%dx%d don't match %d used cores", nF, colF, rowF, b.UsedCores)
	}
	if (colTiles-1)*tileCol+tailCol != col || (rowTiles-1)*tileRow+tailRow != row {
		exceptions.Panicf("nColRow: tiles don't match col=%d and row=%d", col, row)
	}
	return n * col * row, n * col * row, func(t *Trace, rec *reader) {
		nStart, nCount := rec.next(), rec.next()
		ctStart, ctCount := rec.next(), rec.next()
		rtStart, rtCount := rec.next(), rec.next()
		for ni := nStart; ni < nStart+nCount; ni++ {
			for ct := ctStart; ct < ctStart+ctCount; ct++ {
				cl := tileCol
				if ct == colTiles-1 {
					cl = tailCol
				}
				for rt := rtStart; rt < rtStart+rtCount; rt++ {
					rl := tileRow
					if rt == rowTiles-1 {
						rl = tailRow
					}
					for c := ct * tileCol; c < ct*tileCol+cl; c++ {
						for r := rt * tileRow; r < rt*tileRow+rl; r++ {
							t.copy(ni*row*col+r*col+c, ni*col*row+c*row+r)
						}
					}
				}
			}
		}
	}
}

func swap(_ serialize.Block, fixed *reader) (int, int, func(*Trace, *reader)) {
	m, k, tileM, tileK := fixed.next(), fixed.next(), fixed.next(), fixed.next()
	mTiles, kTiles, tailM, tailK := fixed.next(), fixed.next(), fixed.next(), fixed.next()
	batchRank := fixed.next()
	batchDims, batchStrides := fixed.take(batchRank), fixed.take(batchRank)
	if (mTiles-1)*tileM+tailM != m || (kTiles-1)*tileK+tailK != k {
		exceptions.Panicf("swap: tiles don't match M=%d and K=%d", m, k)
	}
	batchIdx := make([]int, batchRank)
	volume := xslices.Product(batchDims) * m * k
	return volume, volume, func(t *Trace, rec *reader) {
		unitStart, unitCount := rec.next(), rec.next()
		for unit := unitStart; unit < unitStart+unitCount; unit++ {
			batch := unit / (mTiles * kTiles)
			mt, kt := (unit/kTiles)%mTiles, unit%kTiles
			xslices.Unravel(batch, batchDims, batchIdx)
			srcBase := dot(batchIdx, batchStrides)
			ml, kl := tileM, tileK
			if mt == mTiles-1 {
				ml = tailM
			}
			if kt == kTiles-1 {
				kl = tailK
			}
			for mi := mt * tileM; mi < mt*tileM+ml; mi++ {
				for ki := kt * tileK; ki < kt*tileK+kl; ki++ {
					t.copy(batch*m*k+ki*m+mi, srcBase+mi*k+ki)
				}
			}
		}
	}
}

func vendor(_ serialize.Block, fixed *reader) (int, int, func(*Trace, *reader)) {
	rank, volume := fixed.next(), fixed.next()
	dims, perm := fixed.take(rank), fixed.take(rank)
	dstDims := xslices.Permute(dims, perm)
	gather := xslices.Permute(xslices.Strides(dims), perm)
	indices := make([]int, rank)
	return volume, volume, func(t *Trace, rec *reader) {
		start, count := rec.next(), rec.next()
		xslices.Unravel(start, dstDims, indices)
		for dst := start; dst < start+count; dst++ {
			t.copy(dst, dot(indices, gather))
			increment(indices, dstDims)
		}
	}
}

func smallShape(_ serialize.Block, fixed *reader) (int, int, func(*Trace, *reader)) {
	volume, perLoop, rank := fixed.next(), fixed.next(), fixed.next()
	dims, strides := fixed.take(rank), fixed.take(rank)
	if xslices.Product(dims) != volume || dims[rank-1] != 1 {
		exceptions.Panicf("smallShape: dims %v don't match volume %d with a trailing unit axis", dims, volume)
	}
	return volume, volume, func(t *Trace, rec *reader) {
		start, count, loops, tail := rec.next(), rec.next(), rec.next(), rec.next()
		indices := rec.take(rank)
		checkLoops("smallShape", count, perLoop, loops, tail)
		checkInit("smallShape", start, dims, indices)
		for dst := start; dst < start+count; dst++ {
			t.copy(dst, dot(indices, strides))
			increment(indices, dims)
		}
	}
}
