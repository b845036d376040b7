// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

/*
Package transpose classifies a reduced transposition into one of the kernel scenarios, and computes
the tiling plan of that scenario.

Use Classify to only get the Decision, or Tile to get the Plan, ready to be serialized.

# Conventions

The reduced problem has source dimensions src[0..r-1] and permutation perm, the destination being
dst[q] = src[perm[q]]. Strides are in elements, row-major. be is the number of elements per 32
bytes block. Per-core records list the cores in order, and every record of a plan has the same
length. Mixed radix "init indices" are the indices of the core's first unit over the given
dimensions, the last one being the fastest moving.

Work splits across cores fall on destination block boundaries: no two cores write the same 32
bytes block of the destination. See balance.SplitAlign.

# Fixed sections and per-core records

Identity (0):

	fixed:  {volume, perLoop}
	record: {start, count, loops, tail}

LargeLastAxis (1) and SmallLastAxis (2), with rows of rowLen elements:

	fixed:  {rowLen, rowsPerLoop, outerRank, outerDstDims..., outerSrcStrides...}
	record: {rowStart, rowCount, loops, tailRows, initIndices[outerRank]...}

HugeLastAxis (3), rows copied in numChunks chunks, units are (row, chunk):

	fixed:  {rowLen, chunk, numChunks, tailChunk, outerRank, outerDstDims..., outerSrcStrides...}
	record: {unitStart, unitCount, initIndices[outerRank]..., initChunk}

TransposeCommon (4), TransposeFatToThin (5) and TransposeThinToFat (6), the sub-scenario being the
FallbackReason. Rows are destination rows gathered with stride from the source, except for
TransposeFatToThin where rows are source rows scattered into the destination. rowStrides are the
strides of the outer axes on the rows side, outerStrides on the other side. Units are (row, chunk),
chunk-major for TransposeFatToThin and row-major otherwise:

	fixed:  {rowLen, rowChunk, numChunks, tailChunk, stride, unitsPerLoop, outerRank,
	         outerDims..., rowStrides..., outerStrides...}
	record: {unitStart, unitCount, loops, tailUnits}

Layout conversions with padding (sub-scenario PaddedConversion) use the same sections with the real
strides of both tensors, followed by a trailer describing the padding:

	trailer: {direction, rank, srcDims..., perm..., numPads, (axis, span, real, padded)...}

Destination positions that fall in the padding are zero-filled when the destination is packed, and
skipped when the source is packed.

Borrow1 (7) and Borrow2 (8), the sub-scenario being srcBorrowed*100 + dstBorrowed*10 + dup. Each
side borrows axes until its run reaches 1/64 of the UB (1/1024 if the last axis is transposed):

	fixed:  {rank, srcDims..., perm..., numBorrowed, (axis, step, loops, tail)...,
	         numLoops, (axis, count, step, srcStride, dstStride)..., ubSrcOffset, ubDstOffset}
	record: {iterStart, iterCount, initIndices[numLoops]...}

NColRow (9), source [N, Col, Row], the sub-scenario being the priority of the selected sub-model.
Cores are numbered (nIdx*colF + colIdx)*rowF + rowIdx:

	fixed:  {N, col, row, tileCol, tileRow, colTiles, rowTiles, tailCol, tailRow, nF, colF, rowF}
	record: {nStart, nCount, colTileStart, colTileCount, rowTileStart, rowTileCount}

LastTwoAlignedSwap (10), source [batch..., M, K], units are (batch, mTile, kTile):

	fixed:  {M, K, tileM, tileK, mTiles, kTiles, tailM, tailK, batchRank, batchDstDims..., batchSrcStrides...}
	record: {unitStart, unitCount}

VendorFastPath (11):

	fixed:  {rank, volume, srcDims..., perm...}
	record: {dstStart, count}

SmallShape (12), the destination with a trailing unit axis appended:

	fixed:  {volume, perLoop, rank+1, dstDims..., 1, srcStrides..., 1}
	record: {dstStart, count, loops, tail, initIndices[rank+1]...}
*/
package transpose
