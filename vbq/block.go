// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vbq

// Block holds one materialized block's records in columnar form: each field
// below is indexed by the record's position within the block. Primary and
// extended packed words (and quality bytes, when present) are flattened
// into single slices with per-record offsets, so a block can be reused
// across reads without per-record allocation.
type Block struct {
	// StartIndex is the global record index of record 0 in this block.
	StartIndex uint64

	flags []uint64
	slens []uint64
	xlens []uint64

	primaryWords    []uint64
	primaryOffsets  []int // len(records)+1; words for record i are primaryWords[primaryOffsets[i]:primaryOffsets[i+1]]
	extendedWords   []uint64
	extendedOffsets []int

	primaryQuality    []byte
	primaryQualOffset []int
	extendedQuality   []byte
	extendedQualOffset []int
}

// Reset clears b for reuse, retaining its backing arrays' capacity.
func (b *Block) Reset() {
	b.StartIndex = 0
	b.flags = b.flags[:0]
	b.slens = b.slens[:0]
	b.xlens = b.xlens[:0]
	b.primaryWords = b.primaryWords[:0]
	b.primaryOffsets = append(b.primaryOffsets[:0], 0)
	b.extendedWords = b.extendedWords[:0]
	b.extendedOffsets = append(b.extendedOffsets[:0], 0)
	b.primaryQuality = b.primaryQuality[:0]
	b.primaryQualOffset = append(b.primaryQualOffset[:0], 0)
	b.extendedQuality = b.extendedQuality[:0]
	b.extendedQualOffset = append(b.extendedQualOffset[:0], 0)
}

// NumRecords returns the number of records currently materialized in b.
func (b *Block) NumRecords() int { return len(b.flags) }

// pushRecord appends one record's fields to the block's columnar buffers.
func (b *Block) pushRecord(flag, slen, xlen uint64, primary []uint64, primaryQual []byte, extended []uint64, extendedQual []byte) {
	b.flags = append(b.flags, flag)
	b.slens = append(b.slens, slen)
	b.xlens = append(b.xlens, xlen)

	b.primaryWords = append(b.primaryWords, primary...)
	b.primaryOffsets = append(b.primaryOffsets, len(b.primaryWords))

	b.extendedWords = append(b.extendedWords, extended...)
	b.extendedOffsets = append(b.extendedOffsets, len(b.extendedWords))

	b.primaryQuality = append(b.primaryQuality, primaryQual...)
	b.primaryQualOffset = append(b.primaryQualOffset, len(b.primaryQuality))

	b.extendedQuality = append(b.extendedQuality, extendedQual...)
	b.extendedQualOffset = append(b.extendedQualOffset, len(b.extendedQuality))
}

// RecordView returns a zero-copy view over record i (0-based within the
// block).
func (b *Block) RecordView(i int) RecordView {
	return RecordView{block: b, local: i}
}
