// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vbq

import "github.com/grailbio/seq/nucleotide"

// RecordView is a zero-copy view of one VBQ record, borrowing directly from
// its block's columnar buffers. It satisfies seqrecord.View.
type RecordView struct {
	block *Block
	local int
}

func (r RecordView) Index() uint64 { return r.block.StartIndex + uint64(r.local) }

func (r RecordView) Flag() uint64 { return r.block.flags[r.local] }
func (r RecordView) Slen() uint64 { return r.block.slens[r.local] }
func (r RecordView) Xlen() uint64 { return r.block.xlens[r.local] }

func (r RecordView) PackedPrimary() []uint64 {
	b := r.block
	return b.primaryWords[b.primaryOffsets[r.local]:b.primaryOffsets[r.local+1]]
}

func (r RecordView) PackedExtended() []uint64 {
	b := r.block
	return b.extendedWords[b.extendedOffsets[r.local]:b.extendedOffsets[r.local+1]]
}

func (r RecordView) PrimaryQuality() []byte {
	b := r.block
	return b.primaryQuality[b.primaryQualOffset[r.local]:b.primaryQualOffset[r.local+1]]
}

func (r RecordView) ExtendedQuality() []byte {
	b := r.block
	return b.extendedQuality[b.extendedQualOffset[r.local]:b.extendedQualOffset[r.local+1]]
}

func (r RecordView) DecodePrimary(dst []byte) []byte {
	return nucleotide.Decode(dst, r.PackedPrimary(), int(r.Slen()))
}

func (r RecordView) DecodeExtended(dst []byte) []byte {
	if r.Xlen() == 0 {
		return dst
	}
	return nucleotide.Decode(dst, r.PackedExtended(), int(r.Xlen()))
}

func (r RecordView) IsPaired() bool { return r.Xlen() > 0 }

func (r RecordView) HasQuality() bool { return len(r.PrimaryQuality()) > 0 }
