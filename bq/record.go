// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bq

import (
	"encoding/binary"
	"unsafe"

	"github.com/grailbio/seq/nucleotide"
)

// RecordView is a zero-copy view of one BQ record, borrowing directly from
// the reader's memory map. It satisfies seqrecord.View.
type RecordView struct {
	index uint64
	hdr   Header
	raw   []byte // exactly hdr.RecordSize() bytes: flag, packed primary, packed extended
}

// asUint64LE reinterprets b (whose length must be a multiple of 8) as a
// slice of little-endian 64-bit words, without copying. This relies on the
// deployment host being little-endian, true of every platform this package
// targets (amd64, arm64); record views are defined to borrow from the
// backing map rather than copy (see spec's lifecycle invariants).
func asUint64LE(b []byte) []uint64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8)
}

func (r RecordView) Index() uint64 { return r.index }

func (r RecordView) Flag() uint64 { return binary.LittleEndian.Uint64(r.raw[0:8]) }

func (r RecordView) Slen() uint64 { return uint64(r.hdr.Slen) }
func (r RecordView) Xlen() uint64 { return uint64(r.hdr.Xlen) }

func (r RecordView) PackedPrimary() []uint64 {
	n := wordsFor(int(r.hdr.Slen))
	return asUint64LE(r.raw[8 : 8+8*n])
}

func (r RecordView) PackedExtended() []uint64 {
	n := wordsFor(int(r.hdr.Slen))
	x := wordsFor(int(r.hdr.Xlen))
	start := 8 + 8*n
	return asUint64LE(r.raw[start : start+8*x])
}

// PrimaryQuality and ExtendedQuality are always empty: BQ carries no quality
// bytes.
func (r RecordView) PrimaryQuality() []byte  { return nil }
func (r RecordView) ExtendedQuality() []byte { return nil }

func (r RecordView) DecodePrimary(dst []byte) []byte {
	return nucleotide.Decode(dst, r.PackedPrimary(), int(r.hdr.Slen))
}

func (r RecordView) DecodeExtended(dst []byte) []byte {
	if r.hdr.Xlen == 0 {
		return dst
	}
	return nucleotide.Decode(dst, r.PackedExtended(), int(r.hdr.Xlen))
}

func (r RecordView) IsPaired() bool { return r.hdr.Xlen > 0 }

func (r RecordView) HasQuality() bool { return false }
