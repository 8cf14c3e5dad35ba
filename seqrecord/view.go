// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package seqrecord defines the capability interface satisfied by both BQ
// and VBQ record views, plus a reusable per-thread decode scratch buffer.
package seqrecord

// View is the read-only capability set exposed uniformly by a BQ or a VBQ
// record, regardless of the underlying container format. All of its byte
// slices borrow from the reader's backing storage (a memory map for BQ, or a
// block's columnar decode buffers for VBQ) and are only valid until the next
// operation that might move or reuse that storage.
type View interface {
	// Index returns the record's global ordinal, counted from the start of
	// the file.
	Index() uint64

	// Flag returns the record's opaque per-record 64-bit flag.
	Flag() uint64

	// Slen and Xlen return the primary and extended sequence lengths, in
	// bases. Xlen is 0 for an unpaired record.
	Slen() uint64
	Xlen() uint64

	// PackedPrimary and PackedExtended return the raw packed 2-bit words for
	// the primary and extended sequences. PackedExtended is empty when
	// Xlen() == 0.
	PackedPrimary() []uint64
	PackedExtended() []uint64

	// PrimaryQuality and ExtendedQuality return the per-base quality bytes,
	// or an empty slice if the container does not carry qualities.
	PrimaryQuality() []byte
	ExtendedQuality() []byte

	// DecodePrimary and DecodeExtended append the ASCII decoding of the
	// primary/extended sequence to dst, returning the extended slice.
	DecodePrimary(dst []byte) []byte
	DecodeExtended(dst []byte) []byte

	// IsPaired reports whether the record carries an extended sequence.
	IsPaired() bool

	// HasQuality reports whether the record carries primary quality bytes.
	HasQuality() bool
}

// DecodeContext is a reusable, per-thread scratch area for materializing a
// View's fields into owned buffers. Processors should keep one DecodeContext
// per worker and call Fill once per record, instead of allocating fresh
// buffers on every call.
type DecodeContext struct {
	Primary         []byte
	Extended        []byte
	PrimaryQuality  []byte
	ExtendedQuality []byte
	Header          []byte
}

// Fill decodes rec into c's buffers, reusing their backing arrays across
// calls.
func (c *DecodeContext) Fill(rec View) {
	c.Primary = rec.DecodePrimary(c.Primary[:0])
	c.PrimaryQuality = append(c.PrimaryQuality[:0], rec.PrimaryQuality()...)
	if rec.IsPaired() {
		c.Extended = rec.DecodeExtended(c.Extended[:0])
		c.ExtendedQuality = append(c.ExtendedQuality[:0], rec.ExtendedQuality()...)
	} else {
		c.Extended = c.Extended[:0]
		c.ExtendedQuality = c.ExtendedQuality[:0]
	}
}
