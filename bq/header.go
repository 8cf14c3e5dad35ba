// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bq implements the BQ fixed-length-record binary sequence
// container: a 32-byte header declaring the (constant) primary and extended
// sequence lengths, followed by one fixed-size record per read.
package bq

import (
	"encoding/binary"

	"github.com/grailbio/seq/errors"
)

// HeaderSize is the size, in bytes, of the BQ file header.
const HeaderSize = 32

// Magic is the authoritative BQ file magic, the little-endian encoding of
// the ASCII string "BSEQ". A second, byte-swapped value
// (0x42534551) appears in some legacy tooling; it is not accepted here.
//
// See SPEC_FULL.md / DESIGN.md for the compatibility note this resolves.
const Magic uint32 = 0x51455342

// FormatVersion is the only BQ format version this package writes or
// accepts.
const FormatVersion uint8 = 1

// Bits2 and Bits4 are the recognized bits-per-nucleotide values. Only Bits2
// is implemented by this package; Bits4 is reserved (see spec non-goals).
// LegacyBitsZero and LegacyBitsFortyTwo are historical encodings of "2-bit"
// that readers must still accept.
const (
	Bits2              uint8 = 2
	Bits4              uint8 = 4
	LegacyBitsZero     uint8 = 0
	LegacyBitsFortyTwo uint8 = 42
)

// Header is the parsed, immutable BQ file header.
type Header struct {
	Slen uint32
	Xlen uint32
	Bits uint8
}

// IsPaired reports whether every record in the file carries a non-empty
// extended sequence.
func (h Header) IsPaired() bool { return h.Xlen > 0 }

// RecordSize returns the fixed byte size of one record under this header:
// an 8-byte flag, the packed primary sequence, and the packed extended
// sequence.
func (h Header) RecordSize() int {
	return 8 * (wordsFor(int(h.Slen)) + wordsFor(int(h.Xlen)) + 1)
}

func wordsFor(n int) int { return (n + 31) / 32 }

// normalizeBits maps the legacy 2-bit encodings onto Bits2.
func normalizeBits(b uint8) uint8 {
	if b == LegacyBitsZero || b == LegacyBitsFortyTwo {
		return Bits2
	}
	return b
}

// Encode writes h as a 32-byte BQ file header.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	buf[4] = FormatVersion
	binary.LittleEndian.PutUint32(buf[5:9], h.Slen)
	binary.LittleEndian.PutUint32(buf[9:13], h.Xlen)
	buf[13] = Bits2
	return buf
}

// DecodeHeader parses and validates a 32-byte BQ file header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, errors.E(errors.Invalid, "bq: header shorter than 32 bytes")
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return Header{}, errors.E(errors.Invalid, "bq: bad magic")
	}
	version := buf[4]
	if version != FormatVersion {
		return Header{}, errors.E(errors.Invalid, "bq: unsupported format version")
	}
	bits := normalizeBits(buf[13])
	if bits != Bits2 {
		return Header{}, errors.E(errors.Invalid, "bq: unsupported bit width")
	}
	return Header{
		Slen: binary.LittleEndian.Uint32(buf[5:9]),
		Xlen: binary.LittleEndian.Uint32(buf[9:13]),
		Bits: bits,
	}, nil
}
