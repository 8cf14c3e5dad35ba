// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package nucleotide implements 2-bit packing of ACGT sequences into
// 64-bit little-endian words, plus the invalid-symbol handling policies
// applied by writers before packing.
package nucleotide

import (
	"github.com/grailbio/seq/errors"
)

// Base is one of the four canonical nucleotide symbols.
type Base = byte

const (
	A Base = 'A'
	C Base = 'C'
	G Base = 'G'
	T Base = 'T'
)

// bases2bit maps an ASCII byte to its 2-bit code. A value of 0xff marks the
// byte as not a canonical base (including 'N' and anything else).
var bases2bit [256]uint8

// bits2base is the inverse of bases2bit for the four valid codes.
var bits2base = [4]byte{A, C, G, T}

func init() {
	for i := range bases2bit {
		bases2bit[i] = 0xff
	}
	bases2bit[A] = 0
	bases2bit[C] = 1
	bases2bit[G] = 2
	bases2bit[T] = 3
}

// IsValid reports whether b is one of A, C, G, T.
func IsValid(b byte) bool {
	return bases2bit[b] != 0xff
}

// Words returns the number of 64-bit words needed to pack length nucleotides,
// ceil(length/32).
func Words(length int) int {
	return (length + 31) / 32
}

// InvalidSymbolError is returned by Encode (and by the BreakOnInvalid
// policy) when a sequence contains a byte that is not A, C, G, or T. Offsets
// records every offending index, and Bytes the original sequence, so callers
// can produce a useful diagnostic.
type InvalidSymbolError struct {
	Bytes   []byte
	Offsets []int
}

func (e *InvalidSymbolError) Error() string {
	return "nucleotide: invalid symbol in sequence"
}

// firstInvalid scans seq and returns the offsets of every byte that is not
// A, C, G, or T. It returns nil if seq is entirely valid.
func firstInvalid(seq []byte) []int {
	var offsets []int
	for i, b := range seq {
		if bases2bit[b] == 0xff {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// Encode packs seq, which must contain only A, C, G, T bytes, into
// ceil(len(seq)/32) little-endian 64-bit words. Nucleotide i occupies bits
// [2i, 2i+2) of word i/32; words are consumed low-index first, and any
// residual bits in the final word are zero. dst, if it has enough capacity,
// is reused to avoid allocation; otherwise a new slice is allocated.
//
// Encode returns an *InvalidSymbolError if seq contains any non-ACGT byte;
// callers that need policy-based recovery should run seq through a Policy
// first (see policy.go).
func Encode(dst []uint64, seq []byte) ([]uint64, error) {
	if offs := firstInvalid(seq); offs != nil {
		return nil, &InvalidSymbolError{Bytes: append([]byte(nil), seq...), Offsets: offs}
	}
	n := Words(len(seq))
	if cap(dst) >= n {
		dst = dst[:n]
	} else {
		dst = make([]uint64, n)
	}
	for i := range dst {
		dst[i] = 0
	}
	for i, b := range seq {
		dst[i/32] |= uint64(bases2bit[b]) << uint((i%32)*2)
	}
	return dst, nil
}

// Decode unpacks length nucleotides from words (as produced by Encode) and
// appends their ASCII representation to dst, returning the extended slice.
func Decode(dst []byte, words []uint64, length int) []byte {
	for i := 0; i < length; i++ {
		w := words[i/32]
		code := (w >> uint((i%32)*2)) & 0x3
		dst = append(dst, bits2base[code])
	}
	return dst
}

// invalidSymbolKind adapts an *InvalidSymbolError into the package's error
// taxonomy.
func invalidSymbolKind(err error) error {
	return errors.E(errors.Invalid, "nucleotide: invalid nucleotide sequence", err)
}
