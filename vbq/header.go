// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package vbq implements the VBQ variable-length, block-structured binary
// sequence container: a 32-byte file header, followed by a sequence of
// fixed-virtual-size blocks (optionally compressed on disk), each packing
// as many variable-length records as fit, plus a side index file mapping
// block ordinal to file offset for O(log N) record-to-block lookup.
package vbq

import (
	"encoding/binary"

	"github.com/grailbio/seq/errors"
)

// HeaderSize is the size, in bytes, of the VBQ file header.
const HeaderSize = 32

// Magic is the VBQ file magic: the little-endian encoding of "VSEQ".
const Magic uint32 = 0x51455356

// FormatVersion is the only VBQ format version this package writes or
// accepts.
const FormatVersion uint8 = 1

// DefaultBlockSize is the virtual block size used when none is specified.
const DefaultBlockSize uint64 = 131072

// Header is the parsed, immutable VBQ file header.
type Header struct {
	BlockSize  uint64
	Qual       bool
	Compressed bool
	Paired     bool
}

// Encode writes h as a 32-byte VBQ file header.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	buf[4] = FormatVersion
	binary.LittleEndian.PutUint64(buf[5:13], h.BlockSize)
	buf[13] = boolByte(h.Qual)
	buf[14] = boolByte(h.Compressed)
	buf[15] = boolByte(h.Paired)
	return buf
}

// DecodeHeader parses and validates a 32-byte VBQ file header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, errors.E(errors.Invalid, "vbq: header shorter than 32 bytes")
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != Magic {
		return Header{}, errors.E(errors.Invalid, "vbq: bad file magic")
	}
	if buf[4] != FormatVersion {
		return Header{}, errors.E(errors.Invalid, "vbq: unsupported format version")
	}
	blockSize := binary.LittleEndian.Uint64(buf[5:13])
	if blockSize == 0 {
		return Header{}, errors.E(errors.Invalid, "vbq: zero block size")
	}
	return Header{
		BlockSize:  blockSize,
		Qual:       buf[13] != 0,
		Compressed: buf[14] != 0,
		Paired:     buf[15] != 0,
	}, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// BlockHeaderSize is the size, in bytes, of the header preceding every
// block.
const BlockHeaderSize = 32

// BlockMagic is the block header magic: the little-endian encoding of the
// 8-byte ASCII string "BLOCKSEQ".
const BlockMagic uint64 = 0x5145534B434F4C42

// BlockHeader precedes every block's payload.
type BlockHeader struct {
	// Size is the on-disk payload size: equal to the file header's
	// BlockSize when the file is uncompressed, or the compressed byte count
	// otherwise.
	Size uint64
	// RecordCount is the number of records packed into this block.
	RecordCount uint32
}

func (b BlockHeader) Encode() []byte {
	buf := make([]byte, BlockHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], BlockMagic)
	binary.LittleEndian.PutUint64(buf[8:16], b.Size)
	binary.LittleEndian.PutUint32(buf[16:20], b.RecordCount)
	return buf
}

func DecodeBlockHeader(buf []byte) (BlockHeader, error) {
	if len(buf) < BlockHeaderSize {
		return BlockHeader{}, errors.E(errors.Invalid, "vbq: block header shorter than 32 bytes")
	}
	if binary.LittleEndian.Uint64(buf[0:8]) != BlockMagic {
		return BlockHeader{}, newReadErrorKind("vbq: bad block magic")
	}
	return BlockHeader{
		Size:        binary.LittleEndian.Uint64(buf[8:16]),
		RecordCount: binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

func wordsFor(n int) int { return (n + 31) / 32 }
