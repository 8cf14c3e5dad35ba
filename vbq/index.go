// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vbq

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/grailbio/seq/compress/zstd"
	"github.com/grailbio/seq/errors"
)

// IndexHeaderSize is the size, in bytes, of the `.vqi` sidecar's header.
const IndexHeaderSize = 32

// IndexMagic is the `.vqi` sidecar magic: the little-endian encoding of the
// 8-byte ASCII string "VBQINDEX".
const IndexMagic uint64 = 0x5845444E49514256

// IndexEntrySize is the size, in bytes, of one serialized IndexEntry.
const IndexEntrySize = 32

// IndexEntry describes one block's location and record range.
type IndexEntry struct {
	// StartOffset is the absolute file byte position of the block header.
	StartOffset uint64
	// Length is the on-disk block length (header's Size field).
	Length uint64
	// RecordCount is the number of records in this block.
	RecordCount uint32
	// Cumulative is the number of records in all prior blocks.
	Cumulative uint32
}

func (e IndexEntry) encode(dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:8], e.StartOffset)
	binary.LittleEndian.PutUint64(dst[8:16], e.Length)
	binary.LittleEndian.PutUint32(dst[16:20], e.RecordCount)
	binary.LittleEndian.PutUint32(dst[20:24], e.Cumulative)
}

func decodeIndexEntry(src []byte) IndexEntry {
	return IndexEntry{
		StartOffset: binary.LittleEndian.Uint64(src[0:8]),
		Length:      binary.LittleEndian.Uint64(src[8:16]),
		RecordCount: binary.LittleEndian.Uint32(src[16:20]),
		Cumulative:  binary.LittleEndian.Uint32(src[20:24]),
	}
}

// BlockIndex maps record ranges onto block file offsets, enabling O(log N)
// record-to-block lookup and the block-granular partitioning used by
// ProcessParallelRange.
type BlockIndex struct {
	// FileSize is the indexed VBQ file's byte size at the time the index was
	// built; used to detect staleness.
	FileSize uint64
	Entries  []IndexEntry
}

// CheckFresh reports a ByteSizeMismatch error if idx was built against a
// file whose size differs from currentSize (invariant #2: the index's
// recorded file size must match the file it describes).
func (idx *BlockIndex) CheckFresh(currentSize uint64) error {
	if idx.FileSize != currentSize {
		return newIndexSizeMismatchError(fmt.Sprintf(
			"vbq: index file size %d does not match current file size %d", idx.FileSize, currentSize))
	}
	return nil
}

// TotalRecords returns the total record count across all indexed blocks.
func (idx *BlockIndex) TotalRecords() uint64 {
	if len(idx.Entries) == 0 {
		return 0
	}
	last := idx.Entries[len(idx.Entries)-1]
	return uint64(last.Cumulative) + uint64(last.RecordCount)
}

// BlocksIntersecting returns the indices, in order, of every block whose
// half-open record range [Cumulative, Cumulative+RecordCount) intersects
// [lo, hi). Entries are sorted by Cumulative by construction, so this is a
// binary search rather than a linear scan.
func (idx *BlockIndex) BlocksIntersecting(lo, hi uint64) []int {
	if lo >= hi || len(idx.Entries) == 0 {
		return nil
	}
	entries := idx.Entries
	// first block whose range could contain lo: the last block with
	// Cumulative <= lo.
	start := sort.Search(len(entries), func(i int) bool {
		return uint64(entries[i].Cumulative) > lo
	})
	if start > 0 {
		start--
	}
	var out []int
	for i := start; i < len(entries); i++ {
		blockLo := uint64(entries[i].Cumulative)
		blockHi := blockLo + uint64(entries[i].RecordCount)
		if blockLo >= hi {
			break
		}
		if blockHi > lo {
			out = append(out, i)
		}
	}
	return out
}

// BuildIndex scans a VBQ file once, reading only block headers (never
// decompressing payloads), and returns the resulting index.
func BuildIndex(path string) (*BlockIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("vbq: opening %s for indexing", path), err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, errors.E(err, fmt.Sprintf("vbq: stat %s", path))
	}
	size := uint64(fi.Size())
	if size < HeaderSize {
		return nil, newFileTruncationError("vbq: file smaller than header")
	}

	var hdrBuf [HeaderSize]byte
	if _, err := io.ReadFull(f, hdrBuf[:]); err != nil {
		return nil, errors.E(err, "vbq: reading file header")
	}
	if _, err := DecodeHeader(hdrBuf[:]); err != nil {
		return nil, err
	}

	var entries []IndexEntry
	offset := uint64(HeaderSize)
	cumulative := uint32(0)
	var bhBuf [BlockHeaderSize]byte
	for offset < size {
		if offset+BlockHeaderSize > size {
			return nil, newFileTruncationError("vbq: trailing bytes too short for a block header")
		}
		if _, err := io.ReadFull(f, bhBuf[:]); err != nil {
			return nil, errors.E(err, "vbq: reading block header")
		}
		bh, err := DecodeBlockHeader(bhBuf[:])
		if err != nil {
			return nil, err
		}
		if offset+BlockHeaderSize+bh.Size > size {
			return nil, newFileTruncationError("vbq: block payload extends past end of file")
		}
		entries = append(entries, IndexEntry{
			StartOffset: offset,
			Length:      bh.Size,
			RecordCount: bh.RecordCount,
			Cumulative:  cumulative,
		})
		cumulative += bh.RecordCount
		offset += BlockHeaderSize + bh.Size
		if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
			return nil, errors.E(err, "vbq: seeking past block payload")
		}
	}
	return &BlockIndex{FileSize: size, Entries: entries}, nil
}

// Save serializes idx to path as a `.vqi` sidecar: a 32-byte header followed
// by a zstd-compressed stream of concatenated 32-byte entries.
func (idx *BlockIndex) Save(path string) error {
	raw := make([]byte, len(idx.Entries)*IndexEntrySize)
	for i, e := range idx.Entries {
		e.encode(raw[i*IndexEntrySize : (i+1)*IndexEntrySize])
	}
	compressed, err := zstd.Compress(nil, raw)
	if err != nil {
		return errors.E(err, "vbq: compressing index entries")
	}

	hdr := make([]byte, IndexHeaderSize)
	binary.LittleEndian.PutUint64(hdr[0:8], IndexMagic)
	binary.LittleEndian.PutUint64(hdr[8:16], idx.FileSize)

	f, err := os.Create(path)
	if err != nil {
		return errors.E(err, fmt.Sprintf("vbq: creating %s", path))
	}
	defer f.Close()
	if _, err := f.Write(hdr); err != nil {
		return errors.E(err, "vbq: writing index header")
	}
	if _, err := f.Write(compressed); err != nil {
		return errors.E(err, "vbq: writing index entries")
	}
	return nil
}

// LoadIndex reads and validates a `.vqi` sidecar at path.
func LoadIndex(path string) (*BlockIndex, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("vbq: opening index %s", path), err)
	}
	if len(raw) < IndexHeaderSize {
		return nil, newFileTruncationError("vbq: index file smaller than header")
	}
	if binary.LittleEndian.Uint64(raw[0:8]) != IndexMagic {
		return nil, newIndexBadMagicError("vbq: bad index magic")
	}
	fileSize := binary.LittleEndian.Uint64(raw[8:16])

	decompressed, err := zstd.Decompress(nil, raw[IndexHeaderSize:])
	if err != nil {
		return nil, errors.E(err, "vbq: decompressing index entries")
	}
	if len(decompressed)%IndexEntrySize != 0 {
		return nil, newFileTruncationError("vbq: index entry stream is not a multiple of 32 bytes")
	}
	n := len(decompressed) / IndexEntrySize
	entries := make([]IndexEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = decodeIndexEntry(decompressed[i*IndexEntrySize : (i+1)*IndexEntrySize])
	}
	return &BlockIndex{FileSize: fileSize, Entries: entries}, nil
}
