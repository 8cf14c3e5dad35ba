// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vbq

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"github.com/edsrzf/mmap-go"

	"github.com/grailbio/seq/compress/zstd"
	"github.com/grailbio/seq/errors"
	"github.com/grailbio/seq/log"
	"github.com/grailbio/seq/parallel"
)

// Reader is a memory-mapped, random-access VBQ file reader. The memory map
// exists for the reader's lifetime; readBlockAt copies each record of a block
// out of the map (or out of the decompressed payload) into the destination
// Block's own buffers.
type Reader struct {
	path string
	f    *os.File
	m    mmap.MMap
	hdr  Header
	size uint64

	cursor     uint64
	cumulative uint64
	scratch    []byte

	index *BlockIndex
}

// Open opens, memory-maps, and validates the VBQ file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("vbq: opening %s", path), err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.E(err, fmt.Sprintf("vbq: stat %s", path))
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, errors.E(errors.Invalid, fmt.Sprintf("vbq: %s is not a regular file", path))
	}
	size := uint64(fi.Size())
	if size < HeaderSize {
		f.Close()
		return nil, newFileTruncationError("vbq: file smaller than header")
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errors.E(err, fmt.Sprintf("vbq: mmap %s", path))
	}
	hdr, err := DecodeHeader(m[:HeaderSize])
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, err
	}
	return &Reader{path: path, f: f, m: m, hdr: hdr, size: size, cursor: HeaderSize}, nil
}

// Close releases the memory map and the underlying file descriptor.
func (r *Reader) Close() error {
	if err := r.m.Unmap(); err != nil {
		return err
	}
	return r.f.Close()
}

// Header returns the file's parsed header.
func (r *Reader) Header() Header { return r.hdr }

// IsPaired reports whether the file declares paired-record support.
func (r *Reader) IsPaired() bool { return r.hdr.Paired }

func asUint64LE(b []byte) []uint64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8)
}

// readBlockAt materializes the block whose header begins at startOffset
// into blk, tagging its records with global indices starting at cumulative.
// scratch is reused as the decompression destination buffer across calls
// and returned (possibly reallocated) for the next call. readBlockAt does
// not mutate any Reader field, so distinct goroutines may call it
// concurrently with distinct blk/scratch values over the shared map.
func (r *Reader) readBlockAt(startOffset, cumulative uint64, blk *Block, scratch []byte) (nextOffset uint64, recordCount uint32, _ []byte, err error) {
	if startOffset+BlockHeaderSize > r.size {
		return 0, 0, scratch, newFileTruncationError("vbq: block header extends past end of file")
	}
	bh, err := DecodeBlockHeader(r.m[startOffset : startOffset+BlockHeaderSize])
	if err != nil {
		return 0, 0, scratch, err
	}
	payloadStart := startOffset + BlockHeaderSize
	if payloadStart+bh.Size > r.size {
		return 0, 0, scratch, newFileTruncationError("vbq: block payload extends past end of file")
	}
	raw := r.m[payloadStart : payloadStart+bh.Size]

	var payload []byte
	if r.hdr.Compressed {
		payload, err = zstd.Decompress(scratch, raw)
		if err != nil {
			return 0, 0, scratch, errors.E(err, "vbq: decompressing block")
		}
		scratch = payload
	} else {
		payload = raw
	}

	blk.Reset()
	blk.StartIndex = cumulative
	offset := 0
	for offset+24 <= len(payload) {
		flag := binary.LittleEndian.Uint64(payload[offset : offset+8])
		slen := binary.LittleEndian.Uint64(payload[offset+8 : offset+16])
		xlen := binary.LittleEndian.Uint64(payload[offset+16 : offset+24])
		if slen == 0 {
			break // end-of-block padding sentinel
		}
		offset += 24

		pwords := wordsFor(int(slen))
		primary := asUint64LE(payload[offset : offset+8*pwords])
		offset += 8 * pwords

		var primaryQual []byte
		if r.hdr.Qual {
			primaryQual = payload[offset : offset+int(slen)]
			offset += int(slen)
		}

		var extended []uint64
		if xlen > 0 {
			xwords := wordsFor(int(xlen))
			extended = asUint64LE(payload[offset : offset+8*xwords])
			offset += 8 * xwords
		}

		var extendedQual []byte
		if r.hdr.Qual && xlen > 0 {
			extendedQual = payload[offset : offset+int(xlen)]
			offset += int(xlen)
		}

		blk.pushRecord(flag, slen, xlen, primary, primaryQual, extended, extendedQual)
	}
	return payloadStart + bh.Size, bh.RecordCount, scratch, nil
}

// NextBlock sequentially reads the next block into blk, returning false
// once every block has been consumed. Not safe for concurrent use; each
// Reader maintains one sequential cursor.
func (r *Reader) NextBlock(blk *Block) (bool, error) {
	if r.cursor+BlockHeaderSize > r.size {
		return false, nil
	}
	next, count, scratch, err := r.readBlockAt(r.cursor, r.cumulative, blk, r.scratch)
	if err != nil {
		return false, err
	}
	r.scratch = scratch
	r.cursor = next
	r.cumulative += uint64(count)
	return true, nil
}

// Index returns the file's block index, loading it from the `<path>.vqi`
// sidecar if present and current, or building and persisting it otherwise.
func (r *Reader) Index() (*BlockIndex, error) {
	if r.index != nil {
		return r.index, nil
	}
	sidecar := r.path + ".vqi"
	if idx, err := LoadIndex(sidecar); err == nil {
		if err := idx.CheckFresh(r.size); err == nil {
			r.index = idx
			return idx, nil
		} else if IsIndexByteSizeMismatch(err) {
			log.Info.Printf("vbq: %v, rebuilding %s", err, sidecar)
		}
	} else {
		log.Debug.Printf("vbq: no usable index at %s (%v), building", sidecar, err)
	}
	idx, err := BuildIndex(r.path)
	if err != nil {
		return nil, err
	}
	if err := idx.Save(sidecar); err != nil {
		log.Info.Printf("vbq: failed to persist index %s: %v", sidecar, err)
	}
	r.index = idx
	return idx, nil
}

// NumRecords returns the total number of records in the file, loading or
// building the block index if necessary.
func (r *Reader) NumRecords() (uint64, error) {
	idx, err := r.Index()
	if err != nil {
		return 0, err
	}
	return idx.TotalRecords(), nil
}

// ProcessParallel distributes every record across threads worker
// goroutines, invoking p.ProcessRecord for each.
func (r *Reader) ProcessParallel(p parallel.Processor, threads int) error {
	n, err := r.NumRecords()
	if err != nil {
		return err
	}
	return r.ProcessParallelRange(p, threads, 0, n)
}

// ProcessParallelRange distributes records [lo, hi) across threads worker
// goroutines, partitioning by whole blocks: the blocks intersecting [lo,
// hi) are split ⌈selected/threads⌉ per worker, each block is materialized
// into a thread-local Block, and process_record fires only for records
// whose global index lies within [lo, hi). on_batch_complete fires once per
// block.
func (r *Reader) ProcessParallelRange(p parallel.Processor, threads int, lo, hi uint64) error {
	idx, err := r.Index()
	if err != nil {
		return err
	}
	total := idx.TotalRecords()
	if hi > total {
		hi = total
	}
	if lo > hi {
		lo = hi
	}
	selected := idx.BlocksIntersecting(lo, hi)
	if len(selected) == 0 {
		return nil
	}
	return parallel.Run(threads, func(worker int) error {
		proc := p.Clone()
		proc.SetThreadID(worker)
		start, end := parallel.BlockRange(len(selected), threads, worker)

		var blk Block
		var scratch []byte
		for _, blockIdx := range selected[start:end] {
			entry := idx.Entries[blockIdx]
			_, _, newScratch, err := r.readBlockAt(entry.StartOffset, uint64(entry.Cumulative), &blk, scratch)
			if err != nil {
				return err
			}
			scratch = newScratch
			for i := 0; i < blk.NumRecords(); i++ {
				rec := blk.RecordView(i)
				if rec.Index() < lo || rec.Index() >= hi {
					continue
				}
				if err := proc.ProcessRecord(rec); err != nil {
					return err
				}
			}
			if err := proc.OnBatchComplete(); err != nil {
				return err
			}
		}
		return nil
	})
}
