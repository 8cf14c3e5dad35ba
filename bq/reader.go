// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bq

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/grailbio/seq/errors"
	"github.com/grailbio/seq/parallel"
)

// Reader is a memory-mapped, random-access BQ file reader. The memory map
// exists for the reader's lifetime; every RecordView it returns borrows
// from that map without copying.
type Reader struct {
	f    *os.File
	m    mmap.MMap
	hdr  Header
	size int
	n    uint64
}

// Open opens, memory-maps, and validates the BQ file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("bq: opening %s", path), err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.E(err, fmt.Sprintf("bq: stat %s", path))
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, errors.E(errors.Invalid, fmt.Sprintf("bq: %s is not a regular file", path))
	}
	size := int(fi.Size())
	if size < HeaderSize {
		f.Close()
		return nil, newTruncationError("bq: file smaller than header")
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errors.E(err, fmt.Sprintf("bq: mmap %s", path))
	}
	hdr, err := DecodeHeader(m[:HeaderSize])
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, err
	}
	recSize := hdr.RecordSize()
	if recSize == 0 || (size-HeaderSize)%recSize != 0 {
		m.Unmap()
		f.Close()
		return nil, newTruncationError("bq: file size is not header + N*record_size")
	}
	n := uint64((size - HeaderSize) / recSize)
	return &Reader{f: f, m: m, hdr: hdr, size: size, n: n}, nil
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

// NumRecords returns the number of records in the file, computed in
// constant time from the file size and header.
func (r *Reader) NumRecords() uint64 { return r.n }

// IsPaired reports whether every record carries a non-empty extended
// sequence.
func (r *Reader) IsPaired() bool { return r.hdr.IsPaired() }

// Get returns a zero-copy view of record i.
//
// REQUIRES: i < r.NumRecords().
func (r *Reader) Get(i uint64) (RecordView, error) {
	if i >= r.n {
		return RecordView{}, newOutOfRangeError("bq: record index out of range")
	}
	recSize := r.hdr.RecordSize()
	off := HeaderSize + int(i)*recSize
	return RecordView{index: i, hdr: r.hdr, raw: r.m[off : off+recSize]}, nil
}

// ProcessParallel distributes all records across threads worker goroutines,
// invoking p.ProcessRecord for each. It is equivalent to
// ProcessParallelRange(p, threads, 0, r.NumRecords()).
func (r *Reader) ProcessParallel(p parallel.Processor, threads int) error {
	return r.ProcessParallelRange(p, threads, 0, r.n)
}

// ProcessParallelRange distributes records [lo, hi) across threads worker
// goroutines. records_per_thread = ceil((hi-lo)/threads); worker t handles
// [lo+t*rpt, min(hi, lo+(t+1)*rpt)). Within a worker, records are visited in
// ascending index order; OnBatchComplete fires every parallel.BatchSize
// records and once more when the worker finishes.
func (r *Reader) ProcessParallelRange(p parallel.Processor, threads int, lo, hi uint64) error {
	if hi > r.n {
		hi = r.n
	}
	if lo > hi {
		lo = hi
	}
	return parallel.Run(threads, func(worker int) error {
		proc := p.Clone()
		proc.SetThreadID(worker)
		start, end := parallel.RecordRange(lo, hi, threads, worker)
		count := 0
		for i := start; i < end; i++ {
			rec, err := r.Get(i)
			if err != nil {
				return err
			}
			if err := proc.ProcessRecord(rec); err != nil {
				return err
			}
			count++
			if count%parallel.BatchSize == 0 {
				if err := proc.OnBatchComplete(); err != nil {
					return err
				}
			}
		}
		return proc.OnBatchComplete()
	})
}
