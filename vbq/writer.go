// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vbq

import (
	"encoding/binary"
	"io"

	"github.com/grailbio/seq/compress/zstd"
	"github.com/grailbio/seq/errors"
	"github.com/grailbio/seq/nucleotide"
)

// WriterOpts configures a Writer.
type WriterOpts struct {
	// BlockSize is the virtual block size. Defaults to DefaultBlockSize.
	BlockSize uint64
	// Qual, when true, requires WriteRecord to be called with non-empty
	// quality slices matching slen/xlen.
	Qual bool
	// Compressed, when true, zstd-compresses each block's padded payload
	// before writing it.
	Compressed bool
	// Paired, when true, permits (but does not require per-call) non-empty
	// extended sequences.
	Paired bool
	// Policy controls how invalid (non-ACGT) bytes are handled. Defaults to
	// nucleotide.IgnoreSequence() if nil.
	Policy nucleotide.Policy
}

// Writer produces a VBQ file by accumulating records into an in-memory
// staging buffer of virtual block size, flushing complete blocks to the
// underlying io.Writer.
type Writer struct {
	w      io.Writer
	hdr    Header
	policy nucleotide.Policy

	staging      []byte // capacity BlockSize, len == current fill
	startOffsets []int
	recordCount  uint32

	primaryWords  []uint64
	extendedWords []uint64
	scratch       []byte
	extScratch    []byte
	compressScratch []byte
}

// NewWriter writes the 32-byte VBQ file header and returns a Writer ready to
// accept records.
func NewWriter(w io.Writer, opts WriterOpts) (*Writer, error) {
	blockSize := opts.BlockSize
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	policy := opts.Policy
	if policy == nil {
		policy = nucleotide.IgnoreSequence()
	}
	hdr := Header{
		BlockSize:  blockSize,
		Qual:       opts.Qual,
		Compressed: opts.Compressed,
		Paired:     opts.Paired,
	}
	if _, err := w.Write(hdr.Encode()); err != nil {
		return nil, errors.E(err, "vbq: writing header")
	}
	return &Writer{
		w:       w,
		hdr:     hdr,
		policy:  policy,
		staging: make([]byte, 0, blockSize),
	}, nil
}

// Header returns the writer's immutable file header.
func (w *Writer) Header() Header { return w.hdr }

// recordSize returns the encoded on-disk size of a record with the given
// primary/extended word counts, per spec's formula
// R = 8*(pwords + xwords + 3) + (qual ? slen+xlen : 0).
func recordSize(pwords, xwords int, slen, xlen uint64, qual bool) uint64 {
	r := uint64(8*(pwords+xwords+3))
	if qual {
		r += slen + xlen
	}
	return r
}

// WriteRecord encodes and appends one record to the writer's staging
// buffer, flushing a completed block first if necessary. It returns
// written=false, nil when the configured policy drops the record.
func (w *Writer) WriteRecord(flag uint64, primary, extended, primaryQuality, extendedQuality []byte) (written bool, err error) {
	if w.hdr.Qual && (len(primaryQuality) != len(primary) || (len(extended) > 0 && len(extendedQuality) != len(extended))) {
		return false, newQualityFlagError("vbq: writer requires quality bytes matching sequence length")
	}
	if !w.hdr.Qual && (len(primaryQuality) > 0 || len(extendedQuality) > 0) {
		return false, newQualityFlagError("vbq: writer was not configured for quality, but quality bytes were supplied")
	}
	if len(extended) > 0 && !w.hdr.Paired {
		return false, newPairedFlagError("vbq: writer was not configured for paired records, but an extended sequence was supplied")
	}

	w.scratch = append(w.scratch[:0], primary...)
	ok, err := w.policy.Sanitize(w.scratch)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	primarySan := w.scratch

	var extendedSan []byte
	if len(extended) > 0 {
		w.extScratch = append(w.extScratch[:0], extended...)
		ok, err = w.policy.Sanitize(w.extScratch)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		extendedSan = w.extScratch
	}

	w.primaryWords, err = nucleotide.Encode(w.primaryWords, primarySan)
	if err != nil {
		return false, err
	}
	if len(extendedSan) > 0 {
		w.extendedWords, err = nucleotide.Encode(w.extendedWords, extendedSan)
		if err != nil {
			return false, err
		}
	} else {
		w.extendedWords = w.extendedWords[:0]
	}

	slen := uint64(len(primary))
	xlen := uint64(len(extended))
	r := recordSize(len(w.primaryWords), len(w.extendedWords), slen, xlen, w.hdr.Qual)
	if r > w.hdr.BlockSize {
		return false, newRecordTooBigError("vbq: record encoded size exceeds block size")
	}
	if uint64(len(w.staging))+r > w.hdr.BlockSize {
		if err := w.Flush(); err != nil {
			return false, err
		}
	}

	w.startOffsets = append(w.startOffsets, len(w.staging))
	w.appendRecord(flag, slen, xlen, w.primaryWords, primaryQuality, w.extendedWords, extendedQuality)
	w.recordCount++
	return true, nil
}

// appendRecord serializes one record onto w.staging.
func (w *Writer) appendRecord(flag, slen, xlen uint64, primary []uint64, primaryQuality []byte, extended []uint64, extendedQuality []byte) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], flag)
	w.staging = append(w.staging, buf[:]...)
	binary.LittleEndian.PutUint64(buf[:], slen)
	w.staging = append(w.staging, buf[:]...)
	binary.LittleEndian.PutUint64(buf[:], xlen)
	w.staging = append(w.staging, buf[:]...)
	for _, word := range primary {
		binary.LittleEndian.PutUint64(buf[:], word)
		w.staging = append(w.staging, buf[:]...)
	}
	if w.hdr.Qual {
		w.staging = append(w.staging, primaryQuality...)
	}
	for _, word := range extended {
		binary.LittleEndian.PutUint64(buf[:], word)
		w.staging = append(w.staging, buf[:]...)
	}
	if w.hdr.Qual && xlen > 0 {
		w.staging = append(w.staging, extendedQuality...)
	}
}

// Flush pads the staging buffer to the virtual block size, optionally
// compresses it, and writes the block header and payload. It is a no-op
// when the staging buffer is empty.
func (w *Writer) Flush() error {
	if len(w.staging) == 0 {
		return nil
	}
	padded := w.staging
	if uint64(len(padded)) < w.hdr.BlockSize {
		padded = append(padded, make([]byte, w.hdr.BlockSize-uint64(len(padded)))...)
	}
	payload := padded
	onDiskSize := w.hdr.BlockSize
	if w.hdr.Compressed {
		compressed, err := zstd.Compress(w.compressScratch, padded)
		if err != nil {
			return errors.E(err, "vbq: compressing block")
		}
		w.compressScratch = compressed
		payload = compressed
		onDiskSize = uint64(len(compressed))
	}
	bh := BlockHeader{Size: onDiskSize, RecordCount: w.recordCount}
	if _, err := w.w.Write(bh.Encode()); err != nil {
		return errors.E(err, "vbq: writing block header")
	}
	if _, err := w.w.Write(payload); err != nil {
		return errors.E(err, "vbq: writing block payload")
	}
	w.staging = w.staging[:0]
	w.startOffsets = w.startOffsets[:0]
	w.recordCount = 0
	return nil
}

// Close flushes any partially filled block. It must be called before the
// underlying writer is released; an unflushed final block would otherwise
// be silently dropped.
func (w *Writer) Close() error {
	return w.Flush()
}

// Ingest absorbs another writer's staging buffer into w: a parallel-write
// merge primitive allowing multiple per-worker writers to hand off completed
// and partial blocks to a single output stream. The two writers' headers and
// block sizes must match. Ingest copies as many complete records as fit into
// w's staging buffer, flushing and resetting as needed, then copies the
// remainder; it does not decode or re-encode record payloads.
func (w *Writer) Ingest(other *Writer) error {
	if w.hdr != other.hdr {
		return newIncompatibleHeadersError("vbq: ingest requires identical writer headers")
	}
	for i, start := range other.startOffsets {
		end := len(other.staging)
		if i+1 < len(other.startOffsets) {
			end = other.startOffsets[i+1]
		}
		rec := other.staging[start:end]
		if uint64(len(w.staging)+len(rec)) > w.hdr.BlockSize {
			if err := w.Flush(); err != nil {
				return err
			}
		}
		w.startOffsets = append(w.startOffsets, len(w.staging))
		w.staging = append(w.staging, rec...)
		w.recordCount++
	}
	other.staging = other.staging[:0]
	other.startOffsets = other.startOffsets[:0]
	other.recordCount = 0
	return nil
}
