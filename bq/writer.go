// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bq

import (
	"encoding/binary"
	"io"

	"github.com/grailbio/seq/errors"
	"github.com/grailbio/seq/nucleotide"
)

// WriterOpts configures a Writer.
type WriterOpts struct {
	// Policy controls how invalid (non-ACGT) bytes in a written sequence are
	// handled. Defaults to nucleotide.IgnoreSequence() if nil.
	Policy nucleotide.Policy
}

// Writer produces a BQ file. As spec.md scopes writing as the dual of
// reading rather than a full streaming API, Writer buffers nothing beyond
// the underlying io.Writer: every WriteRecord call emits one fixed-size
// record immediately.
type Writer struct {
	w      io.Writer
	hdr    Header
	policy nucleotide.Policy

	primaryWords  []uint64
	extendedWords []uint64
	scratch       []byte
	record        []byte
}

// NewWriter writes the 32-byte BQ header (slen, xlen fixed for every record
// in the file) and returns a Writer ready to accept records.
func NewWriter(w io.Writer, slen, xlen uint32, opts WriterOpts) (*Writer, error) {
	policy := opts.Policy
	if policy == nil {
		policy = nucleotide.IgnoreSequence()
	}
	hdr := Header{Slen: slen, Xlen: xlen, Bits: Bits2}
	if _, err := w.Write(hdr.Encode()); err != nil {
		return nil, errors.E(err, "bq: writing header")
	}
	return &Writer{
		w:      w,
		hdr:    hdr,
		policy: policy,
		record: make([]byte, hdr.RecordSize()),
	}, nil
}

// WriteRecord encodes and writes one record. primary must be exactly slen
// bytes, and extended exactly xlen bytes (xlen may be 0 for an unpaired
// file). It returns written=false, nil when the configured policy drops the
// record (IgnoreSequence on an invalid sequence); any other outcome either
// writes the record or returns a non-nil error.
func (w *Writer) WriteRecord(flag uint64, primary, extended []byte) (written bool, err error) {
	if uint32(len(primary)) != w.hdr.Slen {
		return false, errors.E(errors.Invalid, "bq: primary sequence length does not match header slen")
	}
	if uint32(len(extended)) != w.hdr.Xlen {
		return false, errors.E(errors.Invalid, "bq: extended sequence length does not match header xlen")
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
		extScratch := append([]byte(nil), extended...)
		ok, err = w.policy.Sanitize(extScratch)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		extendedSan = extScratch
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

	binary.LittleEndian.PutUint64(w.record[0:8], flag)
	off := 8
	for _, word := range w.primaryWords {
		binary.LittleEndian.PutUint64(w.record[off:off+8], word)
		off += 8
	}
	for _, word := range w.extendedWords {
		binary.LittleEndian.PutUint64(w.record[off:off+8], word)
		off += 8
	}
	if _, err := w.w.Write(w.record); err != nil {
		return false, errors.E(err, "bq: writing record")
	}
	return true, nil
}
