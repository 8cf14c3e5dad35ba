// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package seq is the library's single entry point: Open inspects a path's
// extension and returns a Reader backed by either the fixed-record BQ
// format or the block-structured VBQ format, behind one capability
// interface.
package seq

import (
	"path/filepath"

	"github.com/grailbio/seq/bq"
	"github.com/grailbio/seq/errors"
	"github.com/grailbio/seq/parallel"
	"github.com/grailbio/seq/vbq"
)

// Reader is the capability set common to an open BQ or VBQ file.
type Reader interface {
	// NumRecords returns the total number of records in the file.
	NumRecords() (uint64, error)

	// IsPaired reports whether the file carries extended sequences.
	IsPaired() bool

	// ProcessParallel distributes every record across threads worker
	// goroutines.
	ProcessParallel(p parallel.Processor, threads int) error

	// ProcessParallelRange distributes records [lo, hi) across threads
	// worker goroutines.
	ProcessParallelRange(p parallel.Processor, threads int, lo, hi uint64) error

	// Close releases the reader's memory map and file descriptor.
	Close() error
}

// Open opens path as a BQ file (extension ".bq") or a VBQ file (extension
// ".vbq"), returning a Reader that dispatches to the matching
// implementation. This is the tagged-variant factory described for the
// reader family: callers depend only on the Reader interface, never on the
// concrete bq or vbq package.
func Open(path string) (Reader, error) {
	switch filepath.Ext(path) {
	case ".bq":
		r, err := bq.Open(path)
		if err != nil {
			return nil, err
		}
		return bqReader{r}, nil
	case ".vbq":
		r, err := vbq.Open(path)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, errors.E(errors.Invalid, "seq: unrecognized extension for "+path+" (want .bq or .vbq)")
	}
}

// bqReader adapts *bq.Reader's synchronous NumRecords to the Reader
// interface's fallible signature, so a caller iterating over either format
// via the same interface always handles the same error shape.
type bqReader struct {
	*bq.Reader
}

func (r bqReader) NumRecords() (uint64, error) { return r.Reader.NumRecords(), nil }
