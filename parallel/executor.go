// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package parallel implements the worker fan-out shared by the BQ and VBQ
// readers: a fixed number of goroutines, one per worker, each driving its
// own clone of a user-supplied Processor over a disjoint slice of the
// record-index space, joined at the end with the first worker error (or
// panic) propagated to the caller.
package parallel

import (
	"github.com/grailbio/seq/seqrecord"
	"github.com/grailbio/seq/traverse"
)

// BatchSize is the number of records between batch-boundary callbacks
// during BQ record-range processing.
const BatchSize = 1024

// Processor is the capability set a caller provides to drive parallel
// iteration over a BQ or VBQ file. One Processor instance is constructed by
// the caller; Clone is used to make one independent copy per worker
// goroutine, matching the reader's "no shared processor state" concurrency
// model.
type Processor interface {
	// Clone returns a new Processor instance for one worker. Clone must not
	// share mutable state with the original (or with other clones) except
	// through data the caller explicitly synchronizes.
	Clone() Processor

	// SetThreadID records the worker index, 0 <= id < threads, assigned to
	// this clone.
	SetThreadID(id int)

	// GetThreadID returns the value most recently passed to SetThreadID.
	GetThreadID() int

	// ProcessRecord is invoked once per record assigned to this worker, in
	// ascending global-index order.
	ProcessRecord(rec seqrecord.View) error

	// OnBatchComplete is invoked at batch boundaries. For BQ it fires every
	// BatchSize records and once more when the worker finishes its assigned
	// range; for VBQ it fires after every block, with no extra call at the
	// end.
	OnBatchComplete() error
}

// Run executes fn once per worker, for workers 0..threads-1, each on its own
// goroutine, and blocks until all have returned. It returns the first error
// observed from any worker (errors from different workers race; the first
// one recorded wins, matching the "first-observed error" contract). A panic
// inside fn is recovered, its stack trace preserved, and re-raised in the
// calling goroutine once all workers have joined.
func Run(threads int, fn func(worker int) error) error {
	if threads < 1 {
		threads = 1
	}
	return traverse.Each(threads).Do(fn)
}

// RecordRange computes the half-open record range assigned to worker t of
// threads workers covering the overall range [lo, hi), following
// records_per_thread = ceil((hi-lo)/threads); worker t gets
// [lo+t*rpt, min(hi, lo+(t+1)*rpt)).
func RecordRange(lo, hi uint64, threads, worker int) (uint64, uint64) {
	if threads < 1 {
		threads = 1
	}
	total := hi - lo
	perThread := (total + uint64(threads) - 1) / uint64(threads)
	start := lo + uint64(worker)*perThread
	if start > hi {
		start = hi
	}
	end := start + perThread
	if end > hi {
		end = hi
	}
	return start, end
}

// BlockRange computes the half-open block-index range [lo, hi) assigned to
// worker t of threads workers over numBlocks selected blocks, following the
// same ceil(numBlocks/threads)-per-worker chunking as RecordRange.
func BlockRange(numBlocks, threads, worker int) (int, int) {
	lo, hi := RecordRange(0, uint64(numBlocks), threads, worker)
	return int(lo), int(hi)
}
