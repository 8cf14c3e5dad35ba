// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vbq_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/seq/parallel"
	"github.com/grailbio/seq/seqrecord"
	"github.com/grailbio/seq/vbq"
)

func writeTempVBQ(t *testing.T, buf *bytes.Buffer) string {
	t.Helper()
	f, err := ioutil.TempFile("", "vbq-test-*.vbq")
	require.NoError(t, err)
	_, err = f.Write(buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, f.Close())
	t.Cleanup(func() {
		os.Remove(f.Name())
		os.Remove(f.Name() + ".vqi")
	})
	return f.Name()
}

// counter is a minimal parallel.Processor that tallies records atomically.
type counter struct {
	threadID int
	total    *int64
}

func (c *counter) Clone() parallel.Processor { return &counter{total: c.total} }
func (c *counter) SetThreadID(id int) { c.threadID = id }
func (c *counter) GetThreadID() int   { return c.threadID }
func (c *counter) ProcessRecord(rec seqrecord.View) error {
	atomic.AddInt64(c.total, 1)
	return nil
}
func (c *counter) OnBatchComplete() error { return nil }

// S4: VBQ unpaired, unqualified, uncompressed, 30000 identical records;
// record size 32 bytes, 4096 records/block, 8 blocks.
func TestS4MultiBlock(t *testing.T) {
	var buf bytes.Buffer
	w, err := vbq.NewWriter(&buf, vbq.WriterOpts{})
	require.NoError(t, err)

	for i := 0; i < 30000; i++ {
		written, err := w.WriteRecord(1, []byte("ACGTACGTACGT"), nil, nil, nil)
		require.NoError(t, err)
		require.True(t, written)
	}
	require.NoError(t, w.Close())

	path := writeTempVBQ(t, &buf)
	r, err := vbq.Open(path)
	require.NoError(t, err)
	defer r.Close()

	n, err := r.NumRecords()
	require.NoError(t, err)
	require.Equal(t, uint64(30000), n)

	idx, err := r.Index()
	require.NoError(t, err)
	require.Equal(t, 8, len(idx.Entries))

	total := uint64(0)
	for _, e := range idx.Entries {
		total += uint64(e.RecordCount)
	}
	require.Equal(t, uint64(30000), total)

	r2, err := vbq.Open(path)
	require.NoError(t, err)
	defer r2.Close()

	seen := uint64(0)
	var blk vbq.Block
	for {
		more, err := r2.NextBlock(&blk)
		require.NoError(t, err)
		if !more {
			break
		}
		for i := 0; i < blk.NumRecords(); i++ {
			rec := blk.RecordView(i)
			require.Equal(t, uint64(1), rec.Flag())
			require.Equal(t, "ACGTACGTACGT", string(rec.DecodePrimary(nil)))
			seen++
		}
	}
	require.Equal(t, uint64(30000), seen)
}

// S5: VBQ paired+quality, one record.
func TestS5PairedQualityRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := vbq.NewWriter(&buf, vbq.WriterOpts{Qual: true, Paired: true})
	require.NoError(t, err)

	written, err := w.WriteRecord(7, []byte("ACGT"), []byte("TGCA"), []byte("IIII"), []byte("FFFF"))
	require.NoError(t, err)
	require.True(t, written)
	require.NoError(t, w.Close())

	path := writeTempVBQ(t, &buf)
	r, err := vbq.Open(path)
	require.NoError(t, err)
	defer r.Close()

	var blk vbq.Block
	more, err := r.NextBlock(&blk)
	require.NoError(t, err)
	require.True(t, more)
	require.Equal(t, 1, blk.NumRecords())

	rec := blk.RecordView(0)
	require.Equal(t, uint64(7), rec.Flag())
	require.True(t, rec.IsPaired())
	require.True(t, rec.HasQuality())
	require.Equal(t, "ACGT", string(rec.DecodePrimary(nil)))
	require.Equal(t, "TGCA", string(rec.DecodeExtended(nil)))
	require.Equal(t, "IIII", string(rec.PrimaryQuality()))
	require.Equal(t, "FFFF", string(rec.ExtendedQuality()))
}

// S6: parallel equivalence and ranged processing over S4's file.
func TestS6ParallelEquivalence(t *testing.T) {
	var buf bytes.Buffer
	w, err := vbq.NewWriter(&buf, vbq.WriterOpts{})
	require.NoError(t, err)
	for i := 0; i < 30000; i++ {
		_, err := w.WriteRecord(1, []byte("ACGTACGTACGT"), nil, nil, nil)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	path := writeTempVBQ(t, &buf)

	for _, threads := range []int{1, 8} {
		r, err := vbq.Open(path)
		require.NoError(t, err)

		var total int64
		c := &counter{total: &total}
		require.NoError(t, r.ProcessParallel(c, threads))
		require.Equal(t, int64(30000), total)

		total = 0
		require.NoError(t, r.ProcessParallelRange(c, threads, 1000, 5000))
		require.Equal(t, int64(4000), total)

		require.NoError(t, r.Close())
	}
}

// Property 7: records whose combined encoded size exactly fills block_size
// produce a block with no reflow.
func TestExactFillNoReflow(t *testing.T) {
	// record size = 8*(1+0+3) = 32 bytes for a 12-base unpaired record.
	const recSize = 32
	blockSize := uint64(recSize * 10)

	var buf bytes.Buffer
	w, err := vbq.NewWriter(&buf, vbq.WriterOpts{BlockSize: blockSize})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		written, err := w.WriteRecord(0, []byte("ACGTACGTACGT"), nil, nil, nil)
		require.NoError(t, err)
		require.True(t, written)
	}
	require.NoError(t, w.Close())

	// file header + exactly one block header + one block payload.
	require.Equal(t, vbq.HeaderSize+vbq.BlockHeaderSize+int(blockSize), buf.Len())

	path := writeTempVBQ(t, &buf)
	r, err := vbq.Open(path)
	require.NoError(t, err)
	defer r.Close()

	idx, err := r.Index()
	require.NoError(t, err)
	require.Equal(t, 1, len(idx.Entries))
	require.Equal(t, uint32(10), idx.Entries[0].RecordCount)
}

// Property 8: an oversized record fails and leaves the staging buffer
// unchanged.
func TestRecordTooBigForBlock(t *testing.T) {
	var buf bytes.Buffer
	w, err := vbq.NewWriter(&buf, vbq.WriterOpts{BlockSize: 16})
	require.NoError(t, err)

	_, err = w.WriteRecord(0, []byte("ACGTACGTACGTACGTACGTACGTACGTACGT"), nil, nil, nil)
	require.Error(t, err)
	require.True(t, vbq.IsRecordSizeExceedsMaximumBlockSize(err))
}

// A quality-flag mismatch is rejected before any encoding occurs.
func TestQualityFlagMismatch(t *testing.T) {
	var buf bytes.Buffer
	w, err := vbq.NewWriter(&buf, vbq.WriterOpts{})
	require.NoError(t, err)

	_, err = w.WriteRecord(0, []byte("ACGT"), nil, []byte("IIII"), nil)
	require.Error(t, err)
	require.True(t, vbq.IsQualityFlagMismatch(err))
}

// Property 10: a `.vqi` whose stored file size disagrees with the actual
// file is regenerated rather than trusted.
func TestStaleIndexRegenerated(t *testing.T) {
	var buf bytes.Buffer
	w, err := vbq.NewWriter(&buf, vbq.WriterOpts{})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := w.WriteRecord(0, []byte("ACGT"), nil, nil, nil)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	path := writeTempVBQ(t, &buf)

	r, err := vbq.Open(path)
	require.NoError(t, err)
	idx, err := r.Index()
	require.NoError(t, err)
	require.NoError(t, r.Close())

	stale := &vbq.BlockIndex{FileSize: idx.FileSize + 1, Entries: idx.Entries}
	require.NoError(t, stale.Save(path+".vqi"))

	r2, err := vbq.Open(path)
	require.NoError(t, err)
	defer r2.Close()
	idx2, err := r2.Index()
	require.NoError(t, err)
	require.Equal(t, idx.FileSize, idx2.FileSize)
}
