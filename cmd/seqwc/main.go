// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command seqwc counts the records in a BQ or VBQ file, optionally
// restricted to a record range, using the library's parallel executor. It
// is an example driver, not part of the core library.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/grailbio/seq/log"
	"github.com/grailbio/seq/must"
	"github.com/grailbio/seq/parallel"
	"github.com/grailbio/seq/seq"
	"github.com/grailbio/seq/seqrecord"
)

// recordCounter is a parallel.Processor that tallies the records it sees
// into a total shared by every worker clone.
type recordCounter struct {
	threadID int
	total    *int64
}

func (c *recordCounter) Clone() parallel.Processor {
	return &recordCounter{total: c.total}
}

func (c *recordCounter) SetThreadID(id int) { c.threadID = id }
func (c *recordCounter) GetThreadID() int   { return c.threadID }

func (c *recordCounter) ProcessRecord(rec seqrecord.View) error {
	atomic.AddInt64(c.total, 1)
	return nil
}

func (c *recordCounter) OnBatchComplete() error { return nil }

func main() {
	log.AddFlags()
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: seqwc <file> [threads] [start] [end]")
		os.Exit(1)
	}
	path := args[0]
	threads := 1
	if len(args) > 1 {
		var err error
		threads, err = strconv.Atoi(args[1])
		must.Nil(err)
	}

	r, err := seq.Open(path)
	must.Nil(err)
	defer r.Close()

	var total int64
	c := &recordCounter{total: &total}

	if len(args) > 2 {
		lo, err := strconv.ParseUint(args[2], 10, 64)
		must.Nil(err)
		hi := uint64(1) << 63
		if len(args) > 3 {
			hi, err = strconv.ParseUint(args[3], 10, 64)
			must.Nil(err)
		}
		err = r.ProcessParallelRange(c, threads, lo, hi)
		must.Nil(err)
	} else {
		err = r.ProcessParallel(c, threads)
		must.Nil(err)
	}

	fmt.Println(atomic.LoadInt64(&total))
}
