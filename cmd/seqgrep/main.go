// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command seqgrep prints the index of every record whose decoded primary
// sequence contains a literal substring, searching a BQ or VBQ file in
// parallel. It is an example driver, not part of the core library.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/grailbio/seq/log"
	"github.com/grailbio/seq/must"
	"github.com/grailbio/seq/parallel"
	"github.com/grailbio/seq/seq"
	"github.com/grailbio/seq/seqrecord"
)

// matcher is a parallel.Processor that reports, under a shared mutex, the
// indices of records whose decoded primary sequence contains needle.
type matcher struct {
	threadID int
	needle   []byte

	mu      *sync.Mutex
	matches *[]uint64

	scratch []byte
}

func (m *matcher) Clone() parallel.Processor {
	return &matcher{needle: m.needle, mu: m.mu, matches: m.matches}
}

func (m *matcher) SetThreadID(id int) { m.threadID = id }
func (m *matcher) GetThreadID() int   { return m.threadID }

func (m *matcher) ProcessRecord(rec seqrecord.View) error {
	m.scratch = rec.DecodePrimary(m.scratch[:0])
	if bytes.Contains(m.scratch, m.needle) {
		m.mu.Lock()
		*m.matches = append(*m.matches, rec.Index())
		m.mu.Unlock()
	}
	return nil
}

func (m *matcher) OnBatchComplete() error { return nil }

func main() {
	log.AddFlags()
	flag.Parse()
	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: seqgrep <file> <needle> [threads] [start] [end]")
		os.Exit(1)
	}
	path, needle := args[0], args[1]
	threads := 1
	if len(args) > 2 {
		var err error
		threads, err = strconv.Atoi(args[2])
		must.Nil(err)
	}

	r, err := seq.Open(path)
	must.Nil(err)
	defer r.Close()

	var mu sync.Mutex
	var matches []uint64
	m := &matcher{needle: []byte(needle), mu: &mu, matches: &matches}

	if len(args) > 3 {
		lo, err := strconv.ParseUint(args[3], 10, 64)
		must.Nil(err)
		hi := uint64(1) << 63
		if len(args) > 4 {
			hi, err = strconv.ParseUint(args[4], 10, 64)
			must.Nil(err)
		}
		err = r.ProcessParallelRange(m, threads, lo, hi)
		must.Nil(err)
	} else {
		err = r.ProcessParallel(m, threads)
		must.Nil(err)
	}

	for _, idx := range matches {
		fmt.Println(idx)
	}
}
