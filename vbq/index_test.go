// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vbq_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/seq/vbq"
)

func TestBlockIndexCheckFresh(t *testing.T) {
	idx := &vbq.BlockIndex{FileSize: 100, Entries: []vbq.IndexEntry{
		{StartOffset: 32, Length: 64, RecordCount: 4, Cumulative: 0},
	}}
	require.NoError(t, idx.CheckFresh(100))

	err := idx.CheckFresh(101)
	require.Error(t, err)
	require.True(t, vbq.IsIndexByteSizeMismatch(err))
}

func TestBlockIndexTotalRecords(t *testing.T) {
	idx := &vbq.BlockIndex{Entries: []vbq.IndexEntry{
		{RecordCount: 10, Cumulative: 0},
		{RecordCount: 7, Cumulative: 10},
	}}
	require.Equal(t, uint64(17), idx.TotalRecords())
}

func TestBlockIndexBlocksIntersecting(t *testing.T) {
	idx := &vbq.BlockIndex{Entries: []vbq.IndexEntry{
		{RecordCount: 4096, Cumulative: 0},
		{RecordCount: 4096, Cumulative: 4096},
		{RecordCount: 4096, Cumulative: 8192},
	}}
	require.Equal(t, []int{0}, idx.BlocksIntersecting(0, 100))
	require.Equal(t, []int{0, 1}, idx.BlocksIntersecting(4000, 4200))
	require.Equal(t, []int{1, 2}, idx.BlocksIntersecting(5000, 9000))
	require.Nil(t, idx.BlocksIntersecting(20000, 20001))
}
