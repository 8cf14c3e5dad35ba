// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bq

import "github.com/grailbio/seq/errors"

// tag distinguishes this package's errors from other errors carrying the
// same errors.Kind, so helpers like IsFileTruncation don't accidentally
// match an unrelated integrity error raised elsewhere.
type tag int

const (
	tagTruncation tag = iota
	tagOutOfRange
	tagNotWritten
)

type taggedError struct {
	error
	tag tag
}

func newTruncationError(msg string) error {
	return taggedError{errors.E(errors.Integrity, msg), tagTruncation}
}

func newOutOfRangeError(msg string) error {
	return taggedError{errors.E(errors.Invalid, msg), tagOutOfRange}
}

func hasTag(err error, t tag) bool {
	te, ok := err.(taggedError)
	return ok && te.tag == t
}

// IsFileTruncation reports whether err indicates that a BQ file's size does
// not satisfy the fixed-record-size invariant.
func IsFileTruncation(err error) bool { return hasTag(err, tagTruncation) }

// IsOutOfRange reports whether err indicates a record index outside
// [0, NumRecords()).
func IsOutOfRange(err error) bool { return hasTag(err, tagOutOfRange) }
