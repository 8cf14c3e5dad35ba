// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vbq

import "github.com/grailbio/seq/errors"

// tag distinguishes this package's errors from unrelated errors carrying
// the same errors.Kind.
type tag int

const (
	tagFileTruncation tag = iota
	tagReadError
	tagRecordTooBig
	tagQualityFlag
	tagPairedFlag
	tagIncompatibleHeaders
	tagIndexSizeMismatch
	tagIndexBadMagic
)

type taggedError struct {
	error
	tag tag
}

func hasTag(err error, t tag) bool {
	te, ok := err.(taggedError)
	return ok && te.tag == t
}

func newFileTruncationError(msg string) error {
	return taggedError{errors.E(errors.Integrity, msg), tagFileTruncation}
}

func newReadErrorKind(msg string) error {
	return taggedError{errors.E(errors.Invalid, msg), tagReadError}
}

// newRecordTooBigError builds the error WriteRecord returns when a single
// record's encoded size exceeds the file's virtual block size; see
// IsRecordSizeExceedsMaximumBlockSize.
func newRecordTooBigError(msg string) error {
	return taggedError{errors.E(errors.Invalid, msg), tagRecordTooBig}
}

func newQualityFlagError(msg string) error {
	return taggedError{errors.E(errors.Precondition, msg), tagQualityFlag}
}

func newPairedFlagError(msg string) error {
	return taggedError{errors.E(errors.Precondition, msg), tagPairedFlag}
}

func newIncompatibleHeadersError(msg string) error {
	return taggedError{errors.E(errors.Invalid, msg), tagIncompatibleHeaders}
}

func newIndexSizeMismatchError(msg string) error {
	return taggedError{errors.E(errors.Integrity, msg), tagIndexSizeMismatch}
}

func newIndexBadMagicError(msg string) error {
	return taggedError{errors.E(errors.Invalid, msg), tagIndexBadMagic}
}

// IsFileTruncation reports whether err indicates that a VBQ or index file
// violates its size invariant.
func IsFileTruncation(err error) bool { return hasTag(err, tagFileTruncation) }

// IsRecordSizeExceedsMaximumBlockSize reports whether err was raised
// because a single record's encoded size exceeds the file's block size.
func IsRecordSizeExceedsMaximumBlockSize(err error) bool { return hasTag(err, tagRecordTooBig) }

// IsQualityFlagMismatch reports whether err was raised because a call
// supplied (or omitted) quality bytes inconsistent with the file header's
// qual flag.
func IsQualityFlagMismatch(err error) bool { return hasTag(err, tagQualityFlag) }

// IsPairedFlagMismatch reports whether err was raised because a call
// supplied extended-sequence bytes to a file whose header does not declare
// paired support.
func IsPairedFlagMismatch(err error) bool { return hasTag(err, tagPairedFlag) }

// IsIncompatibleHeaders reports whether err was raised by Ingest because
// the two writers' headers differ.
func IsIncompatibleHeaders(err error) bool { return hasTag(err, tagIncompatibleHeaders) }

// IsIndexByteSizeMismatch reports whether err indicates a `.vqi` sidecar
// whose recorded file size does not match the current VBQ file's size.
func IsIndexByteSizeMismatch(err error) bool { return hasTag(err, tagIndexSizeMismatch) }
