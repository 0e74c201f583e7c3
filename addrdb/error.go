// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrdb

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind
// when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ErrorKind.
const (
	// ErrCorruptRecord indicates a stored address record could not be
	// decoded.
	ErrCorruptRecord = ErrorKind("ErrCorruptRecord")

	// ErrUnsupportedVersion indicates the database was written by an
	// incompatible version.
	ErrUnsupportedVersion = ErrorKind("ErrUnsupportedVersion")

	// ErrDatabase indicates the underlying database failed.
	ErrDatabase = ErrorKind("ErrDatabase")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies an address database error.  It wraps the kind of error
// along with the underlying database error, if any.
type Error struct {
	Err         error
	Description string
	RawErr      error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped errors.
func (e Error) Unwrap() []error {
	if e.RawErr == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.RawErr}
}

// makeError creates an Error given a set of arguments.
func makeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}
