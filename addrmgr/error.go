// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind
// when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ErrorKind.
const (
	// ErrDuplicateAddress indicates an address with the same ip and port is
	// already known to the address manager.
	ErrDuplicateAddress = ErrorKind("ErrDuplicateAddress")

	// ErrUnroutableAddress indicates an address was classified as invalid
	// and therefore can never be stored.
	ErrUnroutableAddress = ErrorKind("ErrUnroutableAddress")

	// ErrBucketFull indicates the bucket an address maps to is at capacity
	// and the address scores lower than every address already in it.
	ErrBucketFull = ErrorKind("ErrBucketFull")

	// ErrDuplicatePeer indicates a peer with the same ip and port is already
	// tracked.
	ErrDuplicatePeer = ErrorKind("ErrDuplicatePeer")

	// ErrNotEmpty indicates an operation that requires an empty address
	// manager was attempted while it still holds addresses.
	ErrNotEmpty = ErrorKind("ErrNotEmpty")

	// ErrInvalidBucketCount indicates a bucket count of zero was requested.
	ErrInvalidBucketCount = ErrorKind("ErrInvalidBucketCount")

	// ErrAddressManaged indicates an attempt to change the identity of an
	// address that already has a bucket assigned.
	ErrAddressManaged = ErrorKind("ErrAddressManaged")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies an address manager error.  It has full support for
// errors.Is and errors.As, so the caller can ascertain the specific reason
// for the error by checking the underlying error.
type Error struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// makeError creates an Error given a set of arguments.
func makeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}
