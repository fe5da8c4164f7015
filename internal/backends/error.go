package backends

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// ErrorCode represents a backend error code.
type ErrorCode int

// Error codes.
const (
	_ ErrorCode = iota

	// ErrorCodeCollectionNotFound means the named collection is not known
	// to the backend.
	ErrorCodeCollectionNotFound

	// ErrorCodeDocumentAlreadyExists means a CREATE targeted a primary key
	// that already has a stored document.
	ErrorCodeDocumentAlreadyExists

	// ErrorCodeDocumentNotFound means an UPDATE or DELETE targeted a
	// primary key with no stored document.
	ErrorCodeDocumentNotFound
)

// String implements fmt.Stringer.
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeCollectionNotFound:
		return "CollectionNotFound"
	case ErrorCodeDocumentAlreadyExists:
		return "DocumentAlreadyExists"
	case ErrorCodeDocumentNotFound:
		return "DocumentNotFound"
	default:
		return "UnknownError"
	}
}

// Error represents a backend error returned by all Backend methods.
type Error struct {
	// err is kept only for logging; it is intentionally not reachable by
	// the caller.
	err  error
	code ErrorCode
}

// NewError creates a new backend error. Code must not be zero.
func NewError(code ErrorCode, err error) *Error {
	if code == 0 {
		panic("backends.NewError: code must not be 0")
	}

	return &Error{code: code, err: err}
}

// Code returns the error code.
func (e *Error) Code() ErrorCode { return e.code }

// There is intentionally no method to return the internal error.

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err == nil {
		return e.code.String()
	}

	return fmt.Sprintf("%s: %v", e.code, e.err)
}

// ErrorCodeIs returns true if err is *Error with one of the given codes.
func ErrorCodeIs(err error, code ErrorCode, codes ...ErrorCode) bool {
	e, ok := err.(*Error) //nolint:errorlint // *Error is never wrapped
	if !ok {
		return false
	}

	return e.code == code || slices.Contains(codes, e.code)
}

// checkError enforces the backend contract: any *Error returned by a
// backend method must carry one of the codes that method is allowed to
// return. A violation is a backend implementation bug, so it panics rather
// than propagating a silently-wrong error.
func checkError(err error, codes ...ErrorCode) {
	if err == nil {
		return
	}

	e, ok := err.(*Error) //nolint:errorlint // *Error is never wrapped
	if !ok {
		return
	}

	if len(codes) == 0 || !slices.Contains(codes, e.code) {
		panic(fmt.Sprintf("backends: error code %s not allowed here: %v", e.code, err))
	}
}

// check interfaces
var _ error = (*Error)(nil)
