// Package ridberr defines the error taxonomy surfaced to callers of the
// public collection operations (§6.5/§7 of the specification).
package ridberr

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Code identifies the broad category of a ridb error.
type Code int

// Error codes. Zero is not a valid code.
const (
	_ Code = iota

	// CodeError is a generic, otherwise-uncategorized error.
	CodeError

	// CodeSerialization is the serialisation error category. No package
	// currently returns it: canonical-JSON failures during hashing are
	// CodeIntegrity and encrypted-blob framing failures are CodeCrypto.
	CodeSerialization

	// CodeValidation covers invalid schemas, documents that violate their
	// schema, and queries referencing unknown fields/operators/types.
	CodeValidation

	// CodeIntegrity covers canonical-hash mismatches on read.
	CodeIntegrity

	// CodeCrypto covers key derivation, AEAD encrypt/decrypt, and
	// encrypted-blob framing (base64, length) failures.
	CodeCrypto

	// CodeMigration covers missing migration functions and malformed
	// __version fields.
	CodeMigration

	// CodeBackend covers unknown collections, primary-key conflicts, and
	// backend I/O failures.
	CodeBackend

	// CodeLifecycle covers invalid Database state transitions.
	CodeLifecycle
)

// String implements fmt.Stringer.
func (c Code) String() string {
	switch c {
	case CodeError:
		return "Error"
	case CodeSerialization:
		return "SerializationError"
	case CodeValidation:
		return "ValidationError"
	case CodeIntegrity:
		return "IntegrityError"
	case CodeCrypto:
		return "CryptoError"
	case CodeMigration:
		return "MigrationError"
	case CodeBackend:
		return "BackendError"
	case CodeLifecycle:
		return "LifecycleError"
	default:
		return "UnknownError"
	}
}

// Error is the concrete error type returned by every public ridb operation.
//
// The wrapped cause (if any) is not part of Error() and is not reachable
// through errors.Unwrap/errors.Is/errors.As; the only way to read it is
// Cause(), which exists for logging.
type Error struct {
	code Code
	msg  string
	err  error
}

// New creates a generic Error (constructor "error(msg)" in the spec).
func New(msg string) *Error { return &Error{code: CodeError, msg: msg} }

// Serialisation creates a CodeSerialization Error.
func Serialisation(msg string) *Error { return &Error{code: CodeSerialization, msg: msg} }

// Validation creates a CodeValidation Error.
func Validation(msg string) *Error { return &Error{code: CodeValidation, msg: msg} }

// Integrity creates a CodeIntegrity Error.
func Integrity(msg string) *Error { return &Error{code: CodeIntegrity, msg: msg} }

// Crypto creates a CodeCrypto Error.
func Crypto(msg string) *Error { return &Error{code: CodeCrypto, msg: msg} }

// Migration creates a CodeMigration Error.
func Migration(msg string) *Error { return &Error{code: CodeMigration, msg: msg} }

// Backend creates a CodeBackend Error.
func Backend(msg string) *Error { return &Error{code: CodeBackend, msg: msg} }

// Lifecycle creates a CodeLifecycle Error.
func Lifecycle(msg string) *Error { return &Error{code: CodeLifecycle, msg: msg} }

// Wrap annotates an internal error with a code and message, keeping the
// cause for logging but not for caller-side unwrapping.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{code: code, msg: msg, err: cause}
}

// Code returns the error's category.
func (e *Error) Code() Code { return e.code }

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

// Cause returns the wrapped internal error for logging purposes only. It
// is not reachable via errors.Unwrap.
func (e *Error) Cause() error { return e.err }

// Is reports whether err is a *Error with one of the given codes.
func Is(err error, code Code, codes ...Code) bool {
	e, ok := err.(*Error) //nolint:errorlint // *Error is never wrapped by fmt.Errorf("%w", ...)
	if !ok {
		return false
	}

	return e.code == code || slices.Contains(codes, e.code)
}

// check interfaces
var _ error = (*Error)(nil)
