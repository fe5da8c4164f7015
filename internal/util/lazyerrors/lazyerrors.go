// Package lazyerrors provides a way to annotate errors with the call site
// (file, line, and function name) without forcing every caller to write
// that boilerplate by hand.
package lazyerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// lazyError wraps another error and records where it was created.
type lazyError struct {
	err error
	pc  uintptr
}

// New creates a new error annotated with the caller's location.
func New(text string) error {
	return newLazyError(errors.New(text))
}

// Error wraps an existing err, annotated with the caller's location. It
// returns nil if err is nil.
func Error(err error) error {
	if err == nil {
		return nil
	}

	return newLazyError(err)
}

// Errorf creates a new error using fmt.Errorf semantics (including %w
// wrapping), annotated with the caller's location.
func Errorf(format string, args ...any) error {
	return newLazyError(fmt.Errorf(format, args...))
}

func newLazyError(err error) error {
	var pc uintptr

	pcs := make([]uintptr, 1)
	if runtime.Callers(3, pcs) > 0 {
		pc = pcs[0]
	}

	return &lazyError{err: err, pc: pc}
}

func (le *lazyError) callsite() string {
	if le.pc == 0 {
		return "unknown"
	}

	frames := runtime.CallersFrames([]uintptr{le.pc})
	frame, _ := frames.Next()

	file := frame.File
	for i := len(file) - 1; i >= 0; i-- {
		if file[i] == '/' {
			file = file[i+1:]
			break
		}
	}

	return fmt.Sprintf("%s:%d %s", file, frame.Line, shortFunction(frame.Function))
}

// shortFunction reduces a fully-qualified function name such as
// "github.com/trust0-project/ridb/internal/util/lazyerrors.TestErrors"
// to "lazyerrors.TestErrors" (and "....TestErrors.func1" stays intact).
func shortFunction(fn string) string {
	slash := -1

	for i := len(fn) - 1; i >= 0; i-- {
		if fn[i] == '/' {
			slash = i
			break
		}
	}

	if slash < 0 {
		return fn
	}

	return fn[slash+1:]
}

// Error implements the error interface.
func (le *lazyError) Error() string {
	return fmt.Sprintf("[%s] %s", le.callsite(), le.err.Error())
}

// GoString implements fmt.GoStringer, used by %#v formatting.
func (le *lazyError) GoString() string {
	return fmt.Sprintf("lazyerror(%s)", le.Error())
}

// Unwrap returns the wrapped error, enabling errors.Is/errors.As to see
// through the annotation.
func (le *lazyError) Unwrap() error {
	return le.err
}

// check interfaces
var (
	_ error           = (*lazyError)(nil)
	_ fmt.GoStringer  = (*lazyError)(nil)
)
