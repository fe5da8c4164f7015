// Package must provides panic-on-error helpers for code paths where an
// error indicates a programming mistake (test fixtures, one-time
// construction) rather than a condition callers should recover from.
package must

// NotFail returns v, panicking if err is not nil.
func NotFail[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

// NoError panics if err is not nil.
func NoError(err error) {
	if err != nil {
		panic(err)
	}
}
