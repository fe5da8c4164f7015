// Package testutil provides small helpers shared across the engine's test
// suites (temporary SQLite file paths, deterministic test loggers).
package testutil

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// SQLitePath returns a path to a SQLite database file inside a fresh
// temporary directory, unique to the running test.
func SQLitePath(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "test.sqlite")
}

// Logger returns a *zap.Logger that writes to the test's own log, so that
// log output from backend/storage code under test interleaves correctly
// with `go test -v` output.
func Logger(t *testing.T) *zap.Logger {
	t.Helper()

	return zaptest.NewLogger(t)
}
