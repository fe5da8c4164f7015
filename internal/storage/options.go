package storage

import (
	"go.uber.org/zap"

	"github.com/trust0-project/ridb/internal/backends"
	"github.com/trust0-project/ridb/internal/migrate"
	"github.com/trust0-project/ridb/internal/plugin"
	"github.com/trust0-project/ridb/internal/schema"
)

// Options configures a Database (§4.13, §6.1). It is the single
// configuration surface this package exposes; there is no environment or
// file-based configuration for an embedded library.
//
//nolint:govet // field grouping favors readability over alignment
type Options struct {
	// Name identifies the database for logging; it has no effect on where
	// a backend persists data (the backend itself is already configured).
	Name string

	// Schemas declares every collection this database serves.
	Schemas map[string]*schema.Schema

	// Migrations supplies, per collection, the version-upgrade functions
	// required by any schema with Version >= 1.
	Migrations migrate.Set

	// Plugins are user-supplied hooks run before the built-ins on create
	// and after them on recover (§4.4).
	Plugins []plugin.Plugin

	// Password enables the Encryption plugin when non-empty.
	Password string

	// Backend is the storage medium. If nil, an in-memory backend is used.
	Backend backends.Backend

	// L is the logger lifecycle transitions and collection writes/deletes
	// are reported to. If nil, a no-op logger is used.
	L *zap.Logger
}

func (o *Options) logger() *zap.Logger {
	if o.L == nil {
		return zap.NewNop()
	}

	return o.L
}
