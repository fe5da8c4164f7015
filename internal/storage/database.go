// Package storage implements the facade that mediates between named
// collections and a pluggable Backend (§4.9): resolving each collection's
// schema, running its plugin chain, enforcing primary-key discipline, and
// delegating persistence to the Backend.
package storage

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/trust0-project/ridb/internal/backends"
	"github.com/trust0-project/ridb/internal/backends/memory"
	"github.com/trust0-project/ridb/internal/migrate"
	"github.com/trust0-project/ridb/internal/plugin"
	"github.com/trust0-project/ridb/internal/plugin/defaults"
	"github.com/trust0-project/ridb/internal/plugin/encryption"
	"github.com/trust0-project/ridb/internal/plugin/integrity"
	"github.com/trust0-project/ridb/internal/plugin/migration"
	"github.com/trust0-project/ridb/internal/ridberr"
	"github.com/trust0-project/ridb/internal/schema"
)

// state is the Database lifecycle state (§4.9 "Database lifecycle state
// machine").
type state int

const (
	stateConstructed state = iota
	stateStarted
	stateClosed
)

// Database owns a Backend and mediates access to its collections. The
// backend is shared by every Collection handle; collections hold only a
// read-only reference to their schema and migrations.
type Database struct {
	name       string
	schemas    map[string]*schema.Schema
	migrations migrate.Set
	chain      *plugin.Chain
	backend    backends.Backend
	log        *zap.Logger

	mu    sync.Mutex
	state state
}

// Open constructs a Database from opts, validating every schema and the
// migration completeness requirement (§6.1) before any I/O. The returned
// Database is in the Constructed state; call Start before using it.
func Open(opts Options) (*Database, error) {
	for name, s := range opts.Schemas {
		if err := requireMigrations(name, s, opts.Migrations); err != nil {
			return nil, err
		}
	}

	b := opts.Backend
	if b == nil {
		b = memory.New()
	}

	chain := buildChain(opts)

	return &Database{
		name:       opts.Name,
		schemas:    opts.Schemas,
		migrations: opts.Migrations,
		chain:      chain,
		backend:    backends.Contract(b),
		log:        opts.logger(),
		state:      stateConstructed,
	}, nil
}

// requireMigrations enforces that every version from 1 up to s.Version has
// a registered migration function, for any schema with Version >= 1.
func requireMigrations(collection string, s *schema.Schema, migrations migrate.Set) error {
	if s.Version < 1 {
		return nil
	}

	versions := migrations[collection]

	for v := 1; v <= s.Version; v++ {
		if fn, ok := versions[v]; !ok || fn == nil {
			return ridberr.Migration("collection " + collection + ": missing migration function for version " + strconv.Itoa(v))
		}
	}

	return nil
}

// buildChain assembles the ordered plugin chain (§4.4): user-supplied
// plugins first, then Defaults, Migration, Integrity, and — iff a password
// was given — Encryption.
func buildChain(opts Options) *plugin.Chain {
	plugins := make([]plugin.Plugin, 0, len(opts.Plugins)+4)
	plugins = append(plugins, opts.Plugins...)
	plugins = append(plugins, defaults.New(), migration.New(), integrity.New())

	if opts.Password != "" {
		plugins = append(plugins, encryption.New(opts.Password))
	}

	return plugin.NewChain(plugins...)
}

// Start transitions the database from Constructed to Started, opening the
// backend. Starting an already-started database fails with a Lifecycle
// error.
func (d *Database) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateConstructed {
		return ridberr.Lifecycle("database already started")
	}

	if err := d.backend.Start(ctx, d.schemas); err != nil {
		return err
	}

	d.state = stateStarted
	d.log.Info("database started", zap.String("name", d.name), zap.Int("collections", len(d.schemas)))

	return nil
}

// Close transitions the database from Started to Closed and releases the
// backend. Closing a database that was never started fails with a
// Lifecycle error.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateStarted {
		return ridberr.Lifecycle("database not started")
	}

	err := d.backend.Close()
	d.state = stateClosed
	d.log.Info("database closed", zap.String("name", d.name))

	return err
}

// Collection returns a handle for the named collection. The database must
// be Started.
func (d *Database) Collection(name string) (*Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateStarted {
		return nil, ridberr.Lifecycle("database is not started")
	}

	s, ok := d.schemas[name]
	if !ok {
		return nil, ridberr.Backend("unknown collection: " + name)
	}

	return &Collection{
		name:       name,
		schema:     s,
		migrations: d.migrations[name],
		chain:      d.chain,
		backend:    d.backend,
		log:        d.log.Named("collection").With(zap.String("collection", name)),
	}, nil
}
