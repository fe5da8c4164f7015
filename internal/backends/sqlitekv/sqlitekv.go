// Package sqlitekv implements a persistent, keyed-store Backend on top of
// SQLite: one table per collection, a TEXT primary key column and a TEXT
// column holding the document's JSON encoding (types.MarshalJSON: key order
// preserved, not sorted).
//
// Grounded on FerretDB's internal/backends/sqlite package: a connection pool
// keyed by database file name, tracked with internal/util/resource so a
// Close-less leak panics instead of leaking a file descriptor.
package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // database/sql driver

	"github.com/trust0-project/ridb/internal/backends"
	"github.com/trust0-project/ridb/internal/operation"
	"github.com/trust0-project/ridb/internal/query"
	"github.com/trust0-project/ridb/internal/ridberr"
	"github.com/trust0-project/ridb/internal/schema"
	"github.com/trust0-project/ridb/internal/types"
	"github.com/trust0-project/ridb/internal/util/lazyerrors"
	"github.com/trust0-project/ridb/internal/util/resource"
)

const dbExtension = ".sqlite"

// Backend is a persistent Backend storing each collection as a SQLite table
// in its own database file under Dir.
type Backend struct {
	dir string

	mu      sync.Mutex
	dbs     map[string]*sql.DB
	schemas map[string]*schema.Schema

	token *resource.Token
}

// New constructs a sqlitekv backend rooted at dir. dir must already exist.
func New(dir string) *Backend {
	b := &Backend{
		dir:   dir,
		dbs:   map[string]*sql.DB{},
		token: resource.NewToken(),
	}

	resource.Track(b, b.token)

	return b
}

// Start implements backends.Backend: it opens (creating if absent) one
// SQLite database per collection and ensures its document table exists.
func (b *Backend) Start(ctx context.Context, schemas map[string]*schema.Schema) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.schemas = schemas

	for name := range schemas {
		db, err := b.open(name)
		if err != nil {
			return backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
		}

		if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS documents (pk TEXT PRIMARY KEY, doc TEXT NOT NULL)`); err != nil {
			return backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
		}
	}

	return nil
}

// Close closes every open database connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs error

	for _, db := range b.dbs {
		if err := db.Close(); err != nil {
			errs = errors.Join(errs, err)
		}
	}

	b.dbs = map[string]*sql.DB{}

	resource.Untrack(b, b.token)

	return errs
}

// open returns (lazily opening) the database connection for a collection.
// Callers must hold b.mu.
func (b *Backend) open(collection string) (*sql.DB, error) {
	if db, ok := b.dbs[collection]; ok {
		return db, nil
	}

	path := filepath.Join(b.dir, collection+dbExtension)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	b.dbs[collection] = db

	return db, nil
}

// Write implements backends.Backend.
func (b *Backend) Write(ctx context.Context, op *operation.Operation) (*types.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.schemas[op.Collection]
	if !ok {
		return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, nil)
	}

	db, err := b.open(op.Collection)
	if err != nil {
		return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
	}

	switch op.OpType {
	case operation.Create, operation.Update:
		doc, ok := op.Document()
		if !ok {
			return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, ridberr.Backend("write operation missing document"))
		}

		pk, err := pkString(doc.GetOrNil(s.PrimaryKey))
		if err != nil {
			return nil, err
		}

		exists, err := rowExists(ctx, db, pk)
		if err != nil {
			return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
		}

		if op.OpType == operation.Create && exists {
			return nil, backends.NewError(backends.ErrorCodeDocumentAlreadyExists, nil)
		}

		if op.OpType == operation.Update && !exists {
			return nil, backends.NewError(backends.ErrorCodeDocumentNotFound, nil)
		}

		encoded, err := types.MarshalJSON(doc)
		if err != nil {
			return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
		}

		_, err = db.ExecContext(ctx, `INSERT INTO documents (pk, doc) VALUES (?, ?) ON CONFLICT(pk) DO UPDATE SET doc = excluded.doc`, pk, string(encoded))
		if err != nil {
			return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
		}

		return doc, nil
	case operation.Delete:
		pk, err := pkString(op.Data)
		if err != nil {
			return nil, err
		}

		doc, ok, err := b.loadRow(ctx, db, pk)
		if err != nil {
			return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
		}

		if !ok {
			return nil, backends.NewError(backends.ErrorCodeDocumentNotFound, nil)
		}

		if _, err := db.ExecContext(ctx, `DELETE FROM documents WHERE pk = ?`, pk); err != nil {
			return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
		}

		return doc, nil
	default:
		return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, ridberr.Backend("unsupported operation type for write"))
	}
}

// FindDocumentByID implements backends.Backend.
func (b *Backend) FindDocumentByID(ctx context.Context, collection string, pk any) (*types.Document, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.schemas[collection]; !ok {
		return nil, false, backends.NewError(backends.ErrorCodeCollectionNotFound, nil)
	}

	db, err := b.open(collection)
	if err != nil {
		return nil, false, backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
	}

	pkStr, err := pkString(pk)
	if err != nil {
		return nil, false, err
	}

	doc, ok, err := b.loadRow(ctx, db, pkStr)
	if err != nil {
		return nil, false, backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
	}

	return doc, ok, nil
}

// Find implements backends.Backend. It performs a full scan: the sqlitekv
// backend, like the in-memory one, provides no index acceleration.
func (b *Backend) Find(ctx context.Context, collection string, q *types.Document) ([]*types.Document, error) {
	docs, err := b.all(ctx, collection)
	if err != nil {
		return nil, err
	}

	var out []*types.Document

	for _, doc := range docs {
		if query.Matches(doc, q) {
			out = append(out, doc)
		}
	}

	return out, nil
}

// Count implements backends.Backend.
func (b *Backend) Count(ctx context.Context, collection string, q *types.Document) (int64, error) {
	docs, err := b.all(ctx, collection)
	if err != nil {
		return 0, err
	}

	var count int64

	for _, doc := range docs {
		if query.Matches(doc, q) {
			count++
		}
	}

	return count, nil
}

func (b *Backend) all(ctx context.Context, collection string) ([]*types.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.schemas[collection]; !ok {
		return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, nil)
	}

	db, err := b.open(collection)
	if err != nil {
		return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
	}

	rows, err := db.QueryContext(ctx, `SELECT doc FROM documents`)
	if err != nil {
		return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
	}
	defer rows.Close()

	var docs []*types.Document

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
		}

		doc, err := types.ParseJSON([]byte(raw))
		if err != nil {
			return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, lazyerrors.Error(err))
	}

	return docs, nil
}

// loadRow fetches a single row by primary key. Callers must hold b.mu.
func (b *Backend) loadRow(ctx context.Context, db *sql.DB, pk string) (*types.Document, bool, error) {
	var raw string

	err := db.QueryRowContext(ctx, `SELECT doc FROM documents WHERE pk = ?`, pk).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	doc, err := types.ParseJSON([]byte(raw))
	if err != nil {
		return nil, false, err
	}

	return doc, true, nil
}

func rowExists(ctx context.Context, db *sql.DB, pk string) (bool, error) {
	var n int

	err := db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE pk = ?`, pk).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	return err == nil, err
}

// pkString normalizes a primary-key value to its string keying form.
func pkString(v any) (string, error) {
	switch pk := v.(type) {
	case string:
		return pk, nil
	case int64:
		return fmt.Sprintf("%d", pk), nil
	case float64:
		return fmt.Sprintf("%g", pk), nil
	default:
		return "", backends.NewError(backends.ErrorCodeDocumentNotFound, ridberr.Backend("primary key must be a string or number"))
	}
}

// check interfaces
var _ backends.Backend = (*Backend)(nil)
