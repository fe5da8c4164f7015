// Package backends defines the minimal storage contract (§4.10) that every
// persistence medium — in-memory, a keyed SQLite store, or anything else —
// must honour so the Storage facade can treat them interchangeably.
//
// Modeled on FerretDB's internal/backends package: a narrow interface plus
// a Contract wrapper that enforces the interface's error-code contract
// around every implementation, panicking on a violation rather than
// letting it leak as a silently-wrong error to the caller.
package backends

import (
	"context"

	"github.com/trust0-project/ridb/internal/operation"
	"github.com/trust0-project/ridb/internal/schema"
	"github.com/trust0-project/ridb/internal/types"
)

// Backend is the minimal per-collection storage contract. Every method
// fails with ErrorCodeCollectionNotFound if the named collection was never
// declared to the backend via Start.
type Backend interface {
	// Start prepares the backend for use, given the schema for every
	// collection it must serve (the backend needs each collection's
	// primary-key field name to key its index). It is called once,
	// before any other method.
	Start(ctx context.Context, schemas map[string]*schema.Schema) error

	// Close releases any resources held by the backend. The in-memory
	// backend clears its state; a reopened instance starts empty.
	Close() error

	// Write applies a CREATE, UPDATE, or DELETE operation and returns the
	// stored document (or, for DELETE, the document that was removed).
	//
	// CREATE fails with ErrorCodeDocumentAlreadyExists if the primary key
	// is already present. UPDATE and DELETE fail with
	// ErrorCodeDocumentNotFound if it is absent.
	Write(ctx context.Context, op *operation.Operation) (*types.Document, error)

	// FindDocumentByID returns the stored document for pk, or ok=false if
	// none exists.
	FindDocumentByID(ctx context.Context, collection string, pk any) (doc *types.Document, ok bool, err error)

	// Find returns every stored document in collection matching query (a
	// parsed, schema-validated query per §4.2). The core performs no
	// index acceleration; backends are free to, but the reference
	// backends do not.
	Find(ctx context.Context, collection string, query *types.Document) ([]*types.Document, error)

	// Count returns the number of stored documents matching query.
	Count(ctx context.Context, collection string, query *types.Document) (int64, error)
}

// backendContract wraps a Backend and enforces its error-code contract.
type backendContract struct {
	b Backend
}

// Contract wraps b so that every backend implementation is held to the
// same error-code contract. All backend implementations should be
// constructed only through this wrapper.
func Contract(b Backend) Backend {
	return &backendContract{b: b}
}

func (bc *backendContract) Start(ctx context.Context, schemas map[string]*schema.Schema) error {
	err := bc.b.Start(ctx, schemas)
	checkError(err)

	return err
}

func (bc *backendContract) Close() error {
	return bc.b.Close()
}

func (bc *backendContract) Write(ctx context.Context, op *operation.Operation) (*types.Document, error) {
	doc, err := bc.b.Write(ctx, op)
	checkError(err, ErrorCodeCollectionNotFound, ErrorCodeDocumentAlreadyExists, ErrorCodeDocumentNotFound)

	return doc, err
}

func (bc *backendContract) FindDocumentByID(ctx context.Context, collection string, pk any) (*types.Document, bool, error) {
	doc, ok, err := bc.b.FindDocumentByID(ctx, collection, pk)
	checkError(err, ErrorCodeCollectionNotFound)

	return doc, ok, err
}

func (bc *backendContract) Find(ctx context.Context, collection string, query *types.Document) ([]*types.Document, error) {
	docs, err := bc.b.Find(ctx, collection, query)
	checkError(err, ErrorCodeCollectionNotFound)

	return docs, err
}

func (bc *backendContract) Count(ctx context.Context, collection string, query *types.Document) (int64, error) {
	count, err := bc.b.Count(ctx, collection, query)
	checkError(err, ErrorCodeCollectionNotFound)

	return count, err
}

// check interfaces
var _ Backend = (*backendContract)(nil)
