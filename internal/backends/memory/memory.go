// Package memory implements the reference in-memory backend (§4.10): a
// mapping-of-mappings keyed "pk_<collection>_<primaryKey>" → pkString →
// document, grounded on the original implementation's RwLock<HashMap<...>>
// design.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/trust0-project/ridb/internal/backends"
	"github.com/trust0-project/ridb/internal/operation"
	"github.com/trust0-project/ridb/internal/query"
	"github.com/trust0-project/ridb/internal/ridberr"
	"github.com/trust0-project/ridb/internal/schema"
	"github.com/trust0-project/ridb/internal/types"
)

// Backend is an in-memory, per-process Backend implementation. It holds no
// durable state: closing it discards everything.
type Backend struct {
	mu      sync.Mutex
	schemas map[string]*schema.Schema
	byIndex map[string]map[string]*types.Document
}

// New constructs an empty in-memory backend.
func New() *Backend {
	return &Backend{}
}

// Start implements backends.Backend.
func (b *Backend) Start(_ context.Context, schemas map[string]*schema.Schema) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.schemas = schemas
	b.byIndex = make(map[string]map[string]*types.Document, len(schemas))

	return nil
}

// Close implements backends.Backend: it clears all indexes. A reopened
// backend starts empty.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.byIndex = nil

	return nil
}

// Write implements backends.Backend.
func (b *Backend) Write(_ context.Context, op *operation.Operation) (*types.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.schemas[op.Collection]
	if !ok {
		return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, nil)
	}

	index := b.indexFor(op.Collection, s.PrimaryKey)

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

		_, exists := index[pk]

		if op.OpType == operation.Create && exists {
			return nil, backends.NewError(backends.ErrorCodeDocumentAlreadyExists, nil)
		}

		if op.OpType == operation.Update && !exists {
			return nil, backends.NewError(backends.ErrorCodeDocumentNotFound, nil)
		}

		index[pk] = doc

		return doc, nil
	case operation.Delete:
		pk, err := pkString(op.Data)
		if err != nil {
			return nil, err
		}

		doc, exists := index[pk]
		if !exists {
			return nil, backends.NewError(backends.ErrorCodeDocumentNotFound, nil)
		}

		delete(index, pk)

		return doc, nil
	default:
		return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, ridberr.Backend("unsupported operation type for write"))
	}
}

// FindDocumentByID implements backends.Backend.
func (b *Backend) FindDocumentByID(_ context.Context, collection string, pk any) (*types.Document, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.schemas[collection]
	if !ok {
		return nil, false, backends.NewError(backends.ErrorCodeCollectionNotFound, nil)
	}

	pkStr, err := pkString(pk)
	if err != nil {
		return nil, false, err
	}

	index := b.indexFor(collection, s.PrimaryKey)

	doc, ok := index[pkStr]

	return doc, ok, nil
}

// Find implements backends.Backend.
func (b *Backend) Find(_ context.Context, collection string, q *types.Document) ([]*types.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.schemas[collection]
	if !ok {
		return nil, backends.NewError(backends.ErrorCodeCollectionNotFound, nil)
	}

	index := b.indexFor(collection, s.PrimaryKey)

	var out []*types.Document

	for _, doc := range index {
		if query.Matches(doc, q) {
			out = append(out, doc)
		}
	}

	return out, nil
}

// Count implements backends.Backend.
func (b *Backend) Count(_ context.Context, collection string, q *types.Document) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.schemas[collection]
	if !ok {
		return 0, backends.NewError(backends.ErrorCodeCollectionNotFound, nil)
	}

	index := b.indexFor(collection, s.PrimaryKey)

	var count int64

	for _, doc := range index {
		if query.Matches(doc, q) {
			count++
		}
	}

	return count, nil
}

// indexFor returns (lazily creating) the index map for a collection. Callers
// must hold b.mu.
func (b *Backend) indexFor(collection, primaryKey string) map[string]*types.Document {
	name := "pk_" + collection + "_" + primaryKey

	index, ok := b.byIndex[name]
	if !ok {
		index = make(map[string]*types.Document)
		b.byIndex[name] = index
	}

	return index
}

// pkString normalizes a primary-key value to its string or numeric-string
// keying form.
func pkString(v any) (string, error) {
	switch pk := v.(type) {
	case string:
		return pk, nil
	case int64:
		return strconv.FormatInt(pk, 10), nil
	case float64:
		return strconv.FormatFloat(pk, 'g', -1, 64), nil
	default:
		return "", backends.NewError(backends.ErrorCodeDocumentNotFound, ridberr.Backend("primary key must be a string or number"))
	}
}

// check interfaces
var _ backends.Backend = (*Backend)(nil)
