package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/trust0-project/ridb/internal/backends"
	"github.com/trust0-project/ridb/internal/migrate"
	"github.com/trust0-project/ridb/internal/operation"
	"github.com/trust0-project/ridb/internal/plugin"
	"github.com/trust0-project/ridb/internal/query"
	"github.com/trust0-project/ridb/internal/ridberr"
	"github.com/trust0-project/ridb/internal/schema"
	"github.com/trust0-project/ridb/internal/types"
)

// Collection is a handle to one named, schema-bound bucket of documents
// (§4.9). It holds a read-only reference to its schema and migrations and
// borrows the database's backend for each operation.
type Collection struct {
	name       string
	schema     *schema.Schema
	migrations migrate.VersionMap
	chain      *plugin.Chain
	backend    backends.Backend
	log        *zap.Logger
}

// Create runs the create chain over doc and stores it, upserting by
// primary key (§4.9: "create/update (upsert semantics)" — Create and
// Update are two names for the same internal write).
func (c *Collection) Create(ctx context.Context, doc *types.Document) (*types.Document, error) {
	return c.write(ctx, doc)
}

// Update runs the create chain over doc and stores it, upserting by
// primary key. See Create.
func (c *Collection) Update(ctx context.Context, doc *types.Document) (*types.Document, error) {
	return c.write(ctx, doc)
}

// write implements the internal `write` algorithm of §4.9.
func (c *Collection) write(ctx context.Context, doc *types.Document) (*types.Document, error) {
	if err := c.ensurePrimaryKey(doc); err != nil {
		return nil, err
	}

	if err := c.schema.Validate(doc); err != nil {
		return nil, err
	}

	processedAny, err := c.chain.Create(c.schema, c.migrations, doc)
	if err != nil {
		return nil, err
	}

	processed, ok := processedAny.(*types.Document)
	if !ok {
		return nil, ridberr.Validation("create chain did not return a document")
	}

	pk := processed.GetOrNil(c.schema.PrimaryKey)

	_, exists, err := c.backend.FindDocumentByID(ctx, c.name, pk)
	if err != nil {
		return nil, wrapBackendErr(err)
	}

	opType := operation.Create
	if exists {
		opType = operation.Update
	}

	indexes := append(append([]string{}, c.schema.Indexes...), c.schema.PrimaryKey)

	op := operation.New(c.name, opType, processed, indexes)

	stored, err := c.backend.Write(ctx, op)
	if err != nil {
		c.log.Error("write failed", zap.String("op", opType.String()), zap.Error(err))
		return nil, wrapBackendErr(err)
	}

	c.log.Debug("write ok", zap.String("op", opType.String()), zap.Stringer("correlationId", op.CorrelationID))

	return stored, nil
}

// ensurePrimaryKey implements step 1 of the internal `write` algorithm: if
// doc lacks the schema's primary key, assign a default placeholder
// matching the PK property's declared type, then fail if the resulting
// value's runtime type still disagrees with that declaration.
func (c *Collection) ensurePrimaryKey(doc *types.Document) error {
	prop, ok := c.schema.Properties[c.schema.PrimaryKey]
	if !ok {
		return ridberr.Validation("primary key property not found in schema: " + c.schema.PrimaryKey)
	}

	if doc.GetOrNil(c.schema.PrimaryKey) == nil {
		var placeholder any = int64(12345)
		if prop.Type == schema.TypeString {
			placeholder = "12345"
		}

		if err := doc.Set(c.schema.PrimaryKey, placeholder); err != nil {
			return err
		}
	}

	if !prop.Matches(doc.GetOrNil(c.schema.PrimaryKey)) {
		return ridberr.Validation("primary key " + c.schema.PrimaryKey + " has wrong type, expected " + string(prop.Type))
	}

	return nil
}

// FindByID returns the stored, recovered document for pk, or (nil, nil) if
// none exists — absence is not an error (§7 propagation policy).
func (c *Collection) FindByID(ctx context.Context, pk any) (*types.Document, error) {
	doc, ok, err := c.backend.FindDocumentByID(ctx, c.name, pk)
	if err != nil {
		return nil, wrapBackendErr(err)
	}

	if !ok {
		return nil, nil
	}

	return c.recover(doc)
}

// Find returns every stored, recovered document matching q.
func (c *Collection) Find(ctx context.Context, q *types.Document) ([]*types.Document, error) {
	parsed, err := c.parseQuery(q)
	if err != nil {
		return nil, err
	}

	docs, err := c.backend.Find(ctx, c.name, parsed)
	if err != nil {
		return nil, wrapBackendErr(err)
	}

	out := make([]*types.Document, len(docs))

	for i, doc := range docs {
		recovered, err := c.recover(doc)
		if err != nil {
			return nil, err
		}

		out[i] = recovered
	}

	return out, nil
}

// Count returns the number of stored documents matching q.
func (c *Collection) Count(ctx context.Context, q *types.Document) (int64, error) {
	parsed, err := c.parseQuery(q)
	if err != nil {
		return 0, err
	}

	count, err := c.backend.Count(ctx, c.name, parsed)
	if err != nil {
		return 0, wrapBackendErr(err)
	}

	return count, nil
}

// Delete removes the document with the given primary key. It fails if no
// such document exists.
func (c *Collection) Delete(ctx context.Context, pk any) error {
	_, ok, err := c.backend.FindDocumentByID(ctx, c.name, pk)
	if err != nil {
		return wrapBackendErr(err)
	}

	if !ok {
		return ridberr.Backend("no document with primary key")
	}

	op := operation.New(c.name, operation.Delete, pk, nil)

	_, err = c.backend.Write(ctx, op)
	if err != nil {
		return wrapBackendErr(err)
	}

	c.log.Debug("delete ok", zap.Stringer("correlationId", op.CorrelationID))

	return nil
}

// recover runs the recover chain over a copy of a single stored document,
// so that the hooks never rewrite the backend's own record.
func (c *Collection) recover(doc *types.Document) (*types.Document, error) {
	recoveredAny, err := c.chain.Recover(c.schema, c.migrations, doc.DeepClone())
	if err != nil {
		return nil, err
	}

	recovered, ok := recoveredAny.(*types.Document)
	if !ok {
		return nil, ridberr.Validation("recover chain did not return a document")
	}

	return recovered, nil
}

// parseQuery normalizes q and validates it against the schema (§4.2).
func (c *Collection) parseQuery(q *types.Document) (*types.Document, error) {
	normalized, err := query.Normalize(q)
	if err != nil {
		return nil, err
	}

	if err := query.Parse(c.schema, normalized); err != nil {
		return nil, err
	}

	return normalized, nil
}

// wrapBackendErr translates a *backends.Error into the caller-facing
// ridberr taxonomy (§4.11, §6.5/§7), keeping the original as the logging
// cause rather than exposing backend-internal error codes to callers.
func wrapBackendErr(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case backends.ErrorCodeIs(err, backends.ErrorCodeDocumentAlreadyExists):
		return ridberr.Backend("document already exists")
	case backends.ErrorCodeIs(err, backends.ErrorCodeDocumentNotFound):
		return ridberr.Backend("document not found")
	case backends.ErrorCodeIs(err, backends.ErrorCodeCollectionNotFound):
		return ridberr.Backend("unknown collection: " + err.Error())
	default:
		return ridberr.Wrap(ridberr.CodeBackend, "backend error", err)
	}
}
