package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trust0-project/ridb/internal/backends/memory"
	"github.com/trust0-project/ridb/internal/migrate"
	"github.com/trust0-project/ridb/internal/operation"
	"github.com/trust0-project/ridb/internal/plugin/integrity"
	"github.com/trust0-project/ridb/internal/ridberr"
	"github.com/trust0-project/ridb/internal/schema"
	"github.com/trust0-project/ridb/internal/types"
)

func mustSchema(t *testing.T, raw string) *schema.Schema {
	t.Helper()

	doc, err := types.ParseJSON([]byte(raw))
	require.NoError(t, err)

	s, err := schema.Parse(doc)
	require.NoError(t, err)

	return s
}

func mustDoc(t *testing.T, raw string) *types.Document {
	t.Helper()

	doc, err := types.ParseJSON([]byte(raw))
	require.NoError(t, err)

	return doc
}

func openAndStart(t *testing.T, opts Options) *Database {
	t.Helper()

	db, err := Open(opts)
	require.NoError(t, err)
	require.NoError(t, db.Start(context.Background()))

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// Scenario 1: Defaults.
func TestScenarioDefaults(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{
		"version":0,"primaryKey":"id","type":"object",
		"properties":{
			"id":{"type":"string"},
			"role":{"type":"string","default":"user"}
		}
	}`)

	db := openAndStart(t, Options{Name: "t", Schemas: map[string]*schema.Schema{"users": s}})
	coll, err := db.Collection("users")
	require.NoError(t, err)

	ctx := context.Background()

	_, err = coll.Create(ctx, mustDoc(t, `{"id":"a"}`))
	require.NoError(t, err)

	got, err := coll.FindByID(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)

	role, _ := got.Get("role")
	assert.Equal(t, "user", role)
}

// Scenario 2: Integrity tamper.
func TestScenarioIntegrityTamper(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{
		"version":0,"primaryKey":"id","type":"object",
		"properties":{"id":{"type":"string"},"role":{"type":"string"}}
	}`)

	b := memory.New()
	db := openAndStart(t, Options{Name: "t", Schemas: map[string]*schema.Schema{"users": s}, Backend: b})
	coll, err := db.Collection("users")
	require.NoError(t, err)

	ctx := context.Background()
	_, err = coll.Create(ctx, mustDoc(t, `{"id":"a","role":"user"}`))
	require.NoError(t, err)

	stored, ok, err := b.FindDocumentByID(ctx, "users", "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, stored.Set("role", "admin"))

	_, err = coll.FindByID(ctx, "a")
	require.Error(t, err)
	assert.True(t, ridberr.Is(err, ridberr.CodeIntegrity))
}

// Scenario 3: Encryption.
func TestScenarioEncryption(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{
		"version":0,"primaryKey":"id","type":"object",
		"encrypted":["secret"],
		"properties":{"id":{"type":"string"},"secret":{"type":"string"}}
	}`)

	b := memory.New()
	db := openAndStart(t, Options{Name: "t", Schemas: map[string]*schema.Schema{"users": s}, Backend: b, Password: "pw"})
	coll, err := db.Collection("users")
	require.NoError(t, err)

	ctx := context.Background()
	_, err = coll.Create(ctx, mustDoc(t, `{"id":"a","secret":"x"}`))
	require.NoError(t, err)

	raw, ok, err := b.FindDocumentByID(ctx, "users", "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, raw.GetOrNil("secret"))
	assert.NotNil(t, raw.GetOrNil("__encrypted"))

	got, err := coll.FindByID(ctx, "a")
	require.NoError(t, err)

	secret, _ := got.Get("secret")
	assert.Equal(t, "x", secret)

	// A second collection handle over the same already-started backend but
	// the wrong password must fail to decrypt.
	coll2 := &Collection{
		name:    "users",
		schema:  s,
		chain:   buildChain(Options{Password: "pw2"}),
		backend: db.backend,
		log:     zap.NewNop(),
	}

	_, err = coll2.FindByID(ctx, "a")
	assert.Error(t, err)
}

// Scenario 4: Migration chain.
func TestScenarioMigrationChain(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{
		"version":3,"primaryKey":"id","type":"object",
		"properties":{"id":{"type":"string"}}
	}`)

	migrations := migrate.Set{
		"users": migrate.VersionMap{
			1: func(d *types.Document) (*types.Document, error) { return d, nil },
			2: func(d *types.Document) (*types.Document, error) {
				return d, d.Set("v2", true)
			},
			3: func(d *types.Document) (*types.Document, error) {
				return d, d.Set("v3", true)
			},
		},
	}

	b := memory.New()
	db := openAndStart(t, Options{
		Name:       "t",
		Schemas:    map[string]*schema.Schema{"users": s},
		Migrations: migrations,
		Backend:    b,
	})

	ctx := context.Background()

	// A record written at version 1 carries its integrity stamp, which the
	// recover chain verifies before migrating.
	seed, err := integrity.New().CreateHook(s, nil, mustDoc(t, `{"id":"a","__version":1}`))
	require.NoError(t, err)

	_, err = b.Write(ctx, operation.New("users", operation.Create, seed, nil))
	require.NoError(t, err)

	coll, err := db.Collection("users")
	require.NoError(t, err)

	got, err := coll.FindByID(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)

	v2, _ := got.Get("v2")
	v3, _ := got.Get("v3")
	version, _ := got.Get("__version")

	assert.Equal(t, true, v2)
	assert.Equal(t, true, v3)
	assert.Equal(t, int64(3), version)
}

// Scenario 5: Query $or/$and.
func TestScenarioQueryAndOr(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{
		"version":0,"primaryKey":"id","type":"object",
		"properties":{"id":{"type":"string"},"status":{"type":"string"},"age":{"type":"number"}}
	}`)

	db := openAndStart(t, Options{Name: "t", Schemas: map[string]*schema.Schema{"users": s}})
	coll, err := db.Collection("users")
	require.NoError(t, err)

	ctx := context.Background()

	for _, raw := range []string{
		`{"id":"1","status":"active","age":30}`,
		`{"id":"2","status":"active","age":35}`,
		`{"id":"3","status":"inactive","age":40}`,
	} {
		_, err := coll.Create(ctx, mustDoc(t, raw))
		require.NoError(t, err)
	}

	results, err := coll.Find(ctx, mustDoc(t, `{"status":"active","age":{"$gt":30}}`))
	require.NoError(t, err)
	require.Len(t, results, 1)

	id, _ := results[0].Get("id")
	assert.Equal(t, "2", id)
}

// Scenario 6: Invalid query.
func TestScenarioInvalidQuery(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{
		"version":0,"primaryKey":"id","type":"object",
		"properties":{"id":{"type":"string"}}
	}`)

	db := openAndStart(t, Options{Name: "t", Schemas: map[string]*schema.Schema{"users": s}})
	coll, err := db.Collection("users")
	require.NoError(t, err)

	_, err = coll.Find(context.Background(), mustDoc(t, `{"foo":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid property: foo")
}

func TestCreateTwiceUpserts(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":0,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"},"n":{"type":"number"}}}`)
	db := openAndStart(t, Options{Name: "t", Schemas: map[string]*schema.Schema{"c": s}})
	coll, err := db.Collection("c")
	require.NoError(t, err)

	ctx := context.Background()

	_, err = coll.Create(ctx, mustDoc(t, `{"id":"a","n":1}`))
	require.NoError(t, err)

	// A second Create with the same primary key is an upsert, not a
	// failure (§4.9: "create/update (upsert semantics)").
	_, err = coll.Create(ctx, mustDoc(t, `{"id":"a","n":2}`))
	require.NoError(t, err)

	got, err := coll.FindByID(ctx, "a")
	require.NoError(t, err)
	n, _ := got.Get("n")
	assert.Equal(t, int64(2), n)
}

func TestUpdateWithoutExistingUpserts(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":0,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)
	db := openAndStart(t, Options{Name: "t", Schemas: map[string]*schema.Schema{"c": s}})
	coll, err := db.Collection("c")
	require.NoError(t, err)

	ctx := context.Background()

	// Update on a primary key that doesn't exist yet is an upsert
	// (§4.9), not a failure.
	_, err = coll.Update(ctx, mustDoc(t, `{"id":"a"}`))
	require.NoError(t, err)

	got, err := coll.FindByID(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestDeleteMissingFails(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":0,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)
	db := openAndStart(t, Options{Name: "t", Schemas: map[string]*schema.Schema{"c": s}})
	coll, err := db.Collection("c")
	require.NoError(t, err)

	err = coll.Delete(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, ridberr.Is(err, ridberr.CodeBackend))
}

// Backend errors (a distinct *backends.Error taxonomy) are translated to
// the caller-facing *ridberr.Error taxonomy at the Collection boundary
// (§4.11, §6.5/§7), not returned unwrapped.
func TestBackendErrorsAreWrappedInRidberrTaxonomy(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":0,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)
	db := openAndStart(t, Options{Name: "t", Schemas: map[string]*schema.Schema{"c": s}})
	coll, err := db.Collection("c")
	require.NoError(t, err)

	// A handle on a collection the backend was never started with makes the
	// backend itself fail with a *backends.Error (CollectionNotFound).
	ghost := *coll
	ghost.name = "ghost"

	_, err = ghost.FindByID(context.Background(), "a")
	require.Error(t, err)

	var ridErr *ridberr.Error

	require.ErrorAs(t, err, &ridErr)
	assert.Equal(t, ridberr.CodeBackend, ridErr.Code())
}

// Absent primary keys get a declared-type placeholder instead of failing
// (§4.9 step 1; original_source/src/storage/mod.rs ensure_primary_key).
func TestMissingPrimaryKeyGetsStringPlaceholder(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":0,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)
	db := openAndStart(t, Options{Name: "t", Schemas: map[string]*schema.Schema{"c": s}})
	coll, err := db.Collection("c")
	require.NoError(t, err)

	ctx := context.Background()

	stored, err := coll.Create(ctx, mustDoc(t, `{}`))
	require.NoError(t, err)

	id, _ := stored.Get("id")
	assert.Equal(t, "12345", id)

	got, err := coll.FindByID(ctx, "12345")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestMissingPrimaryKeyGetsNumberPlaceholder(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":0,"primaryKey":"id","type":"object","properties":{"id":{"type":"number"}}}`)
	db := openAndStart(t, Options{Name: "t", Schemas: map[string]*schema.Schema{"c": s}})
	coll, err := db.Collection("c")
	require.NoError(t, err)

	stored, err := coll.Create(context.Background(), mustDoc(t, `{}`))
	require.NoError(t, err)

	id, _ := stored.Get("id")
	assert.Equal(t, int64(12345), id)
}

// A caller-supplied primary key whose runtime type disagrees with the
// declared type still fails validation; only an absent key is defaulted.
func TestWrongTypePrimaryKeyFails(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":0,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)
	db := openAndStart(t, Options{Name: "t", Schemas: map[string]*schema.Schema{"c": s}})
	coll, err := db.Collection("c")
	require.NoError(t, err)

	_, err = coll.Create(context.Background(), mustDoc(t, `{"id":42}`))
	require.Error(t, err)
	assert.True(t, ridberr.Is(err, ridberr.CodeValidation))
}

func TestOpenFailsOnMissingMigrations(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":2,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)

	_, err := Open(Options{Name: "t", Schemas: map[string]*schema.Schema{"c": s}})
	require.Error(t, err)
	assert.True(t, ridberr.Is(err, ridberr.CodeMigration))
}

func TestStartTwiceFails(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":0,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)
	db := openAndStart(t, Options{Name: "t", Schemas: map[string]*schema.Schema{"c": s}})

	err := db.Start(context.Background())
	require.Error(t, err)
	assert.True(t, ridberr.Is(err, ridberr.CodeLifecycle))
}

func TestCollectionBeforeStartFails(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":0,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)

	db, err := Open(Options{Name: "t", Schemas: map[string]*schema.Schema{"c": s}})
	require.NoError(t, err)

	_, err = db.Collection("c")
	require.Error(t, err)
	assert.True(t, ridberr.Is(err, ridberr.CodeLifecycle))
}
