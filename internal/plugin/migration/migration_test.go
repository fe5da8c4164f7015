package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust0-project/ridb/internal/migrate"
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

func TestCreateHookStampsVersion(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":1,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)
	doc := mustDoc(t, `{"id":"123"}`)

	p := New()
	out, err := p.CreateHook(s, nil, doc)
	require.NoError(t, err)

	d := out.(*types.Document)
	v, _ := d.Get("__version")
	assert.Equal(t, int64(1), v)
}

func TestCreateHookLeavesExistingVersion(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":2,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)
	doc := mustDoc(t, `{"id":"123","__version":1}`)

	p := New()
	out, err := p.CreateHook(s, nil, doc)
	require.NoError(t, err)

	d := out.(*types.Document)
	v, _ := d.Get("__version")
	assert.Equal(t, int64(1), v)
}

func TestRecoverHookAppliesSingleMigration(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{
		"version":2,"primaryKey":"id","type":"object",
		"properties":{"id":{"type":"string"},"data":{"type":"string"}}
	}`)
	doc := mustDoc(t, `{"id":"123","data":"test","__version":1}`)

	migrations := migrate.VersionMap{
		2: func(d *types.Document) (*types.Document, error) {
			if err := d.Set("newField", "migrated"); err != nil {
				return nil, err
			}

			return d, nil
		},
	}

	p := New()
	out, err := p.RecoverHook(s, migrations, doc)
	require.NoError(t, err)

	d := out.(*types.Document)

	v, _ := d.Get("newField")
	assert.Equal(t, "migrated", v)

	version, _ := d.Get("__version")
	assert.Equal(t, int64(2), version)
}

func TestRecoverHookAppliesChainInOrder(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":4,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)
	doc := mustDoc(t, `{"id":"123","__version":1}`)

	var order []int

	migrations := migrate.VersionMap{
		2: func(d *types.Document) (*types.Document, error) {
			order = append(order, 2)
			return d, nil
		},
		3: func(d *types.Document) (*types.Document, error) {
			order = append(order, 3)
			return d, nil
		},
		4: func(d *types.Document) (*types.Document, error) {
			order = append(order, 4)
			return d, nil
		},
	}

	p := New()
	out, err := p.RecoverHook(s, migrations, doc)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 4}, order)

	d := out.(*types.Document)
	v, _ := d.Get("__version")
	assert.Equal(t, int64(4), v)
}

func TestRecoverHookNoMigrationNeeded(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":2,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)
	doc := mustDoc(t, `{"id":"123","__version":2}`)

	called := false
	migrations := migrate.VersionMap{
		2: func(d *types.Document) (*types.Document, error) {
			called = true
			return d, nil
		},
	}

	p := New()
	_, err := p.RecoverHook(s, migrations, doc)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRecoverHookMissingMigrationFunctionFails(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":2,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)
	doc := mustDoc(t, `{"id":"123","__version":1}`)

	p := New()
	_, err := p.RecoverHook(s, migrate.VersionMap{}, doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRecoverHookUndefinedMigrationsObjectFails(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":2,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)
	doc := mustDoc(t, `{"id":"123","__version":1}`)

	p := New()
	_, err := p.RecoverHook(s, nil, doc)
	assert.Error(t, err)
}

func TestRecoverHookInvalidVersionTypeFails(t *testing.T) {
	t.Parallel()

	s := mustSchema(t, `{"version":2,"primaryKey":"id","type":"object","properties":{"id":{"type":"string"}}}`)
	doc := mustDoc(t, `{"id":"123","__version":"1"}`)

	p := New()
	_, err := p.RecoverHook(s, migrate.VersionMap{2: func(d *types.Document) (*types.Document, error) { return d, nil }}, doc)
	assert.Error(t, err)
}
