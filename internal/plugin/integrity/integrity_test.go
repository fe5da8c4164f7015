package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust0-project/ridb/internal/types"
)

func mustDoc(t *testing.T, raw string) *types.Document {
	t.Helper()

	doc, err := types.ParseJSON([]byte(raw))
	require.NoError(t, err)

	return doc
}

func TestCreateHookStampsIntegrity(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `{"id":"123","data":"test"}`)

	p := New()
	out, err := p.CreateHook(nil, nil, doc)
	require.NoError(t, err)

	d := out.(*types.Document)
	v, _ := d.Get("__integrity")
	s, ok := v.(string)
	require.True(t, ok)
	assert.Len(t, s, 128) // SHA3-512 hex
}

func TestRecoverHookAcceptsValidDocument(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `{"id":"123","data":"test"}`)

	p := New()
	stamped, err := p.CreateHook(nil, nil, doc)
	require.NoError(t, err)

	_, err = p.RecoverHook(nil, nil, stamped)
	assert.NoError(t, err)
}

func TestRecoverHookRejectsTamperedDocument(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `{"id":"123","data":"test"}`)

	p := New()
	stamped, err := p.CreateHook(nil, nil, doc)
	require.NoError(t, err)

	d := stamped.(*types.Document)
	require.NoError(t, d.Set("data", "tampered"))

	_, err = p.RecoverHook(nil, nil, d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Integrity check failed")
}

func TestRecoverHookRejectsMissingIntegrity(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `{"id":"123"}`)

	p := New()
	_, err := p.RecoverHook(nil, nil, doc)
	assert.Error(t, err)
}

func TestDigestIsKeyOrderIndependent(t *testing.T) {
	t.Parallel()

	a := mustDoc(t, `{"a":1,"b":2}`)
	b := mustDoc(t, `{"b":2,"a":1}`)

	da, err := digestWithout(a)
	require.NoError(t, err)

	db, err := digestWithout(b)
	require.NoError(t, err)

	assert.Equal(t, da, db)
}
