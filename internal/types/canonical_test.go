package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONSortsKeysRecursively(t *testing.T) {
	t.Parallel()

	doc, err := ParseJSON([]byte(`{"b": {"z": 1, "a": 2}, "a": [3, 1, 2]}`))
	require.NoError(t, err)

	out, err := CanonicalJSON(doc)
	require.NoError(t, err)

	// top-level and nested keys sorted; array order preserved
	assert.Equal(t, `{"a":[3,1,2],"b":{"a":2,"z":1}}`, string(out))
}

func TestCanonicalJSONIsStable(t *testing.T) {
	t.Parallel()

	a, err := ParseJSON([]byte(`{"b":1,"a":2}`))
	require.NoError(t, err)

	b, err := ParseJSON([]byte(`{"a":2,"b":1}`))
	require.NoError(t, err)

	outA, err := CanonicalJSON(a)
	require.NoError(t, err)
	outB, err := CanonicalJSON(b)
	require.NoError(t, err)

	assert.Equal(t, string(outA), string(outB))
}

func TestCanonicalJSONWithoutField(t *testing.T) {
	t.Parallel()

	doc, err := ParseJSON([]byte(`{"a":1,"__integrity":"deadbeef"}`))
	require.NoError(t, err)

	out, err := CanonicalJSONWithout(doc, "__integrity")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(out))

	// original document is untouched
	assert.True(t, doc.Has("__integrity"))
}
