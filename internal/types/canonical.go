package types

import (
	"bytes"

	"github.com/trust0-project/ridb/internal/util/lazyerrors"
)

// CanonicalJSON returns the canonical serialization of v used as input to
// the integrity digest (§4.7): object keys sorted lexicographically at
// every nesting level, array order preserved, numbers rendered with their
// shortest round-trip decimal form.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer

	if err := encodeValue(&buf, v, true); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return buf.Bytes(), nil
}

// CanonicalJSONWithout returns CanonicalJSON(doc) as if the given top-level
// field were absent, without mutating doc.
func CanonicalJSONWithout(doc *Document, field string) ([]byte, error) {
	if !doc.Has(field) {
		return CanonicalJSON(doc)
	}

	stripped := doc.Clone()
	stripped.Remove(field)

	return CanonicalJSON(stripped)
}
