// Package types implements the dynamic, JSON-shaped document model the
// rest of the engine operates on: Document (an ordered string-keyed map),
// arrays ([]any), and scalars (string, bool, int64, float64, nil).
//
// This is modeled on FerretDB's internal/types.Document: an ordered map
// backed by a keys slice plus a lookup map, so that field order supplied
// by the caller survives a round trip even though Go's map type does not
// preserve it.
package types

import (
	"fmt"

	"github.com/trust0-project/ridb/internal/util/lazyerrors"
)

// Document represents a JSON object with preserved key order.
type Document struct {
	keys []string
	m    map[string]any
}

// NewDocument creates a Document from alternating key/value pairs, e.g.
// NewDocument("a", 1, "b", "x").
func NewDocument(pairs ...any) (*Document, error) {
	if len(pairs)%2 != 0 {
		return nil, lazyerrors.Errorf("types.NewDocument: odd number of arguments")
	}

	doc := new(Document)

	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, lazyerrors.Errorf("types.NewDocument: invalid key type: %T", pairs[i])
		}

		if err := doc.Set(key, pairs[i+1]); err != nil {
			return nil, lazyerrors.Error(err)
		}
	}

	return doc, nil
}

// Len returns the number of fields. A nil Document has length 0.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}

	return len(d.keys)
}

// Keys returns the fields in insertion order. A nil Document returns nil.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}

	return d.keys
}

// Map returns the underlying key/value map. Callers must not mutate it;
// use Set/Remove instead. A nil Document returns nil.
func (d *Document) Map() map[string]any {
	if d == nil {
		return nil
	}

	return d.m
}

// Has reports whether the field is present (regardless of its value,
// including an explicit nil).
func (d *Document) Has(key string) bool {
	if d == nil {
		return false
	}

	_, ok := d.m[key]

	return ok
}

// Get returns the value of key, or an error if it is absent.
func (d *Document) Get(key string) (any, error) {
	if !d.Has(key) {
		return nil, lazyerrors.Errorf("types.Document.Get: key not found: %q", key)
	}

	return d.m[key], nil
}

// GetOrNil returns the value of key, or nil if it is absent.
func (d *Document) GetOrNil(key string) any {
	if d == nil {
		return nil
	}

	v, _ := d.m[key]

	return v
}

// Set assigns key to value, appending key to the order if it is new.
func (d *Document) Set(key string, value any) error {
	if err := validateValue(value); err != nil {
		return lazyerrors.Error(err)
	}

	if d.m == nil {
		d.m = map[string]any{}
	}

	if _, ok := d.m[key]; !ok {
		d.keys = append(d.keys, key)
	}

	d.m[key] = value

	return nil
}

// Remove deletes key if present; it is a no-op otherwise.
func (d *Document) Remove(key string) {
	if d == nil || !d.Has(key) {
		return
	}

	delete(d.m, key)

	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a shallow copy: top-level fields are copied, but nested
// Documents/arrays are shared with the original. Callers that need to
// mutate nested structures should Clone those too.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}

	clone := &Document{
		keys: append([]string(nil), d.keys...),
		m:    make(map[string]any, len(d.m)),
	}

	for k, v := range d.m {
		clone.m[k] = v
	}

	return clone
}

// DeepClone returns a copy where every nested Document is also cloned.
// Arrays are copied as new slices; their elements are deep-cloned too.
func (d *Document) DeepClone() *Document {
	if d == nil {
		return nil
	}

	clone := &Document{
		keys: append([]string(nil), d.keys...),
		m:    make(map[string]any, len(d.m)),
	}

	for k, v := range d.m {
		clone.m[k] = deepCloneValue(v)
	}

	return clone
}

func deepCloneValue(v any) any {
	switch t := v.(type) {
	case *Document:
		return t.DeepClone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCloneValue(e)
		}

		return out
	default:
		return v
	}
}

// validateValue rejects Go values that do not belong to our dynamic value
// model: nil, bool, int64, float64, string, []any, *Document.
func validateValue(v any) error {
	switch v.(type) {
	case nil, bool, int64, float64, string, []any, *Document:
		return nil
	default:
		return lazyerrors.Errorf("types.validateValue: unsupported type: %T (%v)", v, v)
	}
}

// check interfaces
var _ fmt.Stringer = (*Document)(nil)

// String implements fmt.Stringer for debugging.
func (d *Document) String() string {
	b, err := MarshalJSON(d)
	if err != nil {
		return fmt.Sprintf("<invalid document: %v>", err)
	}

	return string(b)
}
