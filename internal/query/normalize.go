// Package query implements the query grammar of §4.2: normalization into
// an $and/$or tree of single-condition leaves, schema-aware parsing that
// validates attribute names/operators/argument types, and evaluation of a
// query (normalized or not, per invariant 6) against a document.
package query

import (
	"github.com/trust0-project/ridb/internal/ridberr"
	"github.com/trust0-project/ridb/internal/types"
)

const (
	opAnd = "$and"
	opOr  = "$or"
)

func isLogicalKey(k string) bool {
	return k == opAnd || k == opOr
}

// Normalize implements getQuery (§4.2): it rewrites q into an $and/$or tree
// of single-condition leaves. It is idempotent (invariant 5).
func Normalize(q *types.Document) (*types.Document, error) {
	keys := q.Keys()

	if len(keys) == 1 {
		k := keys[0]

		if isLogicalKey(k) {
			arr, err := normalizeLogicalArray(q.GetOrNil(k))
			if err != nil {
				return nil, err
			}

			return types.NewDocument(k, arr)
		}

		// already a single-condition leaf; wrapping minimally means identity.
		return q, nil
	}

	parts := make([]any, 0, len(keys))

	for _, k := range keys {
		v := q.GetOrNil(k)

		if isLogicalKey(k) {
			arr, err := normalizeLogicalArray(v)
			if err != nil {
				return nil, err
			}

			part, err := types.NewDocument(k, arr)
			if err != nil {
				return nil, err
			}

			parts = append(parts, part)

			continue
		}

		part, err := types.NewDocument(k, v)
		if err != nil {
			return nil, err
		}

		parts = append(parts, part)
	}

	return types.NewDocument(opAnd, parts)
}

// normalizeLogicalArray normalizes every sub-query in a $and/$or value,
// failing if the value is not an array or an element is not an object.
func normalizeLogicalArray(v any) ([]any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, ridberr.Validation("logical operator value must be an array")
	}

	out := make([]any, len(arr))

	for i, sub := range arr {
		subDoc, ok := sub.(*types.Document)
		if !ok {
			return nil, ridberr.Validation("logical operator array elements must be objects")
		}

		normalized, err := Normalize(subDoc)
		if err != nil {
			return nil, err
		}

		out[i] = normalized
	}

	return out, nil
}
