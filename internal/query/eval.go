package query

import "github.com/trust0-project/ridb/internal/types"

// Matches implements document_matches_query (§4.2): a recursive predicate
// over a query (normalized or not) and a document. It never errors —
// malformed structure (an unparseable query would have been rejected by
// Parse already) simply fails to match.
func Matches(doc *types.Document, q *types.Document) bool {
	keys := q.Keys()
	if len(keys) == 0 {
		return true
	}

	for _, k := range keys {
		v := q.GetOrNil(k)

		switch k {
		case opAnd:
			if !matchesAnd(doc, v) {
				return false
			}
		case opOr:
			if !matchesOr(doc, v) {
				return false
			}
		default:
			if !evaluateCondition(doc, k, v) {
				return false
			}
		}
	}

	return true
}

func matchesAnd(doc *types.Document, v any) bool {
	arr, ok := v.([]any)
	if !ok {
		return false
	}

	for _, sub := range arr {
		subDoc, ok := sub.(*types.Document)
		if !ok || !Matches(doc, subDoc) {
			return false
		}
	}

	return true
}

func matchesOr(doc *types.Document, v any) bool {
	arr, ok := v.([]any)
	if !ok {
		return false
	}

	for _, sub := range arr {
		if subDoc, ok := sub.(*types.Document); ok && Matches(doc, subDoc) {
			return true
		}
	}

	return false
}

// evaluateCondition implements evaluate_condition for one attribute key.
func evaluateCondition(doc *types.Document, field string, cond any) bool {
	value, hasField := doc.Map()[field]

	condDoc, isOpObject := cond.(*types.Document)
	if !isOpObject {
		return hasField && equalTypeAware(value, cond)
	}

	for _, opKey := range condDoc.Keys() {
		arg := condDoc.GetOrNil(opKey)

		if !evaluateOp(opKey, value, hasField, arg) {
			return false
		}
	}

	return true
}

func evaluateOp(op string, value any, hasField bool, arg any) bool {
	switch op {
	case opIn:
		if !hasField {
			return false
		}

		arr, ok := arg.([]any)
		if !ok {
			return false
		}

		for _, e := range arr {
			if types.Equal(value, e) {
				return true
			}
		}

		return false
	case opGt:
		return hasField && compareOk(value, arg, func(c int) bool { return c > 0 })
	case opGte:
		return hasField && compareOk(value, arg, func(c int) bool { return c >= 0 })
	case opLt:
		return hasField && compareOk(value, arg, func(c int) bool { return c < 0 })
	case opLte:
		return hasField && compareOk(value, arg, func(c int) bool { return c <= 0 })
	default:
		return false
	}
}

func compareOk(value, arg any, pred func(int) bool) bool {
	c, ok := types.Compare(value, arg)

	return ok && pred(c)
}

// equalTypeAware compares a document field value against a direct scalar
// condition, picking the comparison strategy from the condition's own
// type (string/number/boolean are compared directly; anything else falls
// back to structural equality).
func equalTypeAware(value, cond any) bool {
	switch cond.(type) {
	case string:
		s, ok := value.(string)
		cs, _ := cond.(string)

		return ok && s == cs
	case bool:
		return types.Truthy(value) == types.Truthy(cond)
	case int64, float64:
		vf, vok := types.AsFloat64(value)
		cf, cok := types.AsFloat64(cond)

		return vok && cok && vf == cf
	default:
		return types.Equal(value, cond)
	}
}
