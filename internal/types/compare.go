package types

// KindOf returns the schema property-type name ("string", "number",
// "boolean", "array", "object") that matches the runtime type of v, or ""
// if v does not belong to any of them (only nil falls in that gap).
func KindOf(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int64, float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case *Document:
		return "object"
	default:
		return ""
	}
}

// AsFloat64 converts a number value (int64 or float64) to float64. ok is
// false for any other type.
func AsFloat64(v any) (f float64, ok bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// Equal reports whether two scalar/array/object values are deep-equal,
// comparing numbers by value regardless of int64/float64 representation.
func Equal(a, b any) bool {
	switch at := a.(type) {
	case nil:
		return b == nil
	case bool:
		bt, ok := b.(bool)
		return ok && at == bt
	case string:
		bt, ok := b.(string)
		return ok && at == bt
	case int64, float64:
		af, aok := AsFloat64(a)
		bf, bok := AsFloat64(b)

		return aok && bok && af == bf
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}

		for i := range at {
			if !Equal(at[i], bt[i]) {
				return false
			}
		}

		return true
	case *Document:
		bt, ok := b.(*Document)
		if !ok || at.Len() != bt.Len() {
			return false
		}

		for _, k := range at.Keys() {
			bv, err := bt.Get(k)
			if err != nil {
				return false
			}

			av, _ := at.Get(k)
			if !Equal(av, bv) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// Truthy implements the JavaScript-style truthiness test the spec uses for
// boolean direct-scalar comparisons ("string→string, boolean→truthy/falsy
// test").
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return true
	case *Document:
		return true
	default:
		return true
	}
}

// Compare returns -1, 0, or 1 if a is less than, equal to, or greater than
// b. Only defined for numbers (per spec §4.2, numeric-only $gt/$gte/$lt/$lte).
// ok is false if either value is not a number.
func Compare(a, b any) (cmp int, ok bool) {
	af, aok := AsFloat64(a)
	bf, bok := AsFloat64(b)

	if !aok || !bok {
		return 0, false
	}

	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}
