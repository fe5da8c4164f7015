package query

import (
	"github.com/trust0-project/ridb/internal/ridberr"
	"github.com/trust0-project/ridb/internal/schema"
	"github.com/trust0-project/ridb/internal/types"
)

const (
	opGt  = "$gt"
	opGte = "$gte"
	opLt  = "$lt"
	opLte = "$lte"
	opIn  = "$in"
)

// Parse validates q (normalized or not — it recurses the same way
// regardless, per invariant 6) against s: every attribute key must be a
// declared property, and every operator argument must match that
// property's declared type.
func Parse(s *schema.Schema, q *types.Document) error {
	keys := q.Keys()

	for _, k := range keys {
		v := q.GetOrNil(k)

		if isLogicalKey(k) {
			arr, ok := v.([]any)
			if !ok {
				return ridberr.Validation("logical operator value must be an array")
			}

			for _, sub := range arr {
				subDoc, ok := sub.(*types.Document)
				if !ok {
					return ridberr.Validation("logical operator array elements must be objects")
				}

				if err := Parse(s, subDoc); err != nil {
					return err
				}
			}

			continue
		}

		if err := parseFieldCondition(s, k, v); err != nil {
			return err
		}
	}

	return nil
}

func parseFieldCondition(s *schema.Schema, field string, cond any) error {
	prop, ok := s.Properties[field]
	if !ok {
		return ridberr.Validation("Invalid property: " + field)
	}

	condDoc, ok := cond.(*types.Document)
	if !ok {
		if !scalarMatchesProperty(prop, cond) {
			return ridberr.Validation("Invalid value type for property: " + field)
		}

		return nil
	}

	for _, opKey := range condDoc.Keys() {
		arg := condDoc.GetOrNil(opKey)

		switch opKey {
		case opIn:
			arr, ok := arg.([]any)
			if !ok {
				return ridberr.Validation("$in argument must be an array")
			}

			for _, e := range arr {
				if !prop.Matches(e) {
					return ridberr.Validation("Invalid value type for property: " + field)
				}
			}
		case opGt, opGte, opLt, opLte:
			if prop.Type != schema.TypeNumber {
				return ridberr.Validation("operator " + opKey + " is only valid for number properties")
			}

			if _, ok := types.AsFloat64(arg); !ok {
				return ridberr.Validation("operator " + opKey + " argument must be a number")
			}
		default:
			return ridberr.Validation("Invalid operator: " + opKey)
		}
	}

	return nil
}

// scalarMatchesProperty validates a direct-scalar field condition against
// the property's declared type (§4.2 parse): "number→f64-convertible,
// string→string, boolean→truthy/falsy test" (i.e. any value is accepted
// for a boolean property, since truthiness is always defined).
func scalarMatchesProperty(prop *schema.Property, v any) bool {
	switch prop.Type {
	case schema.TypeNumber:
		_, ok := types.AsFloat64(v)
		return ok
	case schema.TypeString:
		_, ok := v.(string)
		return ok
	case schema.TypeBoolean:
		return true
	default:
		return prop.Matches(v)
	}
}
