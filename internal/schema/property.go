// Package schema implements the Schema and Property model (§3, §4.1 of the
// specification): parsing a schema from a JSON document, validating a
// Property's own declaration, and validating a document against a schema.
package schema

import (
	"github.com/AlekSi/pointer"

	"github.com/trust0-project/ridb/internal/ridberr"
	"github.com/trust0-project/ridb/internal/types"
)

// PropertyType enumerates the JSON types a Property can declare.
type PropertyType string

// Property types recognized by the schema model.
const (
	TypeString  PropertyType = "string"
	TypeNumber  PropertyType = "number"
	TypeBoolean PropertyType = "boolean"
	TypeArray   PropertyType = "array"
	TypeObject  PropertyType = "object"
)

// Property describes one field of a Schema.
type Property struct {
	Type PropertyType

	// string bounds
	MaxLength *int
	MinLength *int

	// array bounds and element type
	Items    []*Property
	MaxItems *int
	MinItems *int

	// object nested properties
	Properties map[string]*Property

	// any type
	Default      any
	HasDefault   bool
	RequiredFlag *bool // nil means "default true when Default is absent"
}

// IsRequired reports whether the field is required absent an explicit
// "required: false" and absent a default (§3 Property: "required?
// (boolean; default true when default absent)").
func (p *Property) IsRequired() bool {
	if p.RequiredFlag != nil {
		return *p.RequiredFlag
	}

	return !p.HasDefault
}

// IsValid checks a Property's own declaration (§4.1): bounds are
// internally consistent and array/object properties carry their required
// sub-declarations.
func (p *Property) IsValid() error {
	switch p.Type {
	case TypeString:
		return validateLengthBounds(p.MinLength, p.MaxLength)
	case TypeNumber, TypeBoolean:
		return nil
	case TypeArray:
		if len(p.Items) == 0 {
			return ridberr.Validation("array property must declare a non-empty items list")
		}

		if err := p.Items[0].IsValid(); err != nil {
			return err
		}

		return validateLengthBounds(p.MinItems, p.MaxItems)
	case TypeObject:
		if len(p.Properties) == 0 {
			return ridberr.Validation("object property must declare at least one nested property")
		}

		for name, child := range p.Properties {
			if err := child.IsValid(); err != nil {
				return ridberr.Validation("invalid nested property " + name + ": " + err.Error())
			}
		}

		return nil
	default:
		return ridberr.Validation("unknown property type: " + string(p.Type))
	}
}

// validateLengthBounds enforces "minItems >= 0; if maxItems >= 1 then
// minItems <= maxItems" (and the analogous rule for string length bounds).
func validateLengthBounds(min, max *int) error {
	if min != nil && *min < 0 {
		return ridberr.Validation("minimum bound must not be negative")
	}

	if max != nil && *max >= 1 && min != nil && *min > *max {
		return ridberr.Validation("minimum bound must not exceed maximum bound")
	}

	return nil
}

// Matches reports whether v's runtime type matches this Property's
// declared type (§4.1: "object excludes null/array").
func (p *Property) Matches(v any) bool {
	switch p.Type {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := types.AsFloat64(v)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	case TypeObject:
		_, ok := v.(*types.Document)
		return ok
	default:
		return false
	}
}

// ParseProperty parses a Property from a JSON document value (as produced
// by types.ParseJSON or provided by a caller in code).
func ParseProperty(v any) (*Property, error) {
	doc, ok := v.(*types.Document)
	if !ok {
		return nil, ridberr.Validation("property declaration must be an object")
	}

	rawType, err := doc.Get("type")
	if err != nil {
		return nil, ridberr.Validation("property declaration missing \"type\"")
	}

	typeStr, ok := rawType.(string)
	if !ok {
		return nil, ridberr.Validation("property \"type\" must be a string")
	}

	p := &Property{Type: PropertyType(typeStr)}

	if doc.Has("default") {
		p.Default = doc.GetOrNil("default")
		p.HasDefault = true
	}

	if doc.Has("required") {
		rb, ok := doc.GetOrNil("required").(bool)
		if !ok {
			return nil, ridberr.Validation("property \"required\" must be a boolean")
		}

		p.RequiredFlag = pointer.ToBool(rb)
	}

	switch p.Type {
	case TypeString:
		if err := parseLengthBounds(doc, "minLength", "maxLength", &p.MinLength, &p.MaxLength); err != nil {
			return nil, err
		}
	case TypeArray:
		if err := parseLengthBounds(doc, "minItems", "maxItems", &p.MinItems, &p.MaxItems); err != nil {
			return nil, err
		}

		rawItems, err := doc.Get("items")
		if err != nil {
			return nil, ridberr.Validation("array property missing \"items\"")
		}

		items, ok := rawItems.([]any)
		if !ok || len(items) == 0 {
			return nil, ridberr.Validation("array property \"items\" must be a non-empty array")
		}

		elem, err := ParseProperty(items[0])
		if err != nil {
			return nil, err
		}

		p.Items = []*Property{elem}
	case TypeObject:
		rawProps, err := doc.Get("properties")
		if err != nil {
			return nil, ridberr.Validation("object property missing \"properties\"")
		}

		propsDoc, ok := rawProps.(*types.Document)
		if !ok || propsDoc.Len() == 0 {
			return nil, ridberr.Validation("object property \"properties\" must be a non-empty object")
		}

		props := make(map[string]*Property, propsDoc.Len())

		for _, name := range propsDoc.Keys() {
			child, err := ParseProperty(propsDoc.GetOrNil(name))
			if err != nil {
				return nil, err
			}

			props[name] = child
		}

		p.Properties = props
	case TypeNumber, TypeBoolean:
		// no extra fields
	default:
		return nil, ridberr.Validation("unknown property type: " + typeStr)
	}

	if err := p.IsValid(); err != nil {
		return nil, err
	}

	return p, nil
}

func parseLengthBounds(doc *types.Document, minKey, maxKey string, min, max **int) error {
	if doc.Has(minKey) {
		f, ok := types.AsFloat64(doc.GetOrNil(minKey))
		if !ok {
			return ridberr.Validation("\"" + minKey + "\" must be a number")
		}

		*min = pointer.ToInt(int(f))
	}

	if doc.Has(maxKey) {
		f, ok := types.AsFloat64(doc.GetOrNil(maxKey))
		if !ok {
			return ridberr.Validation("\"" + maxKey + "\" must be a number")
		}

		*max = pointer.ToInt(int(f))
	}

	return nil
}
