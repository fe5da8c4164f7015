package schema

import (
	"github.com/trust0-project/ridb/internal/ridberr"
	"github.com/trust0-project/ridb/internal/types"
)

// Schema is the parsed, validated declaration of one collection (§3).
type Schema struct {
	Version    int
	PrimaryKey string
	Properties map[string]*Property
	Required   []string
	Indexes    []string
	Encrypted  []string
}

// Parse parses and validates a Schema from a JSON document value (§4.1).
func Parse(v any) (*Schema, error) {
	doc, ok := v.(*types.Document)
	if !ok {
		return nil, ridberr.Validation("schema must be an object")
	}

	rawType, err := doc.Get("type")
	if err != nil {
		return nil, ridberr.Validation("schema missing \"type\"")
	}

	if t, ok := rawType.(string); !ok || t != "object" {
		return nil, ridberr.Validation("schema \"type\" must be \"object\"")
	}

	version, err := intField(doc, "version")
	if err != nil {
		return nil, err
	}

	if version < 0 {
		return nil, ridberr.Validation("schema \"version\" must not be negative")
	}

	pk, err := stringField(doc, "primaryKey")
	if err != nil {
		return nil, err
	}

	rawProps, err := doc.Get("properties")
	if err != nil {
		return nil, ridberr.Validation("schema missing \"properties\"")
	}

	propsDoc, ok := rawProps.(*types.Document)
	if !ok {
		return nil, ridberr.Validation("schema \"properties\" must be an object")
	}

	properties := make(map[string]*Property, propsDoc.Len())

	for _, name := range propsDoc.Keys() {
		p, err := ParseProperty(propsDoc.GetOrNil(name))
		if err != nil {
			return nil, ridberr.Validation("invalid property " + name + ": " + err.Error())
		}

		properties[name] = p
	}

	s := &Schema{
		Version:    version,
		PrimaryKey: pk,
		Properties: properties,
	}

	if s.Required, err = stringListField(doc, "required"); err != nil {
		return nil, err
	}

	if s.Indexes, err = stringListField(doc, "indexes"); err != nil {
		return nil, err
	}

	if s.Encrypted, err = stringListField(doc, "encrypted"); err != nil {
		return nil, err
	}

	if err := s.validateInvariants(); err != nil {
		return nil, err
	}

	return s, nil
}

// validateInvariants enforces the schema-level invariants of §3:
// primaryKey ∈ properties; primaryKey ∉ encrypted; every name in
// required/encrypted/indexes exists in properties.
func (s *Schema) validateInvariants() error {
	if _, ok := s.Properties[s.PrimaryKey]; !ok {
		return ridberr.Validation("primaryKey " + s.PrimaryKey + " not found in properties")
	}

	for _, name := range s.Encrypted {
		if name == s.PrimaryKey {
			return ridberr.Validation("primary key must not be encrypted")
		}

		if _, ok := s.Properties[name]; !ok {
			return ridberr.Validation("encrypted field " + name + " not found in properties")
		}
	}

	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return ridberr.Validation("required field " + name + " not found in properties")
		}
	}

	for _, name := range s.Indexes {
		if _, ok := s.Properties[name]; !ok {
			return ridberr.Validation("indexed field " + name + " not found in properties")
		}
	}

	return nil
}

// isRequired reports whether field must be present on a document, per the
// schema's top-level "required" list (distinct from Property.IsRequired,
// which governs default-filling).
func (s *Schema) isRequired(field string) bool {
	for _, f := range s.Required {
		if f == field {
			return true
		}
	}

	return false
}

// isEncrypted reports whether field is in the schema's "encrypted" list.
func (s *Schema) isEncrypted(field string) bool {
	for _, f := range s.Encrypted {
		if f == field {
			return true
		}
	}

	return false
}

// Validate checks that doc conforms to the schema (§4.1): every declared
// property listed in "required" (and not "encrypted") must be present
// with a value whose runtime type matches its declared type; present
// fields of any declared property must match type regardless of whether
// they are required. A field that is absent, or explicitly null on a
// property with a default (left for the defaults plugin to fill in), is
// not type-checked; an explicit null on any other property is type-checked
// and fails for every declared type ("object" excludes null too).
func (s *Schema) Validate(doc *types.Document) error {
	for name, prop := range s.Properties {
		value, present := doc.Map()[name]
		if !present {
			if s.isRequired(name) && !s.isEncrypted(name) {
				return ridberr.Validation("missing required field: " + name)
			}

			continue
		}

		if value == nil && prop.HasDefault {
			continue
		}

		if !prop.Matches(value) {
			return ridberr.Validation("field " + name + " has wrong type, expected " + string(prop.Type))
		}
	}

	return nil
}

func intField(doc *types.Document, name string) (int, error) {
	v, err := doc.Get(name)
	if err != nil {
		return 0, ridberr.Validation("schema missing \"" + name + "\"")
	}

	f, ok := types.AsFloat64(v)
	if !ok {
		return 0, ridberr.Validation("schema \"" + name + "\" must be a number")
	}

	return int(f), nil
}

func stringField(doc *types.Document, name string) (string, error) {
	v, err := doc.Get(name)
	if err != nil {
		return "", ridberr.Validation("schema missing \"" + name + "\"")
	}

	s, ok := v.(string)
	if !ok {
		return "", ridberr.Validation("schema \"" + name + "\" must be a string")
	}

	return s, nil
}

func stringListField(doc *types.Document, name string) ([]string, error) {
	if !doc.Has(name) {
		return nil, nil
	}

	raw := doc.GetOrNil(name)

	arr, ok := raw.([]any)
	if !ok {
		return nil, ridberr.Validation("schema \"" + name + "\" must be an array")
	}

	out := make([]string, len(arr))

	for i, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, ridberr.Validation("schema \"" + name + "\" elements must be strings")
		}

		out[i] = s
	}

	return out, nil
}
