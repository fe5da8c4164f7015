// Package defaults implements the Defaults plugin (§4.5): create-hook only,
// filling unset fields from the schema's declared property defaults.
package defaults

import (
	"github.com/trust0-project/ridb/internal/migrate"
	"github.com/trust0-project/ridb/internal/plugin"
	"github.com/trust0-project/ridb/internal/schema"
	"github.com/trust0-project/ridb/internal/types"
)

// Plugin fills in default values on create. Its recover-hook is a noop, per
// the reverse-order symmetry described in §4.4.
type Plugin struct{}

// New constructs the Defaults plugin.
func New() *Plugin {
	return &Plugin{}
}

// Name implements plugin.Plugin.
func (*Plugin) Name() string { return "Defaults" }

// CreateHook sets each property's default where the document's value is
// absent or null. No type coercion is performed.
func (p *Plugin) CreateHook(s *schema.Schema, _ migrate.VersionMap, doc any) (any, error) {
	return plugin.Each(doc, func(d *types.Document) (*types.Document, error) {
		return addDefaults(s, d)
	})
}

// RecoverHook is identity.
func (*Plugin) RecoverHook(_ *schema.Schema, _ migrate.VersionMap, doc any) (any, error) {
	return doc, nil
}

func addDefaults(s *schema.Schema, doc *types.Document) (*types.Document, error) {
	for key, prop := range s.Properties {
		if !prop.HasDefault {
			continue
		}

		current := doc.GetOrNil(key)
		if current != nil {
			continue
		}

		if err := doc.Set(key, prop.Default); err != nil {
			return nil, err
		}
	}

	return doc, nil
}
