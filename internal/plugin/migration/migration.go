// Package migration implements the Migration plugin (§4.6): it stamps
// __version on create, and on recover applies the version-chain migration
// functions supplied per collection at database construction.
package migration

import (
	"strconv"

	"github.com/trust0-project/ridb/internal/migrate"
	"github.com/trust0-project/ridb/internal/plugin"
	"github.com/trust0-project/ridb/internal/ridberr"
	"github.com/trust0-project/ridb/internal/schema"
	"github.com/trust0-project/ridb/internal/types"
)

const versionField = "__version"

// Plugin stamps and upgrades the __version reserved field.
type Plugin struct{}

// New constructs the Migration plugin.
func New() *Plugin {
	return &Plugin{}
}

// Name implements plugin.Plugin.
func (*Plugin) Name() string { return "Migration" }

// CreateHook sets __version to schema.Version when it is unset.
func (p *Plugin) CreateHook(s *schema.Schema, _ migrate.VersionMap, doc any) (any, error) {
	return plugin.Each(doc, func(d *types.Document) (*types.Document, error) {
		return stampVersion(s, d)
	})
}

func stampVersion(s *schema.Schema, doc *types.Document) (*types.Document, error) {
	if doc.GetOrNil(versionField) != nil {
		return doc, nil
	}

	if err := doc.Set(versionField, int64(s.Version)); err != nil {
		return nil, err
	}

	return doc, nil
}

// RecoverHook ensures __version is set (calling the create-hook logic
// first, per the original implementation's safety rule for documents that
// predate the reserved field), then walks the migration chain up to
// schema.Version.
func (p *Plugin) RecoverHook(s *schema.Schema, m migrate.VersionMap, doc any) (any, error) {
	return plugin.Each(doc, func(d *types.Document) (*types.Document, error) {
		d, err := stampVersion(s, d)
		if err != nil {
			return nil, err
		}

		return migrateDocument(s, m, d)
	})
}

func migrateDocument(s *schema.Schema, m migrate.VersionMap, doc *types.Document) (*types.Document, error) {
	docVersion, err := readVersion(doc, s.Version)
	if err != nil {
		return nil, err
	}

	if docVersion >= s.Version {
		return doc, nil
	}

	for next := docVersion + 1; next <= s.Version; next++ {
		if m == nil {
			return nil, ridberr.Migration("Migration Object is undefined")
		}

		fn, ok := m[next]
		if !ok || fn == nil {
			return nil, ridberr.Migration(migrationMissingMessage(next))
		}

		upgraded, err := fn(doc)
		if err != nil {
			return nil, ridberr.Wrap(ridberr.CodeMigration, migrationFailedMessage(next), err)
		}

		if err := upgraded.Set(versionField, int64(next)); err != nil {
			return nil, err
		}

		doc = upgraded
	}

	return doc, nil
}

func readVersion(doc *types.Document, schemaVersion int) (int, error) {
	v := doc.GetOrNil(versionField)
	if v == nil {
		return schemaVersion, nil
	}

	switch n := v.(type) {
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, ridberr.Migration("__version should be a number")
	}
}

func migrationMissingMessage(version int) string {
	return "Migrating function " + strconv.Itoa(version) + " to schema version not found"
}

func migrationFailedMessage(version int) string {
	return "migration to version " + strconv.Itoa(version) + " failed"
}
