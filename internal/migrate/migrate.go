// Package migrate defines the per-version migration functions supplied at
// database construction (§6.1) and consumed by the migration plugin.
package migrate

import "github.com/trust0-project/ridb/internal/types"

// Func upgrades a document from one schema version to the next.
type Func func(doc *types.Document) (*types.Document, error)

// VersionMap maps a target schema version to the function that upgrades a
// document from version-1 to version. A schema at version N requires an
// entry for every integer in [1, N].
type VersionMap map[int]Func

// Set maps a collection name to its VersionMap.
type Set map[string]VersionMap
