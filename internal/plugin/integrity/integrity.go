// Package integrity implements the Integrity plugin (§4.7): it stamps a
// canonical-hash digest on create and verifies it on recover.
package integrity

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	"github.com/trust0-project/ridb/internal/migrate"
	"github.com/trust0-project/ridb/internal/plugin"
	"github.com/trust0-project/ridb/internal/ridberr"
	"github.com/trust0-project/ridb/internal/schema"
	"github.com/trust0-project/ridb/internal/types"
)

const field = "__integrity"

// Plugin stamps and verifies the __integrity reserved field.
type Plugin struct{}

// New constructs the Integrity plugin.
func New() *Plugin {
	return &Plugin{}
}

// Name implements plugin.Plugin.
func (*Plugin) Name() string { return "Integrity" }

// CreateHook removes any existing __integrity, computes the canonical
// digest of the remaining document, and stamps it back.
func (p *Plugin) CreateHook(_ *schema.Schema, _ migrate.VersionMap, doc any) (any, error) {
	return plugin.Each(doc, stamp)
}

// RecoverHook recomputes the digest and compares it, constant-time,
// against the stamped value.
func (p *Plugin) RecoverHook(_ *schema.Schema, _ migrate.VersionMap, doc any) (any, error) {
	return plugin.Each(doc, verify)
}

func stamp(doc *types.Document) (*types.Document, error) {
	digest, err := digestWithout(doc)
	if err != nil {
		return nil, err
	}

	if err := doc.Set(field, digest); err != nil {
		return nil, ridberr.Integrity(err.Error())
	}

	return doc, nil
}

func verify(doc *types.Document) (*types.Document, error) {
	stamped := doc.GetOrNil(field)

	stampedHex, ok := stamped.(string)
	if !ok {
		return nil, ridberr.Integrity("Error retrieving integrity value")
	}

	digest, err := digestWithout(doc)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(digest), []byte(stampedHex)) != 1 {
		return nil, ridberr.Integrity("Integrity check failed")
	}

	return doc, nil
}

func digestWithout(doc *types.Document) (string, error) {
	canonical, err := types.CanonicalJSONWithout(doc, field)
	if err != nil {
		return "", ridberr.Integrity(err.Error())
	}

	sum := sha3.Sum512(canonical)

	return hex.EncodeToString(sum[:]), nil
}
