// Package plugin defines the uniform hook interface and ordered chain that
// every write passes through on the way in and, reversed, on the way out
// (§4.4).
package plugin

import (
	"github.com/trust0-project/ridb/internal/migrate"
	"github.com/trust0-project/ridb/internal/schema"
	"github.com/trust0-project/ridb/internal/types"
)

// Plugin is the contract every stage of the chain implements. A stage that
// has nothing to do on create or recover returns doc unchanged.
type Plugin interface {
	Name() string
	CreateHook(s *schema.Schema, m migrate.VersionMap, doc any) (any, error)
	RecoverHook(s *schema.Schema, m migrate.VersionMap, doc any) (any, error)
}

// Each applies fn to doc, transparently supporting both a single document
// and a slice of documents (§4.4 batch semantics), returning the same
// shape it was given.
func Each(doc any, fn func(*types.Document) (*types.Document, error)) (any, error) {
	if docs, ok := doc.([]*types.Document); ok {
		out := make([]*types.Document, len(docs))

		for i, d := range docs {
			processed, err := fn(d)
			if err != nil {
				return nil, err
			}

			out[i] = processed
		}

		return out, nil
	}

	single, ok := doc.(*types.Document)
	if !ok {
		return nil, nil
	}

	return fn(single)
}

// Chain runs a fixed, ordered list of plugins. Create-hooks run in
// registration order; recover-hooks run in reverse.
type Chain struct {
	plugins []Plugin
}

// NewChain builds a chain from plugins in the order they should run on
// create (user-supplied plugins first, per §4.4, then the built-ins).
func NewChain(plugins ...Plugin) *Chain {
	return &Chain{plugins: plugins}
}

// Create runs every plugin's create-hook in registration order.
func (c *Chain) Create(s *schema.Schema, m migrate.VersionMap, doc any) (any, error) {
	var err error

	for _, p := range c.plugins {
		doc, err = p.CreateHook(s, m, doc)
		if err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// Recover runs every plugin's recover-hook in reverse registration order.
func (c *Chain) Recover(s *schema.Schema, m migrate.VersionMap, doc any) (any, error) {
	var err error

	for i := len(c.plugins) - 1; i >= 0; i-- {
		doc, err = c.plugins[i].RecoverHook(s, m, doc)
		if err != nil {
			return nil, err
		}
	}

	return doc, nil
}
