// Package operation defines the tagged record describing a pending write
// or read submitted to a Storage Backend (§4.3).
package operation

import (
	"github.com/google/uuid"

	"github.com/trust0-project/ridb/internal/types"
)

// Type tags the kind of operation being performed.
type Type int

// Operation types.
const (
	_ Type = iota
	Create
	Update
	Delete
	Query
	Count
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case Create:
		return "CREATE"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	case Query:
		return "QUERY"
	case Count:
		return "COUNT"
	default:
		return "UNKNOWN"
	}
}

// Operation is a plain record describing one pending backend call.
//
// CREATE/UPDATE carry a full document in Data; DELETE carries only the
// primary-key value. Indexes is advisory metadata forwarded to backends
// that may use it for acceleration; the core never uses it for lookups.
//
// CorrelationID is purely observability metadata (§4.15 of SPEC_FULL.md):
// New stamps a fresh one on every Operation, and the Storage facade adds it
// to the debug log line it writes after a successful backend write or
// delete. It is never persisted, never hashed, and never inspected by core
// logic.
type Operation struct {
	Collection    string
	OpType        Type
	Data          any // *types.Document for CREATE/UPDATE, primary-key scalar for DELETE
	Indexes       []string
	CorrelationID uuid.UUID
}

// New creates an Operation, stamping a fresh correlation ID.
func New(collection string, opType Type, data any, indexes []string) *Operation {
	return &Operation{
		Collection:    collection,
		OpType:        opType,
		Data:          data,
		Indexes:       indexes,
		CorrelationID: uuid.New(),
	}
}

// Document returns Data as a *types.Document, for CREATE/UPDATE operations.
func (op *Operation) Document() (*types.Document, bool) {
	d, ok := op.Data.(*types.Document)
	return d, ok
}
