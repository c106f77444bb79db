package persistence

import (
	"context"
	"fmt"
)

// Operation is a persistence operation that can be performed as part of an
// atomic batch.
type Operation interface {
	// AcceptVisitor calls the appropriate visit method on the given visitor.
	AcceptVisitor(context.Context, OperationVisitor) error

	// entityKey returns an identifier for the entity that the operation
	// affects.
	entityKey() entityKey
}

// OperationVisitor visits persistence operations.
type OperationVisitor interface {
	VisitSaveProcess(context.Context, SaveProcess) error
}

// entityKey identifies an entity affected by an operation.
type entityKey struct {
	kind string
	id   string
}

func (k entityKey) String() string {
	return fmt.Sprintf("%s %s", k.kind, k.id)
}
