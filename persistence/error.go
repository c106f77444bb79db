package persistence

import (
	"fmt"
)

// ConflictError is returned by DataStore.Persist() when an operation's
// expected revision does not match the stored revision. No operation in the
// batch is applied.
type ConflictError struct {
	// Cause is the conflicting operation.
	Cause Operation
}

func (e ConflictError) Error() string {
	return fmt.Sprintf(
		"optimistic concurrency conflict on %s",
		e.Cause.entityKey(),
	)
}
