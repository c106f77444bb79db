package executor

import (
	"fmt"
	"strings"
)

// NoAvailableExecutorError is returned by Selector.Select() when no live
// executor supports the required capabilities.
type NoAvailableExecutorError struct {
	Capabilities []string
}

func (e NoAvailableExecutorError) Error() string {
	return fmt.Sprintf(
		"no available executor supports [%s]",
		strings.Join(e.Capabilities, ", "),
	)
}

// UnknownExecutorError is returned when an executor referenced by its ID is
// not registered.
type UnknownExecutorError struct {
	ExecutorID string
}

func (e UnknownExecutorError) Error() string {
	return fmt.Sprintf(
		"executor with ID '%s' is not registered",
		e.ExecutorID,
	)
}
