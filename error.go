package accord

import (
	"errors"
	"fmt"

	"github.com/dogmatiq/accord/process"
)

// ErrProcessLeased is returned by HandleMessage() if the process that the
// message applies to is currently being handled. The peer should retry the
// message later.
var ErrProcessLeased = errors.New("process is leased, try again later")

// UnknownProcessError indicates that a process does not exist.
type UnknownProcessError struct {
	ProcessID string
}

func (e UnknownProcessError) Error() string {
	return fmt.Sprintf("process with ID '%s' does not exist", e.ProcessID)
}

// CommandRejectedError indicates that a command can not be applied to a
// process.
type CommandRejectedError struct {
	ProcessID string
	Command   process.Command
	Reason    string
	Cause     error
}

func (e CommandRejectedError) Error() string {
	return fmt.Sprintf(
		"%s command rejected by process '%s': %s",
		e.Command.Name,
		e.ProcessID,
		e.Reason,
	)
}

// Unwrap returns the cause of the rejection, if any.
func (e CommandRejectedError) Unwrap() error {
	return e.Cause
}
