package handler

import (
	"fmt"

	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/accord/protocol"
)

// CommandNotPermittedError indicates that a command is not valid in a
// process's current state.
type CommandNotPermittedError struct {
	Command process.CommandName
	State   process.State
}

func (e CommandNotPermittedError) Error() string {
	return fmt.Sprintf(
		"%s command is not permitted in the %s state",
		e.Command,
		e.State,
	)
}

// UnexpectedMessageError indicates that a message can not be applied to a
// process in its current state.
type UnexpectedMessageError struct {
	Type  protocol.MessageType
	State process.State
}

func (e UnexpectedMessageError) Error() string {
	return fmt.Sprintf(
		"unexpected %s message in the %s state",
		e.Type,
		e.State,
	)
}
