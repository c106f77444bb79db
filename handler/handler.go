package handler

import (
	"context"

	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/accord/protocol"
)

// Handler implements the behavior of a single process type.
//
// The engine holds a lease on the process for the duration of every call to
// a handler method, except MessageHandler.HandleMessage().
type Handler interface {
	// Type returns the type of process handled by this handler.
	Type() process.Type

	// Graph returns the process type's state graph.
	Graph() *process.Graph

	// Awaits returns true if there is no local action for p in its current
	// state, meaning it is waiting on a peer message or a command.
	Awaits(p *process.Process) bool

	// HandleState performs the local action for p's current state.
	//
	// It may modify p.Payload. The modifications are persisted unless the
	// outcome is a retry.
	HandleState(ctx context.Context, p *process.Process) Outcome

	// ApplyCommand prepares p for command c and returns the state to move
	// to. It is only called for commands that the graph permits in p's
	// current state.
	ApplyCommand(ctx context.Context, p *process.Process, c process.Command) (process.State, error)

	// Fail prepares p for a fatal failure and returns the state to move to.
	Fail(p *process.Process, cause error) process.State
}

// MessageHandler is a Handler for a process type that exchanges messages
// with peers.
type MessageHandler interface {
	Handler

	// Initiates returns true if messages of type t start a new process.
	Initiates(t protocol.MessageType) bool

	// New returns the initial state and payload for the process started by
	// m.
	New(m protocol.Message) (process.State, interface{}, error)

	// HandleMessage applies m to p.
	//
	// It returns the state to move to. changed is false if m has already
	// been applied, in which case p must not be modified.
	HandleMessage(ctx context.Context, p *process.Process, m protocol.Message) (to process.State, changed bool, err error)
}

// FailureTarget returns the state that p moves to when it fails, based only
// on the graph.
func FailureTarget(h Handler, p *process.Process) process.State {
	return h.Graph().FailureTarget(p.State)
}

// CommandTarget returns the state that command c moves p to, or an
// error if the command is not permitted in p's current state.
func CommandTarget(h Handler, p *process.Process, c process.Command) (process.State, error) {
	if to, ok := h.Graph().CommandTarget(c.Name, p.State); ok {
		return to, nil
	}

	return "", CommandNotPermittedError{
		Command: c.Name,
		State:   p.State,
	}
}
