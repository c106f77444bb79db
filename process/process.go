package process

import (
	"time"
)

// Type identifies a process variant.
type Type string

const (
	// NegotiationType is the type of processes that negotiate a contract
	// agreement with a peer connector.
	NegotiationType Type = "negotiation"

	// TransferType is the type of processes that orchestrate a data transfer
	// under an agreement.
	TransferType Type = "transfer"

	// MonitorType is the type of processes that periodically check that an
	// active transfer remains compliant with its agreement's policy.
	MonitorType Type = "monitor"
)

// Process is the runtime representation of a single process instance.
type Process struct {
	// ID is the process's immutable identifier.
	ID string

	// Type is the process variant.
	Type Type

	// State is the process's current state.
	State State

	// StateTimestamp is the time at which the process is next due for an
	// engine pass.
	StateTimestamp time.Time

	// Version is incremented by every persisted write. It is the basis of
	// compare-and-swap updates.
	Version uint64

	// Lease is the process's current lease, if any.
	Lease Lease

	// RetryCount is the number of consecutive failed passes in the current
	// state. It is reset whenever the process leaves a state.
	RetryCount uint

	// ErrorDetail describes the most recent failure.
	ErrorDetail string

	// CorrelationID is the peer's identifier for the same exchange.
	CorrelationID string

	// PendingCommand is an external command that has not yet been applied.
	PendingCommand *Command

	// Awaiting is true if there is no local action for the current state and
	// the process is waiting on a peer message or a command.
	Awaiting bool

	// Payload is the variant-specific data. It is one of *Negotiation,
	// *Transfer or *Monitor.
	Payload interface{}
}

// Negotiation returns the process payload as a negotiation payload.
//
// It panics if the process is not a negotiation.
func (p *Process) Negotiation() *Negotiation {
	return p.Payload.(*Negotiation)
}

// Transfer returns the process payload as a transfer payload.
//
// It panics if the process is not a transfer.
func (p *Process) Transfer() *Transfer {
	return p.Payload.(*Transfer)
}

// Monitor returns the process payload as a monitor payload.
//
// It panics if the process is not a monitor.
func (p *Process) Monitor() *Monitor {
	return p.Payload.(*Monitor)
}

// Lease is a time-bounded claim on a process by a single worker.
type Lease struct {
	// Owner identifies the worker holding the lease.
	Owner string

	// ExpiresAt is the time at which the lease lapses.
	ExpiresAt time.Time
}

// IsZero returns true if there is no lease.
func (l Lease) IsZero() bool {
	return l.Owner == ""
}

// IsActive returns true if the lease is held and has not expired at time t.
func (l Lease) IsActive(t time.Time) bool {
	return l.Owner != "" && t.Before(l.ExpiresAt)
}

// CommandName identifies an external command.
type CommandName string

const (
	// CancelCommand cancels a negotiation or monitor.
	CancelCommand CommandName = "cancel"

	// TerminateCommand terminates a process before its natural end.
	TerminateCommand CommandName = "terminate"

	// SuspendCommand suspends a started transfer.
	SuspendCommand CommandName = "suspend"

	// ResumeCommand resumes a suspended transfer.
	ResumeCommand CommandName = "resume"

	// CompleteCommand marks a started transfer as complete.
	CompleteCommand CommandName = "complete"
)

// Command is an externally submitted request to change a process's state.
type Command struct {
	Name   CommandName
	Reason string
}
