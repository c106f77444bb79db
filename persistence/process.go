package persistence

import (
	"context"
	"time"

	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/marshalkit"
)

// ProcessRecord is the persisted form of a process.
type ProcessRecord struct {
	ID             string
	Type           process.Type
	State          process.State
	StateTimestamp time.Time

	// Revision is the record's current version, used to enforce optimistic
	// concurrency control.
	Revision uint64

	Lease          process.Lease
	RetryCount     uint
	ErrorDetail    string
	CorrelationID  string
	PendingCommand *process.Command
	Awaiting       bool

	// Packet contains the binary representation of the process payload.
	Packet marshalkit.Packet
}

// ProcessQuery is a filter used to list processes.
type ProcessQuery struct {
	// Type, if non-empty, limits results to processes of this type.
	Type process.Type

	// States, if non-empty, limits results to processes in one of these
	// states.
	States []process.State

	// After, if non-empty, limits results to processes with IDs that sort
	// after this value.
	After string

	// Limit is the maximum number of records to return.
	Limit int
}

// Matches returns true if r satisfies the query's filters, ignoring the
// limit.
func (q ProcessQuery) Matches(r ProcessRecord) bool {
	if q.Type != "" && r.Type != q.Type {
		return false
	}

	if q.After != "" && r.ID <= q.After {
		return false
	}

	if len(q.States) == 0 {
		return true
	}

	for _, s := range q.States {
		if r.State == s {
			return true
		}
	}

	return false
}

// ProcessRepository is an interface for reading persisted processes.
type ProcessRepository interface {
	// LoadProcess loads the process with the given ID.
	//
	// ok is false if the process does not exist.
	LoadProcess(ctx context.Context, id string) (r ProcessRecord, ok bool, err error)

	// LoadProcessByCorrelationID loads the process of the given type that
	// has the given correlation ID.
	LoadProcessByCorrelationID(
		ctx context.Context,
		t process.Type,
		id string,
	) (r ProcessRecord, ok bool, err error)

	// LoadDueProcesses loads up to n processes of type t that are in one of
	// the given states, have a state timestamp at or before now and do not
	// hold an active lease.
	//
	// Processes are ordered by their state timestamp, oldest first.
	LoadDueProcesses(
		ctx context.Context,
		t process.Type,
		states []process.State,
		now time.Time,
		n int,
	) ([]ProcessRecord, error)

	// LoadExpiredLeases loads up to n processes that hold a lease that
	// expired at or before now.
	LoadExpiredLeases(
		ctx context.Context,
		now time.Time,
		n int,
	) ([]ProcessRecord, error)

	// LoadProcesses loads processes that match the query, ordered by ID.
	LoadProcesses(ctx context.Context, q ProcessQuery) ([]ProcessRecord, error)
}

// IsDue returns true if r should be returned by LoadDueProcesses().
func IsDue(r ProcessRecord, t process.Type, states []process.State, now time.Time) bool {
	if r.Type != t ||
		process.IsTerminal(r.State) ||
		r.StateTimestamp.After(now) ||
		r.Lease.IsActive(now) {
		return false
	}

	for _, s := range states {
		if r.State == s {
			return true
		}
	}

	return false
}

// SaveProcess is an Operation that creates or updates a process.
type SaveProcess struct {
	// Record is the process to persist.
	//
	// Record.Revision must be the revision of the process as currently
	// persisted, otherwise an optimistic concurrency conflict occurs and the
	// entire batch of operations is rejected. A revision of zero creates a
	// new process.
	Record ProcessRecord
}

// AcceptVisitor calls v.VisitSaveProcess().
func (op SaveProcess) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitSaveProcess(ctx, op)
}

func (op SaveProcess) entityKey() entityKey {
	return entityKey{"process", op.Record.ID}
}
