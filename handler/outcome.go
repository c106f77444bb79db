package handler

import (
	"time"

	"github.com/dogmatiq/accord/process"
)

// OutcomeKind is an enumeration of the results of a state action.
type OutcomeKind int

const (
	// TransitionOutcome moves the process to another state.
	TransitionOutcome OutcomeKind = iota

	// RetryOutcome leaves the process in its current state and schedules it
	// to be retried after a backoff delay.
	RetryOutcome

	// FatalOutcome fails the process.
	FatalOutcome

	// UpdateOutcome persists payload changes without changing state.
	UpdateOutcome

	// RescheduleOutcome persists payload changes and schedules the process
	// to be handled again after a fixed delay.
	RescheduleOutcome
)

func (k OutcomeKind) String() string {
	switch k {
	case TransitionOutcome:
		return "transition"
	case RetryOutcome:
		return "retry"
	case FatalOutcome:
		return "fatal"
	case UpdateOutcome:
		return "update"
	case RescheduleOutcome:
		return "reschedule"
	default:
		return "unknown"
	}
}

// Outcome is the result of a state action.
type Outcome struct {
	Kind  OutcomeKind
	State process.State
	Delay time.Duration
	Err   error
}

// TransitionTo returns an outcome that moves the process to state s.
func TransitionTo(s process.State) Outcome {
	return Outcome{Kind: TransitionOutcome, State: s}
}

// Retry returns an outcome that retries the current state because of err.
func Retry(err error) Outcome {
	return Outcome{Kind: RetryOutcome, Err: err}
}

// Fatal returns an outcome that fails the process because of err.
func Fatal(err error) Outcome {
	return Outcome{Kind: FatalOutcome, Err: err}
}

// Update returns an outcome that persists payload changes and handles the
// process again immediately.
func Update() Outcome {
	return Outcome{Kind: UpdateOutcome}
}

// Reschedule returns an outcome that persists payload changes and handles
// the process again after d.
func Reschedule(d time.Duration) Outcome {
	return Outcome{Kind: RescheduleOutcome, Delay: d}
}
