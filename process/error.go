package process

import "fmt"

// InvalidTransitionError is returned when a transition is not an edge of the
// process graph.
type InvalidTransitionError struct {
	Initiator Initiator
	From      State
	To        State
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf(
		"%s transition from %s to %s is not permitted",
		e.Initiator,
		e.From,
		e.To,
	)
}
