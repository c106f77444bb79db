package process

// State is the name of a state in a process graph.
type State string

// States shared by several process variants.
const (
	Initial    State = "INITIAL"
	Requesting State = "REQUESTING"
	Terminated State = "TERMINATED"
	FatalError State = "FATAL_ERROR"
)

// Negotiation states.
const (
	Requested State = "REQUESTED"
	Offered   State = "OFFERED"
	Accepted  State = "ACCEPTED"
	Agreed    State = "AGREED"
	Verified  State = "VERIFIED"
	Finalized State = "FINALIZED"
)

// Transfer states.
const (
	Provisioning   State = "PROVISIONING"
	Provisioned    State = "PROVISIONED"
	Started        State = "STARTED"
	Suspended      State = "SUSPENDED"
	Deprovisioning State = "DEPROVISIONING"
	Deprovisioned  State = "DEPROVISIONED"
	Completed      State = "COMPLETED"
)

// Monitor states.
const (
	Monitoring State = "MONITORING"
)

// IsTerminal returns true if s is terminal. Every process graph treats the
// same states as terminal, which lets stores recognise finished processes
// without knowing their type.
func IsTerminal(s State) bool {
	switch s {
	case Finalized, Completed, Terminated, FatalError:
		return true
	default:
		return false
	}
}
