package transfer

import "github.com/dogmatiq/accord/process"

// Graph is the state graph of transfer processes.
//
// Every path to a terminal state passes through DEPROVISIONING and
// DEPROVISIONED, so that executor resources and credentials are always
// released.
var Graph = newGraph()

// active is the set of states in which a transfer may be ended early.
var active = []process.State{
	process.Initial,
	process.Provisioning,
	process.Provisioned,
	process.Requesting,
	process.Started,
	process.Suspended,
}

func newGraph() *process.Graph {
	const both = process.Local | process.Peer

	g := process.NewGraph(process.Initial, process.Completed, process.Terminated).
		Edge(process.Local, process.Initial, process.Provisioning).
		Edge(process.Local, process.Provisioning, process.Provisioned).
		Edge(process.Local, process.Provisioned, process.Requesting).
		Edge(both, process.Requesting, process.Started).
		Edge(both, process.Started, process.Suspended).
		Edge(both, process.Suspended, process.Started).
		Edge(process.Local, process.Deprovisioning, process.Deprovisioned).
		Edge(process.Local, process.Deprovisioned, process.Completed, process.Terminated).
		Command(process.SuspendCommand, process.Suspended, process.Started).
		Command(process.ResumeCommand, process.Started, process.Suspended).
		Command(process.CompleteCommand, process.Deprovisioning, process.Started).
		Command(process.TerminateCommand, process.Deprovisioning, active...).
		Command(process.CancelCommand, process.Deprovisioning, active...)

	for _, s := range active {
		g.Edge(process.Peer, s, process.Deprovisioning)
	}

	return g.Cleanup(process.Deprovisioning, process.Deprovisioned)
}

// isTeardown returns true if s is on the teardown path.
func isTeardown(s process.State) bool {
	return s == process.Deprovisioning || s == process.Deprovisioned
}
