package negotiation

import "github.com/dogmatiq/accord/process"

// Graph is the state graph of negotiation processes.
//
// Each step of the exchange is a local transition for the party that acts
// in that step, and a peer transition for the party that waits for it.
var Graph = newGraph()

// order is the sequence of states on the successful path.
var order = []process.State{
	process.Initial,
	process.Requesting,
	process.Requested,
	process.Offered,
	process.Accepted,
	process.Agreed,
	process.Verified,
	process.Finalized,
}

func newGraph() *process.Graph {
	const both = process.Local | process.Peer

	g := process.NewGraph(process.Initial, process.Finalized, process.Terminated).
		Edge(process.Local, process.Initial, process.Requesting).
		Edge(process.Local, process.Requesting, process.Requested).
		Edge(both, process.Requested, process.Offered).
		Edge(both, process.Offered, process.Accepted).
		Edge(both, process.Accepted, process.Agreed).
		Edge(both, process.Agreed, process.Verified).
		Edge(both, process.Verified, process.Finalized).
		Command(process.CancelCommand, process.Terminated).
		Command(process.TerminateCommand, process.Terminated)

	for _, s := range g.NonTerminalStates() {
		g.Edge(process.Peer, s, process.Terminated)
	}

	return g
}

// reached returns true if a process in state s has already passed through
// state t on the successful path.
func reached(s, t process.State) bool {
	return position(s) >= position(t)
}

func position(s process.State) int {
	for i, x := range order {
		if x == s {
			return i
		}
	}

	return len(order)
}
