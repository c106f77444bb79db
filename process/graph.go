package process

import (
	"fmt"
	"sort"
)

// Initiator identifies which party may cause a transition.
type Initiator uint8

const (
	// Local transitions are made by the engine as the result of a state action
	// or a command.
	Local Initiator = 1 << iota

	// Peer transitions are made in response to a message from the peer.
	Peer
)

func (i Initiator) String() string {
	switch i {
	case Local:
		return "local"
	case Peer:
		return "peer"
	case Local | Peer:
		return "local/peer"
	default:
		return "none"
	}
}

// Graph is the directed graph of states and transitions of a process variant.
//
// A graph is built once, typically in a package-level variable, and is
// read-only thereafter.
type Graph struct {
	initial  State
	states   map[State]struct{}
	terminal map[State]struct{}
	edges    map[State]map[State]Initiator
	commands map[CommandName]map[State]State
	cleanup  State
	teardown map[State]struct{}
}

// NewGraph returns a graph with the given initial and terminal states.
//
// FatalError is always terminal. It panics if any of the given terminal
// states is not recognised by IsTerminal().
func NewGraph(initial State, terminal ...State) *Graph {
	g := &Graph{
		initial:  initial,
		states:   map[State]struct{}{},
		terminal: map[State]struct{}{},
		edges:    map[State]map[State]Initiator{},
		commands: map[CommandName]map[State]State{},
	}

	g.states[initial] = struct{}{}
	g.states[FatalError] = struct{}{}
	g.terminal[FatalError] = struct{}{}

	for _, s := range terminal {
		if !IsTerminal(s) {
			panic(fmt.Sprintf("%s is not a terminal state", s))
		}

		g.states[s] = struct{}{}
		g.terminal[s] = struct{}{}
	}

	return g
}

// Edge adds transitions that may be initiated by i from one state to each of
// the given target states.
func (g *Graph) Edge(i Initiator, from State, to ...State) *Graph {
	if g.IsTerminal(from) || IsTerminal(from) {
		panic("terminal states can not have outgoing edges")
	}

	g.states[from] = struct{}{}

	targets := g.edges[from]
	if targets == nil {
		targets = map[State]Initiator{}
		g.edges[from] = targets
	}

	for _, s := range to {
		g.states[s] = struct{}{}
		targets[s] |= i
	}

	return g
}

// Command declares that command n moves a process in any of the given states
// to the target state. If from is empty the command applies to every
// non-terminal state.
//
// Commanded transitions are local transitions and are added to the graph's
// edges.
func (g *Graph) Command(n CommandName, to State, from ...State) *Graph {
	if len(from) == 0 {
		from = g.NonTerminalStates()
	}

	rules := g.commands[n]
	if rules == nil {
		rules = map[State]State{}
		g.commands[n] = rules
	}

	for _, s := range from {
		rules[s] = to
		g.Edge(Local, s, to)
	}

	return g
}

// Cleanup declares a teardown path that must run before a process reaches a
// terminal state.
//
// A process that fails in any state other than entry or the states in path is
// moved to entry instead of FatalError.
func (g *Graph) Cleanup(entry State, path ...State) *Graph {
	g.cleanup = entry
	g.teardown = map[State]struct{}{entry: {}}

	for _, s := range path {
		g.teardown[s] = struct{}{}
	}

	for s := range g.states {
		if _, ok := g.teardown[s]; ok || g.IsTerminal(s) {
			continue
		}

		g.Edge(Local, s, entry)
	}

	return g
}

// Initial returns the graph's initial state.
func (g *Graph) Initial() State {
	return g.initial
}

// Has returns true if s is a state in the graph.
func (g *Graph) Has(s State) bool {
	_, ok := g.states[s]
	return ok
}

// IsTerminal returns true if s is a terminal state.
func (g *Graph) IsTerminal(s State) bool {
	_, ok := g.terminal[s]
	return ok
}

// States returns all of the graph's states, sorted by name.
func (g *Graph) States() []State {
	return g.collect(func(State) bool { return true })
}

// NonTerminalStates returns the graph's non-terminal states, sorted by name.
func (g *Graph) NonTerminalStates() []State {
	return g.collect(func(s State) bool { return !g.IsTerminal(s) })
}

// CanTransition returns true if initiator i may move a process from one state
// to another.
//
// Any non-terminal state may move to FatalError locally.
func (g *Graph) CanTransition(i Initiator, from, to State) bool {
	if g.IsTerminal(from) {
		return false
	}

	if to == FatalError && i == Local {
		return true
	}

	return g.edges[from][to]&i != 0
}

// Validate returns an InvalidTransitionError if initiator i may not move a
// process from one state to another.
func (g *Graph) Validate(i Initiator, from, to State) error {
	if g.CanTransition(i, from, to) {
		return nil
	}

	return InvalidTransitionError{
		Initiator: i,
		From:      from,
		To:        to,
	}
}

// CommandTarget returns the state that command n moves a process in state s
// to. ok is false if the command is not valid in that state.
func (g *Graph) CommandTarget(n CommandName, s State) (to State, ok bool) {
	to, ok = g.commands[n][s]
	return to, ok
}

// FailureTarget returns the state a process in state s moves to when it fails.
func (g *Graph) FailureTarget(s State) State {
	if g.cleanup == "" {
		return FatalError
	}

	if _, ok := g.teardown[s]; ok {
		return FatalError
	}

	return g.cleanup
}

func (g *Graph) collect(pred func(State) bool) []State {
	var states []State

	for s := range g.states {
		if pred(s) {
			states = append(states, s)
		}
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i] < states[j]
	})

	return states
}
