package process_test

import (
	. "github.com/dogmatiq/accord/process"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Graph", func() {
	var graph *Graph

	BeforeEach(func() {
		graph = NewGraph(Initial, Completed, Terminated).
			Edge(Local, Initial, Provisioning).
			Edge(Local, Provisioning, Started).
			Edge(Peer, Started, Suspended).
			Edge(Local|Peer, Suspended, Started).
			Edge(Local, Deprovisioning, Completed, Terminated).
			Command(TerminateCommand, Deprovisioning, Initial, Provisioning, Started, Suspended).
			Cleanup(Deprovisioning)
	})

	Describe("func IsTerminal()", func() {
		It("returns true for the declared terminal states", func() {
			Expect(graph.IsTerminal(Completed)).To(BeTrue())
			Expect(graph.IsTerminal(Terminated)).To(BeTrue())
		})

		It("always treats FatalError as terminal", func() {
			Expect(graph.IsTerminal(FatalError)).To(BeTrue())
		})

		It("returns false for other states", func() {
			Expect(graph.IsTerminal(Started)).To(BeFalse())
		})
	})

	Describe("func NonTerminalStates()", func() {
		It("returns the non-terminal states in order", func() {
			Expect(graph.NonTerminalStates()).To(Equal([]State{
				Deprovisioning,
				Initial,
				Provisioning,
				Started,
				Suspended,
			}))
		})
	})

	Describe("func CanTransition()", func() {
		It("permits transitions along edges with a matching initiator", func() {
			Expect(graph.CanTransition(Local, Initial, Provisioning)).To(BeTrue())
			Expect(graph.CanTransition(Peer, Started, Suspended)).To(BeTrue())
			Expect(graph.CanTransition(Peer, Suspended, Started)).To(BeTrue())
			Expect(graph.CanTransition(Local, Suspended, Started)).To(BeTrue())
		})

		It("rejects transitions with a different initiator", func() {
			Expect(graph.CanTransition(Local, Started, Suspended)).To(BeFalse())
			Expect(graph.CanTransition(Peer, Initial, Provisioning)).To(BeFalse())
		})

		It("rejects transitions that are not edges", func() {
			Expect(graph.CanTransition(Local, Initial, Started)).To(BeFalse())
		})

		It("permits local transitions to FatalError from non-terminal states", func() {
			Expect(graph.CanTransition(Local, Started, FatalError)).To(BeTrue())
			Expect(graph.CanTransition(Peer, Started, FatalError)).To(BeFalse())
		})

		It("rejects all transitions from terminal states", func() {
			Expect(graph.CanTransition(Local, Completed, FatalError)).To(BeFalse())
			Expect(graph.CanTransition(Local, Terminated, Initial)).To(BeFalse())
		})
	})

	Describe("func Validate()", func() {
		It("returns an InvalidTransitionError for invalid transitions", func() {
			err := graph.Validate(Local, Initial, Completed)
			Expect(err).To(Equal(InvalidTransitionError{
				Initiator: Local,
				From:      Initial,
				To:        Completed,
			}))
			Expect(err).To(MatchError("local transition from INITIAL to COMPLETED is not permitted"))
		})

		It("returns nil for valid transitions", func() {
			Expect(graph.Validate(Local, Provisioning, Started)).To(Succeed())
		})
	})

	Describe("func CommandTarget()", func() {
		It("returns the target state of a valid command", func() {
			to, ok := graph.CommandTarget(TerminateCommand, Started)
			Expect(ok).To(BeTrue())
			Expect(to).To(Equal(Deprovisioning))
		})

		It("adds commanded transitions as local edges", func() {
			Expect(graph.CanTransition(Local, Suspended, Deprovisioning)).To(BeTrue())
		})

		It("returns false if the command is not valid in the state", func() {
			_, ok := graph.CommandTarget(TerminateCommand, Deprovisioning)
			Expect(ok).To(BeFalse())

			_, ok = graph.CommandTarget(SuspendCommand, Started)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("func FailureTarget()", func() {
		It("returns the cleanup entry state for states outside the teardown path", func() {
			Expect(graph.FailureTarget(Provisioning)).To(Equal(Deprovisioning))
		})

		It("returns FatalError for states in the teardown path", func() {
			Expect(graph.FailureTarget(Deprovisioning)).To(Equal(FatalError))
		})

		It("returns FatalError when there is no cleanup path", func() {
			g := NewGraph(Initial, Finalized).Edge(Local, Initial, Finalized)
			Expect(g.FailureTarget(Initial)).To(Equal(FatalError))
		})
	})

	Describe("func Edge()", func() {
		It("panics if the source state is terminal", func() {
			Expect(func() {
				graph.Edge(Local, Completed, Initial)
			}).To(PanicWith("terminal states can not have outgoing edges"))
		})

		It("panics if the source state is terminal in other graphs", func() {
			Expect(func() {
				graph.Edge(Local, Finalized, Initial)
			}).To(PanicWith("terminal states can not have outgoing edges"))
		})
	})

	Describe("func NewGraph()", func() {
		It("panics if a terminal state is not terminal in every graph", func() {
			Expect(func() {
				NewGraph(Initial, Started)
			}).To(PanicWith("STARTED is not a terminal state"))
		})
	})
})

var _ = Describe("func IsTerminal()", func() {
	DescribeTable(
		"it reports whether the state ends a process",
		func(s State, expect bool) {
			Expect(IsTerminal(s)).To(Equal(expect))
		},
		Entry("finalized", Finalized, true),
		Entry("completed", Completed, true),
		Entry("terminated", Terminated, true),
		Entry("fatal error", FatalError, true),
		Entry("requested", Requested, false),
		Entry("deprovisioned", Deprovisioned, false),
		Entry("monitoring", Monitoring, false),
	)
})
