package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dogmatiq/accord/handler"
	"github.com/dogmatiq/accord/handler/transfer"
	"github.com/dogmatiq/accord/policy"
	"github.com/dogmatiq/accord/process"
)

// DefaultInterval is the default interval between compliance checks.
var DefaultInterval = 30 * time.Second

// Graph is the state graph of monitor processes.
var Graph = process.NewGraph(process.Initial, process.Finalized, process.Terminated).
	Edge(process.Local, process.Initial, process.Monitoring).
	Edge(process.Local, process.Monitoring, process.Finalized).
	Command(process.CancelCommand, process.Terminated).
	Command(process.TerminateCommand, process.Terminated)

// Handler is the handler for monitor processes.
//
// A monitor periodically evaluates the policy of the agreement under which a
// transfer is running. On a violation it asks the transfer to terminate.
type Handler struct {
	// Processes reads the state of the monitored transfer.
	Processes handler.ProcessReader

	// Commands submits the terminate command to the monitored transfer.
	Commands handler.CommandSubmitter

	// Evaluator evaluates the agreement's policy.
	Evaluator policy.Evaluator

	// Interval is the time between checks. If it is zero, DefaultInterval
	// is used.
	Interval time.Duration
}

var _ handler.Handler = (*Handler)(nil)

// Type returns process.MonitorType.
func (h *Handler) Type() process.Type {
	return process.MonitorType
}

// Graph returns the monitor state graph.
func (h *Handler) Graph() *process.Graph {
	return Graph
}

// Awaits always returns false. Monitors never wait on a peer.
func (h *Handler) Awaits(*process.Process) bool {
	return false
}

// HandleState performs the local action for p's current state.
func (h *Handler) HandleState(ctx context.Context, p *process.Process) handler.Outcome {
	if p.State == process.Initial {
		return handler.TransitionTo(process.Monitoring)
	}

	m := p.Monitor()

	tp, err := h.Processes.GetProcess(ctx, m.TransferID)
	if err != nil {
		return handler.Retry(err)
	}

	if tp.Type != process.TransferType {
		return handler.Fatal(fmt.Errorf("process %s is not a transfer", m.TransferID))
	}

	if transfer.Graph.IsTerminal(tp.State) {
		return handler.TransitionTo(process.Finalized)
	}

	if m.Violation != "" {
		// The transfer has already been asked to terminate.
		return handler.Reschedule(h.interval())
	}

	d, err := h.Evaluator.Evaluate(ctx, policy.Subject{
		Policy:      m.Policy,
		AgreementID: m.AgreementID,
		TransferID:  m.TransferID,
		NotAfter:    m.NotAfter,
		Now:         time.Now(),
	})
	if err != nil {
		return handler.Retry(err)
	}

	m.Checks++

	if !d.Compliant {
		if err := h.Commands.SubmitCommand(ctx, m.TransferID, process.Command{
			Name:   process.TerminateCommand,
			Reason: "policy violation: " + d.Reason,
		}); err != nil && !isNotPermitted(err) {
			return handler.Retry(err)
		}

		m.Violation = d.Reason
	}

	return handler.Reschedule(h.interval())
}

// ApplyCommand returns the target of the command.
func (h *Handler) ApplyCommand(
	_ context.Context,
	p *process.Process,
	c process.Command,
) (process.State, error) {
	return handler.CommandTarget(h, p, c)
}

// Fail returns the state to move to on failure.
func (h *Handler) Fail(p *process.Process, _ error) process.State {
	return handler.FailureTarget(h, p)
}

func (h *Handler) interval() time.Duration {
	if h.Interval > 0 {
		return h.Interval
	}

	return DefaultInterval
}

// isNotPermitted returns true if err indicates that the transfer can no
// longer be terminated, typically because it is already being torn down.
func isNotPermitted(err error) bool {
	var target handler.CommandNotPermittedError
	return errors.As(err, &target)
}
