package mlog

import (
	"fmt"
	"time"

	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/accord/protocol"
	"github.com/dogmatiq/dodeca/logging"
)

// Pass describes the result of a single engine pass over a process.
type Pass struct {
	Process *process.Process

	// From is the state the process was in at the start of the pass.
	From process.State

	// Outcome is the kind of outcome committed, such as "transition".
	Outcome string

	// Err is the cause of a retry or failure.
	Err error

	// Delay is the time until the process is next due.
	Delay time.Duration
}

// LogPass logs a message describing the result of an engine pass.
//
// Passes that did not change state and did not fail are only logged in debug
// mode.
func LogPass(log logging.Logger, r Pass) {
	p := r.Process

	messages := []string{
		string(p.Type),
		fmt.Sprintf("%s → %s", r.From, p.State),
		r.Outcome,
	}

	if r.Err != nil {
		messages = append(messages, r.Err.Error())
	}

	if r.Delay > 0 {
		messages = append(messages, fmt.Sprintf("next pass in %s", r.Delay))
	}

	line := String(
		processIDs(p),
		[]Icon{
			ProcessTypeIcon(p.Type),
			retryIcon(p.RetryCount),
			errorIcon(r.Err),
		},
		messages...,
	)

	if r.From == p.State && r.Err == nil {
		logging.DebugString(log, line)
	} else {
		logging.LogString(log, line)
	}
}

// LogInbound logs a message indicating that a message from a peer has been
// handled.
func LogInbound(
	log logging.Logger,
	m protocol.Message,
	processID string,
	err error,
) {
	icon := InboundIcon
	text := "accepted"

	if err != nil {
		icon = InboundErrorIcon
		text = err.Error()
	}

	logging.LogString(
		log,
		String(
			[]IconWithLabel{
				ProcessIDIcon.WithID(processID),
				CorrelationIDIcon.WithID(m.ProcessID),
			},
			[]Icon{
				icon,
				errorIcon(err),
			},
			string(m.Type),
			m.Sender,
			text,
		),
	)
}

// LogCommand logs a message indicating that a command has been submitted to
// a process.
func LogCommand(
	log logging.Logger,
	processID string,
	c process.Command,
	err error,
) {
	icon := CommandIcon
	text := "command submitted"

	if err != nil {
		icon = CommandErrorIcon
		text = err.Error()
	}

	logging.LogString(
		log,
		String(
			[]IconWithLabel{
				ProcessIDIcon.WithID(processID),
			},
			[]Icon{
				icon,
				errorIcon(err),
			},
			string(c.Name),
			c.Reason,
			text,
		),
	)
}

// LogReclaimed logs a message indicating that the watchdog cleared an expired
// lease.
func LogReclaimed(
	log logging.Logger,
	processID string,
	l process.Lease,
) {
	logging.LogString(
		log,
		String(
			[]IconWithLabel{
				ProcessIDIcon.WithID(processID),
			},
			[]Icon{
				SystemIcon,
				"",
			},
			"expired lease reclaimed",
			fmt.Sprintf("held by %s until %s", l.Owner, l.ExpiresAt.Format(time.RFC3339)),
		),
	)
}

func processIDs(p *process.Process) []IconWithLabel {
	return []IconWithLabel{
		ProcessIDIcon.WithID(p.ID),
		CorrelationIDIcon.WithID(p.CorrelationID),
	}
}

func errorIcon(err error) Icon {
	if err == nil {
		return ""
	}

	return ErrorIcon
}

func retryIcon(n uint) Icon {
	if n == 0 {
		return ""
	}

	return RetryIcon
}
