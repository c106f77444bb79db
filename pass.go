package accord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dogmatiq/accord/handler"
	"github.com/dogmatiq/accord/internal/mlog"
	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
)

// AwaitTimeoutError indicates that a process waited longer than the await
// timeout for its peer.
type AwaitTimeoutError struct {
	State   process.State
	Timeout time.Duration
}

func (e AwaitTimeoutError) Error() string {
	return fmt.Sprintf(
		"timed out after %s waiting for the peer in the %s state",
		e.Timeout,
		e.State,
	)
}

// pass performs a single engine pass over the process in r.
//
// It returns an error only if ctx is canceled. Other failures are logged and
// the process is left for a future pass.
func (e *Engine) pass(
	ctx context.Context,
	ds persistence.DataStore,
	h handler.Handler,
	r persistence.ProcessRecord,
) error {
	start := time.Now()
	now := e.now()

	r.Lease = process.Lease{
		Owner:     e.leaseOwner(),
		ExpiresAt: now.Add(e.opts.LeaseDuration),
	}

	rev, err := save(ctx, ds, r)
	if err != nil {
		return e.discard(ctx, r.Type, "acquire lease", r.ID, err)
	}
	r.Revision = rev

	p, err := unmarshalProcess(e.opts.Marshaler, r)
	from := p.State

	var o handler.Outcome
	if err != nil {
		o = handler.Fatal(fmt.Errorf("unable to unmarshal payload: %w", err))
	} else {
		o = e.decide(ctx, h, p, now)
	}

	kind := e.apply(h, p, o, now)

	nr := withHeader(r, p)
	if p.Payload != nil && kind != handler.RetryOutcome {
		nr.Packet, err = process.MarshalPayload(e.opts.Marshaler, p.Payload)
		if err != nil {
			return e.discard(ctx, r.Type, "marshal payload", r.ID, err)
		}
	}

	rev, err = save(ctx, ds, nr)
	if err != nil {
		return e.discard(ctx, r.Type, "commit", r.ID, err)
	}
	p.Version = rev

	mlog.LogPass(
		e.opts.Logger,
		mlog.Pass{
			Process: p,
			From:    from,
			Outcome: kind.String(),
			Err:     o.Err,
			Delay:   p.StateTimestamp.Sub(now),
		},
	)

	e.opts.Metrics.ObservePass(string(p.Type), kind.String(), time.Since(start))
	if from != p.State {
		e.opts.Metrics.RecordTransition(string(p.Type), string(from), string(p.State))
	}

	return nil
}

// decide returns the outcome of handling p in its current state.
//
// p.PendingCommand is cleared if the command was applied or is no longer
// valid.
func (e *Engine) decide(
	ctx context.Context,
	h handler.Handler,
	p *process.Process,
	now time.Time,
) handler.Outcome {
	discarded := false

	if p.PendingCommand != nil {
		c := *p.PendingCommand

		to, err := e.applyCommand(ctx, h, p, c)
		if err == nil {
			p.PendingCommand = nil
			return handler.TransitionTo(to)
		}

		var npe handler.CommandNotPermittedError
		if !errors.As(err, &npe) {
			return handler.Retry(err)
		}

		p.PendingCommand = nil
		p.ErrorDetail = err.Error()
		discarded = true
	}

	if p.Awaiting && h.Awaits(p) {
		if discarded {
			return handler.Reschedule(e.opts.AwaitTimeout)
		}

		return handler.Fatal(AwaitTimeoutError{
			State:   p.State,
			Timeout: e.opts.AwaitTimeout,
		})
	}

	return e.handleState(ctx, h, p)
}

// handleState invokes the handler's state action, bounded by the handler
// timeout. A panic is treated as a retry.
func (e *Engine) handleState(
	ctx context.Context,
	h handler.Handler,
	p *process.Process,
) (o handler.Outcome) {
	ctx, cancel := linger.ContextWithTimeout(ctx, e.opts.HandlerTimeout)
	defer cancel()

	defer func() {
		if v := recover(); v != nil {
			o = handler.Retry(fmt.Errorf("handler panicked: %v", v))
		}
	}()

	return h.HandleState(ctx, p)
}

// applyCommand invokes the handler's command logic, bounded by the handler
// timeout. A panic is treated as a retryable error.
func (e *Engine) applyCommand(
	ctx context.Context,
	h handler.Handler,
	p *process.Process,
	c process.Command,
) (to process.State, err error) {
	ctx, cancel := linger.ContextWithTimeout(ctx, e.opts.HandlerTimeout)
	defer cancel()

	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("handler panicked: %v", v)
		}
	}()

	return h.ApplyCommand(ctx, p, c)
}

// apply updates p according to o. It returns the kind of outcome that was
// actually applied, which differs from o.Kind when the outcome is forced to
// a failure.
func (e *Engine) apply(
	h handler.Handler,
	p *process.Process,
	o handler.Outcome,
	now time.Time,
) handler.OutcomeKind {
	g := h.Graph()

	if o.Kind == handler.TransitionOutcome {
		if err := g.Validate(process.Local, p.State, o.State); err != nil {
			o = handler.Fatal(err)
		}
	}

	if o.Kind == handler.RetryOutcome && p.RetryCount >= e.opts.MaxRetries {
		o = handler.Fatal(fmt.Errorf(
			"gave up after %d retries: %w",
			p.RetryCount,
			o.Err,
		))
	}

	p.Lease = process.Lease{}

	switch o.Kind {
	case handler.TransitionOutcome:
		p.State = o.State
		p.RetryCount = 0
		p.StateTimestamp = now

	case handler.RetryOutcome:
		p.StateTimestamp = e.opts.Backoff.NextRetry(now, p.RetryCount, o.Err)
		p.RetryCount++
		p.ErrorDetail = o.Err.Error()
		return o.Kind

	case handler.FatalOutcome:
		p.ErrorDetail = o.Err.Error()
		p.State = e.fail(h, p, o.Err)
		p.RetryCount = 0
		p.StateTimestamp = now

	case handler.UpdateOutcome:
		p.RetryCount = 0
		p.StateTimestamp = now

	case handler.RescheduleOutcome:
		p.RetryCount = 0
		p.StateTimestamp = now.Add(o.Delay)
	}

	p.Awaiting = p.Payload != nil &&
		!g.IsTerminal(p.State) &&
		h.Awaits(p)

	if p.Awaiting && o.Kind != handler.RescheduleOutcome {
		p.StateTimestamp = now.Add(e.opts.AwaitTimeout)
	}

	return o.Kind
}

// fail returns the state that p moves to when it fails because of cause.
func (e *Engine) fail(
	h handler.Handler,
	p *process.Process,
	cause error,
) (to process.State) {
	if p.Payload == nil {
		return process.FatalError
	}

	defer func() {
		if v := recover(); v != nil {
			to = process.FatalError
		}
	}()

	to = h.Fail(p, cause)

	if h.Graph().Validate(process.Local, p.State, to) != nil {
		return process.FatalError
	}

	return to
}

// discard abandons a pass after a persistence failure.
//
// Conflicts are expected when other workers handle the same process, so they
// are only logged in debug mode.
func (e *Engine) discard(
	ctx context.Context,
	t process.Type,
	op, id string,
	err error,
) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if errors.As(err, &persistence.ConflictError{}) {
		e.opts.Metrics.RecordConflict(string(t))
		logging.Debug(e.opts.Logger, "%s: unable to %s: %s", id, op, err)
		return nil
	}

	logging.Log(e.opts.Logger, "%s: unable to %s: %s", id, op, err)
	return nil
}
