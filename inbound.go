package accord

import (
	"context"
	"errors"
	"fmt"

	"github.com/dogmatiq/accord/handler"
	"github.com/dogmatiq/accord/internal/mlog"
	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/accord/protocol"
	"github.com/dogmatiq/linger"
	"github.com/google/uuid"
)

var _ protocol.Receiver = (*Engine)(nil)

// HandleMessage applies a message received from a peer connector.
//
// The message is routed to a process by its correlation ID. Messages that
// initiate an exchange create a new process. Duplicate messages are ignored.
//
// It returns ErrProcessLeased if the process is being handled, in which case
// the peer should retry.
func (e *Engine) HandleMessage(ctx context.Context, m protocol.Message) (err error) {
	var processID string

	defer func() {
		mlog.LogInbound(e.opts.Logger, m, processID, err)
		e.opts.Metrics.RecordInbound(string(m.Type), err)
	}()

	t, ok := m.Type.ProcessType()
	if !ok {
		return fmt.Errorf("unrecognized message type: %s", m.Type)
	}

	h, err := e.handlerFor(t)
	if err != nil {
		return err
	}

	mh, ok := h.(handler.MessageHandler)
	if !ok {
		return fmt.Errorf("%s processes do not accept messages", t)
	}

	ds, err := e.dataStore.Get(ctx)
	if err != nil {
		return err
	}

	r, ok, err := e.route(ctx, ds, t, m)
	if err != nil {
		return err
	}

	if !ok {
		if !mh.Initiates(m.Type) {
			return UnknownProcessError{ProcessID: m.ProcessID}
		}

		processID, err = e.initiate(ctx, mh, m)
		return err
	}

	processID = r.ID
	now := e.now()

	if r.Lease.IsActive(now) {
		return ErrProcessLeased
	}

	g := mh.Graph()
	if g.IsTerminal(r.State) {
		return nil
	}

	p, err := unmarshalProcess(e.opts.Marshaler, r)
	if err != nil {
		return err
	}

	from := p.State

	to, changed, err := e.applyMessage(ctx, mh, p, m)
	if err != nil || !changed {
		return err
	}

	if to != from {
		if err := g.Validate(process.Peer, from, to); err != nil {
			return err
		}

		p.State = to
		p.RetryCount = 0
	}

	if p.CorrelationID == "" {
		p.CorrelationID = m.ProcessID
	}

	p.Lease = process.Lease{}
	p.StateTimestamp = now
	p.Awaiting = !g.IsTerminal(p.State) && mh.Awaits(p)
	if p.Awaiting {
		p.StateTimestamp = now.Add(e.opts.AwaitTimeout)
	}

	nr, err := marshalProcess(e.opts.Marshaler, p)
	if err != nil {
		return err
	}

	if _, err := save(ctx, ds, nr); err != nil {
		if errors.As(err, &persistence.ConflictError{}) {
			e.opts.Metrics.RecordConflict(string(t))
			return ErrProcessLeased
		}

		return err
	}

	if from != p.State {
		e.opts.Metrics.RecordTransition(string(t), string(from), string(p.State))
	}

	return nil
}

// route loads the process that m applies to.
//
// ok is false if m does not refer to a known process and may initiate one.
func (e *Engine) route(
	ctx context.Context,
	ds persistence.DataStore,
	t process.Type,
	m protocol.Message,
) (persistence.ProcessRecord, bool, error) {
	if m.CorrelationID == "" {
		return ds.LoadProcessByCorrelationID(ctx, t, m.ProcessID)
	}

	r, ok, err := ds.LoadProcess(ctx, m.CorrelationID)
	if err != nil {
		return r, false, err
	}

	if !ok ||
		r.Type != t ||
		(r.CorrelationID != "" && r.CorrelationID != m.ProcessID) {
		return r, false, UnknownProcessError{ProcessID: m.CorrelationID}
	}

	return r, true, nil
}

// initiate creates the process started by m.
//
// If the process has already been created by an earlier delivery of the same
// message, it returns the ID of that process.
func (e *Engine) initiate(
	ctx context.Context,
	h handler.MessageHandler,
	m protocol.Message,
) (string, error) {
	s, payload, err := h.New(m)
	if err != nil {
		return "", err
	}

	now := e.now()
	p := &process.Process{
		ID:             uuid.NewString(),
		Type:           h.Type(),
		State:          s,
		StateTimestamp: now,
		CorrelationID:  m.ProcessID,
		Payload:        payload,
	}

	p.Awaiting = h.Awaits(p)
	if p.Awaiting {
		p.StateTimestamp = now.Add(e.opts.AwaitTimeout)
	}

	id, err := e.insert(ctx, p)
	if errors.As(err, &persistence.ConflictError{}) {
		ds, err := e.dataStore.Get(ctx)
		if err != nil {
			return "", err
		}

		r, _, err := ds.LoadProcessByCorrelationID(ctx, h.Type(), m.ProcessID)
		return r.ID, err
	}

	return id, err
}

// applyMessage invokes the handler's message logic, bounded by the handler
// timeout.
func (e *Engine) applyMessage(
	ctx context.Context,
	h handler.MessageHandler,
	p *process.Process,
	m protocol.Message,
) (to process.State, changed bool, err error) {
	ctx, cancel := linger.ContextWithTimeout(ctx, e.opts.HandlerTimeout)
	defer cancel()

	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("handler panicked: %v", v)
		}
	}()

	return h.HandleMessage(ctx, p, m)
}
