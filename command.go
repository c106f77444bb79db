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
	"github.com/dogmatiq/linger"
	"github.com/google/uuid"
)

// SubmitCommand records command c against the process with the given ID.
//
// The command is applied by the next engine pass over the process. It
// returns a CommandRejectedError if the command is not valid in the process's
// current state, or if a different command is already pending.
func (e *Engine) SubmitCommand(
	ctx context.Context,
	id string,
	c process.Command,
) (err error) {
	defer func() {
		mlog.LogCommand(e.opts.Logger, id, c, err)
	}()

	ds, err := e.dataStore.Get(ctx)
	if err != nil {
		return err
	}

	for n := uint(0); ; n++ {
		r, ok, err := ds.LoadProcess(ctx, id)
		if err != nil {
			return err
		}

		if !ok {
			return UnknownProcessError{ProcessID: id}
		}

		h, err := e.handlerFor(r.Type)
		if err != nil {
			return err
		}

		if _, ok := h.Graph().CommandTarget(c.Name, r.State); !ok {
			cause := handler.CommandNotPermittedError{
				Command: c.Name,
				State:   r.State,
			}

			return CommandRejectedError{
				ProcessID: id,
				Command:   c,
				Reason:    cause.Error(),
				Cause:     cause,
			}
		}

		if r.PendingCommand != nil {
			if r.PendingCommand.Name == c.Name {
				return nil
			}

			return CommandRejectedError{
				ProcessID: id,
				Command:   c,
				Reason: fmt.Sprintf(
					"the %s command is already pending",
					r.PendingCommand.Name,
				),
			}
		}

		if r.Lease.IsActive(e.now()) {
			if err := linger.Sleep(ctx, e.opts.CommandBackoff(nil, n)); err != nil {
				return err
			}
			continue
		}

		cmd := c
		r.PendingCommand = &cmd
		r.StateTimestamp = e.now()

		_, err = save(ctx, ds, r)
		if err == nil {
			return nil
		}

		if !errors.As(err, &persistence.ConflictError{}) {
			return err
		}

		if err := linger.Sleep(ctx, e.opts.CommandBackoff(err, n)); err != nil {
			return err
		}
	}
}

// NegotiationRequest is a request to start negotiating a contract with a
// provider.
type NegotiationRequest struct {
	// Peer is the address of the provider connector.
	Peer string

	// Offer is the offer that the consumer requests.
	Offer process.Offer
}

// StartNegotiation starts a new negotiation in the consumer role and returns
// its process ID.
func (e *Engine) StartNegotiation(ctx context.Context, req NegotiationRequest) (string, error) {
	if req.Peer == "" {
		return "", errors.New("negotiation request must specify a peer")
	}

	return e.create(ctx, process.NegotiationType, "", &process.Negotiation{
		Role:  process.ConsumerRole,
		Peer:  req.Peer,
		Offer: req.Offer,
	})
}

// TransferRequest is a request to start a data transfer under an existing
// agreement.
type TransferRequest struct {
	// Peer is the address of the provider connector.
	Peer string

	AgreementID string
	AssetID     string

	// TransferType is the executor capability required to move the data.
	TransferType string

	// Destination is where the data is to be delivered.
	Destination process.DataAddress

	// Affinity lists preferred executor labels.
	Affinity []string
}

// StartTransfer starts a new transfer in the consumer role and returns its
// process ID.
func (e *Engine) StartTransfer(ctx context.Context, req TransferRequest) (string, error) {
	if req.Peer == "" {
		return "", errors.New("transfer request must specify a peer")
	}

	if req.AgreementID == "" {
		return "", errors.New("transfer request must specify an agreement")
	}

	return e.create(ctx, process.TransferType, "", &process.Transfer{
		Role:         process.ConsumerRole,
		Peer:         req.Peer,
		AgreementID:  req.AgreementID,
		AssetID:      req.AssetID,
		TransferType: req.TransferType,
		Destination:  req.Destination,
		Affinity:     req.Affinity,
	})
}

// MonitorRequest is a request to monitor a transfer's compliance with its
// agreement's policy.
type MonitorRequest struct {
	TransferID  string
	AgreementID string
	Policy      string

	// NotAfter is the end of the agreement's validity period, if any.
	NotAfter time.Time
}

// StartMonitor starts monitoring a transfer and returns the monitor's
// process ID.
//
// A transfer has at most one monitor. If it is already monitored, the ID of
// the existing monitor is returned.
func (e *Engine) StartMonitor(ctx context.Context, req MonitorRequest) (string, error) {
	if req.TransferID == "" {
		return "", errors.New("monitor request must specify a transfer")
	}

	ds, err := e.dataStore.Get(ctx)
	if err != nil {
		return "", err
	}

	if r, ok, err := ds.LoadProcessByCorrelationID(ctx, process.MonitorType, req.TransferID); err != nil || ok {
		return r.ID, err
	}

	id, err := e.create(ctx, process.MonitorType, req.TransferID, &process.Monitor{
		TransferID:  req.TransferID,
		AgreementID: req.AgreementID,
		Policy:      req.Policy,
		NotAfter:    req.NotAfter,
	})

	if errors.As(err, &persistence.ConflictError{}) {
		r, _, err := ds.LoadProcessByCorrelationID(ctx, process.MonitorType, req.TransferID)
		return r.ID, err
	}

	return id, err
}

// create persists a new process in its type's initial state.
func (e *Engine) create(
	ctx context.Context,
	t process.Type,
	correlationID string,
	payload interface{},
) (string, error) {
	h, err := e.handlerFor(t)
	if err != nil {
		return "", err
	}

	return e.insert(ctx, &process.Process{
		ID:             uuid.NewString(),
		Type:           t,
		State:          h.Graph().Initial(),
		StateTimestamp: e.now(),
		CorrelationID:  correlationID,
		Payload:        payload,
	})
}

// insert persists p as a new process.
func (e *Engine) insert(ctx context.Context, p *process.Process) (string, error) {
	ds, err := e.dataStore.Get(ctx)
	if err != nil {
		return "", err
	}

	r, err := marshalProcess(e.opts.Marshaler, p)
	if err != nil {
		return "", err
	}

	if _, err := save(ctx, ds, r); err != nil {
		return "", err
	}

	return p.ID, nil
}
