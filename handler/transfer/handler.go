package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/accord/credential"
	"github.com/dogmatiq/accord/executor"
	"github.com/dogmatiq/accord/handler"
	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/accord/protocol"
)

// DefaultStatusInterval is the default interval at which the status of an
// active data flow is polled.
var DefaultStatusInterval = 5 * time.Second

// Handler is the handler for transfer processes.
type Handler struct {
	// Dispatcher sends messages to the peer.
	Dispatcher protocol.Dispatcher

	// Address is the address of this connector, as known to its peers.
	Address string

	// ParticipantID identifies this connector in issued credentials.
	ParticipantID string

	// Selector chooses the executor that moves the data.
	Selector handler.ExecutorSelector

	// Executors controls data flows on executors.
	Executors executor.Client

	// Credentials issues access tokens for data flows. If it also implements
	// credential.Revoker, tokens are revoked during deprovisioning.
	Credentials credential.Issuer

	// Secrets resolves secret references in data destinations.
	Secrets credential.SecretStore

	// StatusInterval is the interval at which active flows are polled. If it
	// is zero, DefaultStatusInterval is used.
	StatusInterval time.Duration
}

var _ handler.MessageHandler = (*Handler)(nil)

// Type returns process.TransferType.
func (h *Handler) Type() process.Type {
	return process.TransferType
}

// Graph returns the transfer state graph.
func (h *Handler) Graph() *process.Graph {
	return Graph
}

// Awaits returns true if p is a consumer transfer waiting for the provider to
// start the flow.
func (h *Handler) Awaits(p *process.Process) bool {
	return p.State == process.Requesting &&
		p.Transfer().Role == process.ConsumerRole
}

// HandleState performs the local action for p's current state.
func (h *Handler) HandleState(ctx context.Context, p *process.Process) handler.Outcome {
	t := p.Transfer()
	provider := t.Role == process.ProviderRole

	switch p.State {
	case process.Initial:
		return handler.TransitionTo(process.Provisioning)

	case process.Provisioning:
		if provider && t.ExecutorID == "" {
			id, err := h.Selector.Select(ctx, executor.Criteria{
				Capabilities: []string{t.TransferType},
				Affinity:     t.Affinity,
			})
			if err != nil {
				return handler.Retry(err)
			}

			t.ExecutorID = id
		}

		return handler.TransitionTo(process.Provisioned)

	case process.Provisioned:
		if !provider {
			if err := h.send(ctx, p, protocol.TransferRequest, protocol.Message{
				AgreementID:  t.AgreementID,
				AssetID:      t.AssetID,
				TransferType: t.TransferType,
				Destination:  &t.Destination,
			}); err != nil {
				return handler.Retry(err)
			}

			t.RequestSent = true
		}

		return handler.TransitionTo(process.Requesting)

	case process.Requesting:
		if !provider {
			return handler.Fatal(errors.New("consumer has no action in the REQUESTING state"))
		}

		if err := h.start(ctx, p); err != nil {
			return handler.Retry(err)
		}

		return handler.TransitionTo(process.Started)

	case process.Started:
		if !provider {
			return handler.Reschedule(h.interval())
		}

		if !t.FlowActive {
			if err := h.start(ctx, p); err != nil {
				return handler.Retry(err)
			}

			return handler.Update()
		}

		return h.poll(ctx, p)

	case process.Suspended:
		if provider && t.FlowActive {
			if err := h.Executors.SuspendFlow(ctx, t.ExecutorID, p.ID); err != nil {
				return handler.Retry(err)
			}

			t.FlowActive = false
			return handler.Update()
		}

		return handler.Reschedule(h.interval())

	case process.Deprovisioning:
		if err := h.deprovision(ctx, p); err != nil {
			return handler.Retry(err)
		}

		return handler.TransitionTo(process.Deprovisioned)

	default: // process.Deprovisioned
		end := t.EndState
		if end == "" {
			end = process.Terminated
		}

		if h.peerAware(p) && !t.PeerInitiated {
			mt := protocol.TransferTermination
			if end == process.Completed {
				mt = protocol.TransferCompletion
			}

			if err := h.send(ctx, p, mt, protocol.Message{
				Reason: t.Reason,
			}); err != nil {
				return handler.Retry(err)
			}
		}

		return handler.TransitionTo(end)
	}
}

// ApplyCommand prepares p for command c.
func (h *Handler) ApplyCommand(
	ctx context.Context,
	p *process.Process,
	c process.Command,
) (process.State, error) {
	to, err := handler.CommandTarget(h, p, c)
	if err != nil {
		return "", err
	}

	t := p.Transfer()

	switch c.Name {
	case process.SuspendCommand:
		if h.peerAware(p) {
			if err := h.send(ctx, p, protocol.TransferSuspension, protocol.Message{
				Reason: c.Reason,
			}); err != nil {
				return "", err
			}
		}

	case process.ResumeCommand:
		if t.Role == process.ConsumerRole {
			if err := h.send(ctx, p, protocol.TransferStart, protocol.Message{}); err != nil {
				return "", err
			}
		}

	case process.CompleteCommand:
		t.EndState = process.Completed

	default: // terminate, cancel
		t.EndState = process.Terminated
		t.Reason = c.Reason
	}

	return to, nil
}

// Fail routes p through deprovisioning, unless it is already being torn
// down.
func (h *Handler) Fail(p *process.Process, cause error) process.State {
	to := handler.FailureTarget(h, p)

	t := p.Transfer()
	t.Reason = cause.Error()

	if to == process.Deprovisioning {
		t.EndState = process.FatalError
	}

	return to
}

// Initiates returns true if t is protocol.TransferRequest.
func (h *Handler) Initiates(t protocol.MessageType) bool {
	return t == protocol.TransferRequest
}

// New returns the payload for a provider-side transfer started by a transfer
// request.
func (h *Handler) New(m protocol.Message) (process.State, interface{}, error) {
	if m.Destination == nil {
		return "", nil, errors.New("transfer request does not contain a destination")
	}

	if m.Sender == "" {
		return "", nil, errors.New("transfer request does not identify the sender")
	}

	return process.Initial, &process.Transfer{
		Role:         process.ProviderRole,
		Peer:         m.Sender,
		AgreementID:  m.AgreementID,
		AssetID:      m.AssetID,
		TransferType: m.TransferType,
		Destination:  *m.Destination,
	}, nil
}

// HandleMessage applies a message from the peer to p.
func (h *Handler) HandleMessage(
	_ context.Context,
	p *process.Process,
	m protocol.Message,
) (process.State, bool, error) {
	t := p.Transfer()

	switch m.Type {
	case protocol.TransferRequest:
		return p.State, false, nil

	case protocol.TransferStart:
		switch p.State {
		case process.Started:
			return p.State, false, nil
		case process.Requesting, process.Suspended:
			if m.Endpoint != nil {
				e := *m.Endpoint
				t.PeerEndpoint = &e
			}
			return process.Started, true, nil
		}

	case protocol.TransferSuspension:
		switch p.State {
		case process.Suspended:
			return p.State, false, nil
		case process.Started:
			return process.Suspended, true, nil
		}

	case protocol.TransferCompletion, protocol.TransferTermination:
		if isTeardown(p.State) {
			return p.State, false, nil
		}

		t.PeerInitiated = true
		t.EndState = process.Completed

		if m.Type == protocol.TransferTermination {
			t.EndState = process.Terminated
			t.Reason = m.Reason
		}

		return process.Deprovisioning, true, nil
	}

	return "", false, handler.UnexpectedMessageError{
		Type:  m.Type,
		State: p.State,
	}
}

// start starts the data flow on the selected executor and tells the peer
// that the transfer has started.
func (h *Handler) start(ctx context.Context, p *process.Process) error {
	t := p.Transfer()

	dest := t.Destination
	if dest.SecretKey != "" {
		s, err := h.Secrets.Get(ctx, dest.SecretKey)
		if err != nil {
			return err
		}
		dest.Secret = s
	}

	token, err := h.Credentials.IssueAccessToken(ctx, credential.Claims{
		ID:            p.ID,
		ProcessID:     p.ID,
		AgreementID:   t.AgreementID,
		AssetID:       t.AssetID,
		FlowType:      t.TransferType,
		ParticipantID: h.ParticipantID,
	})
	if err != nil {
		return err
	}

	if err := h.Executors.StartFlow(ctx, t.ExecutorID, executor.FlowRequest{
		ProcessID:         p.ID,
		AgreementID:       t.AgreementID,
		AssetID:           t.AssetID,
		TransferType:      t.TransferType,
		Destination:       dest,
		DestinationSecret: dest.Secret,
		AccessToken:       token,
	}); err != nil {
		return err
	}

	if err := h.send(ctx, p, protocol.TransferStart, protocol.Message{
		Endpoint: &process.DataAddress{
			Type: "EndpointDataReference",
			Properties: map[string]string{
				"executor_id":   t.ExecutorID,
				"authorization": token,
			},
		},
	}); err != nil {
		return err
	}

	t.FlowActive = true

	return nil
}

// poll checks the status of an active flow.
func (h *Handler) poll(ctx context.Context, p *process.Process) handler.Outcome {
	t := p.Transfer()

	s, err := h.Executors.FlowStatus(ctx, t.ExecutorID, p.ID)
	if err != nil {
		return handler.Retry(err)
	}

	switch s {
	case executor.FlowCompleted:
		t.EndState = process.Completed
		return handler.TransitionTo(process.Deprovisioning)

	case executor.FlowFailed:
		t.EndState = process.Terminated
		t.Reason = "data flow failed"
		return handler.TransitionTo(process.Deprovisioning)

	case executor.FlowUnknown:
		t.FlowActive = false
		return handler.Update()

	default:
		return handler.Reschedule(h.interval())
	}
}

// deprovision releases the executor and credentials used by the transfer.
func (h *Handler) deprovision(ctx context.Context, p *process.Process) error {
	t := p.Transfer()

	if t.Role != process.ProviderRole {
		return nil
	}

	if t.ExecutorID != "" {
		if err := h.Executors.TerminateFlow(ctx, t.ExecutorID, p.ID); err != nil {
			return err
		}
	}

	if r, ok := h.Credentials.(credential.Revoker); ok {
		if err := r.RevokeAccessToken(ctx, p.ID); err != nil {
			return err
		}
	}

	t.FlowActive = false

	return nil
}

// send sends a message of type mt to the peer.
func (h *Handler) send(
	ctx context.Context,
	p *process.Process,
	mt protocol.MessageType,
	m protocol.Message,
) error {
	m.ID = protocol.IdempotencyKey(p.ID, p.State, mt)
	m.Type = mt
	m.ProcessID = p.ID
	m.CorrelationID = p.CorrelationID
	m.Sender = h.Address

	return h.Dispatcher.Send(ctx, p.Transfer().Peer, m)
}

// peerAware returns true if the peer knows about the transfer.
func (h *Handler) peerAware(p *process.Process) bool {
	t := p.Transfer()
	return t.Role == process.ProviderRole || t.RequestSent
}

func (h *Handler) interval() time.Duration {
	if h.StatusInterval > 0 {
		return h.StatusInterval
	}

	return DefaultStatusInterval
}
