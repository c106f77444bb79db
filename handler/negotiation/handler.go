package negotiation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dogmatiq/accord/handler"
	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/accord/protocol"
	"github.com/google/uuid"
)

// actions is the set of states in which each role has a local action. In
// every other non-terminal state the process awaits the peer.
var actions = map[process.Role]map[process.State]bool{
	process.ConsumerRole: {
		process.Initial:    true,
		process.Requesting: true,
		process.Offered:    true,
		process.Agreed:     true,
	},
	process.ProviderRole: {
		process.Requested: true,
		process.Accepted:  true,
		process.Verified:  true,
	},
}

// Handler is the handler for negotiation processes.
type Handler struct {
	// Dispatcher sends messages to the peer.
	Dispatcher protocol.Dispatcher

	// Address is the address of this connector, as known to its peers.
	Address string

	// AgreementValidity is the period for which agreements made by this
	// connector as a provider remain valid. If it is zero, agreements do not
	// expire.
	AgreementValidity time.Duration
}

var _ handler.MessageHandler = (*Handler)(nil)

// Type returns process.NegotiationType.
func (h *Handler) Type() process.Type {
	return process.NegotiationType
}

// Graph returns the negotiation state graph.
func (h *Handler) Graph() *process.Graph {
	return Graph
}

// Awaits returns true if p is waiting on the peer.
func (h *Handler) Awaits(p *process.Process) bool {
	if Graph.IsTerminal(p.State) {
		return false
	}

	return !actions[p.Negotiation().Role][p.State]
}

// HandleState performs the local action for p's current state.
func (h *Handler) HandleState(ctx context.Context, p *process.Process) handler.Outcome {
	n := p.Negotiation()

	if !actions[n.Role][p.State] {
		return handler.Fatal(fmt.Errorf(
			"%s has no action in the %s state",
			n.Role,
			p.State,
		))
	}

	switch p.State {
	case process.Initial:
		return handler.TransitionTo(process.Requesting)

	case process.Requesting:
		return h.send(ctx, p, protocol.ContractRequest, protocol.Message{
			Offer: &n.Offer,
		}, process.Requested)

	case process.Requested:
		return h.send(ctx, p, protocol.ContractOffer, protocol.Message{
			Offer: &n.Offer,
		}, process.Offered)

	case process.Offered:
		return h.send(ctx, p, protocol.ContractAcceptance, protocol.Message{
			Offer: &n.Offer,
		}, process.Accepted)

	case process.Accepted:
		if n.Agreement == nil {
			n.Agreement = h.agreement(n.Offer)
			return handler.Update()
		}

		return h.send(ctx, p, protocol.ContractAgreement, protocol.Message{
			Agreement: n.Agreement,
		}, process.Agreed)

	case process.Agreed:
		return h.send(ctx, p, protocol.AgreementVerification, protocol.Message{
			AgreementID: n.Agreement.ID,
		}, process.Verified)

	default: // process.Verified
		return h.send(ctx, p, protocol.NegotiationFinalized, protocol.Message{
			AgreementID: n.Agreement.ID,
		}, process.Finalized)
	}
}

// ApplyCommand terminates the negotiation, notifying the peer if it is aware
// of the negotiation.
func (h *Handler) ApplyCommand(
	ctx context.Context,
	p *process.Process,
	c process.Command,
) (process.State, error) {
	to, err := handler.CommandTarget(h, p, c)
	if err != nil {
		return "", err
	}

	n := p.Negotiation()

	if peerAware(p) {
		o := h.send(ctx, p, protocol.NegotiationTermination, protocol.Message{
			Reason: c.Reason,
		}, to)

		if o.Kind == handler.RetryOutcome {
			return "", o.Err
		}
	}

	n.Reason = c.Reason

	return to, nil
}

// Fail records the cause of the failure.
func (h *Handler) Fail(p *process.Process, cause error) process.State {
	p.Negotiation().Reason = cause.Error()
	return handler.FailureTarget(h, p)
}

// Initiates returns true if t is protocol.ContractRequest.
func (h *Handler) Initiates(t protocol.MessageType) bool {
	return t == protocol.ContractRequest
}

// New returns the payload for a provider-side negotiation started by a
// contract request.
func (h *Handler) New(m protocol.Message) (process.State, interface{}, error) {
	if m.Offer == nil {
		return "", nil, errors.New("contract request does not contain an offer")
	}

	if m.Sender == "" {
		return "", nil, errors.New("contract request does not identify the sender")
	}

	return process.Requested, &process.Negotiation{
		Role:  process.ProviderRole,
		Peer:  m.Sender,
		Offer: *m.Offer,
	}, nil
}

// HandleMessage applies a message from the peer to p.
func (h *Handler) HandleMessage(
	_ context.Context,
	p *process.Process,
	m protocol.Message,
) (process.State, bool, error) {
	n := p.Negotiation()

	var (
		role   process.Role
		target process.State
	)

	switch m.Type {
	case protocol.ContractRequest:
		return p.State, false, nil

	case protocol.NegotiationTermination:
		n.Reason = m.Reason
		return process.Terminated, true, nil

	case protocol.ContractOffer:
		role, target = process.ConsumerRole, process.Offered
	case protocol.ContractAcceptance:
		role, target = process.ProviderRole, process.Accepted
	case protocol.ContractAgreement:
		role, target = process.ConsumerRole, process.Agreed
	case protocol.AgreementVerification:
		role, target = process.ProviderRole, process.Verified
	case protocol.NegotiationFinalized:
		role, target = process.ConsumerRole, process.Finalized
	}

	if role != n.Role {
		return "", false, handler.UnexpectedMessageError{
			Type:  m.Type,
			State: p.State,
		}
	}

	if reached(p.State, target) {
		return p.State, false, nil
	}

	switch m.Type {
	case protocol.ContractOffer:
		if m.Offer == nil {
			return "", false, errors.New("contract offer does not contain an offer")
		}
		n.Offer = *m.Offer

	case protocol.ContractAgreement:
		if m.Agreement == nil {
			return "", false, errors.New("contract agreement does not contain an agreement")
		}
		a := *m.Agreement
		n.Agreement = &a
	}

	return target, true, nil
}

// send sends a message of type t to the peer and returns an outcome that
// transitions to the given state if the message is sent successfully.
func (h *Handler) send(
	ctx context.Context,
	p *process.Process,
	t protocol.MessageType,
	m protocol.Message,
	to process.State,
) handler.Outcome {
	m.ID = protocol.IdempotencyKey(p.ID, p.State, t)
	m.Type = t
	m.ProcessID = p.ID
	m.CorrelationID = p.CorrelationID
	m.Sender = h.Address

	if err := h.Dispatcher.Send(ctx, p.Negotiation().Peer, m); err != nil {
		return handler.Retry(err)
	}

	return handler.TransitionTo(to)
}

func (h *Handler) agreement(o process.Offer) *process.Agreement {
	now := time.Now()

	a := &process.Agreement{
		ID:       uuid.NewString(),
		AssetID:  o.AssetID,
		Policy:   o.Policy,
		SignedAt: now,
	}

	if h.AgreementValidity > 0 {
		a.NotAfter = now.Add(h.AgreementValidity)
	}

	return a
}

// peerAware returns true if the peer knows about the negotiation.
func peerAware(p *process.Process) bool {
	n := p.Negotiation()

	if n.Role == process.ProviderRole {
		return true
	}

	return reached(p.State, process.Requested)
}
