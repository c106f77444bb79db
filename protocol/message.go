package protocol

import "github.com/dogmatiq/accord/process"

// MessageType identifies the kind of a protocol message.
type MessageType string

// Negotiation messages.
const (
	ContractRequest        MessageType = "contract-request"
	ContractOffer          MessageType = "contract-offer"
	ContractAcceptance     MessageType = "contract-acceptance"
	ContractAgreement      MessageType = "contract-agreement"
	AgreementVerification  MessageType = "agreement-verification"
	NegotiationFinalized   MessageType = "negotiation-finalized"
	NegotiationTermination MessageType = "negotiation-termination"
)

// Transfer messages.
const (
	TransferRequest     MessageType = "transfer-request"
	TransferStart       MessageType = "transfer-start"
	TransferSuspension  MessageType = "transfer-suspension"
	TransferCompletion  MessageType = "transfer-completion"
	TransferTermination MessageType = "transfer-termination"
)

// ProcessType returns the type of process that handles messages of type t.
func (t MessageType) ProcessType() (process.Type, bool) {
	switch t {
	case ContractRequest,
		ContractOffer,
		ContractAcceptance,
		ContractAgreement,
		AgreementVerification,
		NegotiationFinalized,
		NegotiationTermination:
		return process.NegotiationType, true
	case TransferRequest,
		TransferStart,
		TransferSuspension,
		TransferCompletion,
		TransferTermination:
		return process.TransferType, true
	default:
		return "", false
	}
}

// Message is a message exchanged with a peer connector.
type Message struct {
	// ID is the idempotency key of the message. Retried sends of the same
	// message carry the same ID.
	ID string `json:"id"`

	// Type is the kind of message.
	Type MessageType `json:"type"`

	// ProcessID is the sender's ID for the process the message belongs to.
	ProcessID string `json:"process_id"`

	// CorrelationID is the receiver's ID for the process, if the sender
	// knows it. It is empty on messages that initiate a process.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Sender identifies the sending connector. Replies are sent to this
	// address.
	Sender string `json:"sender"`

	Offer        *process.Offer       `json:"offer,omitempty"`
	Agreement    *process.Agreement   `json:"agreement,omitempty"`
	AgreementID  string               `json:"agreement_id,omitempty"`
	AssetID      string               `json:"asset_id,omitempty"`
	TransferType string               `json:"transfer_type,omitempty"`
	Destination  *process.DataAddress `json:"destination,omitempty"`
	Endpoint     *process.DataAddress `json:"endpoint,omitempty"`
	Reason       string               `json:"reason,omitempty"`
}
