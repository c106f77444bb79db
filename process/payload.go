package process

import "time"

// Role is the side of an exchange that the local connector plays.
type Role string

const (
	// ConsumerRole is the role of the connector that requests data.
	ConsumerRole Role = "consumer"

	// ProviderRole is the role of the connector that offers data.
	ProviderRole Role = "provider"
)

// Offer is a set of terms under which an asset may be shared.
type Offer struct {
	ID      string `json:"id"`
	AssetID string `json:"asset_id"`
	Policy  string `json:"policy"`
}

// Agreement is an offer that both parties have agreed to.
type Agreement struct {
	ID       string    `json:"id"`
	AssetID  string    `json:"asset_id"`
	Policy   string    `json:"policy"`
	SignedAt time.Time `json:"signed_at"`
	NotAfter time.Time `json:"not_after,omitempty"`
}

// DataAddress describes where data is read from or written to.
type DataAddress struct {
	// Type is the kind of address, such as "HttpData" or "AmazonS3".
	Type string `json:"type"`

	// Properties are the type-specific address properties.
	Properties map[string]string `json:"properties,omitempty"`

	// SecretKey, if non-empty, names a secret that must be resolved before
	// the address is handed to an executor.
	SecretKey string `json:"secret_key,omitempty"`

	// Secret is the resolved secret. It is never persisted.
	Secret string `json:"-"`
}

// Negotiation is the payload of a negotiation process.
type Negotiation struct {
	Role Role `json:"role"`

	// Peer is the address of the counter-party connector.
	Peer string `json:"peer"`

	// Offer is the most recent offer, either requested by the consumer or
	// made by the provider.
	Offer Offer `json:"offer"`

	// Agreement is populated once the provider has agreed.
	Agreement *Agreement `json:"agreement,omitempty"`

	// Reason is the explanation given when the negotiation was terminated.
	Reason string `json:"reason,omitempty"`
}

// Transfer is the payload of a transfer process.
type Transfer struct {
	Role Role `json:"role"`

	// Peer is the address of the counter-party connector.
	Peer string `json:"peer"`

	AgreementID string `json:"agreement_id"`
	AssetID     string `json:"asset_id"`

	// TransferType is the executor capability required to move the data,
	// such as "HttpData-PUSH".
	TransferType string `json:"transfer_type"`

	// Destination is where the data is to be delivered.
	Destination DataAddress `json:"destination"`

	// Affinity lists executor labels that are preferred, but not required.
	Affinity []string `json:"affinity,omitempty"`

	// ExecutorID is the executor selected during provisioning.
	ExecutorID string `json:"executor_id,omitempty"`

	// RequestSent is true once a consumer has asked the provider to start
	// the transfer.
	RequestSent bool `json:"request_sent,omitempty"`

	// FlowActive is true while the executor is moving data.
	FlowActive bool `json:"flow_active,omitempty"`

	// PeerEndpoint is the endpoint data reference received from the peer.
	PeerEndpoint *DataAddress `json:"peer_endpoint,omitempty"`

	// EndState is the terminal state reached after deprovisioning.
	EndState State `json:"end_state,omitempty"`

	// PeerInitiated is true if the peer ended the transfer, in which case it
	// is not notified again.
	PeerInitiated bool `json:"peer_initiated,omitempty"`

	// Reason explains why the transfer ended early.
	Reason string `json:"reason,omitempty"`
}

// Monitor is the payload of a monitor process.
type Monitor struct {
	// TransferID is the ID of the monitored transfer process.
	TransferID string `json:"transfer_id"`

	AgreementID string `json:"agreement_id"`
	Policy      string `json:"policy"`

	// NotAfter is the end of the agreement's validity period, if any.
	NotAfter time.Time `json:"not_after,omitempty"`

	// Checks is the number of completed compliance checks.
	Checks uint `json:"checks"`

	// Violation describes the violation that caused the transfer to be
	// terminated.
	Violation string `json:"violation,omitempty"`
}
