package executor

import (
	"context"

	"github.com/dogmatiq/accord/process"
)

// FlowStatus is the state of a data flow as reported by an executor.
type FlowStatus string

const (
	// FlowRunning indicates that data is being moved.
	FlowRunning FlowStatus = "running"

	// FlowSuspended indicates that the flow has been paused.
	FlowSuspended FlowStatus = "suspended"

	// FlowCompleted indicates that all data has been moved.
	FlowCompleted FlowStatus = "completed"

	// FlowFailed indicates that the flow stopped because of an error.
	FlowFailed FlowStatus = "failed"

	// FlowUnknown indicates that the executor has no record of the flow.
	FlowUnknown FlowStatus = "unknown"
)

// FlowRequest instructs an executor to start, or resume, moving data for a
// transfer process.
type FlowRequest struct {
	// ProcessID is the transfer process ID. Executors use it to deduplicate
	// requests.
	ProcessID string `json:"process_id"`

	AgreementID  string `json:"agreement_id"`
	AssetID      string `json:"asset_id"`
	TransferType string `json:"transfer_type"`

	// Destination is the data destination with any secret already resolved.
	Destination process.DataAddress `json:"destination"`

	// DestinationSecret is the resolved secret of the destination, if any.
	DestinationSecret string `json:"destination_secret,omitempty"`

	// AccessToken authorizes the flow against the connector's data plane
	// endpoints.
	AccessToken string `json:"access_token"`
}

// Client is an interface for controlling data flows on executors.
//
// Every operation must be idempotent, keyed by the process ID.
type Client interface {
	StartFlow(ctx context.Context, executorID string, req FlowRequest) error
	SuspendFlow(ctx context.Context, executorID, processID string) error
	TerminateFlow(ctx context.Context, executorID, processID string) error
	FlowStatus(ctx context.Context, executorID, processID string) (FlowStatus, error)
}
