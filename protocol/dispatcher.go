package protocol

import (
	"context"
	"fmt"

	"github.com/dogmatiq/accord/process"
	"github.com/google/uuid"
)

// Dispatcher sends messages to peer connectors.
type Dispatcher interface {
	// Send delivers m to the peer at the given address.
	//
	// Send may be called more than once with the same message. Peers
	// deduplicate messages using the message ID and the process ID.
	Send(ctx context.Context, peer string, m Message) error
}

// Receiver handles messages received from peer connectors.
type Receiver interface {
	HandleMessage(ctx context.Context, m Message) error
}

// RejectedError is returned by a Dispatcher when the peer received a message
// but refused to process it.
type RejectedError struct {
	Peer      string
	MessageID string
	Reason    string
}

func (e RejectedError) Error() string {
	return fmt.Sprintf(
		"peer '%s' rejected message %s: %s",
		e.Peer,
		e.MessageID,
		e.Reason,
	)
}

// namespace is the UUID namespace for idempotency keys.
var namespace = uuid.MustParse("8d3c35e7-4a0a-4bd4-9cd5-1f2ab6d0a6a1")

// IdempotencyKey returns the ID to use for a message of type t that is sent
// by the given process while in state s.
//
// The key does not depend on the retry count, so every attempt to send the
// same message produces the same key.
func IdempotencyKey(processID string, s process.State, t MessageType) string {
	return uuid.NewSHA1(
		namespace,
		[]byte(processID+"/"+string(s)+"/"+string(t)),
	).String()
}
