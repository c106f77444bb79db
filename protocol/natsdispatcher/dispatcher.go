package natsdispatcher

import (
	"context"
	"encoding/json"

	"github.com/dogmatiq/accord/protocol"
	"github.com/dogmatiq/linger"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the default prefix of the subject on which each
// connector receives protocol messages.
var DefaultSubjectPrefix = "accord.peer"

// Subject returns the subject on which the connector with the given address
// receives messages.
func Subject(prefix, peer string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	return prefix + "." + peer
}

// reply is the body of the response to a request.
type reply struct {
	Error string `json:"error,omitempty"`
}

// Dispatcher is an implementation of protocol.Dispatcher that sends messages
// to peers using NATS request/reply.
type Dispatcher struct {
	// Conn is the NATS connection.
	Conn *nats.Conn

	// SubjectPrefix is the prefix of the subject each peer listens on. If it
	// is empty, DefaultSubjectPrefix is used.
	SubjectPrefix string
}

var _ protocol.Dispatcher = (*Dispatcher)(nil)

// Send delivers m to peer and waits for it to be acknowledged.
func (d *Dispatcher) Send(ctx context.Context, peer string, m protocol.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(Subject(d.SubjectPrefix, peer))
	msg.Header.Set(nats.MsgIdHdr, m.ID)
	msg.Data = data

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = linger.ContextWithTimeout(ctx, nats.DefaultTimeout)
		defer cancel()
	}

	res, err := d.Conn.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return err
	}

	var r reply
	if err := json.Unmarshal(res.Data, &r); err != nil {
		return err
	}

	if r.Error != "" {
		return protocol.RejectedError{
			Peer:      peer,
			MessageID: m.ID,
			Reason:    r.Error,
		}
	}

	return nil
}
