package natsdispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dogmatiq/accord/protocol"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/nats-io/nats.go"
)

// DefaultQueue is the default NATS queue group shared by all nodes of a
// connector.
var DefaultQueue = "accord"

// DefaultHandlerTimeout is the default deadline for handling a single
// inbound message.
var DefaultHandlerTimeout = 10 * time.Second

// Server delivers messages received over NATS to a protocol.Receiver.
type Server struct {
	// Conn is the NATS connection.
	Conn *nats.Conn

	// Address is this connector's address, as used by peers when sending.
	Address string

	// SubjectPrefix is the prefix of the subject to subscribe to. If it is
	// empty, DefaultSubjectPrefix is used.
	SubjectPrefix string

	// Queue is the queue group to join. If it is empty, DefaultQueue is used.
	Queue string

	// Receiver handles each message.
	Receiver protocol.Receiver

	// Timeout is the deadline for handling each message. If it is zero,
	// DefaultHandlerTimeout is used.
	Timeout time.Duration

	// Logger is the target for log messages about rejected messages.
	Logger logging.Logger
}

// Run receives messages until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	queue := s.Queue
	if queue == "" {
		queue = DefaultQueue
	}

	sub, err := s.Conn.QueueSubscribe(
		Subject(s.SubjectPrefix, s.Address),
		queue,
		func(msg *nats.Msg) {
			s.handle(ctx, msg)
		},
	)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe() // nolint:errcheck

	<-ctx.Done()
	return ctx.Err()
}

func (s *Server) handle(ctx context.Context, msg *nats.Msg) {
	var r reply

	if err := s.deliver(ctx, msg); err != nil {
		logging.Log(
			s.Logger,
			"rejected message from %s: %s",
			msg.Subject,
			err,
		)
		r.Error = err.Error()
	}

	data, err := json.Marshal(r)
	if err != nil {
		panic(err)
	}

	if err := msg.Respond(data); err != nil {
		logging.Debug(s.Logger, "unable to reply to %s: %s", msg.Subject, err)
	}
}

func (s *Server) deliver(ctx context.Context, msg *nats.Msg) error {
	var m protocol.Message
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		return err
	}

	if m.ID == "" {
		m.ID = msg.Header.Get(nats.MsgIdHdr)
	}

	ctx, cancel := linger.ContextWithTimeout(ctx, s.Timeout, DefaultHandlerTimeout)
	defer cancel()

	return s.Receiver.HandleMessage(ctx, m)
}
