package fixtures

import (
	"context"
	"sync"

	"github.com/dogmatiq/accord/protocol"
)

// SentMessage is a message sent via a DispatcherStub.
type SentMessage struct {
	Peer    string
	Message protocol.Message
}

// DispatcherStub is a test implementation of the protocol.Dispatcher
// interface that records the messages it sends.
type DispatcherStub struct {
	SendFunc func(context.Context, string, protocol.Message) error

	m    sync.Mutex
	sent []SentMessage
}

// Send records m. If SendFunc is non-nil, its result is returned and the
// message is only recorded if it succeeds.
func (d *DispatcherStub) Send(ctx context.Context, peer string, m protocol.Message) error {
	if d.SendFunc != nil {
		if err := d.SendFunc(ctx, peer, m); err != nil {
			return err
		}
	}

	d.m.Lock()
	defer d.m.Unlock()

	d.sent = append(d.sent, SentMessage{peer, m})

	return nil
}

// Sent returns the messages that have been sent.
func (d *DispatcherStub) Sent() []SentMessage {
	d.m.Lock()
	defer d.m.Unlock()

	return append([]SentMessage(nil), d.sent...)
}

// SentTypes returns the types of the messages that have been sent, in
// order.
func (d *DispatcherStub) SentTypes() []protocol.MessageType {
	var types []protocol.MessageType

	for _, s := range d.Sent() {
		types = append(types, s.Message.Type)
	}

	return types
}

// Reset discards the recorded messages.
func (d *DispatcherStub) Reset() {
	d.m.Lock()
	defer d.m.Unlock()

	d.sent = nil
}

// Loopback is a protocol.Dispatcher that delivers messages directly to the
// receiver registered for each peer address.
type Loopback struct {
	m     sync.RWMutex
	peers map[string]protocol.Receiver
}

// Register registers r as the receiver for messages sent to the given
// address.
func (l *Loopback) Register(address string, r protocol.Receiver) {
	l.m.Lock()
	defer l.m.Unlock()

	if l.peers == nil {
		l.peers = map[string]protocol.Receiver{}
	}

	l.peers[address] = r
}

// Send delivers m to the receiver registered for peer.
func (l *Loopback) Send(ctx context.Context, peer string, m protocol.Message) error {
	l.m.RLock()
	r, ok := l.peers[peer]
	l.m.RUnlock()

	if !ok {
		return protocol.RejectedError{
			Peer:      peer,
			MessageID: m.ID,
			Reason:    "unknown peer",
		}
	}

	return r.HandleMessage(ctx, m)
}
