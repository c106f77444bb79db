package natsdispatcher_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/dogmatiq/accord/protocol"
	. "github.com/dogmatiq/accord/protocol/natsdispatcher"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type receiver struct {
	m        sync.Mutex
	messages []protocol.Message
	err      error
}

func (r *receiver) HandleMessage(_ context.Context, m protocol.Message) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.messages = append(r.messages, m)
	return r.err
}

var _ = Describe("func Subject()", func() {
	It("joins the prefix and the peer address", func() {
		Expect(Subject("<prefix>", "<peer>")).To(Equal("<prefix>.<peer>"))
	})

	It("uses the default prefix", func() {
		Expect(Subject("", "<peer>")).To(Equal(DefaultSubjectPrefix + ".<peer>"))
	})
})

var _ = Describe("type Dispatcher", func() {
	var (
		ctx        context.Context
		cancel     context.CancelFunc
		conn       *nats.Conn
		recv       *receiver
		dispatcher *Dispatcher
		prefix     string
	)

	BeforeEach(func() {
		url := os.Getenv("ACCORD_TEST_NATS_URL")
		if url == "" {
			Skip("ACCORD_TEST_NATS_URL is not set")
		}

		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		DeferCleanup(cancel)

		var err error
		conn, err = nats.Connect(url)
		Expect(err).ShouldNot(HaveOccurred())
		DeferCleanup(conn.Close)

		prefix = "accord-test-" + uuid.NewString()
		recv = &receiver{}

		server := &Server{
			Conn:          conn,
			Address:       "<provider>",
			SubjectPrefix: prefix,
			Receiver:      recv,
		}

		serveCtx, stop := context.WithCancel(context.Background())
		go server.Run(serveCtx) // nolint:errcheck
		DeferCleanup(stop)

		Expect(conn.Flush()).To(Succeed())

		dispatcher = &Dispatcher{
			Conn:          conn,
			SubjectPrefix: prefix,
		}
	})

	It("delivers messages to the receiver", func() {
		m := protocol.Message{
			ID:        "<id>",
			Type:      protocol.ContractRequest,
			ProcessID: "<process>",
			Sender:    "<consumer>",
		}

		Eventually(func() error {
			return dispatcher.Send(ctx, "<provider>", m)
		}).Should(Succeed())

		Expect(recv.messages).To(ContainElement(m))
	})

	It("returns a rejected error if the receiver fails", func() {
		recv.err = errors.New("<error>")

		var err error
		Eventually(func() error {
			err = dispatcher.Send(ctx, "<provider>", protocol.Message{ID: "<id>"})
			return err
		}).Should(HaveOccurred())

		Expect(err).To(Equal(protocol.RejectedError{
			Peer:      "<provider>",
			MessageID: "<id>",
			Reason:    "<error>",
		}))
	})
})
