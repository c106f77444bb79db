package grpcexecutor

import (
	"context"
	"sync"

	"github.com/dogmatiq/accord/executor"
	"go.uber.org/multierr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultDialOptions is the set of dial options used when a client does not
// specify any.
var DefaultDialOptions = []grpc.DialOption{
	grpc.WithTransportCredentials(insecure.NewCredentials()),
}

// Client is an implementation of executor.Client that talks to executors
// over gRPC.
//
// Executors are addressed by the endpoint in their registration.
type Client struct {
	// Registry is used to find the endpoint of each executor.
	Registry executor.Query

	// DialOptions are the options used to dial executors. If it is empty,
	// DefaultDialOptions is used.
	DialOptions []grpc.DialOption

	m     sync.Mutex
	conns map[string]*grpc.ClientConn
}

var _ executor.Client = (*Client)(nil)

// StartFlow starts the data flow described by req on the given executor.
func (c *Client) StartFlow(ctx context.Context, executorID string, req executor.FlowRequest) error {
	return c.invoke(ctx, executorID, startFlowMethod, &req, &empty{})
}

// SuspendFlow suspends the data flow for a process.
func (c *Client) SuspendFlow(ctx context.Context, executorID, processID string) error {
	return c.invoke(ctx, executorID, suspendFlowMethod, &flowRef{processID}, &empty{})
}

// TerminateFlow terminates the data flow for a process.
func (c *Client) TerminateFlow(ctx context.Context, executorID, processID string) error {
	return c.invoke(ctx, executorID, terminateFlowMethod, &flowRef{processID}, &empty{})
}

// FlowStatus returns the status of the data flow for a process.
func (c *Client) FlowStatus(ctx context.Context, executorID, processID string) (executor.FlowStatus, error) {
	var res flowStatus
	if err := c.invoke(ctx, executorID, flowStatusMethod, &flowRef{processID}, &res); err != nil {
		return "", err
	}

	return res.Status, nil
}

// Conn returns the connection to the given executor.
func (c *Client) Conn(ctx context.Context, executorID string) (*grpc.ClientConn, error) {
	x, ok, err := c.Registry.Executor(ctx, executorID)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, executor.UnknownExecutorError{ExecutorID: executorID}
	}

	return c.dial(ctx, x.Endpoint)
}

// Close closes all connections.
func (c *Client) Close() error {
	c.m.Lock()
	defer c.m.Unlock()

	var err error
	for _, conn := range c.conns {
		err = multierr.Append(err, conn.Close())
	}

	c.conns = nil

	return err
}

func (c *Client) invoke(
	ctx context.Context,
	executorID, method string,
	req, res interface{},
) error {
	conn, err := c.Conn(ctx, executorID)
	if err != nil {
		return err
	}

	return conn.Invoke(
		ctx,
		method,
		req,
		res,
		grpc.CallContentSubtype(codecName),
	)
}

func (c *Client) dial(ctx context.Context, endpoint string) (*grpc.ClientConn, error) {
	c.m.Lock()
	defer c.m.Unlock()

	if conn, ok := c.conns[endpoint]; ok {
		return conn, nil
	}

	opts := c.DialOptions
	if len(opts) == 0 {
		opts = DefaultDialOptions
	}

	conn, err := grpc.DialContext(ctx, endpoint, opts...)
	if err != nil {
		return nil, err
	}

	if c.conns == nil {
		c.conns = map[string]*grpc.ClientConn{}
	}

	c.conns[endpoint] = conn

	return conn, nil
}
