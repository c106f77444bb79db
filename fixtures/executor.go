package fixtures

import (
	"context"
	"sync"

	"github.com/dogmatiq/accord/executor"
)

// ExecutorClientStub is a test implementation of the executor.Client
// interface that keeps the status of each flow in memory.
type ExecutorClientStub struct {
	StartFlowFunc     func(context.Context, string, executor.FlowRequest) error
	SuspendFlowFunc   func(context.Context, string, string) error
	TerminateFlowFunc func(context.Context, string, string) error
	FlowStatusFunc    func(context.Context, string, string) (executor.FlowStatus, error)

	m        sync.Mutex
	requests []executor.FlowRequest
	status   map[string]executor.FlowStatus
	starts   map[string]int
}

// StartFlow marks the flow as running.
func (c *ExecutorClientStub) StartFlow(ctx context.Context, id string, req executor.FlowRequest) error {
	if c.StartFlowFunc != nil {
		if err := c.StartFlowFunc(ctx, id, req); err != nil {
			return err
		}
	}

	c.m.Lock()
	defer c.m.Unlock()

	c.requests = append(c.requests, req)
	c.set(req.ProcessID, executor.FlowRunning)

	if c.starts == nil {
		c.starts = map[string]int{}
	}
	c.starts[req.ProcessID]++

	return nil
}

// SuspendFlow marks the flow as suspended.
func (c *ExecutorClientStub) SuspendFlow(ctx context.Context, id, processID string) error {
	if c.SuspendFlowFunc != nil {
		if err := c.SuspendFlowFunc(ctx, id, processID); err != nil {
			return err
		}
	}

	c.m.Lock()
	defer c.m.Unlock()

	c.set(processID, executor.FlowSuspended)

	return nil
}

// TerminateFlow removes the flow.
func (c *ExecutorClientStub) TerminateFlow(ctx context.Context, id, processID string) error {
	if c.TerminateFlowFunc != nil {
		if err := c.TerminateFlowFunc(ctx, id, processID); err != nil {
			return err
		}
	}

	c.m.Lock()
	defer c.m.Unlock()

	delete(c.status, processID)

	return nil
}

// FlowStatus returns the status of the flow.
func (c *ExecutorClientStub) FlowStatus(ctx context.Context, id, processID string) (executor.FlowStatus, error) {
	if c.FlowStatusFunc != nil {
		return c.FlowStatusFunc(ctx, id, processID)
	}

	c.m.Lock()
	defer c.m.Unlock()

	if s, ok := c.status[processID]; ok {
		return s, nil
	}

	return executor.FlowUnknown, nil
}

// SetStatus sets the status reported for a flow.
func (c *ExecutorClientStub) SetStatus(processID string, s executor.FlowStatus) {
	c.m.Lock()
	defer c.m.Unlock()

	c.set(processID, s)
}

// Requests returns the start requests that have been received.
func (c *ExecutorClientStub) Requests() []executor.FlowRequest {
	c.m.Lock()
	defer c.m.Unlock()

	return append([]executor.FlowRequest(nil), c.requests...)
}

// Starts returns the number of times a flow has been started.
func (c *ExecutorClientStub) Starts(processID string) int {
	c.m.Lock()
	defer c.m.Unlock()

	return c.starts[processID]
}

func (c *ExecutorClientStub) set(processID string, s executor.FlowStatus) {
	if c.status == nil {
		c.status = map[string]executor.FlowStatus{}
	}

	c.status[processID] = s
}

// SelectorStub is a test implementation of an executor selector.
type SelectorStub struct {
	SelectFunc func(context.Context, executor.Criteria) (string, error)
}

// Select returns the result of SelectFunc, or "<executor>" if it is nil.
func (s *SelectorStub) Select(ctx context.Context, c executor.Criteria) (string, error) {
	if s.SelectFunc != nil {
		return s.SelectFunc(ctx, c)
	}

	return "<executor>", nil
}
