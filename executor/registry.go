package executor

import (
	"context"
	"sort"
	"time"

	"github.com/dogmatiq/cosyne"
)

// Query is an interface for reading executor registrations.
type Query interface {
	// Executors returns all registered executors, ordered by ID.
	Executors(ctx context.Context) ([]Registration, error)

	// Executor returns the executor with the given ID.
	Executor(ctx context.Context, id string) (Registration, bool, error)
}

// Management is the interface used by the external management interface to
// maintain the set of executors.
type Management interface {
	// Register adds an executor, or replaces an existing registration with
	// the same ID.
	Register(ctx context.Context, r Registration) error

	// Deregister removes an executor.
	Deregister(ctx context.Context, id string) error

	// Heartbeat records that the executor was alive at time t.
	Heartbeat(ctx context.Context, id string, t time.Time) error

	// SetHealth marks the executor as healthy or unhealthy.
	SetHealth(ctx context.Context, id string, healthy bool) error
}

// Registry is a store of executor registrations.
type Registry interface {
	Query
	Management
}

// MemoryRegistry is an in-memory implementation of Registry.
type MemoryRegistry struct {
	m         cosyne.RWMutex
	executors map[string]Registration
}

var _ Registry = (*MemoryRegistry)(nil)

// Executors returns all registered executors, ordered by ID.
func (r *MemoryRegistry) Executors(ctx context.Context) ([]Registration, error) {
	if err := r.m.RLock(ctx); err != nil {
		return nil, err
	}
	defer r.m.RUnlock()

	result := make([]Registration, 0, len(r.executors))
	for _, x := range r.executors {
		result = append(result, clone(x))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Executor returns the executor with the given ID.
func (r *MemoryRegistry) Executor(ctx context.Context, id string) (Registration, bool, error) {
	if err := r.m.RLock(ctx); err != nil {
		return Registration{}, false, err
	}
	defer r.m.RUnlock()

	x, ok := r.executors[id]
	return clone(x), ok, nil
}

// Register adds an executor, or replaces an existing registration with the
// same ID.
func (r *MemoryRegistry) Register(ctx context.Context, x Registration) error {
	if err := r.m.Lock(ctx); err != nil {
		return err
	}
	defer r.m.Unlock()

	if r.executors == nil {
		r.executors = map[string]Registration{}
	}

	r.executors[x.ID] = clone(x)

	return nil
}

// Deregister removes an executor.
func (r *MemoryRegistry) Deregister(ctx context.Context, id string) error {
	return r.update(ctx, id, nil)
}

// Heartbeat records that the executor was alive at time t.
func (r *MemoryRegistry) Heartbeat(ctx context.Context, id string, t time.Time) error {
	return r.update(ctx, id, func(x *Registration) {
		if t.After(x.LastHeartbeat) {
			x.LastHeartbeat = t
		}
	})
}

// SetHealth marks the executor as healthy or unhealthy.
func (r *MemoryRegistry) SetHealth(ctx context.Context, id string, healthy bool) error {
	return r.update(ctx, id, func(x *Registration) {
		x.Healthy = healthy
	})
}

// update applies fn to the executor with the given ID. If fn is nil the
// executor is removed.
func (r *MemoryRegistry) update(ctx context.Context, id string, fn func(*Registration)) error {
	if err := r.m.Lock(ctx); err != nil {
		return err
	}
	defer r.m.Unlock()

	x, ok := r.executors[id]
	if !ok {
		return UnknownExecutorError{ExecutorID: id}
	}

	if fn == nil {
		delete(r.executors, id)
		return nil
	}

	fn(&x)
	r.executors[id] = x

	return nil
}

func clone(x Registration) Registration {
	x.Capabilities = append([]string(nil), x.Capabilities...)
	x.Labels = append([]string(nil), x.Labels...)
	return x
}
