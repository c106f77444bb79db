package accord

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dogmatiq/accord/handler"
	"github.com/dogmatiq/accord/handler/monitor"
	"github.com/dogmatiq/accord/handler/negotiation"
	"github.com/dogmatiq/accord/handler/transfer"
	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/accord/retry"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Engine drives negotiation, transfer and monitor processes through their
// state graphs.
//
// Any number of engines may share the same persistence provider and
// connector ID. Each process is handled by at most one worker at a time.
type Engine struct {
	opts      *engineOptions
	dataStore *persistence.DataStoreHandle
	handlers  map[process.Type]handler.Handler
	types     []process.Type
	leases    uint64

	// now returns the current time. It is replaced in tests.
	now func() time.Time
}

// New returns a new engine.
func New(options ...EngineOption) *Engine {
	opts := resolveEngineOptions(options...)

	e := &Engine{
		opts: opts,
		dataStore: &persistence.DataStoreHandle{
			Provider: opts.PersistenceProvider,
			Key:      opts.ConnectorID,
		},
		now: time.Now,
	}

	e.register(
		&negotiation.Handler{
			Dispatcher:        opts.Dispatcher,
			Address:           opts.Address,
			AgreementValidity: opts.AgreementValidity,
		},
		&transfer.Handler{
			Dispatcher:     opts.Dispatcher,
			Address:        opts.Address,
			ParticipantID:  opts.ParticipantID,
			Selector:       opts.Selector,
			Executors:      opts.ExecutorClient,
			Credentials:    opts.Credentials,
			Secrets:        opts.Secrets,
			StatusInterval: opts.StatusInterval,
		},
		&monitor.Handler{
			Processes: e,
			Commands:  e,
			Evaluator: opts.PolicyEvaluator,
			Interval:  opts.MonitorInterval,
		},
	)

	return e
}

func (e *Engine) register(handlers ...handler.Handler) {
	e.handlers = map[process.Type]handler.Handler{}

	for _, h := range handlers {
		e.handlers[h.Type()] = h
		e.types = append(e.types, h.Type())
	}
}

// Run handles due processes and reclaims expired leases until ctx is
// canceled or an error occurs.
func (e *Engine) Run(ctx context.Context) error {
	defer e.dataStore.Close()

	parent := ctx
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.poll(ctx)
	})

	g.Go(func() error {
		return e.watch(ctx)
	})

	err := g.Wait()

	if parent.Err() != nil {
		return parent.Err()
	}

	return err
}

// Close closes the engine's data-store, if it has been opened.
//
// It is not necessary to call Close() after Run() returns.
func (e *Engine) Close() error {
	return e.dataStore.Close()
}

// poll repeatedly handles due processes, sleeping whenever none are due.
//
// A poll that fails, such as when the store is unreachable, is retried
// according to the engine's backoff policy.
func (e *Engine) poll(ctx context.Context) error {
	var failures uint

	for {
		n, err := e.runOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			logging.Log(e.opts.Logger, "unable to poll for due processes: %s", err)

			if err := retry.Sleep(ctx, e.opts.Backoff, failures, err); err != nil {
				return err
			}

			failures++
			continue
		}

		failures = 0

		if n == 0 {
			if err := linger.Sleep(ctx, e.opts.PollInterval); err != nil {
				return err
			}
		}
	}
}

// RunOnce performs a single engine pass over every process that is due at
// the time of the call, and waits for those passes to finish.
//
// It returns the number of processes that were handled.
func (e *Engine) RunOnce(ctx context.Context) (int, error) {
	return e.runOnce(ctx)
}

func (e *Engine) runOnce(ctx context.Context) (int, error) {
	ds, err := e.dataStore.Get(ctx)
	if err != nil {
		return 0, err
	}

	now := e.now()
	sem := semaphore.NewWeighted(int64(e.opts.WorkerCount))
	g, gctx := errgroup.WithContext(ctx)
	count := 0

	for _, t := range e.types {
		h := e.handlers[t]

		records, err := ds.LoadDueProcesses(
			ctx,
			t,
			h.Graph().NonTerminalStates(),
			now,
			e.opts.BatchSize,
		)
		if err != nil {
			g.Wait() // nolint:errcheck
			return count, err
		}

		for _, r := range records {
			r := r // capture loop variable

			if err := sem.Acquire(gctx, 1); err != nil {
				g.Wait() // nolint:errcheck
				return count, err
			}

			count++

			g.Go(func() error {
				defer sem.Release(1)
				return e.pass(gctx, ds, h, r)
			})
		}
	}

	return count, g.Wait()
}

// leaseOwner returns a new lease owner identifier that is unique to a single
// pass.
func (e *Engine) leaseOwner() string {
	n := atomic.AddUint64(&e.leases, 1)
	return fmt.Sprintf("%s/%d", e.opts.NodeID, n)
}

// handlerFor returns the handler for processes of type t.
func (e *Engine) handlerFor(t process.Type) (handler.Handler, error) {
	if h, ok := e.handlers[t]; ok {
		return h, nil
	}

	return nil, fmt.Errorf("unrecognized process type: %s", t)
}
