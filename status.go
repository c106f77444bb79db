package accord

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
)

// DefaultPageSize is the number of processes loaded by each page of a
// Cursor when the filter does not specify a page size.
const DefaultPageSize = 100

// GetProcess returns the committed state of the process with the given ID.
//
// It returns an UnknownProcessError if the process does not exist.
func (e *Engine) GetProcess(ctx context.Context, id string) (process.Process, error) {
	ds, err := e.dataStore.Get(ctx)
	if err != nil {
		return process.Process{}, err
	}

	r, ok, err := ds.LoadProcess(ctx, id)
	if err != nil {
		return process.Process{}, err
	}

	if !ok {
		return process.Process{}, UnknownProcessError{ProcessID: id}
	}

	p, err := unmarshalProcess(e.opts.Marshaler, r)
	if err != nil {
		return process.Process{}, err
	}

	return *p, nil
}

// ProcessFilter limits the processes returned by ListProcesses().
type ProcessFilter struct {
	// Type, if non-empty, limits results to processes of this type.
	Type process.Type

	// States, if non-empty, limits results to processes in these states.
	States []process.State

	// PageToken resumes a listing from the position returned by
	// Cursor.Token().
	PageToken string

	// PageSize is the number of processes loaded at a time. If it is zero,
	// DefaultPageSize is used.
	PageSize int
}

// ListProcesses returns a cursor over the processes that match f, ordered by
// process ID.
//
// Processes are loaded lazily, one page at a time.
func (e *Engine) ListProcesses(f ProcessFilter) (*Cursor, error) {
	after, err := decodePageToken(f.PageToken)
	if err != nil {
		return nil, err
	}

	if f.Type != "" {
		h, err := e.handlerFor(f.Type)
		if err != nil {
			return nil, err
		}

		for _, st := range f.States {
			if !h.Graph().Has(st) {
				return nil, fmt.Errorf("%s processes have no %s state", f.Type, st)
			}
		}
	}

	size := f.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	return &Cursor{
		engine: e,
		query: persistence.ProcessQuery{
			Type:   f.Type,
			States: f.States,
			After:  after,
			Limit:  size,
		},
	}, nil
}

// Cursor iterates over the results of ListProcesses().
type Cursor struct {
	engine *Engine
	query  persistence.ProcessQuery
	page   []persistence.ProcessRecord
	last   bool
	curr   process.Process
	err    error
}

// Next advances the cursor to the next process.
//
// It returns false when there are no more processes, or an error occurs.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}

	if len(c.page) == 0 {
		if c.last || !c.load(ctx) {
			return false
		}
	}

	r := c.page[0]
	c.page = c.page[1:]
	c.query.After = r.ID

	p, err := unmarshalProcess(c.engine.opts.Marshaler, r)
	if err != nil {
		c.err = err
		return false
	}

	c.curr = *p

	return true
}

// Process returns the process at the cursor's current position.
func (c *Cursor) Process() process.Process {
	return c.curr
}

// Err returns the error that caused Next() to return false, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Token returns an opaque page token that resumes the listing after the
// current process.
//
// It is empty if the cursor has not moved.
func (c *Cursor) Token() string {
	if c.query.After == "" {
		return ""
	}

	return base64.RawURLEncoding.EncodeToString([]byte(c.query.After))
}

// load loads the next page of results. It returns false if there are no
// more results.
func (c *Cursor) load(ctx context.Context) bool {
	ds, err := c.engine.dataStore.Get(ctx)
	if err != nil {
		c.err = err
		return false
	}

	c.page, err = ds.LoadProcesses(ctx, c.query)
	if err != nil {
		c.err = err
		return false
	}

	c.last = len(c.page) < c.query.Limit

	return len(c.page) != 0
}

func decodePageToken(t string) (string, error) {
	if t == "" {
		return "", nil
	}

	id, err := base64.RawURLEncoding.DecodeString(t)
	if err != nil {
		return "", fmt.Errorf("invalid page token: %w", err)
	}

	return string(id), nil
}
