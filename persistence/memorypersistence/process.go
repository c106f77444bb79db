package memorypersistence

import (
	"context"
	"sort"
	"time"

	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
)

// LoadProcess loads the process with the given ID.
func (ds *dataStore) LoadProcess(
	_ context.Context,
	id string,
) (persistence.ProcessRecord, bool, error) {
	ds.db.mutex.RLock()
	defer ds.db.mutex.RUnlock()

	r, ok := ds.db.process.records[id]
	return clone(r), ok, nil
}

// LoadProcessByCorrelationID loads the process of the given type that has
// the given correlation ID.
func (ds *dataStore) LoadProcessByCorrelationID(
	_ context.Context,
	t process.Type,
	id string,
) (persistence.ProcessRecord, bool, error) {
	ds.db.mutex.RLock()
	defer ds.db.mutex.RUnlock()

	if pid, ok := ds.db.process.correlation[correlationKey{t, id}]; ok {
		return clone(ds.db.process.records[pid]), true, nil
	}

	return persistence.ProcessRecord{}, false, nil
}

// LoadDueProcesses loads up to n due processes of type t, oldest first.
func (ds *dataStore) LoadDueProcesses(
	_ context.Context,
	t process.Type,
	states []process.State,
	now time.Time,
	n int,
) ([]persistence.ProcessRecord, error) {
	ds.db.mutex.RLock()
	defer ds.db.mutex.RUnlock()

	return ds.db.process.filter(
		func(r persistence.ProcessRecord) bool {
			return persistence.IsDue(r, t, states, now)
		},
		func(a, b persistence.ProcessRecord) bool {
			if a.StateTimestamp.Equal(b.StateTimestamp) {
				return a.ID < b.ID
			}
			return a.StateTimestamp.Before(b.StateTimestamp)
		},
		n,
	), nil
}

// LoadExpiredLeases loads up to n processes with leases that have expired.
func (ds *dataStore) LoadExpiredLeases(
	_ context.Context,
	now time.Time,
	n int,
) ([]persistence.ProcessRecord, error) {
	ds.db.mutex.RLock()
	defer ds.db.mutex.RUnlock()

	return ds.db.process.filter(
		func(r persistence.ProcessRecord) bool {
			return !r.Lease.IsZero() && !r.Lease.IsActive(now)
		},
		func(a, b persistence.ProcessRecord) bool {
			if a.Lease.ExpiresAt.Equal(b.Lease.ExpiresAt) {
				return a.ID < b.ID
			}
			return a.Lease.ExpiresAt.Before(b.Lease.ExpiresAt)
		},
		n,
	), nil
}

// LoadProcesses loads processes that match the query, ordered by ID.
func (ds *dataStore) LoadProcesses(
	_ context.Context,
	q persistence.ProcessQuery,
) ([]persistence.ProcessRecord, error) {
	ds.db.mutex.RLock()
	defer ds.db.mutex.RUnlock()

	return ds.db.process.filter(
		q.Matches,
		func(a, b persistence.ProcessRecord) bool {
			return a.ID < b.ID
		},
		q.Limit,
	), nil
}

// VisitSaveProcess returns an error if a "SaveProcess" operation can not be
// applied to the database.
func (v *validator) VisitSaveProcess(
	_ context.Context,
	op persistence.SaveProcess,
) error {
	new := op.Record
	old := v.db.process.records[new.ID]

	if new.Revision != old.Revision {
		return persistence.ConflictError{Cause: op}
	}

	if new.CorrelationID != "" {
		k := correlationKey{new.Type, new.CorrelationID}
		if id, ok := v.db.process.correlation[k]; ok && id != new.ID {
			return persistence.ConflictError{Cause: op}
		}
	}

	return nil
}

// VisitSaveProcess applies the changes in a "SaveProcess" operation to the
// database.
func (c *committer) VisitSaveProcess(
	_ context.Context,
	op persistence.SaveProcess,
) error {
	c.db.process.save(op.Record)
	return nil
}

// correlationKey is the key of the correlation ID index.
type correlationKey struct {
	Type process.Type
	ID   string
}

// processDatabase contains process related data.
type processDatabase struct {
	records     map[string]persistence.ProcessRecord
	correlation map[correlationKey]string
}

// save stores r in the database, incrementing its revision.
func (db *processDatabase) save(r persistence.ProcessRecord) {
	if db.records == nil {
		db.records = map[string]persistence.ProcessRecord{}
		db.correlation = map[correlationKey]string{}
	}

	if old, ok := db.records[r.ID]; ok && old.CorrelationID != "" {
		delete(db.correlation, correlationKey{old.Type, old.CorrelationID})
	}

	if r.CorrelationID != "" {
		db.correlation[correlationKey{r.Type, r.CorrelationID}] = r.ID
	}

	r = clone(r)
	r.Revision++
	db.records[r.ID] = r
}

// filter returns up to n records that match pred, sorted by less. If n is
// non-positive all matching records are returned.
func (db *processDatabase) filter(
	pred func(persistence.ProcessRecord) bool,
	less func(a, b persistence.ProcessRecord) bool,
	n int,
) []persistence.ProcessRecord {
	var matches []persistence.ProcessRecord

	for _, r := range db.records {
		if pred(r) {
			matches = append(matches, clone(r))
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return less(matches[i], matches[j])
	})

	if n > 0 && len(matches) > n {
		matches = matches[:n]
	}

	return matches
}

// clone returns a deep copy of r.
func clone(r persistence.ProcessRecord) persistence.ProcessRecord {
	if r.PendingCommand != nil {
		c := *r.PendingCommand
		r.PendingCommand = &c
	}

	if r.Packet.Data != nil {
		r.Packet.Data = append([]byte(nil), r.Packet.Data...)
	}

	return r
}
