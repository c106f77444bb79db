package boltpersistence

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/dogmatiq/accord/internal/x/bboltx"
	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
	"go.etcd.io/bbolt"
)

var (
	// processBucketKey is the key of the bucket that contains all process
	// related data, nested within the node's root bucket.
	processBucketKey = []byte("process")

	// recordsBucketKey is the key of the bucket that maps process IDs to
	// their encoded records.
	recordsBucketKey = []byte("records")

	// dueBucketKey is the key of the bucket that contains one index per
	// process type, mapping the state timestamp of each unfinished process to
	// its ID. Keys are an order-preserving timestamp followed by the process
	// ID. Processes in a terminal state are not indexed.
	dueBucketKey = []byte("due")

	// leaseBucketKey is the key of the bucket that indexes leased process IDs
	// by lease expiry, keyed in the same way as the due bucket.
	leaseBucketKey = []byte("lease")

	// correlationBucketKey is the key of the bucket that maps process type
	// and correlation ID to process ID.
	correlationBucketKey = []byte("correlation")
)

// LoadProcess loads the process with the given ID.
func (ds *dataStore) LoadProcess(
	_ context.Context,
	id string,
) (r persistence.ProcessRecord, ok bool, err error) {
	err = ds.view(func(root *bbolt.Bucket) {
		r, ok = loadProcess(root, []byte(id))
	})

	return r, ok, err
}

// LoadProcessByCorrelationID loads the process of the given type that has
// the given correlation ID.
func (ds *dataStore) LoadProcessByCorrelationID(
	_ context.Context,
	t process.Type,
	id string,
) (r persistence.ProcessRecord, ok bool, err error) {
	err = ds.view(func(root *bbolt.Bucket) {
		index := bboltx.Bucket(root, processBucketKey, correlationBucketKey)
		if index == nil {
			return
		}

		if pid := index.Get(correlationKey(t, id)); pid != nil {
			r, ok = loadProcess(root, pid)
		}
	})

	return r, ok, err
}

// LoadDueProcesses loads up to n due processes of type t, oldest first.
func (ds *dataStore) LoadDueProcesses(
	_ context.Context,
	t process.Type,
	states []process.State,
	now time.Time,
	n int,
) (records []persistence.ProcessRecord, err error) {
	err = ds.view(func(root *bbolt.Bucket) {
		records = scanIndex(
			root,
			bboltx.Bucket(root, processBucketKey, dueBucketKey, typeKey(t)),
			now,
			n,
			func(r persistence.ProcessRecord) bool {
				return persistence.IsDue(r, t, states, now)
			},
		)
	})

	return records, err
}

// LoadExpiredLeases loads up to n processes with leases that have expired.
func (ds *dataStore) LoadExpiredLeases(
	_ context.Context,
	now time.Time,
	n int,
) (records []persistence.ProcessRecord, err error) {
	err = ds.view(func(root *bbolt.Bucket) {
		records = scanIndex(
			root,
			bboltx.Bucket(root, processBucketKey, leaseBucketKey),
			now,
			n,
			func(r persistence.ProcessRecord) bool {
				return !r.Lease.IsActive(now)
			},
		)
	})

	return records, err
}

// LoadProcesses loads processes that match the query, ordered by ID.
func (ds *dataStore) LoadProcesses(
	_ context.Context,
	q persistence.ProcessQuery,
) (records []persistence.ProcessRecord, err error) {
	err = ds.view(func(root *bbolt.Bucket) {
		bucket := bboltx.Bucket(root, processBucketKey, recordsBucketKey)
		if bucket == nil {
			return
		}

		c := bucket.Cursor()

		var k, v []byte
		if q.After == "" {
			k, v = c.First()
		} else {
			k, v = c.Seek([]byte(q.After))
		}

		for ; k != nil; k, v = c.Next() {
			r := unmarshalProcess(v)
			if !q.Matches(r) {
				continue
			}

			records = append(records, r)

			if q.Limit > 0 && len(records) == q.Limit {
				return
			}
		}
	})

	return records, err
}

// VisitSaveProcess returns an error if a "SaveProcess" operation can not be
// applied to the database.
func (v *validator) VisitSaveProcess(
	_ context.Context,
	op persistence.SaveProcess,
) error {
	new := op.Record
	old, _ := loadProcess(v.root, []byte(new.ID))

	if new.Revision != old.Revision {
		return persistence.ConflictError{Cause: op}
	}

	if new.CorrelationID != "" {
		index := bboltx.Bucket(v.root, processBucketKey, correlationBucketKey)
		if index != nil {
			pid := index.Get(correlationKey(new.Type, new.CorrelationID))
			if pid != nil && string(pid) != new.ID {
				return persistence.ConflictError{Cause: op}
			}
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
	new := op.Record
	new.Revision++

	id := []byte(new.ID)
	parent := bboltx.CreateBucketIfNotExists(c.root, processBucketKey)
	records := bboltx.CreateBucketIfNotExists(parent, recordsBucketKey)
	leases := bboltx.CreateBucketIfNotExists(parent, leaseBucketKey)
	correlation := bboltx.CreateBucketIfNotExists(parent, correlationBucketKey)

	if data := records.Get(id); data != nil {
		old := unmarshalProcess(data)

		if !process.IsTerminal(old.State) {
			due := bboltx.CreateBucketIfNotExists(parent, dueBucketKey, typeKey(old.Type))
			bboltx.Delete(due, indexKey(old.StateTimestamp, old.ID))
		}

		if !old.Lease.IsZero() {
			bboltx.Delete(leases, indexKey(old.Lease.ExpiresAt, old.ID))
		}

		if old.CorrelationID != "" {
			bboltx.Delete(correlation, correlationKey(old.Type, old.CorrelationID))
		}
	}

	bboltx.Put(records, id, marshalProcess(new))

	if !process.IsTerminal(new.State) {
		due := bboltx.CreateBucketIfNotExists(parent, dueBucketKey, typeKey(new.Type))
		bboltx.Put(due, indexKey(new.StateTimestamp, new.ID), id)
	}

	if !new.Lease.IsZero() {
		bboltx.Put(leases, indexKey(new.Lease.ExpiresAt, new.ID), id)
	}

	if new.CorrelationID != "" {
		bboltx.Put(correlation, correlationKey(new.Type, new.CorrelationID), id)
	}

	return nil
}

// scanIndex returns up to n records from a time-ordered index bucket that
// have an index time at or before now and match pred. index may be nil.
func scanIndex(
	root *bbolt.Bucket,
	index *bbolt.Bucket,
	now time.Time,
	n int,
	pred func(persistence.ProcessRecord) bool,
) []persistence.ProcessRecord {
	if index == nil {
		return nil
	}

	var records []persistence.ProcessRecord
	limit := marshalTime(now)

	c := index.Cursor()
	for k, id := c.First(); k != nil; k, id = c.Next() {
		if bytes.Compare(k[:8], limit) > 0 {
			break
		}

		r, ok := loadProcess(root, id)
		if !ok || !pred(r) {
			continue
		}

		records = append(records, r)

		if n > 0 && len(records) == n {
			break
		}
	}

	return records
}

// loadProcess loads the process with the given ID.
func loadProcess(root *bbolt.Bucket, id []byte) (persistence.ProcessRecord, bool) {
	records := bboltx.Bucket(root, processBucketKey, recordsBucketKey)
	if records == nil {
		return persistence.ProcessRecord{}, false
	}

	data := records.Get(id)
	if data == nil {
		return persistence.ProcessRecord{}, false
	}

	return unmarshalProcess(data), true
}

// marshalProcess marshals a process record to its binary representation.
func marshalProcess(r persistence.ProcessRecord) []byte {
	data, err := json.Marshal(r)
	bboltx.Must(err)
	return data
}

// unmarshalProcess unmarshals a process record from its binary
// representation.
func unmarshalProcess(data []byte) persistence.ProcessRecord {
	var r persistence.ProcessRecord
	bboltx.Must(json.Unmarshal(data, &r))
	return r
}

// indexKey returns the key used for a process in a time-ordered index.
func indexKey(t time.Time, id string) []byte {
	return append(marshalTime(t), id...)
}

// marshalTime returns an 8-byte representation of t that sorts in the same
// order as the times themselves. The zero time sorts first.
func marshalTime(t time.Time) []byte {
	var n uint64
	if !t.IsZero() {
		n = uint64(t.UnixNano()) ^ (1 << 63)
	}

	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, n)
	return data
}

// correlationKey returns the key used for a process in the correlation
// index.
func correlationKey(t process.Type, id string) []byte {
	return []byte(string(t) + "\x00" + id)
}

// typeKey returns the name of the due index bucket for processes of type t.
// bbolt does not allow empty bucket names, so the type is prefixed.
func typeKey(t process.Type) []byte {
	return []byte("type:" + string(t))
}
