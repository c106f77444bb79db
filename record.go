package accord

import (
	"context"

	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/marshalkit"
)

// unmarshalProcess returns the process represented by r.
func unmarshalProcess(
	m marshalkit.ValueMarshaler,
	r persistence.ProcessRecord,
) (*process.Process, error) {
	p := header(r)

	v, err := process.UnmarshalPayload(m, r.Packet)
	if err != nil {
		return p, err
	}

	p.Payload = v

	return p, nil
}

// header returns the process represented by r, without its payload.
func header(r persistence.ProcessRecord) *process.Process {
	var cmd *process.Command
	if r.PendingCommand != nil {
		c := *r.PendingCommand
		cmd = &c
	}

	return &process.Process{
		ID:             r.ID,
		Type:           r.Type,
		State:          r.State,
		StateTimestamp: r.StateTimestamp,
		Version:        r.Revision,
		Lease:          r.Lease,
		RetryCount:     r.RetryCount,
		ErrorDetail:    r.ErrorDetail,
		CorrelationID:  r.CorrelationID,
		PendingCommand: cmd,
		Awaiting:       r.Awaiting,
	}
}

// marshalProcess returns the record that represents p.
//
// The record's revision is p.Version, which must be the currently persisted
// version of the process.
func marshalProcess(
	m marshalkit.ValueMarshaler,
	p *process.Process,
) (persistence.ProcessRecord, error) {
	packet, err := process.MarshalPayload(m, p.Payload)
	if err != nil {
		return persistence.ProcessRecord{}, err
	}

	r := withHeader(persistence.ProcessRecord{}, p)
	r.Packet = packet

	return r, nil
}

// withHeader returns a copy of r with all fields other than the packet
// copied from p.
func withHeader(r persistence.ProcessRecord, p *process.Process) persistence.ProcessRecord {
	r.ID = p.ID
	r.Type = p.Type
	r.State = p.State
	r.StateTimestamp = p.StateTimestamp
	r.Revision = p.Version
	r.Lease = p.Lease
	r.RetryCount = p.RetryCount
	r.ErrorDetail = p.ErrorDetail
	r.CorrelationID = p.CorrelationID
	r.PendingCommand = p.PendingCommand
	r.Awaiting = p.Awaiting

	return r
}

// save persists r using a compare-and-swap on its revision. On success it
// returns the record's new revision.
func save(
	ctx context.Context,
	ds persistence.DataStore,
	r persistence.ProcessRecord,
) (uint64, error) {
	if err := ds.Persist(
		ctx,
		persistence.Batch{
			persistence.SaveProcess{Record: r},
		},
	); err != nil {
		return 0, err
	}

	return r.Revision + 1, nil
}
