// Package processsql contains the SQL statements for process records that are
// shared by the built-in drivers.
//
// Every built-in database supports $n-style placeholders, so only the table
// name differs between dialects.
package processsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dogmatiq/accord/internal/x/sqlx"
	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/process"
)

// columns is the list of columns selected by every query, in the order
// expected by scan().
const columns = `
	id,
	type,
	state,
	state_timestamp,
	revision,
	lease_owner,
	lease_expiry,
	retry_count,
	error_detail,
	correlation_id,
	pending_command,
	pending_reason,
	awaiting,
	media_type,
	data`

// Queries implements the process-related methods of a driver for a specific
// table.
type Queries struct {
	// Table is the (possibly schema-qualified) name of the process table.
	Table string
}

// InsertProcess inserts a process record.
//
// It returns false if the row already exists.
func (q Queries) InsertProcess(
	ctx context.Context,
	tx *sql.Tx,
	ck string,
	r persistence.ProcessRecord,
) (_ bool, err error) {
	defer sqlx.Recover(&err)

	cmd, reason := marshalCommand(r.PendingCommand)

	return sqlx.TryExecRow(
		ctx,
		tx,
		`INSERT INTO `+q.Table+` (
			connector_key,
			id,
			type,
			state,
			state_timestamp,
			revision,
			lease_owner,
			lease_expiry,
			retry_count,
			error_detail,
			correlation_id,
			pending_command,
			pending_reason,
			awaiting,
			media_type,
			data
		) VALUES (
			$1, $2, $3, $4, $5, 1, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		) ON CONFLICT (connector_key, id) DO NOTHING`,
		ck,
		r.ID,
		string(r.Type),
		string(r.State),
		sqlx.MarshalTime(r.StateTimestamp),
		r.Lease.Owner,
		sqlx.MarshalTime(r.Lease.ExpiresAt),
		int64(r.RetryCount),
		r.ErrorDetail,
		r.CorrelationID,
		cmd,
		reason,
		r.Awaiting,
		r.Packet.MediaType,
		r.Packet.Data,
	), nil
}

// UpdateProcess updates a process record.
//
// It returns false if the row does not exist or r.Revision is not current.
func (q Queries) UpdateProcess(
	ctx context.Context,
	tx *sql.Tx,
	ck string,
	r persistence.ProcessRecord,
) (_ bool, err error) {
	defer sqlx.Recover(&err)

	cmd, reason := marshalCommand(r.PendingCommand)

	return sqlx.TryExecRow(
		ctx,
		tx,
		`UPDATE `+q.Table+` SET
			revision = revision + 1,
			state = $1,
			state_timestamp = $2,
			lease_owner = $3,
			lease_expiry = $4,
			retry_count = $5,
			error_detail = $6,
			correlation_id = $7,
			pending_command = $8,
			pending_reason = $9,
			awaiting = $10,
			media_type = $11,
			data = $12
		WHERE connector_key = $13
		AND id = $14
		AND revision = $15`,
		string(r.State),
		sqlx.MarshalTime(r.StateTimestamp),
		r.Lease.Owner,
		sqlx.MarshalTime(r.Lease.ExpiresAt),
		int64(r.RetryCount),
		r.ErrorDetail,
		r.CorrelationID,
		cmd,
		reason,
		r.Awaiting,
		r.Packet.MediaType,
		r.Packet.Data,
		ck,
		r.ID,
		int64(r.Revision),
	), nil
}

// HasCorrelationConflict returns true if a process other than r, of the same
// type, already uses r's correlation ID.
func (q Queries) HasCorrelationConflict(
	ctx context.Context,
	tx *sql.Tx,
	ck string,
	r persistence.ProcessRecord,
) (_ bool, err error) {
	defer sqlx.Recover(&err)

	if r.CorrelationID == "" {
		return false, nil
	}

	return sqlx.QueryBool(
		ctx,
		tx,
		`SELECT EXISTS (
			SELECT 1 FROM `+q.Table+`
			WHERE connector_key = $1
			AND type = $2
			AND correlation_id = $3
			AND id != $4
		)`,
		ck,
		string(r.Type),
		r.CorrelationID,
		r.ID,
	), nil
}

// SelectProcess selects the process with the given ID.
func (q Queries) SelectProcess(
	ctx context.Context,
	db *sql.DB,
	ck, id string,
) (persistence.ProcessRecord, bool, error) {
	row := db.QueryRowContext(
		ctx,
		`SELECT `+columns+`
		FROM `+q.Table+`
		WHERE connector_key = $1
		AND id = $2`,
		ck,
		id,
	)

	return scanOne(row)
}

// SelectProcessByCorrelationID selects the process of the given type with the
// given correlation ID.
func (q Queries) SelectProcessByCorrelationID(
	ctx context.Context,
	db *sql.DB,
	ck string,
	t process.Type,
	id string,
) (persistence.ProcessRecord, bool, error) {
	row := db.QueryRowContext(
		ctx,
		`SELECT `+columns+`
		FROM `+q.Table+`
		WHERE connector_key = $1
		AND type = $2
		AND correlation_id = $3`,
		ck,
		string(t),
		id,
	)

	return scanOne(row)
}

// SelectDueProcesses selects up to n due processes, oldest first.
func (q Queries) SelectDueProcesses(
	ctx context.Context,
	db *sql.DB,
	ck string,
	t process.Type,
	states []process.State,
	now time.Time,
	n int,
) ([]persistence.ProcessRecord, error) {
	args := []interface{}{
		ck,
		string(t),
		sqlx.MarshalTime(now),
	}

	var in []string
	for _, s := range states {
		if process.IsTerminal(s) {
			continue
		}

		args = append(args, string(s))
		in = append(in, fmt.Sprintf("$%d", len(args)))
	}

	if len(in) == 0 {
		return nil, nil
	}

	return selectMany(
		ctx,
		db,
		`SELECT `+columns+`
		FROM `+q.Table+`
		WHERE connector_key = $1
		AND type = $2
		AND state_timestamp <= $3
		AND (lease_owner = '' OR lease_expiry <= $3)
		AND state IN (`+strings.Join(in, ", ")+`)
		ORDER BY state_timestamp, id`+limit(n),
		args...,
	)
}

// SelectExpiredLeases selects up to n processes with expired leases,
// earliest expiry first.
func (q Queries) SelectExpiredLeases(
	ctx context.Context,
	db *sql.DB,
	ck string,
	now time.Time,
	n int,
) ([]persistence.ProcessRecord, error) {
	return selectMany(
		ctx,
		db,
		`SELECT `+columns+`
		FROM `+q.Table+`
		WHERE connector_key = $1
		AND lease_owner != ''
		AND lease_expiry <= $2
		ORDER BY lease_expiry, id`+limit(n),
		ck,
		sqlx.MarshalTime(now),
	)
}

// SelectProcesses selects the processes that match a query, ordered by ID.
func (q Queries) SelectProcesses(
	ctx context.Context,
	db *sql.DB,
	ck string,
	pq persistence.ProcessQuery,
) ([]persistence.ProcessRecord, error) {
	args := []interface{}{ck, pq.After}
	where := `WHERE connector_key = $1 AND id > $2`

	if pq.Type != "" {
		args = append(args, string(pq.Type))
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}

	if len(pq.States) > 0 {
		in := make([]string, len(pq.States))
		for i, s := range pq.States {
			args = append(args, string(s))
			in[i] = fmt.Sprintf("$%d", len(args))
		}

		where += " AND state IN (" + strings.Join(in, ", ") + ")"
	}

	return selectMany(
		ctx,
		db,
		`SELECT `+columns+`
		FROM `+q.Table+`
		`+where+`
		ORDER BY id`+limit(pq.Limit),
		args...,
	)
}

// limit returns a LIMIT clause for n, or an empty string if n is not positive.
func limit(n int) string {
	if n <= 0 {
		return ""
	}

	return fmt.Sprintf(" LIMIT %d", n)
}

// selectMany executes a query that returns process rows.
func selectMany(
	ctx context.Context,
	db *sql.DB,
	query string,
	args ...interface{},
) (_ []persistence.ProcessRecord, err error) {
	defer sqlx.Recover(&err)

	rows := sqlx.Query(ctx, db, query, args...)
	defer rows.Close()

	var records []persistence.ProcessRecord

	for rows.Next() {
		r, err := scan(rows)
		sqlx.Must(err)
		records = append(records, r)
	}

	return records, rows.Err()
}

// scanOne scans a single row, returning false if there is no such row.
func scanOne(row *sql.Row) (persistence.ProcessRecord, bool, error) {
	r, err := scan(row)
	if err == sql.ErrNoRows {
		return persistence.ProcessRecord{}, false, nil
	}

	return r, err == nil, err
}

// scan scans a process row into a record.
func scan(s sqlx.Scanner) (persistence.ProcessRecord, error) {
	var (
		r                       persistence.ProcessRecord
		typ, state              string
		stateTimestamp, expiry  int64
		revision, retries       int64
		pendingCmd, pendingText string
	)

	err := s.Scan(
		&r.ID,
		&typ,
		&state,
		&stateTimestamp,
		&revision,
		&r.Lease.Owner,
		&expiry,
		&retries,
		&r.ErrorDetail,
		&r.CorrelationID,
		&pendingCmd,
		&pendingText,
		&r.Awaiting,
		&r.Packet.MediaType,
		&r.Packet.Data,
	)
	if err != nil {
		return persistence.ProcessRecord{}, err
	}

	r.Type = process.Type(typ)
	r.State = process.State(state)
	r.StateTimestamp = sqlx.UnmarshalTime(stateTimestamp)
	r.Lease.ExpiresAt = sqlx.UnmarshalTime(expiry)
	r.Revision = uint64(revision)
	r.RetryCount = uint(retries)

	if pendingCmd != "" {
		r.PendingCommand = &process.Command{
			Name:   process.CommandName(pendingCmd),
			Reason: pendingText,
		}
	}

	return r, nil
}

// marshalCommand returns the column values for a pending command.
func marshalCommand(c *process.Command) (string, string) {
	if c == nil {
		return "", ""
	}

	return string(c.Name), c.Reason
}
