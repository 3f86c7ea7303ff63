package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rpggio/casereview/internal/domain/audit"
)

// AuditRepository implements audit.Repository for SQLite. Each log is the
// set of rows sharing a log_key, in insertion order.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts an event and assigns its Seq
func (r *AuditRepository) Append(ctx context.Context, key string, event *audit.Event) error {
	query := `
		INSERT INTO audit_events (log_key, ts, username, action, case_id, series, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		key,
		event.Timestamp.UnixMicro(),
		event.Username,
		string(event.Action),
		event.Case,
		event.Series,
		event.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		event.Seq = id
	}
	event.LogKey = key

	return nil
}

// List returns the events of one log in append order
func (r *AuditRepository) List(ctx context.Context, key string) ([]audit.Event, error) {
	query := `
		SELECT id, log_key, ts, username, action, case_id, series, details
		FROM audit_events
		WHERE log_key = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var ts int64
		var action string
		if err := rows.Scan(&e.Seq, &e.LogKey, &ts, &e.Username, &action, &e.Case, &e.Series, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Timestamp = time.UnixMicro(ts)
		e.Action = audit.Action(action)
		events = append(events, e)
	}

	return events, rows.Err()
}

// Keys lists the logs that have at least one event
func (r *AuditRepository) Keys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT log_key FROM audit_events ORDER BY log_key ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan audit log key: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}
