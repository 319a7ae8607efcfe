// Package sqlstore persists audit events through database/sql. Queries use $N
// placeholders in ascending order, which both lib/pq and go-sqlite3 bind
// positionally.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "kycbuster/pkg/domain"
	audit "kycbuster/pkg/platform/audit"
)

// Schema creates the audit table. Timestamps are stored as fixed-width UTC text so
// the same DDL works on PostgreSQL and SQLite.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	occurred_at TEXT NOT NULL,
	user_id TEXT NOT NULL,
	subject TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	decision TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	actor_id TEXT NOT NULL DEFAULT '',
	subject_id_hash TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_events_user ON audit_events (user_id, occurred_at);
`

// tsLayout is fixed width so text ordering matches time ordering.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one event. The category is always derived from the action.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	category := audit.AuditEvent(event.Action).Category()
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	query := `
		INSERT INTO audit_events (
			id, category, occurred_at, user_id, subject, action,
			decision, reason, request_id, actor_id, subject_id_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(),
		string(category),
		ts.UTC().Format(tsLayout),
		event.UserID.String(),
		event.Subject,
		event.Action,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.ActorID,
		event.SubjectIDHash,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	query := `
		SELECT category, occurred_at, subject, action, decision, reason,
			request_id, actor_id, subject_id_hash
		FROM audit_events
		WHERE user_id = $1
		ORDER BY occurred_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e          audit.Event
			category   string
			occurredAt string
		)
		if err := rows.Scan(&category, &occurredAt, &e.Subject, &e.Action, &e.Decision,
			&e.Reason, &e.RequestID, &e.ActorID, &e.SubjectIDHash); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ts, err := time.Parse(tsLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Timestamp = ts
		e.UserID = userID
		events = append(events, e)
	}
	return events, rows.Err()
}
