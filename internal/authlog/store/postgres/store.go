package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"lmsgate/internal/authlog"
)

const schema = `
CREATE TABLE IF NOT EXISTS auth_event_log (
	id          UUID PRIMARY KEY,
	logged_at   TIMESTAMPTZ NOT NULL,
	request_id  TEXT NOT NULL DEFAULT '',
	client_ip   TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	payload     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_auth_event_log_logged_at ON auth_event_log (logged_at DESC);
`

// Store implements authlog.Sink on a Postgres table.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL auth-event store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create auth_event_log schema: %w", err)
	}
	return nil
}

// Write inserts entry. Re-delivery of the same entry id is ignored.
func (s *Store) Write(ctx context.Context, entry authlog.Entry) error {
	payload, err := entry.Payload()
	if err != nil {
		return fmt.Errorf("marshal auth event payload: %w", err)
	}

	query := `
		INSERT INTO auth_event_log (id, logged_at, request_id, client_ip, user_agent, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp,
		entry.RequestID,
		entry.ClientIP,
		entry.UserAgent,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

// Record is a persisted auth event row.
type Record struct {
	ID        string
	RequestID string
	ClientIP  string
	Payload   []byte
}

// ListRecent returns the newest limit rows.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, client_ip, payload
		FROM auth_event_log
		ORDER BY logged_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query auth events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.RequestID, &r.ClientIP, &r.Payload); err != nil {
			return nil, fmt.Errorf("scan auth event: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auth events: %w", err)
	}
	return out, nil
}
