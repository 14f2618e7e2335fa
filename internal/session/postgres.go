package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore keeps records in the relational store the rest of the
// application already runs on.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id       TEXT PRIMARY KEY,
    principal_id     TEXT NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL,
    last_activity_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_last_activity_idx ON sessions (last_activity_at);
`

// EnsureSchema creates the sessions table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("session: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	const query = `INSERT INTO sessions (session_id, principal_id, created_at, last_activity_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, rec.SessionID, rec.PrincipalID, rec.CreatedAt, rec.LastActivityAt); err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string) (Record, error) {
	const query = `SELECT session_id, principal_id, created_at, last_activity_at FROM sessions WHERE session_id = $1`

	var rec Record
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID, &rec.PrincipalID, &rec.CreatedAt, &rec.LastActivityAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("session: get: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Touch(ctx context.Context, sessionID string, now time.Time) error {
	// GREATEST keeps last_activity_at monotonic under racing tabs.
	const query = `UPDATE sessions SET last_activity_at = GREATEST(last_activity_at, $2) WHERE session_id = $1`

	res, err := s.db.ExecContext(ctx, query, sessionID, now)
	if err != nil {
		return fmt.Errorf("session: touch: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session: touch rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Destroy(ctx context.Context, sessionID string) error {
	const query = `DELETE FROM sessions WHERE session_id = $1`
	if _, err := s.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("session: destroy: %w", err)
	}
	return nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `DELETE FROM sessions WHERE last_activity_at < $1`

	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("session: purge: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session: purge rows affected: %w", err)
	}
	return int(affected), nil
}
