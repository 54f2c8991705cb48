// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ManuGH/playbackd/internal/persistence/sqlite"
)

const schemaVersion = 1

// SqliteStore implements StateStore using SQLite.
type SqliteStore struct {
	DB *sql.DB
}

// NewSqliteStore initializes a new SQLite session journal.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{DB: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session journal: migration failed: %w", err)
	}

	return s, nil
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

func (s *SqliteStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SqliteStore) migrate() error {
	var currentVersion int
	err := s.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return err
	}

	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		manifest_url TEXT NOT NULL,
		state TEXT NOT NULL,
		variant_index INTEGER NOT NULL DEFAULT -1,
		position REAL NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT -1,
		last_error_category TEXT,
		last_error_message TEXT,
		last_error_fatal INTEGER NOT NULL DEFAULT 0,
		correlation_id TEXT,
		transitions INTEGER NOT NULL DEFAULT 0,
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL,
		closed_at_ms INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at_ms);

	CREATE TABLE IF NOT EXISTS session_transitions (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		event TEXT NOT NULL,
		reason TEXT,
		at_ms INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	`

	if _, err := tx.Exec(schema); err != nil {
		return err
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

// --- Session CRUD ---

func (s *SqliteStore) PutSession(ctx context.Context, rec *SessionRecord) error {
	query := `
	INSERT INTO sessions (
		session_id, manifest_url, state, variant_index, position, duration,
		last_error_category, last_error_message, last_error_fatal,
		correlation_id, transitions, created_at_ms, updated_at_ms, closed_at_ms
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		manifest_url = excluded.manifest_url,
		state = excluded.state,
		variant_index = excluded.variant_index,
		position = excluded.position,
		duration = excluded.duration,
		last_error_category = excluded.last_error_category,
		last_error_message = excluded.last_error_message,
		last_error_fatal = excluded.last_error_fatal,
		correlation_id = excluded.correlation_id,
		transitions = excluded.transitions,
		updated_at_ms = excluded.updated_at_ms,
		closed_at_ms = excluded.closed_at_ms
	`

	_, err := s.DB.ExecContext(ctx, query,
		rec.SessionID, rec.ManifestURL, rec.State, rec.VariantIndex, rec.Position, rec.Duration,
		emptyToNull(rec.LastErrorCategory), emptyToNull(rec.LastErrorMessage), boolToInt(rec.LastErrorFatal),
		emptyToNull(rec.CorrelationID), rec.Transitions, rec.CreatedAtMs, rec.UpdatedAtMs, zeroToNull(rec.ClosedAtMs),
	)
	return err
}

func (s *SqliteStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.DB.QueryRowContext(ctx, selectSessionColumns+" WHERE session_id = ?", id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *SqliteStore) ListSessions(ctx context.Context, filter Filter) ([]*SessionRecord, error) {
	query := selectSessionColumns
	args := make([]any, 0, len(filter.States)+1)

	if len(filter.States) > 0 {
		query += " WHERE state IN (?" + repeatPlaceholder(len(filter.States)-1) + ")"
		for _, st := range filter.States {
			args = append(args, st)
		}
	}
	query += " ORDER BY updated_at_ms DESC, session_id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func (s *SqliteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM session_transitions WHERE session_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Transition journal ---

func (s *SqliteStore) AppendTransition(ctx context.Context, tr TransitionRecord) error {
	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO session_transitions (session_id, seq, from_state, to_state, event, reason, at_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tr.SessionID, tr.Seq, tr.From, tr.To, tr.Event, emptyToNull(tr.Reason), tr.AtMs,
	)
	return err
}

func (s *SqliteStore) Transitions(ctx context.Context, sessionID string) ([]TransitionRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
	SELECT session_id, seq, from_state, to_state, event, reason, at_ms
	FROM session_transitions WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []TransitionRecord
	for rows.Next() {
		var tr TransitionRecord
		var reason sql.NullString
		if err := rows.Scan(&tr.SessionID, &tr.Seq, &tr.From, &tr.To, &tr.Event, &reason, &tr.AtMs); err != nil {
			return nil, err
		}
		tr.Reason = reason.String
		list = append(list, tr)
	}
	return list, rows.Err()
}

// --- Scan helpers ---

const selectSessionColumns = `
	SELECT session_id, manifest_url, state, variant_index, position, duration,
		last_error_category, last_error_message, last_error_fatal,
		correlation_id, transitions, created_at_ms, updated_at_ms, closed_at_ms
	FROM sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var (
		rec      SessionRecord
		errCat   sql.NullString
		errMsg   sql.NullString
		errFatal int
		corrID   sql.NullString
		closedAt sql.NullInt64
	)
	err := row.Scan(
		&rec.SessionID, &rec.ManifestURL, &rec.State, &rec.VariantIndex, &rec.Position, &rec.Duration,
		&errCat, &errMsg, &errFatal,
		&corrID, &rec.Transitions, &rec.CreatedAtMs, &rec.UpdatedAtMs, &closedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.LastErrorCategory = errCat.String
	rec.LastErrorMessage = errMsg.String
	rec.LastErrorFatal = errFatal != 0
	rec.CorrelationID = corrID.String
	rec.ClosedAtMs = closedAt.Int64
	return &rec, nil
}

func emptyToNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func zeroToNull(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

// Ensure interface compliance at compile time.
var _ StateStore = (*SqliteStore)(nil)
