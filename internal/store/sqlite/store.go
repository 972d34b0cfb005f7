package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
)

// Store is the sqlite-backed local durable store. It holds the offline
// event buffer and the active-session crash-recovery snapshot.
type Store struct {
	db        *sql.DB
	maxEvents int
	log       *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS offline_events (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_snapshot (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    payload TEXT NOT NULL
);
`

// Open opens (or creates) the store at path. Safe to call on an existing
// file - the schema uses IF NOT EXISTS.
func Open(path string, maxEvents int, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	// sqlite handles a single writer; more connections just contend
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create local store schema: %w", err)
	}

	return &Store{db: db, maxEvents: maxEvents, log: log}, nil
}

// SaveEvents appends events to the offline buffer and trims it down to the
// configured cap, oldest entries first.
func (s *Store) SaveEvents(ctx context.Context, events []*domain.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin offline buffer tx: %w", err)
	}
	defer tx.Rollback()

	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			// One unserializable event must not sink the batch
			s.log.Warn("Dropping unserializable event from offline buffer",
				zap.String("event_id", event.EventID),
				zap.Error(err))
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO offline_events (payload) VALUES (?)", string(payload)); err != nil {
			return fmt.Errorf("failed to buffer event: %w", err)
		}
	}

	if s.maxEvents > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM offline_events WHERE seq NOT IN (
				SELECT seq FROM offline_events ORDER BY seq DESC LIMIT ?
			)`, s.maxEvents)
		if err != nil {
			return fmt.Errorf("failed to trim offline buffer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit offline buffer tx: %w", err)
	}

	return nil
}

// LoadEvents returns all buffered events in insertion order
func (s *Store) LoadEvents(ctx context.Context) ([]*domain.AnalyticsEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM offline_events ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to read offline buffer: %w", err)
	}
	defer rows.Close()

	var events []*domain.AnalyticsEvent
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan buffered event: %w", err)
		}

		var event domain.AnalyticsEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			// A corrupt row is skipped, not fatal
			s.log.Warn("Skipping corrupt offline buffer row", zap.Error(err))
			continue
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offline buffer: %w", err)
	}

	return events, nil
}

// ClearEvents removes all buffered events
func (s *Store) ClearEvents(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM offline_events"); err != nil {
		return fmt.Errorf("failed to clear offline buffer: %w", err)
	}
	return nil
}

// SaveSnapshot upserts the active-session snapshot
func (s *Store) SaveSnapshot(ctx context.Context, session *domain.UserSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_snapshot (id, payload) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`,
		string(payload))
	if err != nil {
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot returns the stored session snapshot, or nil when none exists
func (s *Store) LoadSnapshot(ctx context.Context) (*domain.UserSession, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM session_snapshot WHERE id = 1").Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session snapshot: %w", err)
	}

	var session domain.UserSession
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}

	return &session, nil
}

// DeleteSnapshot removes the stored session snapshot
func (s *Store) DeleteSnapshot(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session_snapshot WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to delete session snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
