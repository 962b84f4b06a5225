package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/i474232898/openweathermap-agent/internal/weather"
)

var _ weather.Store = (*SQLiteStore)(nil)

// SQLiteStore implements weather.Store using SQLite (pure Go driver
// modernc.org/sqlite). Timestamps are stored as unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer keeps SQLITE_BUSY away for this small workload.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA journal_mode = WAL;
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS agent_options (
		agent_id TEXT PRIMARY KEY,
		options_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_agent_created ON events(agent_id, created_at);
	CREATE TABLE IF NOT EXISTS agent_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		level INTEGER NOT NULL,
		message TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agent_logs_agent_level ON agent_logs(agent_id, level, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveEvent(ctx context.Context, e weather.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(id, agent_id, payload, created_at) VALUES(?,?,?,?)`,
		e.ID.String(), e.AgentID, string(e.Payload), e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, agentID string, limit int) ([]weather.Event, error) {
	if limit <= 0 {
		return nil, errInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, payload, created_at FROM events
		 WHERE agent_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]weather.Event, 0)
	for rows.Next() {
		var (
			e       weather.Event
			id      string
			payload string
			created int64
		)
		if err := rows.Scan(&id, &e.AgentID, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse event id %q: %w", id, err)
		}
		e.Payload = json.RawMessage(payload)
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LastEventAt(ctx context.Context, agentID string) (time.Time, error) {
	return s.maxTime(ctx, `SELECT MAX(created_at) FROM events WHERE agent_id = ?`, agentID)
}

func (s *SQLiteStore) SaveLog(ctx context.Context, entry weather.LogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_logs(agent_id, level, message, created_at) VALUES(?,?,?,?)`,
		entry.AgentID, int(entry.Level), entry.Message, entry.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert agent log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListLogs(ctx context.Context, agentID string, limit int) ([]weather.LogEntry, error) {
	if limit <= 0 {
		return nil, errInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, level, message, created_at FROM agent_logs
		 WHERE agent_id = ? ORDER BY id DESC LIMIT ?`,
		agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query agent logs: %w", err)
	}
	defer rows.Close()

	out := make([]weather.LogEntry, 0)
	for rows.Next() {
		var (
			l       weather.LogEntry
			level   int
			created int64
		)
		if err := rows.Scan(&l.ID, &l.AgentID, &level, &l.Message, &created); err != nil {
			return nil, fmt.Errorf("scan agent log row: %w", err)
		}
		l.Level = weather.LogLevel(level)
		l.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LastErrorLogAt(ctx context.Context, agentID string) (time.Time, error) {
	return s.maxTime(ctx,
		`SELECT MAX(created_at) FROM agent_logs WHERE agent_id = ? AND level >= ?`,
		agentID, int(weather.LogLevelError))
}

func (s *SQLiteStore) SaveOptions(ctx context.Context, agentID string, opts weather.Options) error {
	b, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_options(agent_id, options_json, updated_at) VALUES(?,?,?)
		 ON CONFLICT(agent_id) DO UPDATE SET options_json = excluded.options_json, updated_at = excluded.updated_at`,
		agentID, string(b), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("upsert options: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadOptions(ctx context.Context, agentID string) (weather.Options, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT options_json FROM agent_options WHERE agent_id = ?`, agentID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}

	var opts weather.Options
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return opts, nil
}

func (s *SQLiteStore) maxTime(ctx context.Context, query string, args ...any) (time.Time, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return time.Time{}, fmt.Errorf("query last activity: %w", err)
	}
	if !v.Valid {
		return time.Time{}, nil
	}
	return time.Unix(0, v.Int64).UTC(), nil
}
