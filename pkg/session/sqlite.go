package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	ts REAL NOT NULL
);
`

// SQLiteStore keeps session records in a SQLite file so they survive
// restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sessionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get loads the record stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Record, error) {
	var value string
	var ts float64

	err := s.db.QueryRowContext(ctx, `SELECT value, ts FROM sessions WHERE key = ?`, key).
		Scan(&value, &ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}

	var resp Response
	if err := json.Unmarshal([]byte(value), &resp); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}

	return &Record{Response: resp, Timestamp: fromUnixSeconds(ts)}, nil
}

// Set stores record under key, replacing any previous record.
func (s *SQLiteStore) Set(ctx context.Context, key string, record Record) error {
	value, err := json.Marshal(record.Response)
	if err != nil {
		return fmt.Errorf("encode session response: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (key, value, ts) VALUES (?, ?, ?)`,
		key, string(value), toUnixSeconds(record.Timestamp))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toUnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnixSeconds(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}
