package credstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	kind       TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (kind, user_id)
);
`

// SQLite is a credential store backed by a local SQLite database, so that
// credentials survive proxy restarts.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the credential database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open credential db: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent per-user writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create credentials table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, kind, userID string) (Record, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM credentials WHERE kind = ? AND user_id = ?`,
		kind, userID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %s/%s: %w", kind, userID, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode credential %s/%s: %w", kind, userID, err)
	}
	return rec, nil
}

func (s *SQLite) Put(ctx context.Context, kind, userID string, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode credential %s/%s: %w", kind, userID, err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (kind, user_id, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, user_id)
		DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		kind, userID, string(payload), now, now,
	)
	if err != nil {
		return fmt.Errorf("put credential %s/%s: %w", kind, userID, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, kind, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE kind = ? AND user_id = ?`, kind, userID)
	if err != nil {
		return fmt.Errorf("delete credential %s/%s: %w", kind, userID, err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
