package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artistmail/webmail/pkg/config"
	_ "modernc.org/sqlite"
)

// SQLStore keeps the session in a key/value table of a SQLite database.
type SQLStore struct {
	db  *sql.DB
	key string
}

var _ Store = &SQLStore{}

// NewSQLStore opens (creating if needed) webmail.db inside the configured directory.
func NewSQLStore(c config.Session) (Store, error) {
	if c.Key == "" {
		return nil, errors.New("session store requires a key")
	}
	dsn := ":memory:"
	if c.Path != "" {
		if err := os.MkdirAll(c.Path, 0700); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
		dsn = filepath.Join(c.Path, "webmail.db")
	}
	return OpenSQLStore(context.Background(), dsn, c.Key)
}

// OpenSQLStore opens the database at dsn and ensures the storage table exists.
func OpenSQLStore(ctx context.Context, dsn, key string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS storage (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL,
            updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
        );`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLStore{db: db, key: key}, nil
}

// Close releases the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context) (*Session, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM storage WHERE key = ?;`, s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return decode([]byte(value))
}

// Set implements Store.
func (s *SQLStore) Set(ctx context.Context, sess *Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO storage (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value,
            updated_at = strftime('%s', 'now');`, s.key, string(b))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *SQLStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM storage WHERE key = ?;`, s.key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
