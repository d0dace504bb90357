// Package sqlitekv implements storage.Adapter over a WAL-journaled embedded
// SQLite database (pure-Go driver, no cgo), keyed on the composite primary
// key (space_id, key) with a secondary index on space_id.
package sqlitekv

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/ledgerstate/ledgerstate/internal/storage"
)

// Store is a durable, WAL-journaled key/value store partitioned by space id.
type Store struct {
	db   *sql.DB
	path string
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS kv (
    space_id INTEGER NOT NULL,
    key      TEXT    NOT NULL,
    value    BLOB    NOT NULL,
    PRIMARY KEY (space_id, key)
);
CREATE INDEX IF NOT EXISTS idx_kv_space ON kv(space_id);
`

// Open creates or opens a SQLite-backed store at path. Pass ":memory:" for
// an in-process (but still transactionally-atomic) instance.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlitekv: create dir: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: open: %w", err)
	}

	// SQLite tolerates exactly one writer; serialize through one connection
	// so WAL mode doesn't surface SQLITE_BUSY under concurrent access.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitekv: ping: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaDDL)
	if err != nil {
		return fmt.Errorf("sqlitekv: init schema: %w", err)
	}
	return nil
}

var _ storage.Adapter = (*Store)(nil)

func (s *Store) Get(ctx context.Context, spaceID int64, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE space_id = ? AND key = ?`, spaceID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlitekv: get: %w", err)
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, spaceID int64, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (space_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(space_id, key) DO UPDATE SET value = excluded.value`,
		spaceID, key, value)
	if err != nil {
		return fmt.Errorf("sqlitekv: put: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, spaceID int64, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE space_id = ? AND key = ?`, spaceID, key)
	if err != nil {
		return fmt.Errorf("sqlitekv: delete: %w", err)
	}
	return nil
}

func (s *Store) Scan(ctx context.Context, spaceID int64, prefix string) ([]storage.KV, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM kv WHERE space_id = ? AND key GLOB ?`,
		spaceID, globPrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: scan: %w", err)
	}
	defer rows.Close()

	var out []storage.KV
	for rows.Next() {
		var kv storage.KV
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, fmt.Errorf("sqlitekv: scan row: %w", err)
		}
		out = append(out, kv)
	}
	return out, rows.Err()
}

func (s *Store) MultiGet(ctx context.Context, spaceID int64, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query := `SELECT key, value FROM kv WHERE space_id = ? AND key IN (` + placeholders(len(keys)) + `)`
	args := make([]any, 0, len(keys)+1)
	args = append(args, spaceID)
	for _, k := range keys {
		args = append(args, k)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: multi_get: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("sqlitekv: multi_get row: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

func (s *Store) MultiPut(ctx context.Context, spaceID int64, pairs []storage.KV) error {
	if len(pairs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitekv: multi_put begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO kv (space_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(space_id, key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("sqlitekv: multi_put prepare: %w", err)
	}
	defer stmt.Close()

	for _, kv := range pairs {
		if _, err := stmt.ExecContext(ctx, spaceID, kv.Key, kv.Value); err != nil {
			return fmt.Errorf("sqlitekv: multi_put exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitekv: multi_put commit: %w", err)
	}
	return nil
}

func (s *Store) DeleteSpace(ctx context.Context, spaceID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE space_id = ?`, spaceID)
	if err != nil {
		return fmt.Errorf("sqlitekv: delete space: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for advanced callers, e.g. migrations
// or diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

// globPrefix escapes GLOB metacharacters in prefix before appending the
// trailing wildcard, so scan prefixes containing '*', '?', or '[' match
// literally rather than as GLOB patterns.
func globPrefix(prefix string) string {
	escaped := make([]byte, 0, len(prefix)+1)
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c == '*' || c == '?' || c == '[' || c == ']' {
			escaped = append(escaped, '[', c, ']')
		} else {
			escaped = append(escaped, c)
		}
	}
	escaped = append(escaped, '*')
	return string(escaped)
}
