package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at dbPath and runs migrations.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY under concurrent webhooks.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT field, value FROM hashes WHERE key = ?", key)
	if err != nil {
		return nil, fmt.Errorf("failed to read hash %s: %w", key, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("failed to scan hash field: %w", err)
		}
		out[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hash %s: %w", key, err)
	}
	return out, nil
}

func (s *SQLiteStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for field, value := range fields {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO hashes (key, field, value) VALUES (?, ?, ?)
			 ON CONFLICT(key, field) DO UPDATE SET value = excluded.value`,
			key, field, value,
		)
		if err != nil {
			return fmt.Errorf("failed to write hash field %s: %w", field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) HSetNX(ctx context.Context, key, field, value string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO hashes (key, field, value) VALUES (?, ?, ?)",
		key, field, value,
	)
	if err != nil {
		return false, fmt.Errorf("failed to write hash field %s: %w", field, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) HDel(ctx context.Context, key string, fields ...string) error {
	for _, field := range fields {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM hashes WHERE key = ? AND field = ?", key, field); err != nil {
			return fmt.Errorf("failed to delete hash field %s: %w", field, err)
		}
	}
	return nil
}

func (s *SQLiteStore) SAdd(ctx context.Context, key, member string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sets (key, member) VALUES (?, ?)",
		key, member,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add to set %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM sets WHERE key = ? AND member = ?", key, member,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check set %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) SMembers(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT member FROM sets WHERE key = ? ORDER BY member", key)
	if err != nil {
		return nil, fmt.Errorf("failed to list set %s: %w", key, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("failed to scan set member: %w", err)
		}
		out = append(out, member)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
