package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/delivevent/marketplace/backend/internal/domain/providers"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/clients/sqlite"
	apperrors "github.com/delivevent/marketplace/backend/pkg/errors"
)

// SQLiteStore persists values in a local SQLite file.
type SQLiteStore struct {
	client *sqlite.Client
}

var _ providers.KeyValueStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates the kv table when missing
func NewSQLiteStore(ctx context.Context, client *sqlite.Client) (*SQLiteStore, error) {
	_, err := client.DB().ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create kv table", err)
	}
	return &SQLiteStore{client: client}, nil
}

// Get returns the value stored under key
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.client.DB().QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", providers.ErrKeyNotFound
	}
	if err != nil {
		return "", apperrors.NewInternalError("failed to read key", err)
	}
	return value, nil
}

// Set stores value under key
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.client.DB().ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return apperrors.NewInternalError("failed to write key", err)
	}
	return nil
}

// Remove deletes key
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.client.DB().ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return apperrors.NewInternalError("failed to remove key", err)
	}
	return nil
}
