package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lin-gate/lingate/internal/domain/setting"
)

// SettingStore implements setting.Store on the config table.
type SettingStore struct {
	db *sql.DB
}

// NewSettingStore creates a setting store over an opened database.
func NewSettingStore(db *sql.DB) *SettingStore {
	return &SettingStore{db: db}
}

// Get returns setting.ErrNotFound when the key has no row.
func (s *SettingStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", setting.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// Set creates or overwrites a key; an empty description keeps the seeded one.
func (s *SettingStore) Set(ctx context.Context, key, value, description string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value, description, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			description = COALESCE(NULLIF(excluded.description, ''), config.description),
			updated_at = excluded.updated_at`,
		key, value, nullable(description), formatTime(now()))
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

var _ setting.Store = (*SettingStore)(nil)
