package memory

import (
	"context"
	"sync"

	"github.com/lin-gate/lingate/internal/domain/setting"
)

type settingRow struct {
	value       string
	description string
}

// SettingStore implements setting.Store with a map.
type SettingStore struct {
	mu   sync.RWMutex
	rows map[string]settingRow
}

// NewSettingStore creates an empty setting store.
func NewSettingStore() *SettingStore {
	return &SettingStore{rows: make(map[string]settingRow)}
}

// Get returns setting.ErrNotFound when the key has no row.
func (s *SettingStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[key]
	if !ok {
		return "", setting.ErrNotFound
	}
	return row.value, nil
}

// Set creates or overwrites a key, keeping the old description when the new
// one is empty.
func (s *SettingStore) Set(ctx context.Context, key, value, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.rows[key]
	row.value = value
	if description != "" {
		row.description = description
	}
	s.rows[key] = row
	return nil
}

var _ setting.Store = (*SettingStore)(nil)
