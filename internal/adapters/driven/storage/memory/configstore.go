package memory

import (
	"errors"

	"github.com/custodia-labs/opptrack/internal/adapters/driven/config/values"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps configuration in memory only. It backs tests and
// --ephemeral runs.
type ConfigStore struct {
	values.Map
}

// NewConfigStore returns an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{}
}

func (s *ConfigStore) Set(key string, value any) error {
	if key == "" {
		return errors.New("config key is empty")
	}
	return s.Update(func(m map[string]any) error {
		m[key] = value
		return nil
	})
}

func (s *ConfigStore) Unset(key string) error {
	return s.Update(func(m map[string]any) error {
		delete(m, key)
		return nil
	})
}

// Save and Load have nothing to do.
func (s *ConfigStore) Save() error { return nil }
func (s *ConfigStore) Load() error { return nil }

func (s *ConfigStore) Path() string { return ":memory:" }
