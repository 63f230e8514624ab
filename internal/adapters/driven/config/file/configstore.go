package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/opptrack/internal/adapters/driven/config/values"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// FileName is the config file inside the config directory.
const FileName = "config.toml"

// ConfigStore reads and writes one TOML file. Every Set and Unset is
// written through.
type ConfigStore struct {
	values.Map
	path string
}

// NewConfigStore opens FileName inside dir, or inside ~/.opptrack when
// dir is empty.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dir = filepath.Join(home, ".opptrack")
	}
	return Open(filepath.Join(dir, FileName))
}

// Open uses path as the config file, creating its directory.
func Open(path string) (*ConfigStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	s := &ConfigStore{path: path}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Set stores value under key. If the file cannot be written the old
// value is put back.
func (s *ConfigStore) Set(key string, value any) error {
	if key == "" {
		return errors.New("config key is empty")
	}
	return s.Update(func(m map[string]any) error {
		prev, had := m[key]
		m[key] = value
		err := s.write(m)
		if err != nil {
			if had {
				m[key] = prev
			} else {
				delete(m, key)
			}
		}
		return err
	})
}

// Unset removes key. Removing an absent key does not touch the file.
func (s *ConfigStore) Unset(key string) error {
	return s.Update(func(m map[string]any) error {
		prev, had := m[key]
		if !had {
			return nil
		}
		delete(m, key)
		err := s.write(m)
		if err != nil {
			m[key] = prev
		}
		return err
	})
}

// Save writes the current values.
func (s *ConfigStore) Save() error {
	return s.Update(s.write)
}

// Load rereads the file. A missing file is an empty configuration.
func (s *ConfigStore) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.Replace(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}
	s.Replace(values.Flatten(tree))
	return nil
}

func (s *ConfigStore) Path() string { return s.path }

// write replaces the file through a temp file and rename, so a reader
// never sees a partial document.
func (s *ConfigStore) write(flat map[string]any) error {
	tree, err := values.Nest(flat)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	err = errors.Join(err, tmp.Chmod(0o600), tmp.Close())
	if err == nil {
		err = os.Rename(tmp.Name(), s.path)
	}
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
