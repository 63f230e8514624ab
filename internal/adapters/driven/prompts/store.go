// Package prompts serves the LLM prompt templates. Shipped defaults are
// embedded in the binary and copied to a user directory, where they can
// be edited.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

//go:embed defaults
var defaults embed.FS

// placeholders is the number of %s verbs a template must carry.
var placeholders = map[string]int{
	driven.PromptClusterSystem: 0,
	driven.PromptClusterUser:   2,
}

type cached struct {
	modTime time.Time
	text    string
}

// PromptStore reads templates from dir, falling back to the embedded
// copy when a file is missing or has the wrong placeholders. A file is
// re-read when its modification time changes.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	mu       sync.Mutex
	cache    map[string]cached
}

// NewPromptStore creates a store over dir, or ~/.opptrack/prompts when
// dir is empty. Nothing touches the disk until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		dir = filepath.Join(home, ".opptrack", "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]cached)}, nil
}

// Dir returns the directory templates are read from.
func (s *PromptStore) Dir() string { return s.dir }

// Load returns the named template.
func (s *PromptStore) Load(name string) (string, error) {
	def, err := Default(name)
	if err != nil {
		return "", err
	}
	s.seedOnce.Do(s.seed)

	path := filepath.Join(s.dir, name+".txt")
	info, err := os.Stat(path)
	if err != nil {
		return def, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cache[name]; ok && c.modTime.Equal(info.ModTime()) {
		return c.text, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return def, nil
	}
	text := strings.TrimSpace(string(data))
	if err := check(name, text); err != nil {
		logger.Warn("prompts: ignoring %s: %v", path, err)
		text = def
	}
	s.cache[name] = cached{modTime: info.ModTime(), text: text}
	return text, nil
}

// Reload forgets every cached template.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]cached)
	s.mu.Unlock()
}

// Default returns the shipped template for name.
func Default(name string) (string, error) {
	data, err := defaults.ReadFile("defaults/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	return strings.TrimSpace(string(data)), nil
}

// seed copies the embedded files into dir without overwriting. Failures
// only cost the user an editable copy, so they are logged.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		logger.Warn("prompts: %v", err)
		return
	}
	err := fs.WalkDir(defaults, "defaults", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := defaults.ReadFile(path)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(s.dir, d.Name()), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = f.Write(data)
		return errors.Join(err, f.Close())
	})
	if err != nil {
		logger.Warn("prompts: seeding %s: %v", s.dir, err)
	}
}

func check(name, text string) error {
	if text == "" {
		return errors.New("file is empty")
	}
	want := placeholders[name]
	if got := strings.Count(text, "%s"); got != want {
		return fmt.Errorf("want %d %%s placeholders, found %d", want, got)
	}
	return nil
}
