package postprocessors

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

// Settings holds one processor's options as decoded from TOML or JSON,
// so numbers may arrive as int, int64 or float64.
type Settings map[string]any

// Int returns key as an int and whether it was present and numeric.
func (s Settings) Int(key string) (int, bool) {
	switch v := s[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Strings returns key as a string list. Non-string items are dropped.
func (s Settings) Strings(key string) []string {
	switch v := s[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Builder constructs a processor from its settings. Settings may be nil.
type Builder func(Settings) (driven.PostProcessor, error)

// Registry maps processor names to builders so a pipeline can be
// described by configuration.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns an empty registry. See DefaultRegistry for one
// that knows the built-in processors.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder. Names are unique.
func (r *Registry) Register(name string, b Builder) error {
	if name == "" || b == nil {
		return errors.New("processor name and builder are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.builders[name]; dup {
		return fmt.Errorf("processor %q already registered", name)
	}
	r.builders[name] = b
	return nil
}

// Names lists the registered processors in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.builders))
}

// Build constructs one processor.
func (r *Registry) Build(name string, s Settings) (driven.PostProcessor, error) {
	r.mu.RLock()
	b, ok := r.builders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown processor %q (have %v)", name, r.Names())
	}
	proc, err := b(s)
	if err != nil {
		return nil, fmt.Errorf("processor %s: %w", name, err)
	}
	return proc, nil
}

// BuildPipeline builds names in order. Every problem is reported, not
// just the first. A processor may appear only once.
func (r *Registry) BuildPipeline(names []string, settings map[string]Settings) (*Pipeline, error) {
	if len(names) == 0 {
		return nil, errors.New("pipeline has no processors")
	}

	var (
		procs = make([]driven.PostProcessor, 0, len(names))
		seen  = make(map[string]bool, len(names))
		errs  []error
	)
	for _, name := range names {
		if seen[name] {
			errs = append(errs, fmt.Errorf("processor %q listed twice", name))
			continue
		}
		seen[name] = true
		proc, err := r.Build(name, settings[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		procs = append(procs, proc)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return NewPipeline(procs...), nil
}
