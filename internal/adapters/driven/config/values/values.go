// Package values is the flat, dot-keyed map behind the config stores.
// Values keep the types their decoder produced; the getters coerce the
// numeric and list shapes TOML and JSON yield.
package values

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Map is safe for concurrent use. The zero value is empty and ready.
type Map struct {
	mu sync.RWMutex
	m  map[string]any
}

// Get returns the raw value for key.
func (v *Map) Get(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.m[key]
	return val, ok
}

// GetString returns key if it holds a string, else "".
func (v *Map) GetString(key string) string {
	val, _ := v.Get(key)
	s, _ := val.(string)
	return s
}

// GetInt returns key as an int. Floats are truncated; other types
// read as 0.
func (v *Map) GetInt(key string) int {
	val, _ := v.Get(key)
	switch n := val.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// GetBool returns key if it holds a bool, else false.
func (v *Map) GetBool(key string) bool {
	val, _ := v.Get(key)
	b, _ := val.(bool)
	return b
}

// GetStringSlice returns the string items of a list value.
func (v *Map) GetStringSlice(key string) []string {
	val, _ := v.Get(key)
	switch list := val.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Keys lists every key in sorted order.
func (v *Map) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Sorted(maps.Keys(v.m))
}

// Update runs fn with the write lock held and the live map, so a store
// can change a value and persist it as one step.
func (v *Map) Update(fn func(m map[string]any) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.m == nil {
		v.m = make(map[string]any)
	}
	return fn(v.m)
}

// Replace swaps in m wholesale.
func (v *Map) Replace(m map[string]any) {
	if m == nil {
		m = make(map[string]any)
	}
	v.mu.Lock()
	v.m = m
	v.mu.Unlock()
}

// Flatten turns nested tables into dot keys: {"a": {"b": 1}} becomes
// {"a.b": 1}.
func Flatten(tree map[string]any) map[string]any {
	flat := make(map[string]any, len(tree))
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, val := range node {
			if prefix != "" {
				k = prefix + "." + k
			}
			if sub, ok := val.(map[string]any); ok {
				walk(k, sub)
				continue
			}
			flat[k] = val
		}
	}
	walk("", tree)
	return flat
}

// Nest is the inverse of Flatten. It fails when one key is both a
// value and the prefix of another, as with "a" and "a.b".
func Nest(flat map[string]any) (map[string]any, error) {
	root := make(map[string]any)
	for _, key := range slices.Sorted(maps.Keys(flat)) {
		parts := strings.Split(key, ".")
		node := root
		for _, part := range parts[:len(parts)-1] {
			switch child := node[part].(type) {
			case nil:
				next := make(map[string]any)
				node[part] = next
				node = next
			case map[string]any:
				node = child
			default:
				return nil, fmt.Errorf("config key %q conflicts with the value at %q", key, part)
			}
		}
		leaf := parts[len(parts)-1]
		if _, isTable := node[leaf].(map[string]any); isTable {
			return nil, fmt.Errorf("config key %q conflicts with a table of the same name", key)
		}
		node[leaf] = flat[key]
	}
	return root, nil
}
