package values

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_ZeroValue(t *testing.T) {
	var m Map
	_, ok := m.Get("x")
	assert.False(t, ok)
	assert.Empty(t, m.Keys())

	require.NoError(t, m.Update(func(vals map[string]any) error {
		vals["x"] = "y"
		return nil
	}))
	assert.Equal(t, "y", m.GetString("x"))
}

func TestMap_Getters(t *testing.T) {
	var m Map
	m.Replace(map[string]any{
		"s":     "text",
		"i":     7,
		"i64":   int64(8),
		"f":     9.7,
		"b":     true,
		"list":  []any{"a", 2, "b"},
		"slice": []string{"c"},
	})

	assert.Equal(t, "text", m.GetString("s"))
	assert.Empty(t, m.GetString("i"))
	assert.Equal(t, 7, m.GetInt("i"))
	assert.Equal(t, 8, m.GetInt("i64"))
	assert.Equal(t, 9, m.GetInt("f"))
	assert.Zero(t, m.GetInt("s"))
	assert.True(t, m.GetBool("b"))
	assert.False(t, m.GetBool("s"))
	assert.Equal(t, []string{"a", "b"}, m.GetStringSlice("list"))
	assert.Equal(t, []string{"c"}, m.GetStringSlice("slice"))
	assert.Nil(t, m.GetStringSlice("missing"))
	assert.Equal(t, []string{"b", "f", "i", "i64", "list", "s", "slice"}, m.Keys())
}

func TestFlattenNest_RoundTrip(t *testing.T) {
	tree := map[string]any{
		"embedding": map[string]any{"provider": "ollama", "batch_size": int64(32)},
		"storage":   map[string]any{"postgres": map[string]any{"dsn": "postgres://x"}},
		"top":       true,
	}

	flat := Flatten(tree)
	assert.Equal(t, map[string]any{
		"embedding.provider":   "ollama",
		"embedding.batch_size": int64(32),
		"storage.postgres.dsn": "postgres://x",
		"top":                  true,
	}, flat)

	back, err := Nest(flat)
	require.NoError(t, err)
	assert.Equal(t, tree, back)
}

func TestNest_Conflicts(t *testing.T) {
	_, err := Nest(map[string]any{"a": 1, "a.b": 2})
	assert.ErrorContains(t, err, `"a.b"`)
}

func TestMap_Concurrent(t *testing.T) {
	var m Map
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Update(func(vals map[string]any) error {
				vals["n"] = i
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = m.GetInt("n")
			_ = m.Keys()
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"n"}, m.Keys())
}
