package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("embedding.model", "all-minilm"))
	require.NoError(t, store.Set("queue.workers", 8))
	require.NoError(t, store.Set("queue.size", int64(128)))
	require.NoError(t, store.Set("ocr.dpi", float64(200)))
	require.NoError(t, store.Set("scheduler.enabled", true))
	require.NoError(t, store.Set("watch.ignore", []any{"*.tmp", 3}))

	assert.Equal(t, "all-minilm", store.GetString("embedding.model"))
	assert.Equal(t, 8, store.GetInt("queue.workers"))
	assert.Equal(t, 128, store.GetInt("queue.size"))
	assert.Equal(t, 200, store.GetInt("ocr.dpi"))
	assert.True(t, store.GetBool("scheduler.enabled"))
	assert.Equal(t, []string{"*.tmp"}, store.GetStringSlice("watch.ignore"))

	assert.Empty(t, store.GetString("queue.workers"))
	assert.Zero(t, store.GetInt("embedding.model"))
	assert.False(t, store.GetBool("embedding.model"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_KeysAndUnset(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("log.level", "debug"))
	require.NoError(t, store.Set("embedding.provider", "ollama"))
	assert.Equal(t, []string{"embedding.provider", "log.level"}, store.Keys())

	require.NoError(t, store.Unset("log.level"))
	require.NoError(t, store.Unset("missing"))
	assert.Equal(t, []string{"embedding.provider"}, store.Keys())

	_, ok := store.Get("log.level")
	assert.False(t, ok)
}

func TestConfigStore_EmptyKey(t *testing.T) {
	assert.Error(t, NewConfigStore().Set("", 1))
}

func TestConfigStore_NoPersistence(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("server.addr", ":8080"))
	require.NoError(t, store.Save())
	require.NoError(t, store.Load())

	assert.Equal(t, ":8080", store.GetString("server.addr"))
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_InstancesAreIsolated(t *testing.T) {
	a, b := NewConfigStore(), NewConfigStore()

	require.NoError(t, a.Set("queue.workers", 2))

	assert.Equal(t, 2, a.GetInt("queue.workers"))
	assert.Zero(t, b.GetInt("queue.workers"))
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("queue.workers", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("queue.workers")
			_ = store.Keys()
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"queue.workers"}, store.Keys())
}
