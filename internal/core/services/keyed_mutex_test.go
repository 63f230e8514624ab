package services

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerialisesSameKey(t *testing.T) {
	k := NewKeyedMutex()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("retail")
			defer unlock()

			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, k.held())
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	k := NewKeyedMutex()
	unlock := k.Lock("retail")
	defer unlock()

	done := make(chan struct{})
	go func() {
		release := k.Lock("energy")
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another key blocked")
	}
}

func TestKeyedMutex_MultipleKeys(t *testing.T) {
	k := NewKeyedMutex()

	// Opposite orders must not deadlock.
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var unlock func()
			if i%2 == 0 {
				unlock = k.Lock("a", "b")
			} else {
				unlock = k.Lock("b", "a")
			}
			unlock()
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("deadlock acquiring key pairs")
	}
	assert.Zero(t, k.held())
}

func TestKeyedMutex_DuplicateKeys(t *testing.T) {
	k := NewKeyedMutex()
	unlock := k.Lock("a", "a")
	assert.Equal(t, 1, k.held())
	unlock()
	assert.Zero(t, k.held())
}
