package lock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// keyedMutex is a map of weight-1 semaphores created on demand and dropped
// when nobody holds or waits for them.
type keyedMutex[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*keyedEntry
}

type keyedEntry struct {
	sem  *semaphore.Weighted
	refs int // holders plus waiters
}

func newKeyedMutex[K comparable]() *keyedMutex[K] {
	return &keyedMutex[K]{entries: make(map[K]*keyedEntry)}
}

// lock blocks until key is free or ctx is done.
func (k *keyedMutex[K]) lock(ctx context.Context, key K) error {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{sem: semaphore.NewWeighted(1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.drop(key, e)
		return err
	}
	return nil
}

func (k *keyedMutex[K]) unlock(key K) {
	k.mu.Lock()
	e := k.entries[key]
	k.mu.Unlock()

	e.sem.Release(1)
	k.drop(key, e)
}

func (k *keyedMutex[K]) drop(key K, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// held reports whether key currently has a holder or waiter.
func (k *keyedMutex[K]) held(key K) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.entries[key]
	return ok
}

func (k *keyedMutex[K]) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
