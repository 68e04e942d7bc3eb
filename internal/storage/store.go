// Package storage provides the key-value stores the ledger persists into.
//
// Every backend keeps whole values under string keys; callers own the
// encoding. SQL backends create their schema through embedded migrations.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// UpdateFunc computes the next value under a key from the current one. ok is
// false when the key is absent. Returning an error aborts the update.
type UpdateFunc func(current []byte, ok bool) ([]byte, error)

// Store is a minimal durable key-value store.
type Store interface {
	// Get returns the value under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Put replaces the value under key.
	Put(ctx context.Context, key string, value []byte) error
	// Update reads, transforms and writes the value under key as one step.
	// Concurrent updates of the same key, from this process or another one
	// sharing the backend, never interleave.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// Ping reports whether the store can serve requests.
	Ping(ctx context.Context) error
	Close() error
}

// MemoryStore keeps values in process memory. Used for tests and the memory backend.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	cur, ok := m.data[key]
	var in []byte
	if ok {
		in = make([]byte, len(cur))
		copy(in, cur)
	}
	next, err := fn(in, ok)
	if err != nil {
		return err
	}
	v := make([]byte, len(next))
	copy(v, next)
	m.data[key] = v
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
