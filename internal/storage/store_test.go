package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "transactions")
	require.NoError(t, err)
	assert.False(t, ok, "fresh store should not have the key")

	require.NoError(t, s.Put(ctx, "transactions", []byte(`[]`)))
	v, ok, err := s.Get(ctx, "transactions")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(v))

	require.NoError(t, s.Put(ctx, "transactions", []byte(`[{"id":"a"}]`)))
	v, _, err = s.Get(ctx, "transactions")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, string(v), "second put should overwrite")

	// Update sees an absent key, then its own previous write.
	require.NoError(t, s.Update(ctx, "counter", increment))
	require.NoError(t, s.Update(ctx, "counter", increment))
	v, _, err = s.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, "2", string(v))

	boom := errors.New("boom")
	err = s.Update(ctx, "counter", func([]byte, bool) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	v, _, err = s.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, "2", string(v), "failed update must not write")

	assert.NoError(t, s.Ping(ctx))
}

// increment treats the value as a decimal counter; absent means zero.
func increment(cur []byte, ok bool) ([]byte, error) {
	n := 0
	if ok {
		var err error
		if n, err = strconv.Atoi(string(cur)); err != nil {
			return nil, err
		}
	}
	return []byte(strconv.Itoa(n + 1)), nil
}

// hammer runs n increments split across stores concurrently.
func hammer(t *testing.T, stores []Store, n int) {
	t.Helper()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(s Store) {
			defer wg.Done()
			assert.NoError(t, s.Update(context.Background(), "hits", increment))
		}(stores[i%len(stores)])
	}
	wg.Wait()
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)

	v, _, _ := s.Get(context.Background(), "transactions")
	v[0] = 'X'
	again, _, _ := s.Get(context.Background(), "transactions")
	assert.Equal(t, byte('['), again[0], "callers must not alias stored bytes")

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Put(context.Background(), "k", nil), ErrClosed)
	_, _, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewMemoryStore().Put(ctx, "k", []byte("v")), context.Canceled)
	assert.ErrorIs(t, NewMemoryStore().Update(ctx, "k", increment), context.Canceled)
}

func TestMemoryStoreConcurrentUpdates(t *testing.T) {
	s := NewMemoryStore()
	hammer(t, []Store{s}, 50)
	v, _, err := s.Get(context.Background(), "hits")
	require.NoError(t, err)
	assert.Equal(t, "50", string(v))
}

func TestSQLiteStoreSharedFileUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer b.Close()

	hammer(t, []Store{a, b}, 40)

	v, ok, err := b.Get(context.Background(), "hits")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "40", string(v), "no increment may be lost between handles")
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fintrack.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	// Reopening runs migrations again and keeps data.
	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Get(context.Background(), "transactions")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"a"}]`, string(v))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	s, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	defer s.Close()

	// Start from a known state; the table may hold data from earlier runs.
	_, err = s.db.Exec(`DELETE FROM kv WHERE key IN ('transactions', 'counter')`)
	require.NoError(t, err)
	exerciseStore(t, s)
}
