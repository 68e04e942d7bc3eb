package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	applog "fintrack/internal/log"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "SQLite", SQLiteDBPath: "data/x.db"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "data/x.db", cfg.SQLiteDBPath)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)
	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres", Config{Type: PostgresBackend, PostgresDSN: "host=db"}, false},
		{"postgres without dsn", Config{Type: PostgresBackend, PostgresDSN: " "}, true},
		{"unknown", Config{Type: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"memory", "sqlite", "postgres"}, GetBackendTypeStrings())
}

func TestCreateMemoryBackend(t *testing.T) {
	f := NewFactory(applog.Discard())
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, res.Store.Put(ctx, "transactions", []byte("[]")))
	got, ok, err := res.Store.Get(ctx, "transactions")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", string(got))

	require.NoError(t, res.Cleanup())
	assert.Error(t, res.Store.Ping(ctx))
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fintrack.db")
	f := NewFactory(applog.Discard())
	ctx := context.Background()

	res, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	require.NoError(t, res.Store.Put(ctx, "transactions", []byte(`[{"id":"1"}]`)))
	require.NoError(t, res.Cleanup())

	reopened, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	defer reopened.Cleanup()
	got, ok, err := reopened.Store.Get(ctx, "transactions")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"1"}]`, string(got))
}

func TestCreateRejectsInvalidConfig(t *testing.T) {
	f := NewFactory(nil)
	_, err := f.CreateBackend(context.Background(), Config{Type: PostgresBackend})
	assert.Error(t, err)
}
