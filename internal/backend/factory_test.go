package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendbook/internal/config"
	"spendbook/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: "x.db",
		DataDir:      "d",
		StorageKey:   "k",
	})
	require.NoError(t, err)
	assert.Equal(t, Config{Type: SQLiteBackend, StorageKey: "k", DataDirectory: "d", SQLiteDBPath: "x.db"}, cfg)
}

func TestCreateBackend(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		config  Config
		want    any
		wantErr bool
	}{
		{"file", Config{Type: FileBackend, DataDirectory: dir}, &storage.FileStore{}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "s.db")}, &storage.SQLiteStore{}, false},
		{"memory", Config{Type: MemoryBackend}, &storage.MemoryStore{}, false},
		{"file without dir", Config{Type: FileBackend}, nil, true},
		{"unknown", Config{Type: "sheets"}, nil, true},
	}

	f := NewFactory(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.CreateBackend(context.Background(), tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer res.Close()
			assert.IsType(t, tt.want, res.Persister)

			_, err = res.Persister.Load(context.Background())
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"file", "sqlite", "memory"}, GetBackendTypeStrings())
	var nilResult *BackendResult
	assert.NoError(t, nilResult.Close())
}
