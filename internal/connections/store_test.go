package connections

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/osintgraph/internal/config"
	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/internal/storage/file"
	"github.com/scrypster/osintgraph/internal/storage/sqlite"
	"github.com/scrypster/osintgraph/internal/storage/storagetest"
)

func TestSanitizeDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"url", "postgres://user:secret@db:5432/osint", "postgres://user:%5BREDACTED%5D@db:5432/osint"},
		{"url without password", "postgres://user@db/osint", "postgres://user@db/osint"},
		{"key value", "host=db user=x password=secret dbname=osint", "host=db user=x password=[REDACTED] dbname=osint"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeDSN(tt.dsn)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "secret")
		})
	}
}

func TestOpen_File(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(context.Background(), config.StorageConfig{StorageEngine: "file", DataPath: dir})
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*file.Store)
	require.True(t, ok)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "current", storagetest.SampleSnapshot(time.Now())))
	assert.FileExists(t, filepath.Join(dir, "snapshots", "current.json"))
}

func TestOpen_DefaultsToFile(t *testing.T) {
	store, err := Open(context.Background(), config.StorageConfig{DataPath: t.TempDir()})
	require.NoError(t, err)
	defer store.Close()
	_, ok := store.(*file.Store)
	assert.True(t, ok)
}

func TestOpen_SQLite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	store, err := Open(context.Background(), config.StorageConfig{StorageEngine: "SQLite", DataPath: dir})
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*sqlite.Store)
	require.True(t, ok)
	_, err = os.Stat(filepath.Join(dir, sqliteFileName))
	assert.NoError(t, err)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{StorageEngine: "postgres"})
	assert.True(t, errors.Is(err, storage.ErrInvalidInput), "dsn required")

	_, err = Open(context.Background(), config.StorageConfig{StorageEngine: "mongodb", DataPath: t.TempDir()})
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))
}
