package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/osintgraph/internal/backup"
	"github.com/scrypster/osintgraph/internal/config"
	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/internal/storage/sqlite"
	"github.com/scrypster/osintgraph/internal/storage/storagetest"
)

func newTestState(t *testing.T) (*storeState, storage.SnapshotStore) {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "osintgraph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	state, err := newStoreState(store, "current", config.DefaultCorrelationConfig())
	require.NoError(t, err)
	return state, store
}

func newTestService(t *testing.T, state *storeState) *backup.BackupService {
	t.Helper()
	service, err := backup.NewServiceFromConfig(config.BackupConfig{
		BackupInterval: "1h",
		BackupPath:     t.TempDir(),
		BackupVerify:   true,
	}, state)
	require.NoError(t, err)
	return service
}

func TestStoreState_MissingSnapshotIsEmpty(t *testing.T) {
	state, _ := newTestState(t)

	snap := state.Snapshot()
	require.NotNil(t, snap)
	assert.Empty(t, snap.Entities)
	assert.NoError(t, snap.Validate())
}

func TestOneshotAndList(t *testing.T) {
	state, store := newTestState(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "current", storagetest.SampleSnapshot(time.Now())))

	service := newTestService(t, state)
	require.NoError(t, handleOneshot(ctx, service))

	backups, err := service.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)

	var out bytes.Buffer
	require.NoError(t, handleList(service, &out))
	assert.Contains(t, out.String(), "Found 1 backup(s)")
	assert.Contains(t, out.String(), backups[0].Path)
}

func TestHealth(t *testing.T) {
	state, _ := newTestState(t)
	service := newTestService(t, state)

	var out bytes.Buffer
	require.NoError(t, handleHealth(service, &out))
	assert.Contains(t, out.String(), "Last Backup: Never")

	var empty bytes.Buffer
	require.NoError(t, handleList(service, &empty))
	assert.Contains(t, empty.String(), "No backups found")
}

func TestRestoreIntoStore(t *testing.T) {
	state, store := newTestState(t)
	ctx := context.Background()
	sample := storagetest.SampleSnapshot(time.Now())
	require.NoError(t, store.Save(ctx, "current", sample))

	service := newTestService(t, state)
	result, err := service.BackupNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(sample.Entities), result.Entities)

	require.NoError(t, store.Delete(ctx, "current"))
	require.NoError(t, handleRestore(ctx, service, state, result.Path))

	restored, err := store.Load(ctx, "current")
	require.NoError(t, err)
	require.Len(t, restored.Entities, len(sample.Entities))
	assert.Equal(t, sample.Entities[0].ID, restored.Entities[0].ID)

	err = handleRestore(ctx, service, state, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestHealth_Unhealthy(t *testing.T) {
	state, _ := newTestState(t)
	now := time.Now()
	service, err := backup.NewBackupService(backup.BackupConfig{
		Source:    state,
		BackupDir: t.TempDir(),
		Interval:  time.Minute,
		Clock:     func() time.Time { return now },
	})
	require.NoError(t, err)

	_, err = service.BackupNow(context.Background())
	require.NoError(t, err)

	now = now.Add(time.Hour)
	err = handleHealth(service, &bytes.Buffer{})
	assert.True(t, errors.Is(err, errUnhealthy))
}
