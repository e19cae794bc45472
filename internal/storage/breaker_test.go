package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/internal/storage/storagetest"
)

// flakyStore fails every call with err until err is cleared.
type flakyStore struct {
	err   error
	calls int
	snap  *storage.Snapshot
}

func (f *flakyStore) Save(ctx context.Context, name string, snap *storage.Snapshot) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.snap = snap
	return nil
}

func (f *flakyStore) Load(ctx context.Context, name string) (*storage.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.snap == nil {
		return nil, storage.ErrNotFound
	}
	return f.snap, nil
}

func (f *flakyStore) List(ctx context.Context) ([]storage.SnapshotInfo, error) {
	f.calls++
	return []storage.SnapshotInfo{}, f.err
}

func (f *flakyStore) Delete(ctx context.Context, name string) error {
	f.calls++
	return f.err
}

func (f *flakyStore) Close() error { return nil }

func testBreakerConfig() storage.BreakerConfig {
	return storage.BreakerConfig{MaxFailures: 2, Timeout: 50 * time.Millisecond, HalfOpenMaxSuccesses: 1}
}

func TestBreakerStore_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyStore{err: errors.New("connection refused")}
	store := storage.NewBreakerStore("test", inner, testBreakerConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.List(ctx)
		require.Error(t, err)
		assert.False(t, errors.Is(err, storage.ErrUnavailable))
	}
	assert.Equal(t, "open", store.State())

	_, err := store.Load(ctx, "any")
	assert.True(t, errors.Is(err, storage.ErrUnavailable), "got %v", err)
	assert.Equal(t, 2, inner.calls, "open circuit must not reach the backend")
}

func TestBreakerStore_RecoversAfterTimeout(t *testing.T) {
	inner := &flakyStore{err: errors.New("timeout")}
	store := storage.NewBreakerStore("test", inner, testBreakerConfig())
	ctx := context.Background()

	_ = store.Delete(ctx, "a")
	_ = store.Delete(ctx, "a")
	require.Equal(t, "open", store.State())

	inner.err = nil
	time.Sleep(80 * time.Millisecond)

	require.NoError(t, store.Save(ctx, "a", storagetest.SampleSnapshot(time.Now())))
	assert.Equal(t, "closed", store.State())

	loaded, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, loaded.Entities, 2)
}

func TestBreakerStore_CallerErrorsDoNotTrip(t *testing.T) {
	inner := &flakyStore{}
	store := storage.NewBreakerStore("test", inner, testBreakerConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Load(ctx, "missing")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	}
	assert.Equal(t, "closed", store.State())
}

func TestBreakerStore_CancelledContext(t *testing.T) {
	inner := &flakyStore{}
	store := storage.NewBreakerStore("test", inner, testBreakerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, inner.calls)
}
