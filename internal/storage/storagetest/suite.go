// Package storagetest holds the behavioural test suite every
// storage.SnapshotStore backend must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/pkg/types"
)

// SampleSnapshot returns a small valid document: two accounts linked by one
// relationship and forming one cluster.
func SampleSnapshot(savedAt time.Time) *storage.Snapshot {
	a := &types.Entity{
		ID:         "ent:account:github:johndoe",
		Kind:       types.EntityAccount,
		Name:       "johndoe",
		Attributes: types.Attributes{"email": types.StringValue("john.doe@example.com")},
		Sources:    []string{"github"},
		CreatedAt:  savedAt.Add(-time.Hour).UTC(),
	}
	b := &types.Entity{
		ID:   "ent:account:twitter:john_doe",
		Kind: types.EntityAccount,
		Name: "john_doe",
		Attributes: types.Attributes{
			"email":          types.StringValue("john.doe@example.com"),
			"activity_times": types.TimesValue([]time.Time{savedAt.Add(-2 * time.Hour).UTC()}),
		},
		Sources:   []string{"twitter"},
		CreatedAt: savedAt.Add(-time.Hour).UTC(),
	}
	rel := &types.Relationship{
		ID:         "rel:sample",
		EntityA:    a.ID,
		EntityB:    b.ID,
		Kind:       types.RelSamePerson,
		Confidence: 100,
		Evidence:   []string{"Exact email match"},
		Metadata:   map[string]interface{}{"algorithm": "email"},
		CreatedAt:  savedAt.UTC(),
	}
	cluster := types.EntityCluster{
		ID:             "cluster:" + a.ID,
		Entities:       []string{a.ID, b.ID},
		Representative: a.ID,
		Confidence:     10,
		Relationships:  []string{rel.ID},
	}
	return storage.NewSnapshot([]*types.Entity{a, b}, []*types.Relationship{rel}, []types.EntityCluster{cluster}, savedAt)
}

// Run exercises a backend. newStore must return an empty store; the suite
// closes it.
func Run(t *testing.T, newStore func(t *testing.T) storage.SnapshotStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("save and load round trip", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		savedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.Save(ctx, "case-1", SampleSnapshot(savedAt)))

		loaded, err := store.Load(ctx, "case-1")
		require.NoError(t, err)
		assert.Equal(t, storage.SnapshotVersion, loaded.Version)
		assert.True(t, loaded.SavedAt.Equal(savedAt))
		require.Len(t, loaded.Entities, 2)
		require.Len(t, loaded.Relationships, 1)
		require.Len(t, loaded.Clusters, 1)

		email, ok := loaded.Entities[0].StringAttr("email")
		assert.True(t, ok)
		assert.Equal(t, "john.doe@example.com", email)

		times, ok := loaded.Entities[1].TimesAttr("activity_times")
		assert.True(t, ok)
		assert.Len(t, times, 1)

		assert.Equal(t, types.RelSamePerson, loaded.Relationships[0].Kind)
		assert.Equal(t, []string{"Exact email match"}, loaded.Relationships[0].Evidence)
	})

	t.Run("save replaces existing snapshot", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		first := SampleSnapshot(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
		require.NoError(t, store.Save(ctx, "case", first))

		second := storage.NewSnapshot(first.Entities, nil, nil, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
		require.NoError(t, store.Save(ctx, "case", second))

		loaded, err := store.Load(ctx, "case")
		require.NoError(t, err)
		assert.Empty(t, loaded.Relationships)

		infos, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, 2, infos[0].Entities)
		assert.Equal(t, 0, infos[0].Relationships)
	})

	t.Run("list newest first", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, store.Save(ctx, "older", SampleSnapshot(base)))
		require.NoError(t, store.Save(ctx, "newer", SampleSnapshot(base.Add(48*time.Hour))))

		infos, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "newer", infos[0].Name)
		assert.Equal(t, "older", infos[1].Name)
		assert.Greater(t, infos[0].SizeBytes, int64(0))
		assert.Equal(t, 1, infos[0].Relationships)
	})

	t.Run("empty store lists nothing", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		infos, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run("missing snapshot", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		_, err := store.Load(ctx, "absent")
		assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
		assert.True(t, errors.Is(store.Delete(ctx, "absent"), storage.ErrNotFound))
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.Save(ctx, "gone", SampleSnapshot(time.Now())))
		require.NoError(t, store.Delete(ctx, "gone"))
		_, err := store.Load(ctx, "gone")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("invalid input", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		for _, name := range []string{"", "../escape", ".hidden", "has space"} {
			err := store.Save(ctx, name, SampleSnapshot(time.Now()))
			assert.True(t, errors.Is(err, storage.ErrInvalidInput), "name %q: got %v", name, err)
		}

		broken := SampleSnapshot(time.Now())
		broken.Relationships[0].EntityB = "ent:account:nowhere:nobody"
		err := store.Save(ctx, "broken", broken)
		assert.True(t, errors.Is(err, storage.ErrInvalidInput), "got %v", err)
	})
}
