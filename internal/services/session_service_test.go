package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/osintgraph/internal/engine"
	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/internal/storage/file"
	"github.com/scrypster/osintgraph/pkg/types"
)

const (
	twitterJohn = "ent:account:twitter:john_doe"
	githubJohn  = "ent:account:github:johndoe"
)

func johnDoe() []types.Finding {
	return []types.Finding{
		{Username: "john_doe", PlatformName: "twitter", Status: types.FindingFound,
			Metadata: map[string]interface{}{"email": "john.doe@example.com"}},
		{Username: "johndoe", PlatformName: "github", Status: types.FindingFound,
			Metadata: map[string]interface{}{"email": "john.doe@example.com"}},
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestSession(t *testing.T, withStore bool) (*SessionService, *eventLog) {
	t.Helper()
	eng, err := engine.NewCorrelationEngine(engine.DefaultConfig())
	require.NoError(t, err)

	var store storage.SnapshotStore
	if withStore {
		fs, err := file.NewStore(t.TempDir())
		require.NoError(t, err)
		store = fs
	}
	s := NewSessionService(eng, store)
	events := &eventLog{}
	s.SetOnEvent(events.record)
	return s, events
}

func TestSessionService_ProcessAndQuery(t *testing.T) {
	s, events := newTestSession(t, false)

	result := s.ProcessFindings(johnDoe())
	require.Len(t, result.Relationships, 3)
	assert.Len(t, s.Entities(), 3)

	_, ok := s.Entity(twitterJohn)
	assert.True(t, ok)
	assert.Len(t, s.Relationships(engine.RelationshipFilter{EntityID: githubJohn}), 2)
	assert.Empty(t, s.Relationships(engine.RelationshipFilter{Kind: types.RelSuspicious}))
	require.Len(t, s.Clusters(), 1)
	assert.Equal(t, result.Summary, s.Result().Summary)

	export := s.GraphExport()
	assert.Len(t, export.Nodes, 3)
	assert.Len(t, export.Edges, 3)
	assert.Equal(t, 3, s.GraphStatistics().Edges)
	assert.Len(t, s.CentralEntities(1), 1)
	assert.Empty(t, s.Bridges())

	path, ok := s.ShortestPath(twitterJohn, githubJohn)
	require.True(t, ok)
	assert.Equal(t, 1, path.Distance)

	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, EventCorrelationCompleted, ev.Type)
	assert.Equal(t, 3, ev.Entities)
	assert.Equal(t, 3, ev.Relationships)
	assert.Equal(t, 1, ev.Clusters)
}

func TestSessionService_Reset(t *testing.T) {
	s, events := newTestSession(t, false)
	s.ProcessFindings(johnDoe())
	s.Reset()

	assert.Empty(t, s.Entities())
	assert.Equal(t, []string{EventCorrelationCompleted, EventSessionReset}, events.types())
}

func TestSessionService_Snapshots(t *testing.T) {
	s, events := newTestSession(t, true)
	ctx := context.Background()
	s.ProcessFindings(johnDoe())

	info, err := s.SaveSnapshot(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, "case-1", info.Name)
	assert.Equal(t, 3, info.Entities)
	assert.Greater(t, info.SizeBytes, int64(0))

	doc, err := s.store.Load(ctx, "case-1")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.SavedBy, "saved snapshots name the analyst")

	list, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	s.Reset()
	require.NoError(t, s.LoadSnapshot(ctx, "case-1"))
	assert.Len(t, s.Entities(), 3)
	assert.Len(t, s.Clusters(), 1)

	err = s.LoadSnapshot(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.Len(t, s.Entities(), 3, "failed load leaves state")

	require.NoError(t, s.DeleteSnapshot(ctx, "case-1"))
	assert.True(t, errors.Is(s.DeleteSnapshot(ctx, "case-1"), storage.ErrNotFound))

	_, err = s.SaveSnapshot(ctx, "../escape")
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))

	assert.Equal(t, []string{
		EventCorrelationCompleted,
		EventSnapshotSaved,
		EventSessionReset,
		EventSessionRestored,
	}, events.types())
}

func TestSessionService_NoStore(t *testing.T) {
	s, _ := newTestSession(t, false)
	ctx := context.Background()

	_, err := s.SaveSnapshot(ctx, "x")
	assert.True(t, errors.Is(err, ErrNoStore))
	assert.True(t, errors.Is(s.LoadSnapshot(ctx, "x"), ErrNoStore))
	_, err = s.ListSnapshots(ctx)
	assert.True(t, errors.Is(err, ErrNoStore))
	assert.True(t, errors.Is(s.DeleteSnapshot(ctx, "x"), ErrNoStore))
}

func TestSessionService_RestoreRejectsInvalid(t *testing.T) {
	s, events := newTestSession(t, false)
	s.ProcessFindings(johnDoe())

	bad := s.Snapshot()
	bad.Version = 42
	require.Error(t, s.Restore(bad))
	assert.Len(t, s.Entities(), 3)
	assert.Equal(t, []string{EventCorrelationCompleted}, events.types())
}

func TestSessionService_ConcurrentAccess(t *testing.T) {
	s, _ := newTestSession(t, false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.ProcessFindings(johnDoe())
		}()
		go func() {
			defer wg.Done()
			_ = s.Result()
			_ = s.GraphStatistics()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	assert.Len(t, s.Entities(), 3)
	assert.Len(t, s.Relationships(engine.RelationshipFilter{}), 3)
}
