// Package services holds the long-lived application services the HTTP layer
// and the binaries share.
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/scrypster/osintgraph/internal/attribution"
	"github.com/scrypster/osintgraph/internal/engine"
	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/pkg/types"
)

// ErrNoStore is returned by snapshot operations on a session without a store.
var ErrNoStore = errors.New("no snapshot store configured")

// Event types emitted by SessionService.
const (
	EventCorrelationCompleted = "correlation.completed"
	EventSessionRestored      = "session.restored"
	EventSessionReset         = "session.reset"
	EventSnapshotSaved        = "snapshot.saved"
)

// Event describes a change of the session state.
type Event struct {
	Type              string    `json:"type"`
	Timestamp         time.Time `json:"timestamp"`
	Snapshot          string    `json:"snapshot,omitempty"`
	Entities          int       `json:"entities"`
	Relationships     int       `json:"relationships"`
	Clusters          int       `json:"clusters"`
	ConfidenceAverage float64   `json:"confidence_average"`
	Summary           string    `json:"summary,omitempty"`
}

// SessionService guards one correlation engine for concurrent use: ingestion,
// restore and reset are serialized, queries run concurrently. It also
// implements the backup source and target interfaces.
type SessionService struct {
	mu      sync.RWMutex
	engine  *engine.CorrelationEngine
	store   storage.SnapshotStore
	onEvent func(Event)
}

// NewSessionService wraps eng. store may be nil, in which case the snapshot
// operations return ErrNoStore.
func NewSessionService(eng *engine.CorrelationEngine, store storage.SnapshotStore) *SessionService {
	s := &SessionService{engine: eng, store: store}
	eng.SetOnCorrelationComplete(func(result *types.CorrelationResult) {
		s.emit(EventCorrelationCompleted, "", result)
	})
	return s
}

// SetOnEvent registers the event listener. It is called with the session
// lock held and must not block.
func (s *SessionService) SetOnEvent(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvent = fn
}

func (s *SessionService) emit(eventType, snapshot string, result *types.CorrelationResult) {
	if s.onEvent == nil {
		return
	}
	ev := Event{Type: eventType, Timestamp: time.Now().UTC(), Snapshot: snapshot}
	if result != nil {
		ev.Entities = len(result.Entities)
		ev.Relationships = len(result.Relationships)
		ev.Clusters = len(result.Clusters)
		ev.ConfidenceAverage = result.ConfidenceAverage
		ev.Summary = result.Summary
	}
	s.onEvent(ev)
}

// ProcessFindings ingests a batch of findings.
func (s *SessionService) ProcessFindings(findings []types.Finding) *types.CorrelationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ProcessFindings(findings)
}

// Result returns the current correlation result.
func (s *SessionService) Result() *types.CorrelationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Result()
}

// Entities returns copies of all entities in first-seen order.
func (s *SessionService) Entities() []*types.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Entities()
}

// Entity returns a copy of one entity.
func (s *SessionService) Entity(id string) (*types.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Entity(id)
}

// Relationships returns the relationships passing filter.
func (s *SessionService) Relationships(filter engine.RelationshipFilter) []*types.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.GetRelationships(filter)
}

// Clusters returns the current clusters.
func (s *SessionService) Clusters() []types.EntityCluster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Clusters()
}

// GraphExport returns the node-link document of the graph.
func (s *SessionService) GraphExport() engine.GraphExport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Graph().Export()
}

// GraphStatistics summarises the graph.
func (s *SessionService) GraphStatistics() engine.GraphStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Graph().Statistics()
}

// CentralEntities ranks entities by degree.
func (s *SessionService) CentralEntities(topN int) []engine.Centrality {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Graph().CentralEntities(topN)
}

// Bridges returns copies of the graph's bridge relationships.
func (s *SessionService) Bridges() []*types.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bridges := s.engine.Graph().Bridges()
	out := make([]*types.Relationship, 0, len(bridges))
	for _, r := range bridges {
		out = append(out, r.Clone())
	}
	return out
}

// ShortestPath finds the fewest-hop path between two entities.
func (s *SessionService) ShortestPath(from, to string) (engine.PathResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Graph().ShortestPath(from, to)
}

// Snapshot captures the session.
func (s *SessionService) Snapshot() *storage.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Snapshot()
}

// Restore replaces the session with snap. On error the session is unchanged.
func (s *SessionService) Restore(snap *storage.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.Restore(snap); err != nil {
		return err
	}
	s.emit(EventSessionRestored, "", s.engine.Result())
	return nil
}

// Reset drops all state.
func (s *SessionService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Reset()
	s.emit(EventSessionReset, "", s.engine.Result())
	log.Println("session: state reset")
}

// SaveSnapshot stores the session under name. The state is captured under
// the read lock; the store is written after it is released.
func (s *SessionService) SaveSnapshot(ctx context.Context, name string) (storage.SnapshotInfo, error) {
	if s.store == nil {
		return storage.SnapshotInfo{}, ErrNoStore
	}
	snap := s.Snapshot()
	snap.SavedBy = attribution.DetectAnalyst()
	if err := s.store.Save(ctx, name, snap); err != nil {
		return storage.SnapshotInfo{}, fmt.Errorf("session: save snapshot %s: %w", name, err)
	}

	s.mu.RLock()
	if s.onEvent != nil {
		s.onEvent(Event{
			Type:          EventSnapshotSaved,
			Timestamp:     time.Now().UTC(),
			Snapshot:      name,
			Entities:      len(snap.Entities),
			Relationships: len(snap.Relationships),
			Clusters:      len(snap.Clusters),
		})
	}
	s.mu.RUnlock()

	log.Printf("session: saved snapshot %s (%d entities, %d relationships)", name, len(snap.Entities), len(snap.Relationships))
	var size int64
	if data, err := storage.EncodeSnapshot(snap); err == nil {
		size = int64(len(data))
	}
	return snap.Info(name, size), nil
}

// LoadSnapshot replaces the session with the snapshot stored under name.
func (s *SessionService) LoadSnapshot(ctx context.Context, name string) error {
	if s.store == nil {
		return ErrNoStore
	}
	snap, err := s.store.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("session: load snapshot %s: %w", name, err)
	}
	if err := s.Restore(snap); err != nil {
		return err
	}
	log.Printf("session: restored snapshot %s (%d entities, %d relationships)", name, len(snap.Entities), len(snap.Relationships))
	return nil
}

// ListSnapshots describes the stored snapshots, newest first.
func (s *SessionService) ListSnapshots(ctx context.Context) ([]storage.SnapshotInfo, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.List(ctx)
}

// DeleteSnapshot removes a stored snapshot.
func (s *SessionService) DeleteSnapshot(ctx context.Context, name string) error {
	if s.store == nil {
		return ErrNoStore
	}
	return s.store.Delete(ctx, name)
}
