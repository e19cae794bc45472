package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scrypster/osintgraph/pkg/types"
)

// SnapshotVersion is the current document schema version.
const SnapshotVersion = 1

// Snapshot is the full persisted state of one correlation session.
type Snapshot struct {
	Version       int                   `json:"version"`
	SavedAt       time.Time             `json:"saved_at"`
	SavedBy       string                `json:"saved_by,omitempty"` // Analyst who saved the document
	Entities      []*types.Entity       `json:"entities"`
	Relationships []*types.Relationship `json:"relationships"`
	Clusters      []types.EntityCluster `json:"clusters"`
}

// NewSnapshot builds a document from engine state. Slices are copied, the
// entities and relationships themselves are shared. Entity order is kept:
// it is the first-seen order the engine breaks ties with.
func NewSnapshot(entities []*types.Entity, relationships []*types.Relationship, clusters []types.EntityCluster, savedAt time.Time) *Snapshot {
	snap := &Snapshot{
		Version:       SnapshotVersion,
		SavedAt:       savedAt.UTC(),
		Entities:      append([]*types.Entity{}, entities...),
		Relationships: append([]*types.Relationship{}, relationships...),
		Clusters:      append([]types.EntityCluster{}, clusters...),
	}
	return snap
}

// Validate checks the document invariants: supported version, valid and
// unique entities, valid relationships between known entities, and at most
// one relationship per unordered pair.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: snapshot is nil", ErrCorruptSnapshot)
	}
	if s.Version < 1 || s.Version > SnapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version %d", ErrCorruptSnapshot, s.Version)
	}

	ids := make(map[string]struct{}, len(s.Entities))
	for _, e := range s.Entities {
		if err := types.ValidateEntity(e); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		if _, dup := ids[e.ID]; dup {
			return fmt.Errorf("%w: duplicate entity %s", ErrCorruptSnapshot, e.ID)
		}
		ids[e.ID] = struct{}{}
	}

	pairs := make(map[string]struct{}, len(s.Relationships))
	for _, r := range s.Relationships {
		if err := types.ValidateRelationship(r); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		for _, endpoint := range []string{r.EntityA, r.EntityB} {
			if _, ok := ids[endpoint]; !ok {
				return fmt.Errorf("%w: relationship %s references unknown entity %s", ErrCorruptSnapshot, r.ID, endpoint)
			}
		}
		key := r.PairKey()
		if _, dup := pairs[key]; dup {
			return fmt.Errorf("%w: duplicate relationship for pair %s", ErrCorruptSnapshot, key)
		}
		pairs[key] = struct{}{}
	}
	return nil
}

// Info summarizes the document under the given name.
func (s *Snapshot) Info(name string, size int64) SnapshotInfo {
	return SnapshotInfo{
		Name:          name,
		SavedAt:       s.SavedAt,
		SizeBytes:     size,
		Entities:      len(s.Entities),
		Relationships: len(s.Relationships),
	}
}

// EncodeSnapshot validates and serializes a document.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses and validates a document. Every failure wraps
// ErrCorruptSnapshot; a corrupt document is never repaired with defaults.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Entities == nil {
		snap.Entities = []*types.Entity{}
	}
	if snap.Relationships == nil {
		snap.Relationships = []*types.Relationship{}
	}
	if snap.Clusters == nil {
		snap.Clusters = []types.EntityCluster{}
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}
