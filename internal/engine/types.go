// Package engine turns OSINT findings into a scored entity graph: it
// extracts entities, runs the correlation algorithms, scores and
// deduplicates their proposals, maintains the relationship graph and
// clusters the result.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/osintgraph/internal/config"
	"github.com/scrypster/osintgraph/pkg/types"
)

var (
	// ErrUnknownEntity is returned when a relationship references an entity
	// the graph does not hold.
	ErrUnknownEntity = errors.New("unknown entity")
)

// Config holds configuration for the correlation engine.
type Config struct {
	// Correlation tunes the algorithms, the scorer and clustering.
	Correlation config.CorrelationConfig

	// Clock stamps entity and relationship creation times (default: time.Now).
	Clock func() time.Time
}

// DefaultConfig returns a Config with the stock correlation tuning.
func DefaultConfig() Config {
	return Config{
		Correlation: config.DefaultCorrelationConfig(),
		Clock:       time.Now,
	}
}

// Validate checks the correlation tuning.
func (c Config) Validate() error {
	if err := c.Correlation.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// Neighbor is one adjacent entity and the edge that links to it.
type Neighbor struct {
	EntityID     string
	Relationship *types.Relationship
}

// GraphStatistics summarises the relationship graph.
type GraphStatistics struct {
	Nodes         int     `json:"nodes"`
	Edges         int     `json:"edges"`
	Components    int     `json:"components"`
	AverageDegree float64 `json:"average_degree"`
	Density       float64 `json:"density"`
	MinConfidence float64 `json:"min_confidence"`
	MaxConfidence float64 `json:"max_confidence"`
}

// Centrality is the degree centrality of one entity.
type Centrality struct {
	EntityID string  `json:"entity_id"`
	Degree   int     `json:"degree"`
	Score    float64 `json:"score"` // degree / (nodes - 1)
}

// PathResult represents a path between two entities in the graph.
type PathResult struct {
	// Path is the sequence of entity IDs from source to target.
	Path []string `json:"path"`

	// Distance is the number of hops in the path (len(Path) - 1).
	Distance int `json:"distance"`

	// Confidence is the weakest edge confidence along the path. A path to
	// the entity itself scores 100.
	Confidence float64 `json:"confidence"`
}

// ExportNode is a node of the node-link export.
type ExportNode struct {
	ID         string           `json:"id"`
	Kind       types.EntityKind `json:"kind"`
	Name       string           `json:"name"`
	Attributes types.Attributes `json:"attributes,omitempty"`
	Sources    []string         `json:"sources,omitempty"`
}

// ExportEdge is an edge of the node-link export.
type ExportEdge struct {
	ID         string                 `json:"id"`
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Kind       types.RelationshipKind `json:"kind"`
	Confidence float64                `json:"confidence"`
	Evidence   []string               `json:"evidence"`
}

// GraphExport is a generic node-link document that graph writers
// (GraphML, GEXF, d3 JSON) can consume.
type GraphExport struct {
	Nodes []ExportNode `json:"nodes"`
	Edges []ExportEdge `json:"edges"`
}

// RelationshipFilter selects relationships in GetRelationships. Zero values
// match everything.
type RelationshipFilter struct {
	EntityID      string
	Kind          types.RelationshipKind
	MinConfidence float64
}

// Matches reports whether r passes the filter.
func (f RelationshipFilter) Matches(r *types.Relationship) bool {
	if f.EntityID != "" && !r.Involves(f.EntityID) {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	return r.Confidence >= f.MinConfidence
}
