package types

// EntityCluster is a connected group of entities whose internal relationships
// all meet a confidence floor; it is believed to describe one real subject.
type EntityCluster struct {
	ID             string   `json:"id"`             // cluster:<representative id>
	Entities       []string `json:"entities"`       // Member ids in first-seen order (len >= 2)
	Representative string   `json:"representative"` // Member with the highest in-cluster degree
	Confidence     float64  `json:"confidence"`     // Aggregate cluster score in [0, 100]

	// Relationships are the ids of the in-cluster edges above the floor.
	Relationships []string `json:"relationships,omitempty"`
}

// Contains reports whether entityID is a member of the cluster.
func (c *EntityCluster) Contains(entityID string) bool {
	for _, id := range c.Entities {
		if id == entityID {
			return true
		}
	}
	return false
}

// CorrelationResult is the output of one correlation pass.
type CorrelationResult struct {
	Entities          []*Entity       `json:"entities"`
	Relationships     []*Relationship `json:"relationships"`
	Clusters          []EntityCluster `json:"clusters"`
	ConfidenceAverage float64         `json:"confidence_average"`
	Summary           string          `json:"summary"`
}

// EmptyResult returns a result with non-nil empty slices so that it
// serializes as [] rather than null.
func EmptyResult() *CorrelationResult {
	return &CorrelationResult{
		Entities:      []*Entity{},
		Relationships: []*Relationship{},
		Clusters:      []EntityCluster{},
	}
}
