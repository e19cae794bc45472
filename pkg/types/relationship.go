package types

import "time"

// Relationship is a scored, evidenced link between two entities.
// EntityA and EntityB form an unordered pair; everything that creates a
// relationship stores them in canonical order (EntityA < EntityB).
type Relationship struct {
	ID      string           `json:"id"`       // Deterministic identifier (format: rel:uuid)
	EntityA string           `json:"entity_a"` // Lower entity id of the pair
	EntityB string           `json:"entity_b"` // Higher entity id of the pair
	Kind    RelationshipKind `json:"kind"`

	// Confidence is the belief strength in [0, 100].
	Confidence float64 `json:"confidence"`

	// Evidence holds human-readable justifications, in discovery order.
	Evidence []string `json:"evidence"`

	// Metadata holds algorithm-specific detail (match type, ratios, ...).
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PairKey returns the canonical key of the unordered entity pair.
func (r *Relationship) PairKey() string {
	return PairKey(r.EntityA, r.EntityB)
}

// Involves reports whether entityID is one of the endpoints.
func (r *Relationship) Involves(entityID string) bool {
	return r.EntityA == entityID || r.EntityB == entityID
}

// Other returns the opposite endpoint of entityID.
func (r *Relationship) Other(entityID string) string {
	if r.EntityA == entityID {
		return r.EntityB
	}
	return r.EntityA
}

// Canonicalize swaps the endpoints into canonical order.
func (r *Relationship) Canonicalize() {
	if r.EntityA > r.EntityB {
		r.EntityA, r.EntityB = r.EntityB, r.EntityA
	}
}

// Clone returns a copy that shares no mutable state with r.
func (r *Relationship) Clone() *Relationship {
	if r == nil {
		return nil
	}
	out := *r
	out.Evidence = append([]string(nil), r.Evidence...)
	if r.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// PairKey returns an order-independent key for two entity ids.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// CanonicalPair orders two entity ids.
func CanonicalPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}
