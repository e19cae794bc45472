// Package correlation implements the independent correlation algorithms
// that propose relationships between discovered entities.
//
// Every algorithm is a pure function of the entity set: it never mutates its
// input, never fails on missing or malformed attributes (the comparison is
// simply skipped) and returns its proposals in a deterministic order. Pairs
// are always visited in canonical id order, so swapping the ingestion order
// of two entities cannot change what is proposed for them.
package correlation

import (
	"sort"

	"github.com/google/uuid"
	"github.com/scrypster/osintgraph/internal/config"
	"github.com/scrypster/osintgraph/pkg/types"
)

// Algorithm proposes candidate relationships over an entity set.
type Algorithm interface {
	// Name identifies the algorithm in relationship metadata and logs.
	Name() string

	// Correlate returns proposals for the given entities. Implementations
	// must not mutate the entities.
	Correlate(entities []*types.Entity) []*types.Relationship
}

// Algorithm names, in the fixed execution order used for tie-breaking.
const (
	NameUsername = "username"
	NameEmail    = "email"
	NameMetadata = "metadata"
	NameNetwork  = "network"
	NameTemporal = "temporal"
)

// relationshipNamespace seeds deterministic relationship ids.
var relationshipNamespace = uuid.MustParse("6f1c2a7e-3b8d-5e4f-9a10-0c2d4e6f8a1b")

// All returns the five algorithms in execution order, tuned by cfg.
func All(cfg config.CorrelationConfig) []Algorithm {
	return []Algorithm{
		NewUsernameAlgorithm(cfg.FuzzyThreshold),
		NewEmailAlgorithm(),
		NewMetadataAlgorithm(cfg.BioOverlapThreshold),
		NewNetworkAlgorithm(cfg.DomainSimilarityThreshold),
		NewTemporalAlgorithm(cfg.CreationWindow, cfg.ActivityWindow, cfg.ActivityOverlapThreshold),
	}
}

// RelationshipID derives the id of a proposal from the algorithm, the
// canonical pair and the kind. Re-running an algorithm over the same
// entities therefore reproduces the same ids.
func RelationshipID(algorithm, entityA, entityB string, kind types.RelationshipKind) string {
	a, b := types.CanonicalPair(entityA, entityB)
	key := algorithm + "|" + a + "|" + b + "|" + string(kind)
	return "rel:" + uuid.NewSHA1(relationshipNamespace, []byte(key)).String()
}

// newRelationship builds a proposal in canonical endpoint order. It returns
// nil when there is no evidence, so an unevidenced relationship can never be
// emitted.
func newRelationship(
	algorithm string,
	a, b *types.Entity,
	kind types.RelationshipKind,
	confidence float64,
	evidence []string,
	metadata map[string]interface{},
) *types.Relationship {
	if len(evidence) == 0 || a.ID == b.ID {
		return nil
	}
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["algorithm"] = algorithm

	entityA, entityB := types.CanonicalPair(a.ID, b.ID)
	return &types.Relationship{
		ID:         RelationshipID(algorithm, entityA, entityB, kind),
		EntityA:    entityA,
		EntityB:    entityB,
		Kind:       kind,
		Confidence: types.ClampConfidence(confidence),
		Evidence:   evidence,
		Metadata:   metadata,
	}
}

// forEachPair calls fn for every unordered pair of entities accepted by
// keep, with a.ID < b.ID and pairs visited in id order.
func forEachPair(entities []*types.Entity, keep func(*types.Entity) bool, fn func(a, b *types.Entity)) {
	selected := make([]*types.Entity, 0, len(entities))
	for _, e := range entities {
		if e != nil && e.ID != "" && keep(e) {
			selected = append(selected, e)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })

	for i := 0; i < len(selected); i++ {
		for j := i + 1; j < len(selected); j++ {
			if selected[i].ID == selected[j].ID {
				continue
			}
			fn(selected[i], selected[j])
		}
	}
}

// match is one candidate explanation for a pair, used by algorithms that
// weigh several branches or attributes against each other.
type match struct {
	kind       types.RelationshipKind
	confidence float64
	evidence   string
	matchType  string
}

// strongest returns the highest-confidence match; ties keep the earliest.
func strongest(matches []match) (match, bool) {
	if len(matches) == 0 {
		return match{}, false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.confidence > best.confidence {
			best = m
		}
	}
	return best, true
}
