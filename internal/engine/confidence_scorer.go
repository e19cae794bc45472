package engine

import (
	"math"
	"regexp"

	"github.com/scrypster/osintgraph/internal/config"
	"github.com/scrypster/osintgraph/pkg/types"
)

// ConfidenceScorer rescales algorithm confidences with evidence that is
// independent of the algorithm: how reliable the reporting sources are, how
// close the accounts were created, how unique the matched value is, and how
// much evidence was collected.
type ConfidenceScorer struct {
	cfg config.CorrelationConfig
}

// NewConfidenceScorer creates a scorer with the given tuning.
func NewConfidenceScorer(cfg config.CorrelationConfig) *ConfidenceScorer {
	return &ConfidenceScorer{cfg: cfg}
}

// ScoreBreakdown represents the adjusted score and its components.
type ScoreBreakdown struct {
	// Raw is the algorithm's confidence before adjustment.
	Raw float64

	// Final is the adjusted confidence, clamped to [0, 100].
	Final float64

	// AttributeMatch reflects the amount of evidence (0.0 to 1.0).
	AttributeMatch float64

	// SourceQuality reflects the reliability of the reporting sources (0.0 to 1.0).
	SourceQuality float64

	// TemporalConsistency reflects how close the creation dates are (0.0 to 1.0).
	TemporalConsistency float64

	// Uniqueness reflects how identifying the matched value is (0.0 to 1.0).
	Uniqueness float64
}

// ScoreRelationship returns the adjusted confidence of rel: the raw
// confidence plus AdjustmentScale (default 10) times the weighted signal
// sum, clamped to [0, 100]. With the stock weights a relationship gains at
// most 10 points, so a raw 70 may report as 75.3. Either entity may be nil
// (for example when the endpoint is unknown); the signals that need it then
// score zero.
func (c *ConfidenceScorer) ScoreRelationship(rel *types.Relationship, a, b *types.Entity) float64 {
	return c.Breakdown(rel, a, b).Final
}

// Breakdown computes every signal and the final score.
// Final = raw + AdjustmentScale * (weighted sum of signals).
func (c *ConfidenceScorer) Breakdown(rel *types.Relationship, a, b *types.Entity) ScoreBreakdown {
	s := ScoreBreakdown{
		Raw:                 rel.Confidence,
		AttributeMatch:      evidenceScore(len(rel.Evidence)),
		SourceQuality:       c.sourceQuality(a, b),
		TemporalConsistency: temporalConsistency(a, b),
		Uniqueness:          uniqueness(a, b),
	}

	w := c.cfg.Weights
	adjustment := w.AttributeMatch*s.AttributeMatch +
		w.SourceQuality*s.SourceQuality +
		w.TemporalConsistency*s.TemporalConsistency +
		w.Uniqueness*s.Uniqueness

	s.Final = types.ClampConfidence(rel.Confidence + c.cfg.AdjustmentScale*adjustment)
	return s
}

// evidenceScore maps an evidence count to 0/0.3/0.6/0.8/1.0.
func evidenceScore(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return 0.3
	case n == 2:
		return 0.6
	case n == 3:
		return 0.8
	default:
		return 1.0
	}
}

// sourceQuality averages the source reliability of each entity, then the
// two entities.
func (c *ConfidenceScorer) sourceQuality(a, b *types.Entity) float64 {
	var total float64
	var n int
	for _, e := range []*types.Entity{a, b} {
		if e == nil {
			continue
		}
		total += c.entitySourceScore(e)
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func (c *ConfidenceScorer) entitySourceScore(e *types.Entity) float64 {
	if len(e.Sources) == 0 {
		return c.cfg.DefaultSourceReliability
	}
	var total float64
	for _, source := range e.Sources {
		total += c.cfg.SourceScore(source)
	}
	return total / float64(len(e.Sources))
}

// temporalConsistency decays stepwise with the creation-date gap:
// <=1 day 1.0, <=7 days 0.8, <=30 days 0.6, <=90 days 0.4, else 0.2.
// Missing dates score 0.
func temporalConsistency(a, b *types.Entity) float64 {
	if a == nil || b == nil {
		return 0
	}
	createdA, okA := a.TimeAttr(types.AttrKeyCreatedDate)
	createdB, okB := b.TimeAttr(types.AttrKeyCreatedDate)
	if !okA || !okB {
		return 0
	}

	days := math.Abs(createdA.Sub(createdB).Hours()) / 24
	switch {
	case days <= 1:
		return 1.0
	case days <= 7:
		return 0.8
	case days <= 30:
		return 0.6
	case days <= 90:
		return 0.4
	default:
		return 0.2
	}
}

// uniqueIdentifierKeys are attributes whose equality identifies a subject.
var uniqueIdentifierKeys = []string{
	types.AttrKeyEmail,
	types.AttrKeyPhone,
	types.AttrKeyIPAddress,
	types.AttrKeyWebsite,
}

const minUniqueNameLength = 5

var (
	genericUserPattern = regexp.MustCompile(`^user\d+$`)
	wordDigitsPattern  = regexp.MustCompile(`^[a-z]+\d{3,}$`)
)

// uniqueness scores how identifying the matched value is: 1.0 for an equal
// email/phone/ip/website, 0.8 for an exact username match, 0.6 when either
// name looks unique, else 0.4.
func uniqueness(a, b *types.Entity) float64 {
	if a == nil || b == nil {
		return 0.4
	}
	for _, key := range uniqueIdentifierKeys {
		va, okA := a.IdentifierValue(key)
		vb, okB := b.IdentifierValue(key)
		if okA && okB && va == vb {
			return 1.0
		}
	}

	na, nb := a.NormalizedName(), b.NormalizedName()
	if na != "" && na == nb && a.Kind.IsIdentity() && b.Kind.IsIdentity() {
		return 0.8
	}
	if looksUnique(na) || looksUnique(nb) {
		return 0.6
	}
	return 0.4
}

// looksUnique reports whether a username is long enough and not a generated
// pattern such as user123 or word2024.
func looksUnique(name string) bool {
	if len([]rune(name)) < minUniqueNameLength {
		return false
	}
	return !genericUserPattern.MatchString(name) && !wordDigitsPattern.MatchString(name)
}

// ScoreCluster aggregates a cluster: mean relationship confidence times a
// density factor min(1, |relationships|/10) times an entity-count penalty
// max(0.7, 1 - (|entities|-3)*0.05). An empty relationship set scores 0.
func (c *ConfidenceScorer) ScoreCluster(entities []string, relationships []*types.Relationship) float64 {
	if len(relationships) == 0 {
		return 0
	}

	var total float64
	for _, r := range relationships {
		total += r.Confidence
	}
	mean := total / float64(len(relationships))

	density := math.Min(1, float64(len(relationships))/10)
	penalty := math.Max(0.7, 1-float64(len(entities)-3)*0.05)
	return types.ClampConfidence(mean * density * penalty)
}
