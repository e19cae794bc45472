package correlation

import (
	"fmt"
	"sort"
	"time"

	"github.com/scrypster/osintgraph/pkg/types"
)

// Temporal confidences.
const (
	creationBaseConfidence = 50.0
	creationSameDayBonus   = 40.0
	creationSameDayCap     = 90.0
	activityBaseConfidence = 40.0
	activityOverlapScale   = 40.0
)

// TemporalAlgorithm correlates accounts whose creation dates are close or
// whose activity timestamps overlap. Both signals feed one relationship per
// pair; its confidence is the stronger of the two.
type TemporalAlgorithm struct {
	creationWindow   time.Duration
	activityWindow   time.Duration
	overlapThreshold float64
}

// NewTemporalAlgorithm creates a temporal correlator.
func NewTemporalAlgorithm(creationWindow, activityWindow time.Duration, overlapThreshold float64) *TemporalAlgorithm {
	return &TemporalAlgorithm{
		creationWindow:   creationWindow,
		activityWindow:   activityWindow,
		overlapThreshold: overlapThreshold,
	}
}

// Name implements Algorithm.
func (t *TemporalAlgorithm) Name() string { return NameTemporal }

// Correlate implements Algorithm.
func (t *TemporalAlgorithm) Correlate(entities []*types.Entity) []*types.Relationship {
	var out []*types.Relationship
	forEachPair(entities, isAccount, func(a, b *types.Entity) {
		if rel := t.compare(a, b); rel != nil {
			out = append(out, rel)
		}
	})
	return out
}

func (t *TemporalAlgorithm) compare(a, b *types.Entity) *types.Relationship {
	var matches []match
	detail := make(map[string]interface{})

	if mt, ok := t.compareCreation(a, b, detail); ok {
		matches = append(matches, mt)
	}
	if mt, ok := t.compareActivity(a, b, detail); ok {
		matches = append(matches, mt)
	}

	best, ok := strongest(matches)
	if !ok {
		return nil
	}
	evidence := make([]string, len(matches))
	for i, mt := range matches {
		evidence[i] = mt.evidence
	}
	detail["match_type"] = best.matchType
	return newRelationship(NameTemporal, a, b, types.RelPotential, best.confidence, evidence, detail)
}

func (t *TemporalAlgorithm) compareCreation(a, b *types.Entity, detail map[string]interface{}) (match, bool) {
	createdA, okA := a.TimeAttr(types.AttrKeyCreatedDate)
	createdB, okB := b.TimeAttr(types.AttrKeyCreatedDate)
	if !okA || !okB || t.creationWindow <= 0 {
		return match{}, false
	}

	gap := absDuration(createdA.Sub(createdB))
	if gap > t.creationWindow {
		return match{}, false
	}
	confidence := creationBaseConfidence * (1 - float64(gap)/float64(t.creationWindow))
	if gap < 24*time.Hour {
		confidence = min(confidence+creationSameDayBonus, creationSameDayCap)
	}
	if confidence <= 0 {
		return match{}, false
	}

	detail["creation_gap_hours"] = gap.Hours()
	return match{
		kind:       types.RelPotential,
		confidence: confidence,
		evidence:   fmt.Sprintf("Accounts created %s apart", humanizeGap(gap)),
		matchType:  "creation_date",
	}, true
}

func (t *TemporalAlgorithm) compareActivity(a, b *types.Entity, detail map[string]interface{}) (match, bool) {
	timesA, okA := a.TimesAttr(types.AttrKeyActivityTimes)
	timesB, okB := b.TimesAttr(types.AttrKeyActivityTimes)
	if !okA || !okB {
		return match{}, false
	}

	ratio := max(overlapRatio(timesA, timesB, t.activityWindow), overlapRatio(timesB, timesA, t.activityWindow))
	if ratio < t.overlapThreshold || ratio == 0 {
		return match{}, false
	}

	detail["activity_overlap"] = ratio
	return match{
		kind:       types.RelPotential,
		confidence: activityBaseConfidence + ratio*activityOverlapScale,
		evidence:   fmt.Sprintf("Activity overlap %.0f%%", ratio*100),
		matchType:  "activity_times",
	}, true
}

// overlapRatio is the fraction of timestamps in from that lie within window
// of some timestamp in to.
func overlapRatio(from, to []time.Time, window time.Duration) float64 {
	if len(from) == 0 || len(to) == 0 {
		return 0
	}
	sorted := append([]time.Time(nil), to...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	hits := 0
	for _, ts := range from {
		// First candidate not earlier than ts-window; it is the closest one
		// from below the upper bound.
		lower := ts.Add(-window)
		i := sort.Search(len(sorted), func(i int) bool { return !sorted[i].Before(lower) })
		if i < len(sorted) && !sorted[i].After(ts.Add(window)) {
			hits++
		}
	}
	return float64(hits) / float64(len(from))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func humanizeGap(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%.1f hours", d.Hours())
	default:
		return fmt.Sprintf("%.1f days", d.Hours()/24)
	}
}
