package correlation

import (
	"fmt"
	"strings"

	"github.com/scrypster/osintgraph/pkg/types"
)

// Metadata confidences.
const (
	bioIdenticalConfidence     = 85.0
	bioSimilarBase             = 50.0
	bioSimilarScale            = 30.0
	bioMinLength               = 20
	locationExactConfidence    = 60.0
	locationPartialBase        = 45.0
	locationPartialScale       = 15.0
	displayNameExactConfidence = 75.0
	displayNameTokenBase       = 40.0
	displayNameTokenScale      = 20.0
	displayNameMinTokenOverlap = 0.5
	websiteExactConfidence     = 80.0
)

// MetadataAlgorithm compares profile attributes of accounts: bio, location,
// display name and website. A pair yields at most one relationship carrying
// evidence for every attribute that matched; its confidence is that of the
// strongest attribute match.
type MetadataAlgorithm struct {
	bioOverlapThreshold float64
}

// NewMetadataAlgorithm creates a metadata correlator.
func NewMetadataAlgorithm(bioOverlapThreshold float64) *MetadataAlgorithm {
	return &MetadataAlgorithm{bioOverlapThreshold: bioOverlapThreshold}
}

// Name implements Algorithm.
func (m *MetadataAlgorithm) Name() string { return NameMetadata }

// Correlate implements Algorithm.
func (m *MetadataAlgorithm) Correlate(entities []*types.Entity) []*types.Relationship {
	var out []*types.Relationship
	forEachPair(entities, isAccount, func(a, b *types.Entity) {
		if rel := m.compare(a, b); rel != nil {
			out = append(out, rel)
		}
	})
	return out
}

func (m *MetadataAlgorithm) compare(a, b *types.Entity) *types.Relationship {
	var matches []match
	detail := make(map[string]interface{})

	if mt, ok := m.compareBio(a, b, detail); ok {
		matches = append(matches, mt)
	}
	if mt, ok := compareLocation(a, b); ok {
		matches = append(matches, mt)
	}
	if mt, ok := compareDisplayName(a, b, detail); ok {
		matches = append(matches, mt)
	}
	if mt, ok := compareWebsite(a, b); ok {
		matches = append(matches, mt)
	}

	best, ok := strongest(matches)
	if !ok {
		return nil
	}

	evidence := make([]string, len(matches))
	matched := make([]string, len(matches))
	for i, mt := range matches {
		evidence[i] = mt.evidence
		matched[i] = mt.matchType
	}
	detail["matched_attributes"] = matched
	detail["match_type"] = best.matchType

	return newRelationship(NameMetadata, a, b, types.RelPotential, best.confidence, evidence, detail)
}

func (m *MetadataAlgorithm) compareBio(a, b *types.Entity, detail map[string]interface{}) (match, bool) {
	rawA, okA := a.StringAttr(types.AttrKeyBio)
	rawB, okB := b.StringAttr(types.AttrKeyBio)
	if !okA || !okB {
		return match{}, false
	}
	bioA, bioB := NormalizeText(rawA), NormalizeText(rawB)
	if bioA == "" || bioB == "" {
		return match{}, false
	}

	if bioA == bioB {
		return match{kind: types.RelPotential, confidence: bioIdenticalConfidence,
			evidence: "Identical bio", matchType: types.AttrKeyBio}, true
	}

	if len([]rune(bioA)) <= bioMinLength || len([]rune(bioB)) <= bioMinLength {
		return match{}, false
	}
	overlap := TrigramOverlap(bioA, bioB)
	if overlap < m.bioOverlapThreshold {
		return match{}, false
	}
	detail["bio_overlap"] = overlap
	return match{kind: types.RelPotential, confidence: bioSimilarBase + overlap*bioSimilarScale,
		evidence: fmt.Sprintf("Similar bio (trigram overlap %.2f)", overlap), matchType: types.AttrKeyBio}, true
}

func compareLocation(a, b *types.Entity) (match, bool) {
	rawA, okA := a.StringAttr(types.AttrKeyLocation)
	rawB, okB := b.StringAttr(types.AttrKeyLocation)
	if !okA || !okB {
		return match{}, false
	}
	locA, locB := NormalizeLocation(rawA), NormalizeLocation(rawB)
	if locA == "" || locB == "" {
		return match{}, false
	}

	if locA == locB {
		return match{kind: types.RelPotential, confidence: locationExactConfidence,
			evidence: fmt.Sprintf("Same location (%s)", locA), matchType: types.AttrKeyLocation}, true
	}

	shorter, longer := locA, locB
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if !strings.Contains(longer, shorter) {
		return match{}, false
	}
	ratio := float64(len(shorter)) / float64(len(longer))
	return match{kind: types.RelPotential, confidence: locationPartialBase + ratio*locationPartialScale,
		evidence: fmt.Sprintf("Overlapping location (%s / %s)", locA, locB), matchType: types.AttrKeyLocation}, true
}

func compareDisplayName(a, b *types.Entity, detail map[string]interface{}) (match, bool) {
	rawA, okA := a.StringAttr(types.AttrKeyDisplayName)
	rawB, okB := b.StringAttr(types.AttrKeyDisplayName)
	if !okA || !okB {
		return match{}, false
	}
	nameA, nameB := NormalizeDisplayName(rawA), NormalizeDisplayName(rawB)
	if nameA == "" || nameB == "" {
		return match{}, false
	}

	if nameA == nameB {
		return match{kind: types.RelPotential, confidence: displayNameExactConfidence,
			evidence: fmt.Sprintf("Same display name (%s)", nameA), matchType: types.AttrKeyDisplayName}, true
	}

	if len(strings.Fields(nameA)) < 2 || len(strings.Fields(nameB)) < 2 {
		return match{}, false
	}
	overlap := TokenOverlap(nameA, nameB)
	if overlap < displayNameMinTokenOverlap {
		return match{}, false
	}
	detail["display_name_overlap"] = overlap
	return match{kind: types.RelPotential, confidence: displayNameTokenBase + overlap*displayNameTokenScale,
		evidence: fmt.Sprintf("Display names share %.0f%% of tokens", overlap*100), matchType: types.AttrKeyDisplayName}, true
}

func compareWebsite(a, b *types.Entity) (match, bool) {
	rawA, okA := a.StringAttr(types.AttrKeyWebsite)
	rawB, okB := b.StringAttr(types.AttrKeyWebsite)
	if !okA || !okB {
		return match{}, false
	}
	urlA, urlB := NormalizeURL(rawA), NormalizeURL(rawB)
	if urlA == "" || urlA != urlB {
		return match{}, false
	}
	return match{kind: types.RelPotential, confidence: websiteExactConfidence,
		evidence: fmt.Sprintf("Same website (%s)", urlA), matchType: types.AttrKeyWebsite}, true
}

func isAccount(e *types.Entity) bool {
	return e.Kind == types.EntityAccount
}
