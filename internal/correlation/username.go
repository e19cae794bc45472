package correlation

import (
	"fmt"
	"strings"

	"github.com/scrypster/osintgraph/pkg/types"
)

// Username confidences.
const (
	usernameExactConfidence     = 100.0
	usernameFuzzyScale          = 80.0
	usernamePatternConfidence   = 75.0
	usernameSeparatorConfidence = 70.0
)

// usernameTransform rewrites a username into a variant commonly registered
// by the same person on another platform.
type usernameTransform struct {
	name  string
	apply func(string) string
}

var usernameTransforms = []usernameTransform{
	{"underscore removed", func(s string) string { return strings.ReplaceAll(s, "_", "") }},
	{"dot removed", func(s string) string { return strings.ReplaceAll(s, ".", "") }},
	{"hyphen removed", func(s string) string { return strings.ReplaceAll(s, "-", "") }},
	{"trailing digits removed", func(s string) string { return trailingDigits.ReplaceAllString(s, "") }},
	{"trailing separator and digits removed", func(s string) string { return trailingSepDigit.ReplaceAllString(s, "") }},
}

// UsernameAlgorithm compares account and person names.
//
// An exact case-insensitive match is a same-person link. Otherwise the fuzzy,
// pattern and separator branches are all evaluated and the strongest wins;
// on equal confidence the earlier branch (fuzzy, pattern, separator) wins.
type UsernameAlgorithm struct {
	fuzzyThreshold float64
}

// NewUsernameAlgorithm creates a username correlator.
func NewUsernameAlgorithm(fuzzyThreshold float64) *UsernameAlgorithm {
	return &UsernameAlgorithm{fuzzyThreshold: fuzzyThreshold}
}

// Name implements Algorithm.
func (u *UsernameAlgorithm) Name() string { return NameUsername }

// Correlate implements Algorithm.
func (u *UsernameAlgorithm) Correlate(entities []*types.Entity) []*types.Relationship {
	var out []*types.Relationship
	forEachPair(entities, isIdentity, func(a, b *types.Entity) {
		if rel := u.compare(a, b); rel != nil {
			out = append(out, rel)
		}
	})
	return out
}

func (u *UsernameAlgorithm) compare(a, b *types.Entity) *types.Relationship {
	na, nb := a.NormalizedName(), b.NormalizedName()
	if na == "" || nb == "" {
		return nil
	}

	if na == nb {
		return newRelationship(NameUsername, a, b, types.RelSamePerson, usernameExactConfidence,
			[]string{"Exact username match"},
			map[string]interface{}{"match_type": "exact", "username": na})
	}

	best, ok := strongest(u.candidates(na, nb))
	if !ok {
		return nil
	}
	return newRelationship(NameUsername, a, b, best.kind, best.confidence,
		[]string{best.evidence},
		map[string]interface{}{"match_type": best.matchType, "usernames": []string{na, nb}})
}

// candidates evaluates the non-exact branches in tie-break order.
func (u *UsernameAlgorithm) candidates(na, nb string) []match {
	var matches []match

	if sim := Similarity(na, nb); sim >= u.fuzzyThreshold {
		matches = append(matches, match{
			kind:       types.RelPotential,
			confidence: sim * usernameFuzzyScale,
			evidence:   fmt.Sprintf("Fuzzy username match (similarity %.2f)", sim),
			matchType:  "fuzzy",
		})
	}

	if name, ok := patternMatch(na, nb); ok {
		matches = append(matches, match{
			kind:       types.RelPotential,
			confidence: usernamePatternConfidence,
			evidence:   fmt.Sprintf("Username pattern match (%s)", name),
			matchType:  "pattern",
		})
	}

	if sa, sb := StripSeparators(na), StripSeparators(nb); sa != "" && sa == sb {
		matches = append(matches, match{
			kind:       types.RelPotential,
			confidence: usernameSeparatorConfidence,
			evidence:   "Usernames match after removing separators",
			matchType:  "separator",
		})
	}

	return matches
}

// patternMatch reports the first transform that maps one name onto the
// other, trying both directions.
func patternMatch(a, b string) (string, bool) {
	for _, t := range usernameTransforms {
		ta, tb := t.apply(a), t.apply(b)
		if (ta != a && ta == b) || (tb != b && tb == a) {
			return t.name, true
		}
	}
	return "", false
}

func isIdentity(e *types.Entity) bool {
	return e.Kind.IsIdentity()
}
