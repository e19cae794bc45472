package correlation

import (
	"fmt"

	"github.com/scrypster/osintgraph/pkg/types"
)

// Email confidences.
const (
	emailExactConfidence   = 100.0
	emailVariantConfidence = 65.0
)

// EmailAlgorithm compares email entities and the email attribute of
// accounts, in every combination: email to email, email to account and
// account to account.
type EmailAlgorithm struct{}

// NewEmailAlgorithm creates an email correlator.
func NewEmailAlgorithm() *EmailAlgorithm {
	return &EmailAlgorithm{}
}

// Name implements Algorithm.
func (EmailAlgorithm) Name() string { return NameEmail }

// Correlate implements Algorithm.
func (EmailAlgorithm) Correlate(entities []*types.Entity) []*types.Relationship {
	var out []*types.Relationship
	forEachPair(entities, hasEmail, func(a, b *types.Entity) {
		ea, _ := emailOf(a)
		eb, _ := emailOf(b)
		if rel := compareEmails(a, b, ea, eb); rel != nil {
			out = append(out, rel)
		}
	})
	return out
}

func compareEmails(a, b *types.Entity, ea, eb string) *types.Relationship {
	localA, domainA, okA := EmailParts(ea)
	localB, domainB, okB := EmailParts(eb)
	if !okA || !okB {
		return nil
	}

	if ea == eb {
		return newRelationship(NameEmail, a, b, types.RelSamePerson, emailExactConfidence,
			[]string{"Exact email match"},
			map[string]interface{}{"match_type": "exact", "email": ea})
	}

	if domainA != domainB {
		return nil
	}
	strippedA, strippedB := StripSeparators(localA), StripSeparators(localB)
	if strippedA == "" || strippedA != strippedB {
		return nil
	}
	return newRelationship(NameEmail, a, b, types.RelPotential, emailVariantConfidence,
		[]string{fmt.Sprintf("Email local parts match after removing separators (@%s)", domainA)},
		map[string]interface{}{"match_type": "variant", "emails": []string{ea, eb}, "domain": domainA})
}

// emailOf returns the lowercase address an entity carries: its own name for
// email entities, the email attribute for accounts and persons.
func emailOf(e *types.Entity) (string, bool) {
	if e.Kind != types.EntityEmail && !e.Kind.IsIdentity() {
		return "", false
	}
	return e.IdentifierValue(types.AttrKeyEmail)
}

func hasEmail(e *types.Entity) bool {
	_, ok := emailOf(e)
	return ok
}
