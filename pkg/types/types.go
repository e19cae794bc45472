// Package types defines the core data structures for the osintgraph
// correlation system: entities discovered by OSINT probes, the scored
// relationships between them, the raw findings they are extracted from,
// and the clusters and results produced by correlation.
package types

import (
	"fmt"
	"strings"
)

// EntityKind classifies what a discovered identifier is.
// The set is open: unknown kinds are carried through untouched, they are
// simply ignored by algorithms that do not know them.
type EntityKind string

// Entity kind constants
const (
	EntityAccount      EntityKind = "account"
	EntityPerson       EntityKind = "person"
	EntityOrganization EntityKind = "organization"
	EntityEmail        EntityKind = "email"
	EntityPhone        EntityKind = "phone"
	EntityIP           EntityKind = "ip"
	EntityDomain       EntityKind = "domain"
)

// ValidEntityKinds lists the built-in entity kinds.
var ValidEntityKinds = []EntityKind{
	EntityAccount,
	EntityPerson,
	EntityOrganization,
	EntityEmail,
	EntityPhone,
	EntityIP,
	EntityDomain,
}

// IsBuiltin reports whether k is one of the built-in kinds.
func (k EntityKind) IsBuiltin() bool {
	for _, valid := range ValidEntityKinds {
		if valid == k {
			return true
		}
	}
	return false
}

// IsIdentity reports whether the kind names an online identity (an account
// or a person) whose name can be compared as a username.
func (k EntityKind) IsIdentity() bool {
	return k == EntityAccount || k == EntityPerson
}

// RelationshipKind classifies a link between two entities.
type RelationshipKind string

// Relationship kind constants
const (
	// RelSamePerson marks two identifiers confirmed to belong to one subject.
	RelSamePerson RelationshipKind = "same_person"

	// RelPotential marks a weak or candidate match.
	RelPotential RelationshipKind = "potential"

	// RelRelated marks a structural link (subdomain-of, account-uses-ip).
	RelRelated RelationshipKind = "related"

	// RelSuspicious marks an adversarial pattern such as a look-alike domain.
	RelSuspicious RelationshipKind = "suspicious"
)

// ValidRelationshipKinds lists every relationship kind. Unlike entity kinds
// this set is closed.
var ValidRelationshipKinds = []RelationshipKind{
	RelSamePerson,
	RelPotential,
	RelRelated,
	RelSuspicious,
}

// IsValid reports whether k is a known relationship kind.
func (k RelationshipKind) IsValid() bool {
	for _, valid := range ValidRelationshipKinds {
		if valid == k {
			return true
		}
	}
	return false
}

// ParseRelationshipKind parses a relationship kind. Matching is
// case-insensitive and accepts the CamelCase spellings ("SamePerson").
func ParseRelationshipKind(s string) (RelationshipKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	switch normalized {
	case "sameperson":
		normalized = string(RelSamePerson)
	}
	kind := RelationshipKind(normalized)
	if !kind.IsValid() {
		return "", fmt.Errorf("unknown relationship kind %q", s)
	}
	return kind, nil
}

// ClampConfidence bounds a confidence value to [0, 100].
// NaN is treated as zero confidence.
func ClampConfidence(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
