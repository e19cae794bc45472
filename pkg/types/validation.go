package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid")

// ValidateEntity checks the structural invariants of an entity.
func ValidateEntity(e *Entity) error {
	if e == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalid)
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalid)
	}
	if strings.TrimSpace(string(e.Kind)) == "" {
		return fmt.Errorf("%w: entity %s has no kind", ErrInvalid, e.ID)
	}
	return nil
}

// ValidateRelationship checks the structural invariants of a relationship.
func ValidateRelationship(r *Relationship) error {
	if r == nil {
		return fmt.Errorf("%w: relationship is nil", ErrInvalid)
	}
	if r.EntityA == "" || r.EntityB == "" {
		return fmt.Errorf("%w: relationship %s is missing an endpoint", ErrInvalid, r.ID)
	}
	if r.EntityA == r.EntityB {
		return fmt.Errorf("%w: relationship %s links %s to itself", ErrInvalid, r.ID, r.EntityA)
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("%w: relationship %s has unknown kind %q", ErrInvalid, r.ID, r.Kind)
	}
	if r.Confidence != r.Confidence || r.Confidence < 0 || r.Confidence > 100 {
		return fmt.Errorf("%w: relationship %s confidence %v outside [0,100]", ErrInvalid, r.ID, r.Confidence)
	}
	if len(r.Evidence) == 0 {
		return fmt.Errorf("%w: relationship %s has no evidence", ErrInvalid, r.ID)
	}
	return nil
}
