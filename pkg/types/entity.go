package types

import (
	"strings"
	"time"
)

// Entity represents one discovered identifier: an account, an email address,
// an IP literal, a domain, a person or an organization.
type Entity struct {
	// Core identification fields
	ID   string     `json:"id"`   // Deterministic identifier (format: ent:kind:slug)
	Kind EntityKind `json:"kind"` // Entity kind (see EntityKind constants)
	Name string     `json:"name"` // Display value: username, address, literal, etc.

	// Attributes is the substrate every correlation algorithm reads.
	Attributes Attributes `json:"attributes,omitempty"`

	// Sources lists the probes/platforms that reported this entity, in
	// first-reported order.
	Sources []string `json:"sources,omitempty"`

	CreatedAt time.Time `json:"created_at"` // First ingestion timestamp
}

// Attr returns the attribute value stored under key.
func (e *Entity) Attr(key string) (AttrValue, bool) {
	if e == nil || e.Attributes == nil {
		return AttrValue{}, false
	}
	v, ok := e.Attributes[key]
	return v, ok
}

// StringAttr returns a non-empty string attribute.
func (e *Entity) StringAttr(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	return e.Attributes.String(key)
}

// TimeAttr returns a timestamp attribute.
func (e *Entity) TimeAttr(key string) (time.Time, bool) {
	if e == nil {
		return time.Time{}, false
	}
	return e.Attributes.Time(key)
}

// TimesAttr returns a timestamp-list attribute.
func (e *Entity) TimesAttr(key string) ([]time.Time, bool) {
	if e == nil {
		return nil, false
	}
	return e.Attributes.Times(key)
}

// NormalizedName returns the lowercase, trimmed name. Usernames, email
// addresses and domains are all compared case-insensitively.
func (e *Entity) NormalizedName() string {
	if e == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(e.Name))
}

// IdentifierValue returns the comparable value this entity carries for key,
// either as an attribute or, for email/ip entities, as its own name.
func (e *Entity) IdentifierValue(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	switch {
	case key == AttrKeyEmail && e.Kind == EntityEmail,
		key == AttrKeyIPAddress && e.Kind == EntityIP,
		key == AttrKeyPhone && e.Kind == EntityPhone:
		if n := e.NormalizedName(); n != "" {
			return n, true
		}
		return "", false
	}
	s, ok := e.StringAttr(key)
	if !ok {
		return "", false
	}
	return strings.ToLower(s), true
}

// Clone returns a copy that shares no mutable state with e.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	out.Attributes = e.Attributes.Clone()
	out.Sources = append([]string(nil), e.Sources...)
	return &out
}

// EntityID builds the deterministic id for an identifier of the given kind.
// Extra qualifiers (such as the platform for accounts) are joined in order.
func EntityID(kind EntityKind, parts ...string) string {
	segments := make([]string, 0, len(parts)+2)
	segments = append(segments, "ent", string(kind))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		p = strings.ReplaceAll(p, " ", "_")
		segments = append(segments, p)
	}
	return strings.Join(segments, ":")
}
