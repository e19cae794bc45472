package types

import (
	"fmt"
	"strings"
)

// FindingStatus is the outcome a probe reported for one identifier.
type FindingStatus string

// Finding status constants
const (
	FindingFound    FindingStatus = "found"
	FindingNotFound FindingStatus = "not_found"
	FindingError    FindingStatus = "error"
)

// ParseFindingStatus normalizes the spellings probes use ("Found",
// "NOT_FOUND", "not-found", "claimed", ...).
func ParseFindingStatus(s string) (FindingStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	switch normalized {
	case "found", "claimed", "exists":
		return FindingFound, nil
	case "notfound", "available", "missing", "":
		return FindingNotFound, nil
	case "error", "failed", "unknown":
		return FindingError, nil
	}
	return "", fmt.Errorf("unknown finding status %q", s)
}

// UnmarshalText accepts any spelling understood by ParseFindingStatus.
func (s *FindingStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseFindingStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Finding is one raw result from an external probe: the unit of input to
// correlation. Only findings with status found produce entities.
type Finding struct {
	Username     string                 `json:"username" yaml:"username"`
	PlatformName string                 `json:"platform_name" yaml:"platform_name"`
	ProfileURL   string                 `json:"profile_url,omitempty" yaml:"profile_url,omitempty"`
	Status       FindingStatus          `json:"status" yaml:"status"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// IsFound reports whether the finding should produce entities.
func (f Finding) IsFound() bool {
	return f.Status == FindingFound && strings.TrimSpace(f.Username) != ""
}

// MetadataString returns a trimmed, non-empty string metadata value.
func (f Finding) MetadataString(key string) (string, bool) {
	raw, ok := f.Metadata[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
