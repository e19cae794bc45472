package storage

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	// ErrNotFound indicates that the requested snapshot was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorruptSnapshot indicates a persisted document that cannot be
	// decoded or violates the snapshot invariants.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrUnavailable indicates that a backend is temporarily refusing calls
	// (for example because its circuit breaker is open).
	ErrUnavailable = errors.New("storage unavailable")
)

// SnapshotInfo describes a stored snapshot without its payload.
type SnapshotInfo struct {
	// Name is the caller-chosen snapshot name.
	Name string `json:"name"`

	// SavedAt is when the snapshot document was produced.
	SavedAt time.Time `json:"saved_at"`

	// SizeBytes is the encoded document size.
	SizeBytes int64 `json:"size_bytes"`

	// Entities and Relationships count the document contents.
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
}

// snapshotNamePattern restricts names to something safe as a file name and a
// primary key alike.
var snapshotNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateName checks a snapshot name.
func ValidateName(name string) error {
	if !snapshotNamePattern.MatchString(name) {
		return fmt.Errorf("%w: snapshot name %q must match %s", ErrInvalidInput, name, snapshotNamePattern)
	}
	return nil
}
