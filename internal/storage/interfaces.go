// Package storage defines the persistence boundary of the correlation
// engine: the snapshot document schema and the small interface every
// backend (file, SQLite, PostgreSQL) implements.
//
// A snapshot is the only durable contract the engine exposes. Any backend
// able to store and return the encoded document under a name satisfies it.
package storage

import (
	"context"
)

// SnapshotStore persists named snapshot documents.
type SnapshotStore interface {
	// Save creates or replaces the snapshot stored under name (upsert).
	// Returns ErrInvalidInput for an invalid name or document.
	Save(ctx context.Context, name string, snap *Snapshot) error

	// Load retrieves a snapshot by name.
	// Returns ErrNotFound if it doesn't exist and ErrCorruptSnapshot if the
	// stored document cannot be decoded or validated.
	Load(ctx context.Context, name string) (*Snapshot, error)

	// List describes every stored snapshot, newest first.
	List(ctx context.Context) ([]SnapshotInfo, error)

	// Delete removes a snapshot.
	// Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, name string) error

	// Close releases backend resources.
	Close() error
}
