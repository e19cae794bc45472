// Package file provides a directory-backed snapshot store: one JSON document
// per snapshot, written atomically.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scrypster/osintgraph/internal/storage"
)

// snapshotExt is the file extension of stored snapshots.
const snapshotExt = ".json"

// Store implements storage.SnapshotStore on a directory.
type Store struct {
	dir string
}

var _ storage.SnapshotStore = (*Store)(nil)

// NewStore creates the directory if needed and returns a store over it.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: snapshot directory is required", storage.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file: failed to create snapshot directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path a snapshot name maps to.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+snapshotExt)
}

// Save implements storage.SnapshotStore.
func (s *Store) Save(ctx context.Context, name string, snap *storage.Snapshot) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := storage.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	return WriteFileAtomic(s.Path(name), data)
}

// Load implements storage.SnapshotStore.
func (s *Store) Load(ctx context.Context, name string) (*storage.Snapshot, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadSnapshot(s.Path(name))
}

// List implements storage.SnapshotStore. Files that fail to decode are
// skipped with a log line rather than failing the listing.
func (s *Store) List(ctx context.Context) ([]storage.SnapshotInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("file: failed to read snapshot directory: %w", err)
	}

	infos := []storage.SnapshotInfo{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExt) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), snapshotExt)
		if storage.ValidateName(name) != nil {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		snap, err := storage.DecodeSnapshot(data)
		if err != nil {
			log.Printf("file: skipping unreadable snapshot %s: %v", path, err)
			continue
		}
		infos = append(infos, snap.Info(name, int64(len(data))))
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].SavedAt.Equal(infos[j].SavedAt) {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].SavedAt.After(infos[j].SavedAt)
	})
	return infos, nil
}

// Delete implements storage.SnapshotStore.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: snapshot %s", storage.ErrNotFound, name)
		}
		return fmt.Errorf("file: failed to delete snapshot %s: %w", name, err)
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// ReadSnapshot reads and decodes a snapshot file at an arbitrary path.
func ReadSnapshot(path string) (*storage.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
		}
		return nil, fmt.Errorf("file: failed to read snapshot: %w", err)
	}
	snap, err := storage.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("file: %s: %w", path, err)
	}
	return snap, nil
}

// WriteSnapshot encodes a snapshot to an arbitrary path, atomically.
func WriteSnapshot(path string, snap *storage.Snapshot) error {
	data, err := storage.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("file: failed to create directory: %w", err)
		}
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to a temporary file in the target directory
// and renames it over path, so readers never observe a partial document.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("file: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("file: failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("file: failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("file: failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("file: failed to move snapshot into place: %w", err)
	}
	return nil
}
