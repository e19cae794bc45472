// Package sqlite provides a SQLite implementation of storage.SnapshotStore
// using the CGO-free modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/osintgraph/internal/storage"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// timeLayout is how timestamps are stored in TEXT columns. Fixed-width UTC
// values sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements storage.SnapshotStore using SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.SnapshotStore = (*Store)(nil)

// NewStore opens (or creates) a SQLite snapshot database with WAL
// self-healing. If the initial open fails due to stale WAL files left behind
// by a crashed process, it verifies no other process holds them and retries
// once after removing the stale -shm/-wal files.
func NewStore(dsn string) (*Store, error) {
	store, err := openStore(dsn)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}
	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || !isWALStale(dbPath) {
		return nil, err
	}
	removeStaleWAL(dbPath)

	store, retryErr := openStore(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("sqlite: failed after WAL recovery: %w (original: %v)", retryErr, err)
	}
	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

// openStore opens a SQLite database, configures WAL mode, and migrates the schema.
func openStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serialises writes and avoids SQLITE_BUSY under concurrent load.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s failed: %w", pragma, err)
		}
	}

	ctx := context.Background()
	mgr, err := storage.NewMigrationManager(ctx, db, migrationFiles, "migrations", storage.PlaceholderQuestion)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	if err := mgr.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return &Store{db: db}, nil
}

// Save implements storage.SnapshotStore (upsert).
func (s *Store) Save(ctx context.Context, name string, snap *storage.Snapshot) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	data, err := storage.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, revision, document, saved_at, size_bytes, entity_count, relationship_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			revision = excluded.revision,
			document = excluded.document,
			saved_at = excluded.saved_at,
			size_bytes = excluded.size_bytes,
			entity_count = excluded.entity_count,
			relationship_count = excluded.relationship_count,
			updated_at = excluded.updated_at
	`,
		name,
		uuid.NewString(),
		string(data),
		snap.SavedAt.UTC().Format(timeLayout),
		len(data),
		len(snap.Entities),
		len(snap.Relationships),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save snapshot %s: %w", name, err)
	}
	return nil
}

// Load implements storage.SnapshotStore.
func (s *Store) Load(ctx context.Context, name string) (*storage.Snapshot, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}

	var document string
	err := s.db.QueryRowContext(ctx, "SELECT document FROM snapshots WHERE name = ?", name).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: snapshot %s", storage.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load snapshot %s: %w", name, err)
	}

	snap, err := storage.DecodeSnapshot([]byte(document))
	if err != nil {
		return nil, fmt.Errorf("sqlite: snapshot %s: %w", name, err)
	}
	return snap, nil
}

// List implements storage.SnapshotStore.
func (s *Store) List(ctx context.Context) ([]storage.SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, saved_at, size_bytes, entity_count, relationship_count
		FROM snapshots
		ORDER BY saved_at DESC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list snapshots: %w", err)
	}
	defer rows.Close()

	infos := []storage.SnapshotInfo{}
	for rows.Next() {
		var info storage.SnapshotInfo
		var savedAt string
		if err := rows.Scan(&info.Name, &savedAt, &info.SizeBytes, &info.Entities, &info.Relationships); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan snapshot row: %w", err)
		}
		if info.SavedAt, err = time.Parse(timeLayout, savedAt); err != nil {
			return nil, fmt.Errorf("%w: snapshot %s has malformed saved_at %q", storage.ErrCorruptSnapshot, info.Name, savedAt)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate snapshots: %w", err)
	}
	return infos, nil
}

// Delete implements storage.SnapshotStore.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete snapshot %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: snapshot %s", storage.ErrNotFound, name)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle for maintenance tasks such as backups.
func (s *Store) DB() *sql.DB {
	return s.db
}
