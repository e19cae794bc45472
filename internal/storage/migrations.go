package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

// ErrNoMigration indicates no migration has been applied yet.
var ErrNoMigration = errors.New("no migration")

// Placeholder selects the bind-parameter syntax of a SQL dialect.
type Placeholder int

const (
	// PlaceholderQuestion is the "?" style used by SQLite.
	PlaceholderQuestion Placeholder = iota
	// PlaceholderDollar is the "$1" style used by PostgreSQL.
	PlaceholderDollar
)

func (p Placeholder) bind() string {
	if p == PlaceholderDollar {
		return "$1"
	}
	return "?"
}

// MigrationManager applies plain SQL migrations read from a file system
// (usually an embed.FS compiled into the backend package). Files are named
// NNN_name.up.sql / NNN_name.down.sql; the applied version is tracked in a
// schema_migrations table.
type MigrationManager struct {
	db          *sql.DB
	files       fs.FS
	dir         string
	placeholder Placeholder
}

// migration represents a single up/down migration pair.
type migration struct {
	version  uint
	name     string
	upFile   string
	downFile string
}

// NewMigrationManager creates a MigrationManager for the migrations found in
// dir within files, and ensures the tracking table exists.
func NewMigrationManager(ctx context.Context, db *sql.DB, files fs.FS, dir string, placeholder Placeholder) (*MigrationManager, error) {
	if db == nil {
		return nil, fmt.Errorf("migrations: database connection is required")
	}
	if _, err := fs.Stat(files, dir); err != nil {
		return nil, fmt.Errorf("migrations: directory does not exist: %s", dir)
	}

	mgr := &MigrationManager{db: db, files: files, dir: dir, placeholder: placeholder}
	if err := mgr.ensureSchemaTable(ctx); err != nil {
		return nil, fmt.Errorf("migrations: failed to create schema table: %w", err)
	}
	return mgr, nil
}

// ensureSchemaTable creates the schema_migrations table if it doesn't exist.
func (mgr *MigrationManager) ensureSchemaTable(ctx context.Context) error {
	_, err := mgr.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// Up applies all pending migrations in ascending version order.
// Returns nil if already up-to-date.
func (mgr *MigrationManager) Up(ctx context.Context) error {
	migrations, err := mgr.loadMigrations()
	if err != nil {
		return fmt.Errorf("migrations: failed to load migration files: %w", err)
	}

	currentVersion, err := mgr.Version(ctx)
	if err != nil && !errors.Is(err, ErrNoMigration) {
		return fmt.Errorf("migrations: failed to get current version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if err := mgr.apply(ctx, m.upFile, "INSERT INTO schema_migrations (version) VALUES ("+mgr.placeholder.bind()+")", m.version); err != nil {
			return fmt.Errorf("migrations: failed to apply version %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// Down rolls back all applied migrations in descending version order.
func (mgr *MigrationManager) Down(ctx context.Context) error {
	migrations, err := mgr.loadMigrations()
	if err != nil {
		return fmt.Errorf("migrations: failed to load migration files: %w", err)
	}

	currentVersion, err := mgr.Version(ctx)
	if errors.Is(err, ErrNoMigration) {
		return nil // Nothing to roll back
	}
	if err != nil {
		return fmt.Errorf("migrations: failed to get current version: %w", err)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version > migrations[j].version
	})
	for _, m := range migrations {
		if m.version > currentVersion || m.downFile == "" {
			continue
		}
		if err := mgr.apply(ctx, m.downFile, "DELETE FROM schema_migrations WHERE version = "+mgr.placeholder.bind(), m.version); err != nil {
			return fmt.Errorf("migrations: failed to roll back version %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// apply runs one migration file and its bookkeeping statement in a single
// transaction.
func (mgr *MigrationManager) apply(ctx context.Context, file, record string, version uint) error {
	body, err := fs.ReadFile(mgr.files, file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	tx, err := mgr.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Version returns the highest applied migration version.
// Returns (0, ErrNoMigration) when no migration has been applied.
func (mgr *MigrationManager) Version(ctx context.Context) (uint, error) {
	var version uint
	err := mgr.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("migrations: failed to query version: %w", err)
	}
	if version == 0 {
		return 0, ErrNoMigration
	}
	return version, nil
}

// loadMigrations reads and parses migration files from the directory.
// Returns migrations sorted by version ascending.
func (mgr *MigrationManager) loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(mgr.files, mgr.dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: failed to read directory: %w", err)
	}

	migrationMap := make(map[uint]*migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		// Parse: NNN_name.up.sql or NNN_name.down.sql
		underscoreIdx := strings.Index(name, "_")
		if underscoreIdx < 0 {
			continue
		}
		versionInt, err := strconv.ParseUint(name[:underscoreIdx], 10, 64)
		if err != nil {
			continue // Skip non-numeric prefix files
		}
		version := uint(versionInt)
		rest := name[underscoreIdx+1:]

		m, ok := migrationMap[version]
		if !ok {
			m = &migration{version: version}
			migrationMap[version] = m
		}

		fullPath := path.Join(mgr.dir, name)
		switch {
		case strings.HasSuffix(rest, ".up.sql"):
			m.name = strings.TrimSuffix(rest, ".up.sql")
			m.upFile = fullPath
		case strings.HasSuffix(rest, ".down.sql"):
			m.downFile = fullPath
		}
	}

	migrations := make([]migration, 0, len(migrationMap))
	for _, m := range migrationMap {
		if m.upFile == "" {
			continue // Skip entries without an up file
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})
	return migrations, nil
}
