// Package backup writes rotating snapshot backups of the correlation state
// with a tiered retention policy and integrity verification.
package backup

import (
	"time"

	"github.com/scrypster/osintgraph/internal/storage"
)

// StateSource yields the state to back up. The engine and the server
// session both implement it.
type StateSource interface {
	Snapshot() *storage.Snapshot
}

// StateTarget accepts a restored state.
type StateTarget interface {
	Restore(snap *storage.Snapshot) error
}

// BackupConfig holds backup service configuration.
type BackupConfig struct {
	// Source provides the snapshot written on every backup
	Source StateSource

	// BackupDir is the directory where backups will be stored
	BackupDir string

	// Interval is the duration between automated backups (default: 1 hour)
	Interval time.Duration

	// Retention defines how long to keep backups at different intervals
	Retention RetentionPolicy

	// VerifyBackups re-reads and decodes each backup after writing it
	VerifyBackups bool

	// Clock returns the current time (default: time.Now)
	Clock func() time.Time
}

// RetentionPolicy defines how many backups to keep at each tier.
// Backups are categorized by age:
// - Hourly: backups less than 24 hours old
// - Daily: backups between 1-7 days old
// - Weekly: backups between 7-30 days old
// - Monthly: backups between 30-365 days old
type RetentionPolicy struct {
	Hourly  int
	Daily   int
	Weekly  int
	Monthly int
}

// BackupInfo contains metadata about a backup file.
type BackupInfo struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
	Verified  bool      `json:"verified"`
}

// BackupResult contains the result of a backup operation.
type BackupResult struct {
	Path          string        `json:"path"`
	Duration      time.Duration `json:"duration_ns"`
	Size          int64         `json:"size"`
	Entities      int           `json:"entities"`
	Relationships int           `json:"relationships"`
	Verified      bool          `json:"verified"`
	Error         error         `json:"-"`
}

// HealthStatus represents the health of the backup service.
type HealthStatus struct {
	// Status is the overall health status: "healthy", "warning", or "error"
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	LastBackup    time.Time `json:"last_backup"`
	NextBackup    time.Time `json:"next_backup"`
	TotalBackups  int       `json:"total_backups"`
	BackupDir     string    `json:"backup_dir"`
	DiskSpaceUsed int64     `json:"disk_space_used"`
}
