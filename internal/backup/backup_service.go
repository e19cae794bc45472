package backup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/internal/storage/file"
)

const (
	backupPrefix     = "osintgraph-backup-"
	preRestorePrefix = "osintgraph-pre-restore-"
	backupExt        = ".json"
	timestampLayout  = "20060102-150405.000000"
)

// ErrNoBackups is returned by LatestBackup when the directory holds none.
var ErrNoBackups = errors.New("no backups found")

// BackupService writes periodic snapshot backups with verification and
// retention.
type BackupService struct {
	source        StateSource
	backupDir     string
	interval      time.Duration
	retention     RetentionPolicy
	verifyBackups bool
	clock         func() time.Time

	mu             sync.Mutex
	running        bool
	stopCh         chan struct{}
	lastBackupTime time.Time
	nextBackupTime time.Time
}

// NewBackupService creates a new backup service with the given configuration.
func NewBackupService(config BackupConfig) (*BackupService, error) {
	if config.Source == nil {
		return nil, fmt.Errorf("backup source is required")
	}
	if config.BackupDir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	if config.Retention.Hourly == 0 {
		config.Retention.Hourly = 24
	}
	if config.Retention.Daily == 0 {
		config.Retention.Daily = 7
	}
	if config.Retention.Weekly == 0 {
		config.Retention.Weekly = 4
	}
	if config.Retention.Monthly == 0 {
		config.Retention.Monthly = 12
	}

	if err := os.MkdirAll(config.BackupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	return &BackupService{
		source:        config.Source,
		backupDir:     config.BackupDir,
		interval:      config.Interval,
		retention:     config.Retention,
		verifyBackups: config.VerifyBackups,
		clock:         config.Clock,
		stopCh:        make(chan struct{}),
	}, nil
}

// Start runs scheduled backups until ctx is cancelled or Stop is called.
func (s *BackupService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("backup service is already running")
	}
	s.running = true
	s.nextBackupTime = s.clock().Add(s.interval)
	stopCh := s.stopCh
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("backup: service started: interval=%v, backup_dir=%s", s.interval, s.backupDir)

	for {
		select {
		case <-ctx.Done():
			log.Println("backup: service stopping (context cancelled)")
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return ctx.Err()

		case <-stopCh:
			log.Println("backup: service stopping (stop requested)")
			return nil

		case <-ticker.C:
			result, err := s.BackupNow(ctx)
			if err != nil {
				log.Printf("backup: WARNING: scheduled backup failed: %v", err)
			} else {
				log.Printf("backup: scheduled backup completed: path=%s, size=%d bytes, entities=%d, duration=%v, verified=%v",
					result.Path, result.Size, result.Entities, result.Duration, result.Verified)
			}

			s.mu.Lock()
			s.nextBackupTime = s.clock().Add(s.interval)
			s.mu.Unlock()
		}
	}
}

// Stop stops the backup service gracefully.
func (s *BackupService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("backup service is not running")
	}

	close(s.stopCh)
	s.stopCh = make(chan struct{})
	s.running = false
	return nil
}

// BackupNow writes the current state to a timestamped backup file,
// optionally verifies it, and applies the retention policy.
func (s *BackupService) BackupNow(ctx context.Context) (*BackupResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	snap := s.source.Snapshot()
	backupName := backupPrefix + s.clock().UTC().Format(timestampLayout) + backupExt
	backupPath := filepath.Join(s.backupDir, backupName)

	result := &BackupResult{Path: backupPath}
	if snap != nil {
		result.Entities = len(snap.Entities)
		result.Relationships = len(snap.Relationships)
	}

	if err := file.WriteSnapshot(backupPath, snap); err != nil {
		result.Duration = time.Since(start)
		result.Error = fmt.Errorf("failed to write backup: %w", err)
		return result, result.Error
	}

	info, err := os.Stat(backupPath)
	if err != nil {
		result.Duration = time.Since(start)
		result.Error = fmt.Errorf("failed to stat backup: %w", err)
		return result, result.Error
	}
	result.Size = info.Size()

	if s.verifyBackups {
		if err := verifyBackup(backupPath); err != nil {
			result.Duration = time.Since(start)
			result.Error = fmt.Errorf("backup verification failed: %w", err)
			return result, result.Error
		}
		result.Verified = true
	}
	result.Duration = time.Since(start)

	s.mu.Lock()
	s.lastBackupTime = s.clock()
	s.mu.Unlock()

	// Retention errors never fail the backup itself.
	if err := applyRetention(s.backupDir, s.retention, s.clock()); err != nil {
		log.Printf("backup: WARNING: failed to apply retention policy: %v", err)
	}

	return result, nil
}

// ListBackups lists all available backups, newest first.
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	return listBackups(s.backupDir)
}

// LatestBackup returns the newest backup.
func (s *BackupService) LatestBackup() (BackupInfo, error) {
	backups, err := listBackups(s.backupDir)
	if err != nil {
		return BackupInfo{}, err
	}
	if len(backups) == 0 {
		return BackupInfo{}, ErrNoBackups
	}
	return backups[0], nil
}

// RestoreBackup loads a backup file into target. The service must be
// stopped. The backup is decoded and validated before target is touched;
// the state being replaced is first written next to the backups as a
// pre-restore copy.
func (s *BackupService) RestoreBackup(ctx context.Context, backupPath string, target StateTarget) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if running {
		return fmt.Errorf("cannot restore while backup service is running")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup not found: %w", err)
	}
	snap, err := file.ReadSnapshot(backupPath)
	if err != nil {
		return fmt.Errorf("backup unreadable: %w", err)
	}

	preRestore := filepath.Join(s.backupDir, preRestorePrefix+s.clock().UTC().Format(timestampLayout)+backupExt)
	if err := file.WriteSnapshot(preRestore, s.source.Snapshot()); err != nil {
		return fmt.Errorf("failed to create pre-restore backup: %w", err)
	}

	if err := target.Restore(snap); err != nil {
		return fmt.Errorf("restore failed, pre-restore copy kept at %s: %w", preRestore, err)
	}

	log.Printf("backup: state restored from %s (%d entities, %d relationships)",
		backupPath, len(snap.Entities), len(snap.Relationships))
	return nil
}

// HealthCheck returns the current health status of the backup service.
func (s *BackupService) HealthCheck() (*HealthStatus, error) {
	s.mu.Lock()
	lastBackup := s.lastBackupTime
	nextBackup := s.nextBackupTime
	s.mu.Unlock()

	backups, err := s.ListBackups()
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	diskUsage, err := calculateDiskUsage(s.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate disk usage: %w", err)
	}

	status := &HealthStatus{
		LastBackup:    lastBackup,
		NextBackup:    nextBackup,
		TotalBackups:  len(backups),
		BackupDir:     s.backupDir,
		DiskSpaceUsed: diskUsage,
		Status:        "healthy",
	}

	now := s.clock()
	switch {
	case lastBackup.IsZero():
		status.Message = "No backups yet"
	case now.Sub(lastBackup) > s.interval*2:
		status.Status = "warning"
		status.Message = fmt.Sprintf("Backup overdue by %v", now.Sub(lastBackup)-s.interval)
	default:
		status.Message = fmt.Sprintf("Last backup: %v ago", now.Sub(lastBackup).Round(time.Minute))
	}

	return status, nil
}

// verifyBackup re-reads a backup and checks it decodes into a valid
// snapshot.
func verifyBackup(path string) error {
	snap, err := file.ReadSnapshot(path)
	if err != nil {
		return err
	}
	if snap.Version != storage.SnapshotVersion {
		return fmt.Errorf("%w: unexpected version %d", storage.ErrCorruptSnapshot, snap.Version)
	}
	return nil
}
