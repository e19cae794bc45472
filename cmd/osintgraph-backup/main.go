// Command osintgraph-backup backs up the saved correlation session from the
// configured snapshot store, and restores backups into it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/scrypster/osintgraph/internal/backup"
	"github.com/scrypster/osintgraph/internal/config"
	"github.com/scrypster/osintgraph/internal/connections"
	"github.com/scrypster/osintgraph/internal/engine"
	"github.com/scrypster/osintgraph/internal/storage"
)

var (
	snapshotName = flag.String("snapshot", "", "Snapshot to back up and restore into (overrides config)")
	backupDir    = flag.String("backup-dir", "", "Backup directory path (overrides config)")
	interval     = flag.Duration("interval", 0, "Backup interval (overrides config)")
	verify       = flag.Bool("verify", true, "Verify backups after creation")
	oneshot      = flag.Bool("oneshot", false, "Perform a single backup and exit")
	restore      = flag.String("restore", "", "Restore the snapshot from backup file and exit")
	healthCmd    = flag.Bool("health", false, "Check backup service health and exit")
	listCmd      = flag.Bool("list", false, "List all available backups and exit")
)

// errUnhealthy makes the health command exit non-zero.
var errUnhealthy = errors.New("backups are not healthy")

// storeState reads and replaces one named snapshot in a store. The stored
// document is backed up as is; a snapshot that does not exist yet reads as
// an empty session.
type storeState struct {
	mu    sync.Mutex
	store storage.SnapshotStore
	name  string
	eng   *engine.CorrelationEngine
}

func newStoreState(store storage.SnapshotStore, name string, cfg config.CorrelationConfig) (*storeState, error) {
	eng, err := engine.NewCorrelationEngine(engine.Config{Correlation: cfg})
	if err != nil {
		return nil, err
	}
	return &storeState{store: store, name: name, eng: eng}, nil
}

// Snapshot implements backup.StateSource.
func (s *storeState) Snapshot() *storage.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	snap, err := s.store.Load(ctx, s.name)
	if err == nil {
		return snap
	}
	if !errors.Is(err, storage.ErrNotFound) {
		log.Printf("backup: ERROR: cannot read snapshot %q: %v", s.name, err)
		return nil
	}
	s.eng.Reset()
	return s.eng.Snapshot()
}

// Restore implements backup.StateTarget.
func (s *storeState) Restore(snap *storage.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.store.Save(ctx, s.name, snap)
}

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override config with command-line flags
	if *snapshotName != "" {
		cfg.Storage.SnapshotName = *snapshotName
	}
	if *backupDir != "" {
		cfg.Backup.BackupPath = *backupDir
	}
	if *interval > 0 {
		cfg.Backup.BackupInterval = interval.String()
	}
	cfg.Backup.BackupVerify = *verify

	ctx := context.Background()
	store, err := connections.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open snapshot store: %v", err)
	}
	defer store.Close()

	state, err := newStoreState(store, cfg.Storage.SnapshotName, cfg.Correlation)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	// Create backup service
	service, err := backup.NewServiceFromConfig(cfg.Backup, state)
	if err != nil {
		log.Fatalf("Failed to create backup service: %v", err)
	}

	// Handle command modes
	switch {
	case *restore != "":
		err = handleRestore(ctx, service, state, *restore)
	case *healthCmd:
		err = handleHealth(service, os.Stdout)
	case *listCmd:
		err = handleList(service, os.Stdout)
	case *oneshot:
		err = handleOneshot(ctx, service)
	default:
		// Start continuous backup service
		runService(ctx, service)
	}
	if err != nil {
		store.Close()
		log.Fatalf("%v", err)
	}
}

func handleRestore(ctx context.Context, service *backup.BackupService, state *storeState, backupPath string) error {
	log.Printf("Restoring snapshot %q from backup: %s", state.name, backupPath)

	if err := service.RestoreBackup(ctx, backupPath, state); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	log.Println("Snapshot restored successfully")
	return nil
}

func handleHealth(service *backup.BackupService, out io.Writer) error {
	health, err := service.HealthCheck()
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Fprintf(out, "Status: %s\n", health.Status)
	if health.Message != "" {
		fmt.Fprintf(out, "Message: %s\n", health.Message)
	}
	fmt.Fprintf(out, "Total Backups: %d\n", health.TotalBackups)
	fmt.Fprintf(out, "Disk Space Used: %.2f MB\n", float64(health.DiskSpaceUsed)/(1024*1024))
	fmt.Fprintf(out, "Backup Directory: %s\n", health.BackupDir)

	if !health.LastBackup.IsZero() {
		fmt.Fprintf(out, "Last Backup: %s (%s ago)\n",
			health.LastBackup.Format(time.RFC3339),
			time.Since(health.LastBackup).Round(time.Minute))
	} else {
		fmt.Fprintln(out, "Last Backup: Never")
	}

	if health.Status != "healthy" {
		return errUnhealthy
	}
	return nil
}

func handleList(service *backup.BackupService, out io.Writer) error {
	backups, err := service.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		fmt.Fprintln(out, "No backups found")
		return nil
	}

	fmt.Fprintf(out, "Found %d backup(s):\n\n", len(backups))
	for i, b := range backups {
		fmt.Fprintf(out, "%d. %s\n", i+1, b.Path)
		fmt.Fprintf(out, "   Size: %.2f KB\n", float64(b.Size)/1024)
		fmt.Fprintf(out, "   Created: %s (%s ago)\n",
			b.Timestamp.Format(time.RFC3339),
			time.Since(b.Timestamp).Round(time.Minute))
		fmt.Fprintln(out)
	}
	return nil
}

func handleOneshot(ctx context.Context, service *backup.BackupService) error {
	log.Println("Performing one-time backup...")

	result, err := service.BackupNow(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	log.Printf("Backup completed successfully:")
	log.Printf("  Path: %s", result.Path)
	log.Printf("  Entities: %d, Relationships: %d", result.Entities, result.Relationships)
	log.Printf("  Size: %d bytes", result.Size)
	log.Printf("  Duration: %v", result.Duration)
	log.Printf("  Verified: %v", result.Verified)
	return nil
}

func runService(ctx context.Context, service *backup.BackupService) {
	// Start service in background
	go func() {
		if err := service.Start(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("Backup service error: %v", err)
			}
		}
	}()

	log.Println("osintgraph backup service started")
	log.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down backup service...")
	if err := service.Stop(); err != nil {
		log.Printf("Warning: %v", err)
	}

	log.Println("Backup service stopped")
}
