// Command osintgraph-web serves the correlation session over HTTP and
// WebSocket, restoring the saved session at startup, saving it on shutdown
// and optionally taking periodic backups.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/scrypster/osintgraph/internal/backup"
	"github.com/scrypster/osintgraph/internal/config"
	"github.com/scrypster/osintgraph/internal/connections"
	"github.com/scrypster/osintgraph/internal/engine"
	"github.com/scrypster/osintgraph/internal/notify"
	"github.com/scrypster/osintgraph/internal/server"
	"github.com/scrypster/osintgraph/internal/services"
	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/pkg/types"
	"github.com/scrypster/osintgraph/web/handlers"
)

// app is one running server instance.
type app struct {
	cfg     *config.Config
	store   storage.SnapshotStore
	session *services.SessionService
	backups *backup.BackupService
	events  *notify.EventWatcher
	inbox   *notify.InboxWatcher
	addr    string
	hub     *handlers.WebSocketHub
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := startApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	log.Printf("osintgraph API running at http://%s", a.addr)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	a.shutdown()
	time.Sleep(500 * time.Millisecond) // Give time for connections to close
}

// startApp opens the snapshot store, restores the saved session, starts
// backups when enabled and starts the HTTP server. Cancelling ctx stops the
// server and the backups; call shutdown afterwards to persist the session.
func startApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := connections.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	eng, err := engine.NewCorrelationEngine(engine.Config{Correlation: cfg.Correlation})
	if err != nil {
		store.Close()
		return nil, err
	}
	session := services.NewSessionService(eng, store)

	a := &app{cfg: cfg, store: store, session: session}
	a.restore(ctx)

	var health handlers.BackupHealthGetter
	if cfg.Backup.BackupEnabled {
		a.backups, err = backup.NewServiceFromConfig(cfg.Backup, session)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create backup service: %w", err)
		}
		health = a.backups
		go func() {
			if err := a.backups.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("backup: ERROR: service stopped: %v", err)
			}
		}()
	}

	if err := a.startWatchers(); err != nil {
		a.stopWatchers()
		store.Close()
		return nil, err
	}

	a.addr, a.hub, err = server.Start(ctx, cfg, session, health)
	if err != nil {
		a.stopWatchers()
		store.Close()
		return nil, err
	}
	return a, nil
}

// startWatchers reloads the session when another process saves the
// configured snapshot, and imports findings dropped into the inbox.
func (a *app) startWatchers() error {
	if name := a.cfg.Storage.SnapshotName; name != "" {
		a.events = notify.NewEventWatcher(a.cfg.Storage.DataPath, func(evt notify.Event) {
			if evt.Type != notify.EventSnapshotSaved || evt.Snapshot != name {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.session.LoadSnapshot(ctx, name); err != nil {
				log.Printf("WARNING: failed to reload snapshot %q: %v", name, err)
				return
			}
			log.Printf("Reloaded snapshot %q saved by another process", name)
		})
		if err := a.events.Start(); err != nil {
			a.events = nil
			return fmt.Errorf("failed to watch events: %w", err)
		}
	}

	if dir := a.cfg.Storage.InboxPath; dir != "" {
		a.inbox = notify.NewInboxWatcher(dir, 0, func(path string, findings []types.Finding) error {
			result := a.session.ProcessFindings(findings)
			log.Printf("Inbox: %s: %s", filepath.Base(path), result.Summary)
			return nil
		})
		if err := a.inbox.Start(); err != nil {
			a.inbox = nil
			return fmt.Errorf("failed to watch inbox: %w", err)
		}
	}
	return nil
}

func (a *app) stopWatchers() {
	if a.inbox != nil {
		a.inbox.Stop()
	}
	if a.events != nil {
		a.events.Stop()
	}
}

// restore loads the configured snapshot. A missing snapshot is a fresh
// start; any other failure is logged and the server starts empty.
func (a *app) restore(ctx context.Context) {
	name := a.cfg.Storage.SnapshotName
	if name == "" {
		return
	}
	err := a.session.LoadSnapshot(ctx, name)
	switch {
	case err == nil:
		log.Printf("Restored snapshot %q (%d entities)", name, len(a.session.Entities()))
	case errors.Is(err, storage.ErrNotFound):
		log.Printf("No snapshot %q yet, starting with an empty session", name)
	default:
		log.Printf("WARNING: failed to restore snapshot %q: %v", name, err)
	}
}

// shutdown saves the session under the configured snapshot name and closes
// the store.
func (a *app) shutdown() {
	a.stopWatchers()
	if a.backups != nil {
		_ = a.backups.Stop()
	}
	if name := a.cfg.Storage.SnapshotName; name != "" {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := a.session.SaveSnapshot(saveCtx, name); err != nil {
			log.Printf("ERROR: failed to save snapshot %q: %v", name, err)
		} else {
			log.Printf("Saved snapshot %q", name)
		}
	}
	if err := a.store.Close(); err != nil {
		log.Printf("Error closing snapshot store: %v", err)
	}
}
