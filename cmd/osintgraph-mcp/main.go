// Command osintgraph-mcp exposes the correlation session as a Model Context
// Protocol server over stdio.
//
// Startup sequence:
//  1. Load configuration from environment variables.
//  2. Open the snapshot store and restore the configured snapshot.
//  3. Serve JSON-RPC 2.0 requests from stdin, writing responses to stdout.
//  4. Save the session under the configured snapshot name on exit.
//
// ALL logging goes to stderr. Any bytes written to stdout that are not
// JSON-RPC 2.0 response frames corrupt the protocol.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrypster/osintgraph/internal/api/mcp"
	"github.com/scrypster/osintgraph/internal/config"
	"github.com/scrypster/osintgraph/internal/connections"
	"github.com/scrypster/osintgraph/internal/engine"
	"github.com/scrypster/osintgraph/internal/notify"
	"github.com/scrypster/osintgraph/internal/services"
	"github.com/scrypster/osintgraph/internal/storage"
)

func main() {
	// Redirect the default logger to stderr so that incidental log calls
	// never pollute the stdout JSON-RPC stream.
	log.SetOutput(os.Stderr)
	log.SetPrefix("osintgraph-mcp: ")
	log.SetFlags(log.LstdFlags)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

// run serves MCP requests from in until it is closed or ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	store, err := connections.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer store.Close()

	eng, err := engine.NewCorrelationEngine(engine.Config{Correlation: cfg.Correlation})
	if err != nil {
		return fmt.Errorf("failed to create correlation engine: %w", err)
	}
	session := services.NewSessionService(eng, store)

	events := notify.NewEventWriter(cfg.Storage.DataPath)
	session.SetOnEvent(func(ev services.Event) {
		if ev.Type != services.EventSnapshotSaved {
			return
		}
		if err := events.Notify(notify.EventSnapshotSaved, ev.Snapshot); err != nil {
			log.Printf("warning: %v", err)
		}
	})

	name := cfg.Storage.SnapshotName
	if name != "" {
		err := session.LoadSnapshot(ctx, name)
		switch {
		case err == nil:
			log.Printf("restored snapshot %q (%d entities)", name, len(session.Entities()))
		case errors.Is(err, storage.ErrNotFound):
			log.Printf("no snapshot %q yet, starting with an empty session", name)
		default:
			log.Printf("warning: failed to restore snapshot %q: %v", name, err)
		}
	}

	srv := mcp.NewServer(session, mcp.WithDefaultSnapshot(name))
	log.Println("MCP server ready, waiting for requests on stdin")

	serveErr := mcp.NewStdioTransport(srv, in, out).Serve(ctx)
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	}

	if name != "" {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := session.SaveSnapshot(saveCtx, name); err != nil {
			log.Printf("error: failed to save snapshot %q: %v", name, err)
			if serveErr == nil {
				serveErr = err
			}
		} else {
			log.Printf("saved snapshot %q", name)
		}
	}
	return serveErr
}
