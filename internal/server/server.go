// Package server provides HTTP server initialization and lifecycle management
// for the osintgraph API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/osintgraph/internal/config"
	"github.com/scrypster/osintgraph/internal/services"
	"github.com/scrypster/osintgraph/web/handlers"
)

// version is reported by GET /api/health.
const version = "1.0.0"

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// NewHandler builds the complete HTTP handler: API routes behind token auth,
// the unauthenticated health check and the WebSocket endpoint, all wrapped
// in per-client rate limiting and security headers. backups may be nil.
func NewHandler(cfg *config.Config, session *services.SessionService, hub *handlers.WebSocketHub, backups handlers.BackupHealthGetter) http.Handler {
	apiHandlers := handlers.NewAPIHandlers(session, cfg.Server.MaxBodyBytes)
	statsHandler := handlers.NewStatsHandler(session, backups)

	// API routes (require auth in production mode)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/findings", apiHandlers.PostFindings)
	apiMux.HandleFunc("GET /api/result", apiHandlers.GetResult)
	apiMux.HandleFunc("POST /api/reset", apiHandlers.PostReset)
	apiMux.HandleFunc("GET /api/stats", statsHandler.GetStats)

	apiMux.HandleFunc("GET /api/entities", apiHandlers.ListEntities)
	apiMux.HandleFunc("GET /api/entities/{id}", apiHandlers.GetEntity)
	apiMux.HandleFunc("GET /api/relationships", apiHandlers.ListRelationships)

	apiMux.HandleFunc("GET /api/graph", apiHandlers.GetGraph)
	apiMux.HandleFunc("GET /api/graph/stats", apiHandlers.GetGraphStats)
	apiMux.HandleFunc("GET /api/graph/central", apiHandlers.GetCentral)
	apiMux.HandleFunc("GET /api/graph/bridges", apiHandlers.GetBridges)
	apiMux.HandleFunc("GET /api/graph/path", apiHandlers.GetPath)

	apiMux.HandleFunc("GET /api/snapshots", apiHandlers.ListSnapshots)
	apiMux.HandleFunc("POST /api/snapshots/{name}", apiHandlers.SaveSnapshot)
	apiMux.HandleFunc("POST /api/snapshots/{name}/restore", apiHandlers.RestoreSnapshot)
	apiMux.HandleFunc("DELETE /api/snapshots/{name}", apiHandlers.DeleteSnapshot)

	mux := http.NewServeMux()

	// Health endpoint, no auth required, used by monitoring
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":%q}`, version)
	})

	// Wrap API routes with auth middleware
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint (no auth required - origin validation handles security)
	mux.Handle("/ws", hub)

	// Wrap entire server with rate limiting, then security headers. A
	// non-positive rate disables limiting.
	var handler http.Handler = mux
	if cfg.Server.RateLimit > 0 {
		rateLimiter := handlers.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		handler = handlers.RateLimitMiddleware(handler, rateLimiter)
	}
	return securityHeadersMiddleware(handler)
}

// allowedOrigins lists the WebSocket origin host patterns: the local UI on
// the configured port plus the optional configured origin.
func allowedOrigins(cfg *config.Config, port int) []string {
	origins := []string{
		fmt.Sprintf("localhost:%d", port),
		fmt.Sprintf("127.0.0.1:%d", port),
	}
	if cfg.Server.AllowedOrigin != "" {
		origins = append(origins, cfg.Server.AllowedOrigin)
	}
	return origins
}

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with port 0)
// and the WebSocketHub, which already receives the session's events.
// The server shuts down when ctx is cancelled. backups may be nil.
func Start(ctx context.Context, cfg *config.Config, session *services.SessionService, backups handlers.BackupHealthGetter) (string, *handlers.WebSocketHub, error) {
	addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()
	port := listener.Addr().(*net.TCPAddr).Port

	wsHub := handlers.NewWebSocketHub(allowedOrigins(cfg, port)...)
	go wsHub.Run()
	session.SetOnEvent(func(ev services.Event) {
		wsHub.Broadcast(ev)
	})

	// Create server with security timeouts
	server := &http.Server{
		Handler:      NewHandler(cfg, session, wsHub, backups),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: ERROR: %v", err)
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	log.Printf("server: listening on %s", actualAddr)
	return actualAddr, wsHub, nil
}
