package handlers

import (
	"log"
	"net/http"

	"github.com/scrypster/osintgraph/internal/backup"
	"github.com/scrypster/osintgraph/internal/services"
)

// BackupHealthGetter reports backup health. *backup.BackupService
// implements it.
type BackupHealthGetter interface {
	HealthCheck() (*backup.HealthStatus, error)
}

// StatsHandler handles statistics endpoint requests.
type StatsHandler struct {
	session *services.SessionService
	backups BackupHealthGetter
}

// NewStatsHandler creates a new StatsHandler. backups may be nil.
func NewStatsHandler(session *services.SessionService, backups BackupHealthGetter) *StatsHandler {
	return &StatsHandler{session: session, backups: backups}
}

// GetStats handles GET /api/stats - session counts, graph statistics and,
// when backups run, their health.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	result := h.session.Result()
	resp := StatsResponse{
		Entities:          len(result.Entities),
		Relationships:     len(result.Relationships),
		Clusters:          len(result.Clusters),
		ConfidenceAverage: result.ConfidenceAverage,
		Graph:             h.session.GraphStatistics(),
	}

	if h.backups != nil {
		health, err := h.backups.HealthCheck()
		if err != nil {
			// Stats stay available when the backup directory is not.
			log.Printf("handlers: WARNING: backup health check failed: %v", err)
			health = &backup.HealthStatus{Status: "error", Message: err.Error()}
		}
		resp.Backup = health
	}

	respondJSON(w, http.StatusOK, resp)
}
