package handlers

import (
	"github.com/scrypster/osintgraph/internal/backup"
	"github.com/scrypster/osintgraph/internal/engine"
	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// EntitiesResponse is the response format for GET /api/entities.
type EntitiesResponse struct {
	Entities []*types.Entity `json:"entities"`
	Total    int             `json:"total"`
}

// RelationshipsResponse is the response format for GET /api/relationships.
type RelationshipsResponse struct {
	Relationships []*types.Relationship `json:"relationships"`
	Total         int                   `json:"total"`
}

// CentralResponse is the response format for GET /api/graph/central.
type CentralResponse struct {
	Entities []engine.Centrality `json:"entities"`
}

// BridgesResponse is the response format for GET /api/graph/bridges.
type BridgesResponse struct {
	Bridges []*types.Relationship `json:"bridges"`
}

// SnapshotsResponse is the response format for GET /api/snapshots.
type SnapshotsResponse struct {
	Snapshots []storage.SnapshotInfo `json:"snapshots"`
}

// StatsResponse is the response format for GET /api/stats.
type StatsResponse struct {
	Entities          int                    `json:"entities"`
	Relationships     int                    `json:"relationships"`
	Clusters          int                    `json:"clusters"`
	ConfidenceAverage float64                `json:"confidence_average"`
	Graph             engine.GraphStatistics `json:"graph"`
	Backup            *backup.HealthStatus   `json:"backup,omitempty"`
}

// MessageResponse acknowledges state-changing requests.
type MessageResponse struct {
	Message string `json:"message"`
}
