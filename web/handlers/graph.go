package handlers

import (
	"net/http"
)

// defaultCentralTop is the number of entities GET /api/graph/central returns
// without a top parameter.
const defaultCentralTop = 10

// GetGraph handles GET /api/graph - the node-link export of the graph.
func (h *APIHandlers) GetGraph(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.GraphExport())
}

// GetGraphStats handles GET /api/graph/stats.
func (h *APIHandlers) GetGraphStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.GraphStatistics())
}

// GetCentral handles GET /api/graph/central?top=N. A top of 0 or less
// returns every entity.
func (h *APIHandlers) GetCentral(w http.ResponseWriter, r *http.Request) {
	top := parseInt(r.URL.Query().Get("top"), defaultCentralTop)
	respondJSON(w, http.StatusOK, CentralResponse{Entities: h.session.CentralEntities(top)})
}

// GetBridges handles GET /api/graph/bridges.
func (h *APIHandlers) GetBridges(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, BridgesResponse{Bridges: h.session.Bridges()})
}

// GetPath handles GET /api/graph/path?from&to.
func (h *APIHandlers) GetPath(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		respondError(w, http.StatusBadRequest, "from and to are required", nil)
		return
	}
	path, ok := h.session.ShortestPath(from, to)
	if !ok {
		respondError(w, http.StatusNotFound, "no path between entities", nil)
		return
	}
	respondJSON(w, http.StatusOK, path)
}
