// Package handlers provides the HTTP handlers and middleware of the
// osintgraph API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/scrypster/osintgraph/internal/engine"
	"github.com/scrypster/osintgraph/internal/importer"
	"github.com/scrypster/osintgraph/internal/services"
	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/pkg/types"
)

// defaultMaxBodyBytes bounds a findings upload when no limit is configured.
const defaultMaxBodyBytes = 8 << 20

// APIHandlers serves the correlation session over HTTP.
type APIHandlers struct {
	session      *services.SessionService
	maxBodyBytes int64
}

// NewAPIHandlers creates the API handlers. maxBodyBytes <= 0 selects the
// default upload limit.
func NewAPIHandlers(session *services.SessionService, maxBodyBytes int64) *APIHandlers {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &APIHandlers{session: session, maxBodyBytes: maxBodyBytes}
}

// PostFindings handles POST /api/findings - ingest a batch of findings and
// return the resulting session state. The body is a JSON document (a list or
// {"findings": [...]}), JSON Lines or YAML, selected by the format query
// parameter or the Content-Type header.
func (h *APIHandlers) PostFindings(w http.ResponseWriter, r *http.Request) {
	format, err := requestFormat(r)
	if err != nil {
		respondError(w, http.StatusUnsupportedMediaType, "unsupported findings format", err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read request body", err)
		return
	}

	findings, err := importer.ParseFindings(body, format)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid findings", err)
		return
	}

	result := h.session.ProcessFindings(findings)
	respondJSON(w, http.StatusOK, result)
}

// requestFormat picks the findings format of a request.
func requestFormat(r *http.Request) (importer.Format, error) {
	if f := r.URL.Query().Get("format"); f != "" {
		return importer.ParseFormat(f)
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return importer.FormatJSON, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", err
	}
	switch mediaType {
	case "application/json", "text/json", "text/plain":
		return importer.FormatJSON, nil
	case "application/x-ndjson", "application/jsonl", "application/x-jsonlines":
		return importer.FormatJSONL, nil
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return importer.FormatYAML, nil
	}
	return importer.ParseFormat(strings.TrimPrefix(mediaType, "application/"))
}

// GetResult handles GET /api/result - the current correlation result.
func (h *APIHandlers) GetResult(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Result())
}

// ListEntities handles GET /api/entities with an optional kind filter.
func (h *APIHandlers) ListEntities(w http.ResponseWriter, r *http.Request) {
	kind := types.EntityKind(strings.ToLower(r.URL.Query().Get("kind")))

	entities := h.session.Entities()
	if kind != "" {
		filtered := make([]*types.Entity, 0, len(entities))
		for _, e := range entities {
			if e.Kind == kind {
				filtered = append(filtered, e)
			}
		}
		entities = filtered
	}
	respondJSON(w, http.StatusOK, EntitiesResponse{Entities: entities, Total: len(entities)})
}

// GetEntity handles GET /api/entities/{id}.
func (h *APIHandlers) GetEntity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entity, ok := h.session.Entity(id)
	if !ok {
		respondError(w, http.StatusNotFound, "entity not found", nil)
		return
	}
	respondJSON(w, http.StatusOK, entity)
}

// ListRelationships handles GET /api/relationships?entity_id&kind&min_confidence.
func (h *APIHandlers) ListRelationships(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := engine.RelationshipFilter{EntityID: q.Get("entity_id")}

	if k := q.Get("kind"); k != "" {
		kind, err := types.ParseRelationshipKind(k)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid relationship kind", err)
			return
		}
		filter.Kind = kind
	}
	if mc := q.Get("min_confidence"); mc != "" {
		v, err := strconv.ParseFloat(mc, 64)
		if err != nil || v < 0 || v > 100 {
			respondError(w, http.StatusBadRequest, "min_confidence must be a number in [0, 100]", err)
			return
		}
		filter.MinConfidence = v
	}

	rels := h.session.Relationships(filter)
	respondJSON(w, http.StatusOK, RelationshipsResponse{Relationships: rels, Total: len(rels)})
}

// PostReset handles POST /api/reset - drop all session state.
func (h *APIHandlers) PostReset(w http.ResponseWriter, r *http.Request) {
	h.session.Reset()
	respondJSON(w, http.StatusOK, MessageResponse{Message: "session reset"})
}

// parseInt parses an integer query parameter, falling back to defaultValue.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent.
		log.Printf("handlers: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}

// statusForError maps storage and session errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrCorruptSnapshot):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, services.ErrNoStore):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
