package handlers

import (
	"net/http"

	"github.com/scrypster/osintgraph/internal/storage"
)

// ListSnapshots handles GET /api/snapshots.
func (h *APIHandlers) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := h.session.ListSnapshots(r.Context())
	if err != nil {
		respondError(w, statusForError(err), "failed to list snapshots", err)
		return
	}
	if infos == nil {
		infos = []storage.SnapshotInfo{}
	}
	respondJSON(w, http.StatusOK, SnapshotsResponse{Snapshots: infos})
}

// SaveSnapshot handles POST /api/snapshots/{name} - store the session
// under name, replacing any snapshot of that name.
func (h *APIHandlers) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	info, err := h.session.SaveSnapshot(r.Context(), name)
	if err != nil {
		respondError(w, statusForError(err), "failed to save snapshot", err)
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

// RestoreSnapshot handles POST /api/snapshots/{name}/restore. A snapshot
// that cannot be loaded leaves the session untouched.
func (h *APIHandlers) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.session.LoadSnapshot(r.Context(), name); err != nil {
		respondError(w, statusForError(err), "failed to restore snapshot", err)
		return
	}
	respondJSON(w, http.StatusOK, h.session.Result())
}

// DeleteSnapshot handles DELETE /api/snapshots/{name}.
func (h *APIHandlers) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.session.DeleteSnapshot(r.Context(), name); err != nil {
		respondError(w, statusForError(err), "failed to delete snapshot", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
