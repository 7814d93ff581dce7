package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/eargollo/dupview/internal/trash"
)

// TrashHandler handles trash API endpoints.
type TrashHandler struct {
	Trash *trash.Manager
}

type trashListResponse struct {
	Items []trash.Item `json:"items"`
	Total int          `json:"total"`
}

type purgeResponse struct {
	Purged     int64  `json:"purged"`
	BytesFreed int64  `json:"bytes_freed"`
	Freed      string `json:"freed"`
}

// List handles GET /api/trash.
func (h *TrashHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Trash.List(r.Context())
	if err != nil {
		slog.Error("trash list", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trashListResponse{Items: items, Total: len(items)})
}

// Restore handles POST /api/trash/{id}/restore. The restored file shows up in
// review after its folder is selected again.
func (h *TrashHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid trash id")
		return
	}

	err = h.Trash.Restore(r.Context(), id)
	var conflict *trash.ErrRestoreConflict
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, okResponse{OK: true})
	case errors.Is(err, trash.ErrNotTrashed):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "RESTORE_CONFLICT", err.Error())
	default:
		slog.Error("trash restore", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "IO_ERROR", err.Error())
	}
}

// PurgeAll handles DELETE /api/trash.
func (h *TrashHandler) PurgeAll(w http.ResponseWriter, r *http.Request) {
	count, freed, err := h.Trash.PurgeAll(r.Context())
	if err != nil {
		slog.Error("trash purge", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, purgeResponse{
		Purged:     count,
		BytesFreed: freed,
		Freed:      humanize.Bytes(uint64(freed)),
	})
}
