package handlers

import (
	"log/slog"
	"net/http"

	"github.com/eargollo/dupview/internal/media"
	"github.com/eargollo/dupview/internal/review"
)

// FilesHandler handles file inspection endpoints for ids of the active session.
type FilesHandler struct {
	Service *review.Service
}

// fileInfoResponse is returned by GET /api/files/{id}/info.
type fileInfoResponse struct {
	FileInfo
	MimeType string           `json:"mime_type"`
	Image    *media.ImageMeta `json:"image,omitempty"`
}

// Info handles GET /api/files/{id}/info.
func (h *FilesHandler) Info(w http.ResponseWriter, r *http.Request) {
	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}
	rec, err := h.Service.Resolve(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	meta := media.ExtractImageMeta(rec.Path)
	resp := fileInfoResponse{
		FileInfo: newFileInfo(rec),
		MimeType: media.ContentType(rec.Path),
		Image:    &meta,
	}
	writeJSON(w, http.StatusOK, resp)
}

// Thumbnail handles GET /api/files/{id}/thumbnail.
// Returns a JPEG fitting 320x320.
func (h *FilesHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}
	rec, err := h.Service.Resolve(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	thumb, err := media.Thumbnail(rec.Path, 320, 320)
	if err != nil {
		slog.Error("files thumbnail: generate", "id", id, "path", rec.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "thumbnail generation failed")
		return
	}
	if thumb == nil {
		writeError(w, http.StatusNotFound, "NOT_PREVIEWABLE", "file cannot be previewed")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(thumb) //nolint:errcheck
}
