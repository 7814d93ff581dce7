package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/eargollo/dupview/internal/catalog"
	"github.com/eargollo/dupview/internal/media"
	"github.com/eargollo/dupview/internal/pairing"
	"github.com/eargollo/dupview/internal/review"
)

// ReviewHandler serves the pair review API: folder selection, paging,
// deletion and raw image bytes.
type ReviewHandler struct {
	Service   *review.Service
	PageLimit int // used when the request carries no limit
}

// FileInfo is the wire shape of a file record.
type FileInfo struct {
	ID        catalog.ID `json:"id"`
	Name      string     `json:"name"`
	RelPath   string     `json:"relpath"`
	SizeBytes int64      `json:"size_bytes"`
	MTimeISO  string     `json:"mtime_iso"`
	Width     int        `json:"width,omitempty"`
	Height    int        `json:"height,omitempty"`
}

func newFileInfo(rec catalog.FileRecord) FileInfo {
	fi := FileInfo{
		ID:        rec.ID,
		Name:      rec.Name,
		RelPath:   rec.RelPath,
		SizeBytes: rec.Size,
		MTimeISO:  rec.MTime.Format(time.RFC3339),
	}
	if w, h, ok := media.Dimensions(rec.Path); ok {
		fi.Width, fi.Height = w, h
	}
	return fi
}

type pairJSON struct {
	PairID   int      `json:"pair_id"`
	GroupKey string   `json:"group_key"`
	Left     FileInfo `json:"left"`
	Right    FileInfo `json:"right"`
}

type pairsResponse struct {
	SessionID  string     `json:"session_id"`
	Pairs      []pairJSON `json:"pairs"`
	NextCursor int        `json:"next_cursor"`
	Done       bool       `json:"done"`
	Total      int        `json:"total_candidate_pairs"`
}

type subfoldersResponse struct {
	Subfolders []string `json:"subfolders"`
	Current    *string  `json:"current"`
}

type setSubfolderRequest struct {
	Subfolder *string `json:"subfolder" validate:"omitempty,max=255"`
}

type deleteRequest struct {
	ID catalog.ID `json:"id" validate:"required,gt=0"`
}

// Subfolders handles GET /api/subfolders.
func (h *ReviewHandler) Subfolders(w http.ResponseWriter, r *http.Request) {
	names, err := h.Service.Subfolders()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := subfoldersResponse{Subfolders: names}
	if folder, _ := h.Service.Current(); folder != "" {
		resp.Current = &folder
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetSubfolder handles POST /api/set-subfolder. A null or empty subfolder
// selects the root.
func (h *ReviewHandler) SetSubfolder(w http.ResponseWriter, r *http.Request) {
	var req setSubfolderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	folder := ""
	if req.Subfolder != nil {
		folder = *req.Subfolder
	}
	if _, err := h.Service.Select(r.Context(), folder); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Pairs handles GET /api/pairs?cursor=&limit=&session=.
func (h *ReviewHandler) Pairs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cursor := 0
	if v := q.Get("cursor"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_CURSOR", "cursor must be a non-negative integer")
			return
		}
		cursor = n
	}
	limit := h.PageLimit
	if limit <= 0 {
		limit = 24
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = n
	}

	page, err := h.Service.NextPage(r.Context(), q.Get("session"), cursor, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := pairsResponse{
		SessionID:  page.SessionID,
		Pairs:      make([]pairJSON, 0, len(page.Pairs)),
		NextCursor: page.NextCursor,
		Done:       page.Done,
		Total:      page.Total,
	}
	for _, p := range page.Pairs {
		resp.Pairs = append(resp.Pairs, newPairJSON(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func newPairJSON(p pairing.Pair) pairJSON {
	return pairJSON{
		PairID:   p.Index,
		GroupKey: p.GroupKey,
		Left:     newFileInfo(p.Left),
		Right:    newFileInfo(p.Right),
	}
}

// Delete handles POST /api/delete.
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	if err := h.Service.Delete(r.Context(), req.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Image handles GET /img/{id}: the file's current bytes.
func (h *ReviewHandler) Image(w http.ResponseWriter, r *http.Request) {
	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}
	rec, err := h.Service.Resolve(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", media.ContentType(rec.Path))
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, rec.Path)
}
