package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/eargollo/dupview/internal/trash"
)

// StatsHandler handles GET /api/stats.
type StatsHandler struct {
	Trash *trash.Manager
	Now   func() time.Time // defaults to time.Now
}

type statsResponse struct {
	AllTime statsWindow `json:"all_time"`
	Last30d statsWindow `json:"last_30_days"`
}

type statsWindow struct {
	trash.Totals
	Removed   string `json:"removed"`
	Reclaimed string `json:"reclaimed"`
}

func newStatsWindow(t trash.Totals) statsWindow {
	return statsWindow{
		Totals:    t,
		Removed:   humanize.Bytes(uint64(t.RemovedBytes)),
		Reclaimed: humanize.Bytes(uint64(t.ReclaimedBytes)),
	}
}

// ServeHTTP handles GET /api/stats.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	all, err := h.Trash.Totals(r.Context(), time.Time{})
	if err != nil {
		slog.Error("stats: all-time totals", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	recent, err := h.Trash.Totals(r.Context(), now().AddDate(0, 0, -30))
	if err != nil {
		slog.Error("stats: 30 day totals", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		AllTime: newStatsWindow(all),
		Last30d: newStatsWindow(recent),
	})
}
