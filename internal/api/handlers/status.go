package handlers

import (
	"net/http"
	"time"

	"github.com/eargollo/dupview/internal/review"
	"github.com/eargollo/dupview/internal/scheduler"
	"github.com/eargollo/dupview/internal/trash"
)

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	Service       *review.Service
	Sched         *scheduler.Scheduler
	PurgeSchedule string
	Version       string
}

type statusResponse struct {
	Version string              `json:"version"`
	Root    string              `json:"root"`
	Session *review.SessionInfo `json:"session"`
	Purge   purgeInfo           `json:"purge"`
}

type purgeInfo struct {
	Cron      string     `json:"cron"`
	NextRunAt *time.Time `json:"next_run_at"`
}

// ServeHTTP returns the process status as JSON. Session is null until a
// folder has been scanned.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version: h.Version,
		Root:    h.Service.Root(),
		Session: h.Service.Info(),
		Purge:   purgeInfo{Cron: h.PurgeSchedule},
	}
	if h.Sched != nil {
		resp.Purge.NextRunAt = h.Sched.NextRunAt(trash.PurgeJob)
	}
	writeJSON(w, http.StatusOK, resp)
}
