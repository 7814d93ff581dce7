package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"sync"

	"github.com/eargollo/dupview/internal/config"
	"github.com/eargollo/dupview/internal/db"
	"github.com/eargollo/dupview/internal/trash"
)

// ConfigHandler handles GET/PATCH /api/config.
type ConfigHandler struct {
	DB    *sql.DB
	Cfg   *config.Config
	Trash *trash.Manager
	mu    sync.Mutex // guards Cfg mutations
}

// ConfigPatch describes the fields that can be updated at runtime.
// Only supplied (non-nil) fields are applied.
type ConfigPatch struct {
	PermanentDelete    *bool `json:"permanent_delete"`
	TrashRetentionDays *int  `json:"trash_retention_days" validate:"omitempty,min=1,max=365"`
}

// Get handles GET /api/config.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, h.Cfg)
}

// Snapshot returns a copy of the current configuration.
func (h *ConfigHandler) Snapshot() config.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.Cfg
}

// Apply applies each non-nil patch field to Cfg, persists it to the settings
// table and pushes it to the trash manager.
func (h *ConfigHandler) Apply(patch ConfigPatch) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if patch.PermanentDelete != nil {
		v := *patch.PermanentDelete
		h.Cfg.PermanentDelete = v
		db.SaveSetting(h.DB, "permanent_delete", strconv.FormatBool(v))
		if h.Trash != nil {
			h.Trash.SetPermanent(v)
		}
	}
	if patch.TrashRetentionDays != nil {
		v := *patch.TrashRetentionDays
		h.Cfg.TrashRetentionDays = v
		db.SaveSetting(h.DB, "trash_retention_days", strconv.Itoa(v))
		if h.Trash != nil {
			h.Trash.SetRetentionDays(v)
		}
	}
}

// Update handles PATCH /api/config.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch ConfigPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return
	}
	h.Apply(patch)

	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, h.Cfg)
}
