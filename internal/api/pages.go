package api

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/eargollo/dupview/internal/api/handlers"
	"github.com/eargollo/dupview/internal/review"
	"github.com/eargollo/dupview/internal/trash"
)

var templateFuncs = template.FuncMap{
	"humanBytes": func(n int64) string { return humanize.Bytes(uint64(n)) },
	"ago":        humanize.Time,
}

type baseData struct {
	FlashType    string
	FlashMessage string
}

type reviewPageData struct {
	baseData
	Root       string
	Subfolders []string
	Current    string
	PageLimit  int
}

type trashPageItem struct {
	ID            int64
	RelPath       string
	FileSize      int64
	TrashedAt     time.Time
	DaysRemaining int
}

type trashPageData struct {
	baseData
	Items     []trashPageItem
	TotalSize int64
}

type settingsPageData struct {
	baseData
	PermanentDelete    bool
	TrashRetentionDays int
	TrashDir           string
}

type pageServer struct {
	svc         *review.Service
	trashMgr    *trash.Manager
	pageLimit   int
	cfgH        *handlers.ConfigHandler
	templatesFS fs.FS
}

func (ps *pageServer) renderTemplate(w http.ResponseWriter, pageName string, data any) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(ps.templatesFS, "base.html", pageName)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		slog.Error("template execute", "name", pageName, "error", err)
	}
}

func flashFromQuery(r *http.Request) baseData {
	return baseData{
		FlashType:    r.URL.Query().Get("flash"),
		FlashMessage: r.URL.Query().Get("msg"),
	}
}

func uiRedirect(w http.ResponseWriter, r *http.Request, to, flashType, flashMsg string) {
	if flashMsg != "" {
		to += "?flash=" + url.QueryEscape(flashType) + "&msg=" + url.QueryEscape(flashMsg)
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// reviewPage renders the pair grid shell; pairs are loaded by app.js.
func (ps *pageServer) reviewPage(w http.ResponseWriter, r *http.Request) {
	d := reviewPageData{
		baseData:  flashFromQuery(r),
		Root:      ps.svc.Root(),
		PageLimit: ps.pageLimit,
	}
	d.Current, _ = ps.svc.Current()
	subs, err := ps.svc.Subfolders()
	if err != nil {
		d.FlashType, d.FlashMessage = "error", err.Error()
	}
	d.Subfolders = subs
	ps.renderTemplate(w, "review.html", d)
}

func (ps *pageServer) trashPage(w http.ResponseWriter, r *http.Request) {
	d := trashPageData{baseData: flashFromQuery(r)}
	items, err := ps.trashMgr.List(r.Context())
	if err != nil {
		slog.Error("trash page: list", "error", err)
		d.FlashType, d.FlashMessage = "error", "Could not read trash"
	}
	for _, it := range items {
		days := int(time.Until(it.ExpiresAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		d.Items = append(d.Items, trashPageItem{
			ID:            it.ID,
			RelPath:       it.RelPath,
			FileSize:      it.FileSize,
			TrashedAt:     it.TrashedAt,
			DaysRemaining: days,
		})
		d.TotalSize += it.FileSize
	}
	ps.renderTemplate(w, "trash.html", d)
}

func (ps *pageServer) uiTrashRestore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := ps.trashMgr.Restore(r.Context(), id); err != nil {
		uiRedirect(w, r, "/trash-ui", "error", "Restore failed: "+err.Error())
		return
	}
	uiRedirect(w, r, "/trash-ui", "success", "File restored. Select its folder again to review it.")
}

func (ps *pageServer) uiTrashPurge(w http.ResponseWriter, r *http.Request) {
	count, bytesFreed, err := ps.trashMgr.PurgeAll(r.Context())
	if err != nil {
		uiRedirect(w, r, "/trash-ui", "error", "Purge failed: "+err.Error())
		return
	}
	uiRedirect(w, r, "/trash-ui", "success",
		fmt.Sprintf("Purged %d files, freed %s", count, humanize.Bytes(uint64(bytesFreed))))
}

func (ps *pageServer) settingsPage(w http.ResponseWriter, r *http.Request) {
	cfg := ps.cfgH.Snapshot()
	ps.renderTemplate(w, "settings.html", settingsPageData{
		baseData:           flashFromQuery(r),
		PermanentDelete:    cfg.PermanentDelete,
		TrashRetentionDays: cfg.TrashRetentionDays,
		TrashDir:           cfg.TrashDir,
	})
}

func (ps *pageServer) uiSettingsSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		uiRedirect(w, r, "/settings-ui", "error", "Invalid form data")
		return
	}
	retention, err := strconv.Atoi(r.FormValue("trash_retention_days"))
	if err != nil || retention < 1 || retention > 365 {
		uiRedirect(w, r, "/settings-ui", "error", "Trash retention must be 1-365 days")
		return
	}
	permanent := r.FormValue("permanent_delete") == "on"

	ps.cfgH.Apply(handlers.ConfigPatch{
		PermanentDelete:    &permanent,
		TrashRetentionDays: &retention,
	})
	uiRedirect(w, r, "/settings-ui", "success", "Settings saved")
}
