package api

import (
	"context"
	"database/sql"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eargollo/dupview/internal/api/handlers"
	"github.com/eargollo/dupview/internal/config"
	"github.com/eargollo/dupview/internal/metrics"
	"github.com/eargollo/dupview/internal/review"
	"github.com/eargollo/dupview/internal/scheduler"
	"github.com/eargollo/dupview/internal/trash"
)

// Deps are the collaborators the HTTP layer serves from.
type Deps struct {
	DB      *sql.DB
	Cfg     *config.Config
	Review  *review.Service
	Trash   *trash.Manager
	Sched   *scheduler.Scheduler
	Metrics *metrics.Collector
	Version string
	Pages   fs.FS // templates; nil disables the HTML pages
	Static  fs.FS // nil disables /static/
}

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr    string
	handler http.Handler
	srv     *http.Server
}

// New wires all routes and returns a Server ready to Run.
func New(addr string, d Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	reviewH := &handlers.ReviewHandler{Service: d.Review, PageLimit: d.Cfg.PageLimit}
	filesH := &handlers.FilesHandler{Service: d.Review}
	trashH := &handlers.TrashHandler{Trash: d.Trash}
	statsH := &handlers.StatsHandler{Trash: d.Trash}
	statusH := &handlers.StatusHandler{
		Service:       d.Review,
		Sched:         d.Sched,
		PurgeSchedule: d.Cfg.PurgeSchedule,
		Version:       d.Version,
	}
	configH := &handlers.ConfigHandler{DB: d.DB, Cfg: d.Cfg, Trash: d.Trash}

	r.Route("/api", func(r chi.Router) {
		r.Get("/subfolders", reviewH.Subfolders)
		r.Post("/set-subfolder", reviewH.SetSubfolder)
		r.Get("/pairs", reviewH.Pairs)
		r.Post("/delete", reviewH.Delete)

		r.Get("/files/{id}/info", filesH.Info)
		r.Get("/files/{id}/thumbnail", filesH.Thumbnail)

		r.Get("/trash", trashH.List)
		r.Post("/trash/{id}/restore", trashH.Restore)
		r.Delete("/trash", trashH.PurgeAll)

		r.Get("/stats", statsH.ServeHTTP)
		r.Get("/status", statusH.ServeHTTP)

		r.Get("/config", configH.Get)
		r.Patch("/config", configH.Update)
	})
	r.Get("/img/{id}", reviewH.Image)

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}
	if d.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(d.Static))))
	}
	if d.Pages != nil {
		ps := &pageServer{
			svc:         d.Review,
			trashMgr:    d.Trash,
			pageLimit:   d.Cfg.PageLimit,
			cfgH:        configH,
			templatesFS: d.Pages,
		}
		r.Get("/", ps.reviewPage)
		r.Get("/trash-ui", ps.trashPage)
		r.Get("/settings-ui", ps.settingsPage)

		// UI action endpoints (form POST -> redirect)
		r.Post("/ui/trash/{id}/restore", ps.uiTrashRestore)
		r.Post("/ui/trash/purge", ps.uiTrashPurge)
		r.Post("/ui/settings", ps.uiSettingsSave)
	}

	return &Server{
		addr:    addr,
		handler: r,
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
