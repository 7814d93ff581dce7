package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/eargollo/dupview/internal/api"
	"github.com/eargollo/dupview/internal/catalog"
	"github.com/eargollo/dupview/internal/config"
	"github.com/eargollo/dupview/internal/db"
	"github.com/eargollo/dupview/internal/metrics"
	"github.com/eargollo/dupview/internal/review"
	"github.com/eargollo/dupview/internal/scheduler"
	"github.com/eargollo/dupview/internal/trash"
	"github.com/eargollo/dupview/internal/watch"
	"github.com/eargollo/dupview/web"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	root := flag.String("root", "", "photo root directory (overrides config)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	permanent := flag.Bool("permanent-delete", false, "delete files instead of moving them to the trash")
	flag.Parse()

	// ── Logging (initial — overridden below once config is loaded) ─────────
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// ── Config ─────────────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if *root != "" {
		cfg.SetRoot(*root)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	for _, dir := range []string{cfg.TrashDir, filepath.Dir(cfg.DBPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("create directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	// ── Database ───────────────────────────────────────────────────────────
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(context.Background(), database); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}
	if dbSettings, err := db.LoadSettings(context.Background(), database); err == nil {
		config.MergeDBSettings(cfg, dbSettings)
	} else {
		slog.Warn("load settings", "error", err)
	}
	// The flag wins over the persisted setting for this run only.
	if *permanent {
		cfg.PermanentDelete = true
	}

	slog.Info("dupview starting",
		"version", version,
		"root", cfg.Root,
		"http_addr", cfg.HTTPAddr,
		"db_path", cfg.DBPath,
		"trash_dir", cfg.TrashDir,
		"permanent_delete", cfg.PermanentDelete)

	// ── Review ─────────────────────────────────────────────────────────────
	trashMgr := trash.New(database, cfg.TrashDir, cfg.PermanentDelete, cfg.TrashRetentionDays)
	collector := metrics.New()

	var svc *review.Service
	var watcher *watch.Watcher
	if !cfg.DisableWatch {
		watcher, err = watch.New(func(path string) { svc.Vanished(path) })
		if err != nil {
			slog.Warn("file watcher unavailable, relying on stat checks", "error", err)
			watcher = nil
		}
	}

	opts := review.Options{
		Folder:      cfg.Subfolder,
		ExcludeDirs: []string{cfg.TrashDir},
		MaxLimit:    cfg.MaxPageLimit,
		Remover:     trashMgr,
		Metrics:     collector,
	}
	if watcher != nil {
		opts.OnSelect = watcher.Follow
	}
	svc = review.New(catalog.NewScanner(cfg.Root, cfg.ImageExts), opts)

	// ── Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.New()
	if err := sched.SetJob(trash.PurgeJob, cfg.PurgeSchedule, func() {
		slog.Info("auto-purge triggered")
		if err := trashMgr.AutoPurge(context.Background()); err != nil {
			slog.Error("auto-purge failed", "error", err)
		}
	}); err != nil {
		slog.Warn("failed to register auto-purge job", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	// ── Run ────────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := svc.Select(ctx, cfg.Subfolder); err != nil {
		// Not fatal: the user can pick another folder in the UI.
		slog.Warn("initial folder scan", "subfolder", cfg.Subfolder, "error", err)
	}

	srv := api.New(cfg.HTTPAddr, api.Deps{
		DB:      database,
		Cfg:     cfg,
		Review:  svc,
		Trash:   trashMgr,
		Sched:   sched,
		Metrics: collector,
		Version: version,
		Pages:   web.Templates,
		Static:  web.Static,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}
	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("dupview stopped")
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
