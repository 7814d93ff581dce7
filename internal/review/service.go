package review

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/eargollo/dupview/internal/catalog"
	"github.com/eargollo/dupview/internal/metrics"
)

// Remover deletes a file from disk, permanently or recoverably.
type Remover interface {
	Remove(ctx context.Context, path, relPath string) error
}

// Options configures a Service.
type Options struct {
	// Folder is selected lazily on the first request if nothing was selected.
	Folder string
	// ExcludeDirs are absolute directories never offered as subfolders.
	ExcludeDirs []string
	// MaxLimit clamps page sizes; 0 means no clamp.
	MaxLimit int
	// Remover defaults to permanent deletion.
	Remover Remover
	Metrics  *metrics.Collector
	// OnSelect is called with the absolute directory of every new session.
	OnSelect func(dir string) error
}

// Service owns the single active Session of the process. Page reads,
// deletions and selections are serialised so that no page is built from a
// half-applied deletion.
type Service struct {
	scanner *catalog.Scanner
	opts    Options
	exclude map[string]struct{}

	selectMu sync.Mutex // serialises scans; the latest Select wins
	mu       sync.Mutex // guards session and all reads/writes through it
	session  *Session
}

// New creates a Service that scans folders through scanner.
func New(scanner *catalog.Scanner, opts Options) *Service {
	exclude := make(map[string]struct{}, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		if abs, err := filepath.Abs(d); err == nil {
			exclude[abs] = struct{}{}
		}
	}
	if opts.Remover == nil {
		opts.Remover = unlinker{}
	}
	return &Service{scanner: scanner, opts: opts, exclude: exclude}
}

// Root returns the directory whose subfolders are offered for review.
func (s *Service) Root() string { return s.scanner.Root() }

// unlinker deletes files permanently; used when no Remover is configured.
type unlinker struct{}

func (unlinker) Remove(_ context.Context, path, _ string) error { return os.Remove(path) }

// Subfolders lists the reviewable immediate subfolders of the root: no hidden
// directories and none of the excluded ones. The root itself is always
// selectable as "".
func (s *Service) Subfolders() ([]string, error) {
	root := s.scanner.Root()
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %w", catalog.ErrFolderUnavailable, root, err)
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(root, e.Name()))
		if err == nil {
			if _, skip := s.exclude[abs]; skip {
				continue
			}
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Current returns the active folder; ok is false when no session exists yet.
func (s *Service) Current() (folder string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return s.opts.Folder, false
	}
	return s.session.catalog.Folder(), true
}

// Select scans folder ("" for the root) and makes it the active session,
// discarding the previous one. On failure the previous session is kept.
func (s *Service) Select(ctx context.Context, folder string) (*Session, error) {
	if err := validFolderName(folder); err != nil {
		return nil, err
	}
	if folder != "" {
		abs, err := filepath.Abs(filepath.Join(s.scanner.Root(), folder))
		if _, skip := s.exclude[abs]; err == nil && skip {
			return nil, fmt.Errorf("%w: %q is not reviewable", catalog.ErrFolderUnavailable, folder)
		}
	}

	s.selectMu.Lock()
	defer s.selectMu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	cat, err := s.scanner.Scan(folder)
	if err != nil {
		return nil, err
	}
	sess := NewSession(cat)
	elapsed := time.Since(start)

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.opts.Metrics.ObserveScan(elapsed, cat.Len(), sess.Total())
	slog.Info("review: session started",
		"session", sess.ID,
		"folder", folder,
		"generation", cat.Generation(),
		"files", cat.Len(),
		"candidate_pairs", sess.Total(),
		"elapsed", elapsed)

	if s.opts.OnSelect != nil {
		if err := s.opts.OnSelect(cat.Dir()); err != nil {
			slog.Warn("review: on-select hook", "dir", cat.Dir(), "error", err)
		}
	}
	return sess, nil
}

// NextPage serves a page of the active session. If sessionID is non-empty it
// must name the active session, otherwise ErrSessionReset is returned.
func (s *Service) NextPage(ctx context.Context, sessionID string, cursor, limit int) (Page, error) {
	if limit <= 0 {
		return Page{}, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if s.opts.MaxLimit > 0 && limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}

	if _, err := s.active(ctx); err != nil {
		return Page{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session
	if sessionID != "" && sessionID != sess.ID {
		return Page{}, fmt.Errorf("%w: session %q is no longer active", ErrSessionReset, sessionID)
	}

	page, err := sess.NextPage(cursor, limit)
	if err != nil {
		return Page{}, err
	}
	s.opts.Metrics.ObservePage(len(page.Pairs), page.Skipped)
	return page, nil
}

// Delete removes the file behind id and retires the id so later pages skip
// every pair it belongs to. Pairs already delivered are not retracted.
func (s *Service) Delete(ctx context.Context, id catalog.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		s.opts.Metrics.ObserveDeletion("not_found")
		return fmt.Errorf("%w: id %s", catalog.ErrNotFound, id)
	}
	cat := s.session.catalog
	rec, err := cat.Resolve(id)
	if err != nil {
		s.opts.Metrics.ObserveDeletion("not_found")
		return err
	}

	if err := s.opts.Remover.Remove(ctx, rec.Path, rec.RelPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cat.Invalidate(id)
			s.opts.Metrics.ObserveDeletion("not_found")
			return fmt.Errorf("%w: %s no longer exists", catalog.ErrNotFound, rec.RelPath)
		}
		s.opts.Metrics.ObserveDeletion("io_error")
		return fmt.Errorf("%w: delete %s: %v", ErrIO, rec.RelPath, err)
	}

	cat.Invalidate(id)
	s.opts.Metrics.ObserveDeletion("ok")
	slog.Info("review: file deleted", "id", id, "relpath", rec.RelPath, "session", s.session.ID)
	return nil
}

// Resolve returns the record of a live id whose file is still on disk.
func (s *Service) Resolve(id catalog.ID) (catalog.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return catalog.FileRecord{}, fmt.Errorf("%w: id %s", catalog.ErrNotFound, id)
	}
	cat := s.session.catalog
	if !cat.Present(id) {
		return catalog.FileRecord{}, fmt.Errorf("%w: id %s", catalog.ErrNotFound, id)
	}
	return cat.Resolve(id)
}

// Vanished retires the record at path in the active session, if any. It is
// fed by filesystem notifications about changes made outside this process.
func (s *Service) Vanished(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return
	}
	if id, ok := s.session.catalog.InvalidatePath(path); ok {
		slog.Info("review: file removed externally", "id", id, "path", path)
	}
}

// SessionInfo summarises the active session.
type SessionInfo struct {
	ID         string    `json:"id"`
	Folder     string    `json:"folder"`
	Generation uint64    `json:"generation"`
	Files      int       `json:"files"`
	Retired    int       `json:"retired"`
	Total      int       `json:"total_candidate_pairs"`
	LastCursor int       `json:"last_cursor"`
	CreatedAt  time.Time `json:"created_at"`
}

// Info describes the active session, or returns nil when there is none.
func (s *Service) Info() *SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	sess := s.session
	return &SessionInfo{
		ID:         sess.ID,
		Folder:     sess.catalog.Folder(),
		Generation: sess.catalog.Generation(),
		Files:      sess.catalog.Len(),
		Retired:    sess.catalog.Retired(),
		Total:      sess.total,
		LastCursor: sess.lastCursor,
		CreatedAt:  sess.CreatedAt,
	}
}

// active returns the current session, creating it from the configured
// folder on first use.
func (s *Service) active(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess != nil {
		return sess, nil
	}
	return s.Select(ctx, s.opts.Folder)
}

// validFolderName accepts "" or a single, non-hidden path element.
func validFolderName(name string) error {
	if name == "" {
		return nil
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: invalid subfolder %q", catalog.ErrFolderUnavailable, name)
	}
	return nil
}
