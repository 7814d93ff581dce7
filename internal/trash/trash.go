// Package trash removes reviewed files, either for good or into a trash
// directory that mirrors the review root, and keeps a SQLite ledger of every
// removal so trashed files can be listed, restored and purged later.
package trash

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// PurgeJob is the scheduler job name under which AutoPurge runs.
const PurgeJob = "trash-purge"

// ErrNotTrashed is returned for ledger ids that are unknown or no longer in
// the trash (restored or purged).
var ErrNotTrashed = errors.New("trash item not found or already purged/restored")

// ErrRestoreConflict is returned when something already occupies the path a
// trashed file would be restored to.
type ErrRestoreConflict struct {
	Path string
}

func (e *ErrRestoreConflict) Error() string {
	return fmt.Sprintf("a file already exists at %q", e.Path)
}

// Item is one file currently in the trash.
type Item struct {
	ID           int64     `json:"id"`
	OriginalPath string    `json:"original_path"`
	RelPath      string    `json:"relpath"`
	FileSize     int64     `json:"size_bytes"`
	TrashedAt    time.Time `json:"trashed_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Totals summarises the ledger. Removed counts every file taken out of
// review, trashed or deleted; reclaimed counts bytes actually freed on disk.
type Totals struct {
	RemovedFiles   int64 `json:"removed_files"`
	RemovedBytes   int64 `json:"removed_bytes"`
	ReclaimedFiles int64 `json:"reclaimed_files"`
	ReclaimedBytes int64 `json:"reclaimed_bytes"`
}

// Manager implements file removal for the review service.
type Manager struct {
	db  *sql.DB
	dir string

	mu        sync.RWMutex
	permanent bool
	retention time.Duration
}

// New returns a Manager that trashes into dir. retentionDays <= 0 means 30.
func New(db *sql.DB, dir string, permanent bool, retentionDays int) *Manager {
	m := &Manager{db: db, dir: dir, permanent: permanent}
	m.SetRetentionDays(retentionDays)
	return m
}

// SetPermanent switches between permanent and recoverable removal.
func (m *Manager) SetPermanent(v bool) {
	m.mu.Lock()
	m.permanent = v
	m.mu.Unlock()
}

// SetRetentionDays changes how long files trashed from now on are kept.
func (m *Manager) SetRetentionDays(days int) {
	if days <= 0 {
		days = 30
	}
	m.mu.Lock()
	m.retention = time.Duration(days) * 24 * time.Hour
	m.mu.Unlock()
}

func (m *Manager) settings() (permanent bool, retention time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.permanent, m.retention
}

// Remove takes the file at path out of review according to the current
// mode. relPath, relative to the review root, places it inside the trash.
// A missing file yields an error matching os.ErrNotExist.
func (m *Manager) Remove(ctx context.Context, path, relPath string) error {
	if permanent, _ := m.settings(); permanent {
		return m.unlink(ctx, path)
	}
	_, err := m.MoveToTrash(ctx, path, relPath)
	return err
}

// MoveToTrash moves path to <dir>/<relPath>, never overwriting an earlier
// trashed file, and returns the ledger id of the new entry.
func (m *Manager) MoveToTrash(ctx context.Context, path, relPath string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %q: %w", path, err)
	}

	dest := freePath(filepath.Join(m.dir, filepath.FromSlash(relPath)))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create trash dir: %w", err)
	}
	if err := moveFile(path, dest); err != nil {
		return 0, fmt.Errorf("move %q to trash: %w", path, err)
	}

	_, retention := m.settings()
	now := time.Now()
	expires := now.Add(retention)
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO trash (original_path, rel_path, trash_path, file_size, trashed_at, expires_at, status)
		VALUES (?, ?, ?, ?, ?, ?, 'trashed')`,
		path, relPath, dest, info.Size(), now.Unix(), expires.Unix())
	if err != nil {
		// Without a ledger row the file could never be restored or purged.
		if rerr := moveFile(dest, path); rerr != nil {
			slog.Error("trash: undo move failed", "path", path, "trash_path", dest, "error", rerr)
		}
		return 0, fmt.Errorf("record trash entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record trash entry: %w", err)
	}
	slog.Info("trash: file trashed",
		"path", path,
		"trash_id", id,
		"size", humanize.Bytes(uint64(info.Size())),
		"expires", humanize.Time(expires))
	return id, nil
}

// unlink deletes path for good and logs it in deletion_log.
func (m *Manager) unlink(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %q: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %q: %w", path, err)
	}
	if err := m.logDeletion(ctx, m.db, path, info.Size(), "permanent", nil); err != nil {
		slog.Error("trash: deletion log", "path", path, "error", err)
	}
	slog.Info("trash: file deleted permanently", "path", path, "size", humanize.Bytes(uint64(info.Size())))
	return nil
}

// Restore moves a trashed file back to where it was removed from.
func (m *Manager) Restore(ctx context.Context, id int64) error {
	var original, trashed string
	err := m.db.QueryRowContext(ctx,
		`SELECT original_path, trash_path FROM trash WHERE id = ? AND status = 'trashed'`, id,
	).Scan(&original, &trashed)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotTrashed
	}
	if err != nil {
		return fmt.Errorf("look up trash entry %d: %w", id, err)
	}

	if _, err := os.Lstat(original); err == nil {
		return &ErrRestoreConflict{Path: original}
	}
	if err := os.MkdirAll(filepath.Dir(original), 0o755); err != nil {
		return fmt.Errorf("recreate %q: %w", filepath.Dir(original), err)
	}
	if err := moveFile(trashed, original); err != nil {
		return fmt.Errorf("restore %q: %w", original, err)
	}

	if _, err := m.db.ExecContext(ctx,
		`UPDATE trash SET status = 'restored', restored_at = ? WHERE id = ?`, time.Now().Unix(), id,
	); err != nil {
		slog.Error("trash: mark restored", "trash_id", id, "error", err)
	}
	slog.Info("trash: file restored", "path", original, "trash_id", id)
	return nil
}
