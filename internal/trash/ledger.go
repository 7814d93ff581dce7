package trash

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (m *Manager) logDeletion(ctx context.Context, ex execer, path string, size int64, trigger string, trashID *int64) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO deletion_log (deleted_at, original_path, file_size, trigger, trash_id) VALUES (?, ?, ?, ?, ?)`,
		time.Now().Unix(), path, size, trigger, trashID)
	return err
}

// List returns the files currently in the trash, most recently trashed first.
func (m *Manager) List(ctx context.Context) ([]Item, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, original_path, rel_path, file_size, trashed_at, expires_at
		FROM trash
		WHERE status = 'trashed'
		ORDER BY trashed_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list trash: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var (
			it               Item
			trashed, expires int64
		)
		if err := rows.Scan(&it.ID, &it.OriginalPath, &it.RelPath, &it.FileSize, &trashed, &expires); err != nil {
			return nil, fmt.Errorf("list trash: %w", err)
		}
		it.TrashedAt = time.Unix(trashed, 0).UTC()
		it.ExpiresAt = time.Unix(expires, 0).UTC()
		items = append(items, it)
	}
	return items, rows.Err()
}

// PurgeAll deletes every trashed file now.
func (m *Manager) PurgeAll(ctx context.Context) (count, bytesFreed int64, err error) {
	count, bytesFreed, err = m.purge(ctx, "user", `status = 'trashed'`)
	if err == nil && count > 0 {
		slog.Info("trash: emptied", "files", count, "freed", humanize.Bytes(uint64(bytesFreed)))
	}
	return count, bytesFreed, err
}

// AutoPurge deletes trashed files whose retention has run out. It is run by
// the scheduler.
func (m *Manager) AutoPurge(ctx context.Context) error {
	count, bytesFreed, err := m.purge(ctx, "auto", `status = 'trashed' AND expires_at < ?`, time.Now().Unix())
	if err != nil {
		return err
	}
	if count > 0 {
		slog.Info("trash: auto-purge", "files", count, "freed", humanize.Bytes(uint64(bytesFreed)))
	}
	return nil
}

type purgeCandidate struct {
	id       int64
	original string
	trashed  string
	size     int64
}

// purge removes the trash entries matching where from disk and marks them
// purged. An entry whose file cannot be removed stays trashed for a later run.
func (m *Manager) purge(ctx context.Context, trigger, where string, args ...any) (count, bytesFreed int64, err error) {
	candidates, err := m.candidates(ctx, where, args...)
	if err != nil {
		return 0, 0, err
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return count, bytesFreed, err
		}
		if err := os.Remove(c.trashed); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("trash: purge file", "path", c.trashed, "error", err)
			continue
		}
		if err := m.markPurged(ctx, c, trigger); err != nil {
			slog.Error("trash: mark purged", "trash_id", c.id, "error", err)
		}
		count++
		bytesFreed += c.size
	}
	return count, bytesFreed, nil
}

// candidates loads all matching rows up front so the single pooled
// connection is free for the per-item updates.
func (m *Manager) candidates(ctx context.Context, where string, args ...any) ([]purgeCandidate, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, original_path, trash_path, file_size FROM trash WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("select purge candidates: %w", err)
	}
	defer rows.Close()

	var out []purgeCandidate
	for rows.Next() {
		var c purgeCandidate
		if err := rows.Scan(&c.id, &c.original, &c.trashed, &c.size); err != nil {
			return nil, fmt.Errorf("select purge candidates: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (m *Manager) markPurged(ctx context.Context, c purgeCandidate, trigger string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.logDeletion(ctx, tx, c.original, c.size, trigger, &c.id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE trash SET status = 'purged', purged_at = ?, purge_trigger = ? WHERE id = ?`,
		time.Now().Unix(), trigger, c.id,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// Totals reports ledger activity since the given time; the zero time means
// since the ledger was created.
func (m *Manager) Totals(ctx context.Context, since time.Time) (Totals, error) {
	var from int64
	if !since.IsZero() {
		from = since.Unix()
	}

	var t Totals
	err := m.db.QueryRowContext(ctx, `
		WITH removed AS (
			SELECT file_size FROM trash WHERE trashed_at >= ?1
			UNION ALL
			SELECT file_size FROM deletion_log WHERE trigger = 'permanent' AND deleted_at >= ?1
		)
		SELECT
			(SELECT COUNT(*) FROM removed),
			(SELECT COALESCE(SUM(file_size), 0) FROM removed),
			(SELECT COUNT(*) FROM deletion_log WHERE deleted_at >= ?1),
			(SELECT COALESCE(SUM(file_size), 0) FROM deletion_log WHERE deleted_at >= ?1)`,
		from,
	).Scan(&t.RemovedFiles, &t.RemovedBytes, &t.ReclaimedFiles, &t.ReclaimedBytes)
	if err != nil {
		return Totals{}, fmt.Errorf("ledger totals: %w", err)
	}
	return t, nil
}
