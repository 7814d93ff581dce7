package trash

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	internaldb "github.com/eargollo/dupview/internal/db"
)

// mustOpenDB opens a temp file SQLite database with the full schema applied.
func mustOpenDB(tb testing.TB) *sql.DB {
	tb.Helper()
	db, err := internaldb.Open(filepath.Join(tb.TempDir(), "test.db"))
	if err != nil {
		tb.Fatalf("open test DB: %v", err)
	}
	if err := internaldb.Migrate(context.Background(), db); err != nil {
		db.Close()
		tb.Fatalf("run migrations: %v", err)
	}
	tb.Cleanup(func() { db.Close() })
	return db
}

func writeFile(tb testing.TB, path, content string) {
	tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatal(err)
	}
}

func TestRemoveMovesIntoTrashMirroringRelPath(t *testing.T) {
	root := t.TempDir()
	trashDir := filepath.Join(root, ".image-dup-trash")
	src := filepath.Join(root, "2024", "A (2).jpg")
	writeFile(t, src, "copy")

	m := New(mustOpenDB(t), trashDir, false, 30)
	if err := m.Remove(context.Background(), src, "2024/A (2).jpg"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("source still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(trashDir, "2024", "A (2).jpg")); err != nil {
		t.Errorf("trashed file missing: %v", err)
	}

	items, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].RelPath != "2024/A (2).jpg" || items[0].FileSize != 4 {
		t.Fatalf("unexpected trash items: %+v", items)
	}
	if got := items[0].ExpiresAt.Sub(items[0].TrashedAt); got != 30*24*time.Hour {
		t.Errorf("retention = %v, want 30 days", got)
	}
}

func TestMoveToTrashDoesNotClobber(t *testing.T) {
	root := t.TempDir()
	trashDir := filepath.Join(root, ".trash")
	m := New(mustOpenDB(t), trashDir, false, 30)

	for i, content := range []string{"first", "second", "third"} {
		src := filepath.Join(root, "B.jpg")
		writeFile(t, src, content)
		if _, err := m.MoveToTrash(context.Background(), src, "B.jpg"); err != nil {
			t.Fatalf("MoveToTrash #%d: %v", i+1, err)
		}
	}

	for name, want := range map[string]string{"B.jpg": "first", "B (2).jpg": "second", "B (3).jpg": "third"} {
		got, err := os.ReadFile(filepath.Join(trashDir, name))
		if err != nil {
			t.Errorf("read %s: %v", name, err)
			continue
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestRemovePermanent(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "C.jpg")
	writeFile(t, src, "12345")

	m := New(mustOpenDB(t), filepath.Join(root, ".trash"), false, 30)
	m.SetPermanent(true)
	if err := m.Remove(context.Background(), src, "C.jpg"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file still present after permanent delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".trash")); !errors.Is(err, os.ErrNotExist) {
		t.Error("permanent delete must not create the trash directory")
	}

	totals, err := m.Totals(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.RemovedFiles != 1 || totals.ReclaimedBytes != 5 {
		t.Errorf("totals = %+v, want 1 removed and 5 bytes reclaimed", totals)
	}
}

func TestRemoveMissingFileIsNotExist(t *testing.T) {
	root := t.TempDir()
	m := New(mustOpenDB(t), filepath.Join(root, ".trash"), false, 30)
	err := m.Remove(context.Background(), filepath.Join(root, "gone.jpg"), "gone.jpg")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}

func TestRestore(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "D.jpg")
	writeFile(t, src, "d")
	m := New(mustOpenDB(t), filepath.Join(root, ".trash"), false, 30)

	id, err := m.MoveToTrash(context.Background(), src, "D.jpg")
	if err != nil {
		t.Fatalf("MoveToTrash: %v", err)
	}

	// Occupied original path → conflict.
	writeFile(t, src, "other")
	var conflict *ErrRestoreConflict
	if err := m.Restore(context.Background(), id); !errors.As(err, &conflict) {
		t.Fatalf("Restore over existing file: err = %v, want ErrRestoreConflict", err)
	}
	os.Remove(src)

	if err := m.Restore(context.Background(), id); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got, _ := os.ReadFile(src); string(got) != "d" {
		t.Errorf("restored content = %q, want %q", got, "d")
	}
	if err := m.Restore(context.Background(), id); !errors.Is(err, ErrNotTrashed) {
		t.Errorf("second Restore: err = %v, want ErrNotTrashed", err)
	}
}

func TestPurgeAllAndAutoPurge(t *testing.T) {
	root := t.TempDir()
	db := mustOpenDB(t)
	m := New(db, filepath.Join(root, ".trash"), false, 30)

	for _, name := range []string{"E.jpg", "F.jpg"} {
		p := filepath.Join(root, name)
		writeFile(t, p, "xx")
		if _, err := m.MoveToTrash(context.Background(), p, name); err != nil {
			t.Fatalf("MoveToTrash %s: %v", name, err)
		}
	}

	// Expire only F.jpg.
	if _, err := db.Exec(`UPDATE trash SET expires_at = ? WHERE rel_path = 'F.jpg'`, time.Now().Add(-time.Hour).Unix()); err != nil {
		t.Fatal(err)
	}
	if err := m.AutoPurge(context.Background()); err != nil {
		t.Fatalf("AutoPurge: %v", err)
	}
	items, _ := m.List(context.Background())
	if len(items) != 1 || items[0].RelPath != "E.jpg" {
		t.Fatalf("after auto-purge items = %+v, want only E.jpg", items)
	}

	count, freed, err := m.PurgeAll(context.Background())
	if err != nil {
		t.Fatalf("PurgeAll: %v", err)
	}
	if count != 1 || freed != 2 {
		t.Errorf("PurgeAll = (%d, %d), want (1, 2)", count, freed)
	}
	if _, err := os.Stat(filepath.Join(root, ".trash", "E.jpg")); !errors.Is(err, os.ErrNotExist) {
		t.Error("purged file still on disk")
	}

	totals, err := m.Totals(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.RemovedFiles != 2 || totals.ReclaimedFiles != 2 || totals.ReclaimedBytes != 4 {
		t.Errorf("totals = %+v", totals)
	}
}
