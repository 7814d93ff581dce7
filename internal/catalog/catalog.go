// Package catalog scans a single folder into an ordered, id-addressed list of
// file records and tracks which of those records have since been retired.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrFolderUnavailable is returned when the folder to scan is missing,
	// not a directory, or unreadable.
	ErrFolderUnavailable = errors.New("folder unavailable")

	// ErrNotFound is returned for ids that were never issued or were retired.
	ErrNotFound = errors.New("file not found")
)

// FileRecord describes one regular file as seen at scan time. Records are
// immutable once created.
type FileRecord struct {
	ID      ID
	Name    string
	RelPath string // relative to the scanner root, slash separated
	Path    string // absolute path on disk
	Size    int64
	MTime   time.Time
}

// Scanner produces catalogs for folders under a fixed root. It owns the id
// space so that ids from an older scan can never collide with a newer one.
type Scanner struct {
	root   string
	exts   map[string]bool
	nextID atomic.Int64
	gen    atomic.Uint64
}

// NewScanner returns a Scanner for root. exts lists accepted file extensions
// (case-insensitive, with or without the leading dot); empty accepts all.
func NewScanner(root string, exts []string) *Scanner {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return &Scanner{root: root, exts: set}
}

// Root returns the directory all scanned folders live under.
func (s *Scanner) Root() string { return s.root }

// Scan reads the immediate entries of root/folder (folder == "" means the root
// itself) and returns a catalog of its regular files ordered by
// case-insensitive name. Subdirectories, hidden files, symlinks and entries
// whose metadata cannot be read are skipped.
func (s *Scanner) Scan(folder string) (*Catalog, error) {
	dir := filepath.Join(s.root, filepath.FromSlash(folder))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %w", ErrFolderUnavailable, dir, err)
	}

	records := make([]FileRecord, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() || entry.Type()&fs.ModeSymlink != 0 || !entry.Type().IsRegular() {
			continue
		}
		if len(s.exts) > 0 && !s.exts[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			slog.Debug("catalog: skip unreadable entry", "dir", dir, "name", name, "error", err)
			continue
		}
		records = append(records, FileRecord{
			Name:    name,
			RelPath: filepath.ToSlash(filepath.Join(folder, name)),
			Path:    filepath.Join(dir, name),
			Size:    info.Size(),
			MTime:   info.ModTime(),
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := strings.ToLower(records[i].Name), strings.ToLower(records[j].Name)
		if a != b {
			return a < b
		}
		return records[i].Name < records[j].Name
	})

	c := &Catalog{
		folder:     folder,
		dir:        dir,
		generation: s.gen.Add(1),
		records:    records,
		index:      make(map[ID]int, len(records)),
		byPath:     make(map[string]ID, len(records)),
		gone:       make(map[ID]struct{}),
	}
	for i := range c.records {
		id := ID(s.nextID.Add(1))
		c.records[i].ID = id
		c.index[id] = i
		c.byPath[c.records[i].Path] = id
	}
	return c, nil
}

// Catalog is the result of one scan: an ordered snapshot of records plus the
// set of ids retired since. Records are never removed from the snapshot, so
// positions derived from it stay stable.
type Catalog struct {
	folder     string
	dir        string
	generation uint64
	records    []FileRecord
	index      map[ID]int
	byPath     map[string]ID

	mu   sync.RWMutex
	gone map[ID]struct{}
}

// Folder is the scanned folder relative to the root ("" for the root).
func (c *Catalog) Folder() string { return c.folder }

// Dir is the absolute scanned directory.
func (c *Catalog) Dir() string { return c.dir }

// Generation increases with every scan performed by the same Scanner.
func (c *Catalog) Generation() uint64 { return c.generation }

// Records returns the snapshot in scan order, including retired records.
// The returned slice must not be modified.
func (c *Catalog) Records() []FileRecord { return c.records }

// Len is the number of records in the snapshot.
func (c *Catalog) Len() int { return len(c.records) }

// Live reports whether id belongs to this snapshot and has not been retired.
func (c *Catalog) Live(id ID) bool {
	if _, ok := c.index[id]; !ok {
		return false
	}
	c.mu.RLock()
	_, retired := c.gone[id]
	c.mu.RUnlock()
	return !retired
}

// Resolve returns the record for a live id.
func (c *Catalog) Resolve(id ID) (FileRecord, error) {
	if !c.Live(id) {
		return FileRecord{}, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return c.records[c.index[id]], nil
}

// Invalidate retires id. It reports whether the id was live before the call.
func (c *Catalog) Invalidate(id ID) bool {
	if _, ok := c.index[id]; !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, retired := c.gone[id]; retired {
		return false
	}
	c.gone[id] = struct{}{}
	return true
}

// InvalidatePath retires the record scanned at the absolute path, if any.
func (c *Catalog) InvalidatePath(path string) (ID, bool) {
	id, ok := c.byPath[filepath.Clean(path)]
	if !ok {
		return 0, false
	}
	return id, c.Invalidate(id)
}

// Present reports whether id is live and its file still exists on disk.
// A file that has vanished is retired as a side effect.
func (c *Catalog) Present(id ID) bool {
	if !c.Live(id) {
		return false
	}
	if _, err := os.Lstat(c.records[c.index[id]].Path); errors.Is(err, fs.ErrNotExist) {
		if c.Invalidate(id) {
			slog.Info("catalog: file vanished", "id", id, "path", c.records[c.index[id]].Path)
		}
		return false
	}
	return true
}

// Retired is the number of ids retired since the scan.
func (c *Catalog) Retired() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.gone)
}
