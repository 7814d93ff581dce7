package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eargollo/dupview/internal/catalog"
	"github.com/eargollo/dupview/internal/config"
	"github.com/eargollo/dupview/internal/db"
	"github.com/eargollo/dupview/internal/metrics"
	"github.com/eargollo/dupview/internal/review"
	"github.com/eargollo/dupview/internal/trash"
	"github.com/eargollo/dupview/web"
)

type testEnv struct {
	root    string
	cfg     *config.Config
	trash   *trash.Manager
	handler http.Handler
}

func newTestEnv(t *testing.T, files map[string]string) *testEnv {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.Migrate(context.Background(), database); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	cfg := &config.Config{Root: root}
	cfg.ApplyDefaults()
	trashMgr := trash.New(database, cfg.TrashDir, false, cfg.TrashRetentionDays)
	m := metrics.New()
	svc := review.New(catalog.NewScanner(root, cfg.ImageExts), review.Options{
		ExcludeDirs: []string{cfg.TrashDir},
		MaxLimit:    cfg.MaxPageLimit,
		Remover:     trashMgr,
		Metrics:     m,
	})
	srv := New("127.0.0.1:0", Deps{
		DB:      database,
		Cfg:     cfg,
		Review:  svc,
		Trash:   trashMgr,
		Metrics: m,
		Version: "test",
		Pages:   web.Templates,
		Static:  web.Static,
	})
	return &testEnv{root: root, cfg: cfg, trash: trashMgr, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type wireFile struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	RelPath   string `json:"relpath"`
	SizeBytes int64  `json:"size_bytes"`
	MTimeISO  string `json:"mtime_iso"`
}

type wirePage struct {
	SessionID string `json:"session_id"`
	Pairs     []struct {
		PairID   int      `json:"pair_id"`
		GroupKey string   `json:"group_key"`
		Left     wireFile `json:"left"`
		Right    wireFile `json:"right"`
	} `json:"pairs"`
	NextCursor int  `json:"next_cursor"`
	Done       bool `json:"done"`
	Total      int  `json:"total_candidate_pairs"`
}

type wireError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, status, rec.Body.String())
	}
	if e := decode[wireError](t, rec); e.Code != code || e.Error == "" {
		t.Errorf("error body = %+v, want code %s", e, code)
	}
}

var scenario = map[string]string{
	"2024/A.jpg":     strings.Repeat("a", 100),
	"2024/A (2).jpg": strings.Repeat("b", 200),
	"2024/B.jpg":     strings.Repeat("c", 50),
}

func TestPairsScenario(t *testing.T) {
	e := newTestEnv(t, scenario)

	if rec := e.do(t, "POST", "/api/set-subfolder", `{"subfolder": "2024"}`); rec.Code != http.StatusOK {
		t.Fatalf("set-subfolder: %d %s", rec.Code, rec.Body.String())
	}

	rec := e.do(t, "GET", "/api/pairs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("pairs: %d %s", rec.Code, rec.Body.String())
	}
	page := decode[wirePage](t, rec)
	if page.Total != 1 || len(page.Pairs) != 1 || !page.Done || page.NextCursor != 1 {
		t.Fatalf("page = %+v", page)
	}
	if page.SessionID == "" {
		t.Error("session_id missing")
	}
	p := page.Pairs[0]
	if p.PairID != 0 || p.GroupKey != "a" {
		t.Errorf("pair_id %d group_key %q", p.PairID, p.GroupKey)
	}
	if p.Left.Name != "A (2).jpg" || p.Left.SizeBytes != 200 || p.Left.RelPath != "2024/A (2).jpg" {
		t.Errorf("left = %+v", p.Left)
	}
	if p.Right.Name != "A.jpg" || p.Right.SizeBytes != 100 || p.Right.MTimeISO == "" {
		t.Errorf("right = %+v", p.Right)
	}

	rec = e.do(t, "GET", "/api/pairs?cursor=1&limit=24", "")
	page = decode[wirePage](t, rec)
	if len(page.Pairs) != 0 || !page.Done || page.Pairs == nil {
		t.Errorf("page at total = %+v (pairs must be an empty list)", page)
	}
}

func TestPairsRejectsBadInput(t *testing.T) {
	e := newTestEnv(t, scenario)

	expectError(t, e.do(t, "GET", "/api/pairs?limit=abc", ""), http.StatusBadRequest, "INVALID_LIMIT")
	expectError(t, e.do(t, "GET", "/api/pairs?limit=0", ""), http.StatusBadRequest, "INVALID_LIMIT")
	expectError(t, e.do(t, "GET", "/api/pairs?cursor=-1", ""), http.StatusBadRequest, "INVALID_CURSOR")
	expectError(t, e.do(t, "GET", "/api/pairs?cursor=x", ""), http.StatusBadRequest, "INVALID_CURSOR")
	expectError(t, e.do(t, "POST", "/api/set-subfolder", `{"subfolder": "missing"}`), http.StatusBadRequest, "FOLDER_UNAVAILABLE")
	expectError(t, e.do(t, "POST", "/api/set-subfolder", `not json`), http.StatusBadRequest, "INVALID_REQUEST")
	expectError(t, e.do(t, "POST", "/api/delete", `{}`), http.StatusBadRequest, "INVALID_ID")
	expectError(t, e.do(t, "POST", "/api/delete", `{"id": 424242}`), http.StatusNotFound, "NOT_FOUND")
	expectError(t, e.do(t, "GET", "/img/424242", ""), http.StatusNotFound, "NOT_FOUND")
	expectError(t, e.do(t, "GET", "/img/abc", ""), http.StatusBadRequest, "INVALID_ID")
}

func TestSubfolderSwitchResetsSession(t *testing.T) {
	files := map[string]string{
		"2023/x.jpg": "1", "2023/x (1).jpg": "2", "2023/x (2).jpg": "3",
		"2024/A.jpg": "4", "2024/A (2).jpg": "5",
		".hidden/A.jpg": "6", ".hidden/A (2).jpg": "7",
	}
	e := newTestEnv(t, files)

	subs := decode[struct {
		Subfolders []string `json:"subfolders"`
		Current    *string  `json:"current"`
	}](t, e.do(t, "GET", "/api/subfolders", ""))
	if strings.Join(subs.Subfolders, ",") != "2023,2024" || subs.Current != nil {
		t.Fatalf("subfolders = %+v", subs)
	}

	e.do(t, "POST", "/api/set-subfolder", `{"subfolder": "2023"}`)
	first := decode[wirePage](t, e.do(t, "GET", "/api/pairs?limit=1", ""))
	if first.Total != 3 || len(first.Pairs) != 1 {
		t.Fatalf("2023 page = %+v", first)
	}

	e.do(t, "POST", "/api/set-subfolder", `{"subfolder": "2024"}`)
	expectError(t, e.do(t, "GET", "/api/pairs?cursor=1&session="+first.SessionID, ""), http.StatusConflict, "SESSION_RESET")

	second := decode[wirePage](t, e.do(t, "GET", "/api/pairs", ""))
	if second.Total != 1 || second.SessionID == first.SessionID {
		t.Errorf("2024 page = %+v", second)
	}

	subs = decode[struct {
		Subfolders []string `json:"subfolders"`
		Current    *string  `json:"current"`
	}](t, e.do(t, "GET", "/api/subfolders", ""))
	if subs.Current == nil || *subs.Current != "2024" {
		t.Errorf("current = %v", subs.Current)
	}

	// Root has no images of its own.
	e.do(t, "POST", "/api/set-subfolder", `{"subfolder": null}`)
	root := decode[wirePage](t, e.do(t, "GET", "/api/pairs", ""))
	if root.Total != 0 || !root.Done {
		t.Errorf("root page = %+v", root)
	}
}

func TestDeleteTrashAndRestore(t *testing.T) {
	e := newTestEnv(t, scenario)
	e.do(t, "POST", "/api/set-subfolder", `{"subfolder": "2024"}`)
	page := decode[wirePage](t, e.do(t, "GET", "/api/pairs", ""))
	victim := page.Pairs[0].Left

	img := e.do(t, "GET", "/img/"+catalog.ID(victim.ID).String(), "")
	if img.Code != http.StatusOK || img.Body.Len() != 200 {
		t.Fatalf("img: %d, %d bytes", img.Code, img.Body.Len())
	}

	rec := e.do(t, "POST", "/api/delete", `{"id": "`+catalog.ID(victim.ID).String()+`"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	trashed := filepath.Join(e.root, ".image-dup-trash", "2024", "A (2).jpg")
	if _, err := os.Stat(trashed); err != nil {
		t.Fatalf("file not in trash: %v", err)
	}

	expectError(t, e.do(t, "POST", "/api/delete", `{"id": `+catalog.ID(victim.ID).String()+`}`), http.StatusNotFound, "NOT_FOUND")
	expectError(t, e.do(t, "GET", "/img/"+catalog.ID(victim.ID).String(), ""), http.StatusNotFound, "NOT_FOUND")

	after := decode[wirePage](t, e.do(t, "GET", "/api/pairs", ""))
	if len(after.Pairs) != 0 || !after.Done || after.Total != 1 {
		t.Errorf("after delete = %+v", after)
	}

	list := decode[struct {
		Items []trash.Item `json:"items"`
		Total int          `json:"total"`
	}](t, e.do(t, "GET", "/api/trash", ""))
	if list.Total != 1 || list.Items[0].RelPath != "2024/A (2).jpg" {
		t.Fatalf("trash list = %+v", list)
	}

	id := list.Items[0].ID
	if rec := e.do(t, "POST", "/api/trash/"+itoa(id)+"/restore", ""); rec.Code != http.StatusOK {
		t.Fatalf("restore: %d %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(filepath.Join(e.root, "2024", "A (2).jpg")); err != nil {
		t.Errorf("file not restored: %v", err)
	}
	expectError(t, e.do(t, "POST", "/api/trash/"+itoa(id)+"/restore", ""), http.StatusNotFound, "NOT_FOUND")

	stats := e.do(t, "GET", "/api/stats", "")
	if stats.Code != http.StatusOK || !strings.Contains(stats.Body.String(), `"removed_files":1`) {
		t.Errorf("stats: %d %s", stats.Code, stats.Body.String())
	}
}

func TestConfigPatch(t *testing.T) {
	e := newTestEnv(t, scenario)

	expectError(t, e.do(t, "PATCH", "/api/config", `{"trash_retention_days": 0}`), http.StatusBadRequest, "INVALID_CONFIG")

	rec := e.do(t, "PATCH", "/api/config", `{"permanent_delete": true, "trash_retention_days": 7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body.String())
	}
	got := decode[config.Config](t, e.do(t, "GET", "/api/config", ""))
	if !got.PermanentDelete || got.TrashRetentionDays != 7 {
		t.Errorf("config = %+v", got)
	}

	// Permanent mode: the file is gone and nothing lands in the trash.
	e.do(t, "POST", "/api/set-subfolder", `{"subfolder": "2024"}`)
	page := decode[wirePage](t, e.do(t, "GET", "/api/pairs", ""))
	e.do(t, "POST", "/api/delete", `{"id": `+catalog.ID(page.Pairs[0].Right.ID).String()+`}`)
	if _, err := os.Stat(filepath.Join(e.root, "2024", "A.jpg")); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}
	list := decode[struct {
		Total int `json:"total"`
	}](t, e.do(t, "GET", "/api/trash", ""))
	if list.Total != 0 {
		t.Errorf("trash total = %d, want 0", list.Total)
	}
}

func TestStatusPagesAndMetrics(t *testing.T) {
	e := newTestEnv(t, scenario)

	status := decode[map[string]any](t, e.do(t, "GET", "/api/status", ""))
	if status["version"] != "test" || status["session"] != nil {
		t.Errorf("status before first page = %v", status)
	}
	e.do(t, "GET", "/api/pairs", "")
	status = decode[map[string]any](t, e.do(t, "GET", "/api/status", ""))
	if status["session"] == nil {
		t.Error("status has no session after first page")
	}

	for _, path := range []string{"/", "/trash-ui", "/settings-ui"} {
		rec := e.do(t, "GET", path, "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "dupview") {
			t.Errorf("GET %s: %d", path, rec.Code)
		}
	}
	if rec := e.do(t, "GET", "/static/app.js", ""); rec.Code != http.StatusOK {
		t.Errorf("static: %d", rec.Code)
	}

	rec := e.do(t, "GET", "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "dupview_pages_served_total 1") {
		t.Errorf("metrics: %d", rec.Code)
	}
}

func itoa(n int64) string { return catalog.ID(n).String() }
