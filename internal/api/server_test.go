package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/folio/internal/config"
	"github.com/dgallion1/folio/internal/linebreak"
	"github.com/dgallion1/folio/internal/measure"
	"github.com/dgallion1/folio/internal/pipeline"
	"github.com/dgallion1/folio/internal/position"
	"github.com/dgallion1/folio/internal/reader"
)

const testKey = "test-key"

// stubBackend puts every unit on its own page at the default viewport and
// formats each paragraph as a single line.
type stubBackend struct{}

func (stubBackend) MeasureHeight(text string, maxWidth float64, font measure.Font) (float64, error) {
	return 500, nil
}

func (stubBackend) FormatLine(text string, offset int, maxWidth float64, font measure.Font) (measure.Line, error) {
	return measure.Line{Start: offset, End: len(text), Text: text[offset:], Height: 20}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, stubBackend{})
}

func newTestServerWith(t *testing.T, backend measure.Backend) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		APIKey:             testKey,
		MaxUploadBytes:     1 << 20,
		SessionTTL:         time.Hour,
		LayoutWorkers:      2,
		LayoutQueue:        16,
		PreloadConcurrency: 2,
		LayoutRate:         100,
		LayoutBurst:        100,
		MeasureBackend:     config.BackendCanvas,
		FontFamily:         "serif",
		FontSize:           16,
		LineHeight:         1.5,
		CloseTolerance:     0.02,
		MaxParseDepth:      64,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.NewOrchestrator(cfg, backend, position.NewMemoryStore(), log)
	orch.Start(context.Background())
	srv := httptest.NewServer(NewServer(orch, log, cfg))
	t.Cleanup(func() {
		srv.Close()
		orch.Stop()
	})
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func upload(t *testing.T, srv *httptest.Server, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return do(t, srv, http.MethodPost, "/api/books", &buf, mw.FormDataContentType())
}

func openBook(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := upload(t, srv, "book.md", "# One\n\nalpha\n\nbeta\n\n# Two\n\ngamma\n")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var out struct {
		SessionID string          `json:"session_id"`
		Book      reader.Snapshot `json:"book"`
	}
	decode(t, resp, &out)
	if out.SessionID == "" || len(out.Book.Chapters) != 2 {
		t.Fatalf("unexpected open response: %+v", out)
	}
	return out.SessionID
}

func TestHealth_NoAuth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/stats/layout")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestOpen_Unsupported(t *testing.T) {
	srv := newTestServer(t)
	resp := upload(t, srv, "data.csv", "a,b\n")
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", resp.StatusCode)
	}
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodGet, "/api/books/nope/page", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestReadingFlow(t *testing.T) {
	srv := newTestServer(t)
	id := openBook(t, srv)
	base := "/api/books/" + id

	resp := do(t, srv, http.MethodPut, base+"/layout", strings.NewReader(`{"viewport_height":800,"align":"justify"}`), "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("layout: expected 200, got %d", resp.StatusCode)
	}
	var snap reader.Snapshot
	decode(t, resp, &snap)
	if !snap.Chapters[0].Ready || snap.Chapters[0].Pages != 3 {
		t.Errorf("expected chapter 0 laid out in 3 pages, got %+v", snap.Chapters[0])
	}

	resp = do(t, srv, http.MethodGet, base+"/page", nil, "")
	var page pageResponse
	decode(t, resp, &page)
	if page.Cursor != (reader.Cursor{}) || page.ChapterTitle != "One" || page.OverallPage != 1 {
		t.Errorf("unexpected first page: %+v", page)
	}
	if !strings.Contains(page.Page.Content, "One") {
		t.Errorf("expected heading on first page, got %q", page.Page.Content)
	}

	resp = do(t, srv, http.MethodPost, base+"/goto", strings.NewReader(`{"chapter":1,"page":5}`), "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("goto: expected 200, got %d", resp.StatusCode)
	}
	decode(t, resp, &page)
	if page.Cursor != (reader.Cursor{Chapter: 1, Page: 1}) {
		t.Errorf("expected clamped cursor {1 1}, got %+v", page.Cursor)
	}

	resp = do(t, srv, http.MethodPost, base+"/next", nil, "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("next at the end: expected 409, got %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodPost, base+"/prev", nil, "")
	decode(t, resp, &page)
	if page.Cursor != (reader.Cursor{Chapter: 1, Page: 0}) {
		t.Errorf("expected {1 0} after prev, got %+v", page.Cursor)
	}
}

func TestLayout_RejectsBadInput(t *testing.T) {
	srv := newTestServer(t)
	id := openBook(t, srv)
	for _, body := range []string{`{`, `{"align":"diagonal"}`, `{"font_size":-1}`} {
		resp := do(t, srv, http.MethodPut, "/api/books/"+id+"/layout", strings.NewReader(body), "application/json")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestBlocksAndLines(t *testing.T) {
	srv := newTestServer(t)
	id := openBook(t, srv)

	resp := do(t, srv, http.MethodGet, "/api/books/"+id+"/chapters/0/blocks", nil, "")
	var out struct {
		Title  string           `json:"title"`
		Blocks []map[string]any `json:"blocks"`
	}
	decode(t, resp, &out)
	if out.Title != "One" || len(out.Blocks) != 3 {
		t.Fatalf("unexpected blocks response: %+v", out)
	}
	if out.Blocks[0]["type"] != "heading" {
		t.Errorf("expected a heading first, got %v", out.Blocks[0]["type"])
	}

	resp = do(t, srv, http.MethodGet, "/api/books/"+id+"/chapters/0/lines?width=300", nil, "")
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("unexpected content type %q", ct)
	}
	var texts []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		var line linebreak.Line
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		if !line.Spacer {
			texts = append(texts, line.Text)
		}
	}
	if strings.Join(texts, "|") != "One|alpha|beta" {
		t.Errorf("unexpected lines %v", texts)
	}

	resp = do(t, srv, http.MethodGet, "/api/books/"+id+"/chapters/9/blocks", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing chapter, got %d", resp.StatusCode)
	}
	resp = do(t, srv, http.MethodGet, "/api/books/"+id+"/chapters/0/lines?width=abc", nil, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad width, got %d", resp.StatusCode)
	}
}

func TestBookmarksAndClose(t *testing.T) {
	srv := newTestServer(t)
	id := openBook(t, srv)
	base := "/api/books/" + id

	resp := do(t, srv, http.MethodPost, base+"/bookmarks", strings.NewReader(`{"label":"start"}`), "application/json")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add bookmark: expected 201, got %d", resp.StatusCode)
	}
	var b position.Bookmark
	decode(t, resp, &b)

	resp = do(t, srv, http.MethodGet, base+"/bookmarks", nil, "")
	var list struct {
		Bookmarks []position.Bookmark `json:"bookmarks"`
	}
	decode(t, resp, &list)
	if len(list.Bookmarks) != 1 || list.Bookmarks[0].Label != "start" {
		t.Fatalf("unexpected bookmarks %+v", list.Bookmarks)
	}

	resp = do(t, srv, http.MethodDelete, base+"/bookmarks/"+b.ID, nil, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete bookmark: expected 204, got %d", resp.StatusCode)
	}
	resp = do(t, srv, http.MethodDelete, base+"/bookmarks/"+b.ID, nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodDelete, base, nil, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("close: expected 204, got %d", resp.StatusCode)
	}
	resp = do(t, srv, http.MethodGet, base, nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after close, got %d", resp.StatusCode)
	}
}

func TestLayoutStats(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodGet, "/api/stats/layout", nil, "")
	var out struct {
		Backend string                 `json:"backend"`
		Stats   pipeline.StatsSnapshot `json:"stats"`
	}
	decode(t, resp, &out)
	if out.Backend != config.BackendCanvas {
		t.Errorf("expected backend %q, got %q", config.BackendCanvas, out.Backend)
	}
}

// brokenFormatter measures normally but cannot format lines.
type brokenFormatter struct{ stubBackend }

func (brokenFormatter) FormatLine(text string, offset int, maxWidth float64, font measure.Font) (measure.Line, error) {
	return measure.Line{}, errors.New("formatter unavailable")
}

func TestLines_ReportsFormatterError(t *testing.T) {
	srv := newTestServerWith(t, brokenFormatter{})
	id := openBook(t, srv)

	resp := do(t, srv, http.MethodGet, "/api/books/"+id+"/chapters/0/lines", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 stream, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected a single error line, got %q", lines)
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(lines[0]), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(out["error"], "formatter unavailable") {
		t.Errorf("expected formatter error, got %q", out["error"])
	}
}
