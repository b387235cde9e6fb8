package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/folio/internal/config"
	"github.com/dgallion1/folio/internal/measure"
	"github.com/dgallion1/folio/internal/paginate"
	"github.com/dgallion1/folio/internal/position"
	"github.com/dgallion1/folio/internal/reader"
	"github.com/dgallion1/folio/internal/source"
)

// Every unit is 500 high, so at the default viewport each lands on its own
// page.
type fakeBackend struct {
	fail atomic.Bool
}

func (f *fakeBackend) MeasureHeight(text string, maxWidth float64, font measure.Font) (float64, error) {
	if f.fail.Load() {
		return 0, errors.New("backend down")
	}
	return 500, nil
}

func (f *fakeBackend) FormatLine(text string, offset int, maxWidth float64, font measure.Font) (measure.Line, error) {
	return measure.Line{Text: text[offset:], Start: offset, End: len(text)}, nil
}

// gateBackend blocks its first measurement until release is closed.
type gateBackend struct {
	fakeBackend
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gateBackend) MeasureHeight(text string, maxWidth float64, font measure.Font) (float64, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.fakeBackend.MeasureHeight(text, maxWidth, font)
}

const twoChapters = "# One\n\nalpha\n\nbeta\n\n# Two\n\ngamma\n"

func testConfig() config.Config {
	return config.Config{
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
}

func newTestOrchestrator(t *testing.T, cfg config.Config, backend measure.Backend, store position.Store, start bool) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(cfg, backend, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if start {
		o.Start(context.Background())
	}
	t.Cleanup(o.Stop)
	return o
}

func waitComplete(t *testing.T, b *reader.Book) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, complete := b.TotalPages(); complete {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("background layout did not complete")
}

func TestOpen_LoadsChaptersAndRestoresPosition(t *testing.T) {
	store := position.NewMemoryStore()
	data := []byte(twoChapters)
	ctx := context.Background()
	if err := store.SavePosition(ctx, position.Position{BookID: ContentHashHex(data), Chapter: 1, Page: 3}); err != nil {
		t.Fatalf("SavePosition: %v", err)
	}
	o := newTestOrchestrator(t, testConfig(), &fakeBackend{}, store, false)

	sess, err := o.Open(ctx, "book.md", data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if sess.Book.Title != "One" {
		t.Errorf("expected title One, got %q", sess.Book.Title)
	}
	chapters := sess.Book.Chapters()
	if len(chapters) != 2 || chapters[0].Title != "One" || chapters[1].Title != "Two" {
		t.Fatalf("unexpected chapters: %+v", chapters)
	}
	if got := sess.Book.Cursor(); got != (reader.Cursor{Chapter: 1, Page: 3}) {
		t.Errorf("expected restored cursor {1 3}, got %+v", got)
	}
	if _, err := o.Session(sess.ID); err != nil {
		t.Errorf("session not registered: %v", err)
	}
}

func TestOpen_Unsupported(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeBackend{}, position.NewMemoryStore(), false)
	if _, err := o.Open(context.Background(), "data.csv", []byte("a,b")); !errors.Is(err, source.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestLayout_PublishesAndFillsRemainingChapters(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeBackend{}, position.NewMemoryStore(), true)
	ctx := context.Background()
	sess, err := o.Open(ctx, "book.md", []byte(twoChapters))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	params := paginate.Params{Font: o.Config().Font()}
	l, err := o.Layout(ctx, sess, params)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	// Heading plus two paragraphs.
	if len(l.Pages) != 3 {
		t.Errorf("expected 3 pages, got %d", len(l.Pages))
	}
	waitComplete(t, sess.Book)
	if total, _ := sess.Book.TotalPages(); total != 5 {
		t.Errorf("expected 5 pages in total, got %d", total)
	}
	if snap := o.Stats(); snap.Count < 1 {
		t.Errorf("expected a recorded run, got %d", snap.Count)
	}
}

func TestRequestLayout_Supersedes(t *testing.T) {
	gate := &gateBackend{entered: make(chan struct{}), release: make(chan struct{})}
	o := newTestOrchestrator(t, testConfig(), gate, position.NewMemoryStore(), true)
	ctx := context.Background()
	sess, err := o.Open(ctx, "book.txt", []byte("hello world"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first := paginate.Params{ViewportHeight: 800, Font: o.Config().Font()}
	second := paginate.Params{ViewportHeight: 900, Font: o.Config().Font()}
	t1, err := o.RequestLayout(sess, 0, first)
	if err != nil {
		t.Fatalf("RequestLayout: %v", err)
	}
	<-gate.entered
	t2, err := o.RequestLayout(sess, 0, second)
	if err != nil {
		t.Fatalf("RequestLayout: %v", err)
	}
	close(gate.release)

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := t1.Wait(wctx); !errors.Is(err, ErrSuperseded) {
		t.Errorf("expected first run superseded, got %v", err)
	}
	l, err := t2.Wait(wctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if l.Params != second {
		t.Errorf("expected second params published, got %+v", l.Params)
	}
	ch, _ := sess.Book.Chapter(0)
	if ch.Layout().Params != second {
		t.Errorf("chapter holds stale layout %+v", ch.Layout().Params)
	}
	if snap := o.Stats(); snap.Superseded != 1 {
		t.Errorf("expected 1 superseded run, got %d", snap.Superseded)
	}
}

func TestLayout_FailureKeepsPreviousPages(t *testing.T) {
	backend := &fakeBackend{}
	o := newTestOrchestrator(t, testConfig(), backend, position.NewMemoryStore(), true)
	ctx := context.Background()
	sess, err := o.Open(ctx, "book.txt", []byte("hello world"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	good := paginate.Params{Font: o.Config().Font()}
	if _, err := o.Layout(ctx, sess, good); err != nil {
		t.Fatalf("Layout: %v", err)
	}
	backend.fail.Store(true)
	narrow := paginate.Params{ViewportWidth: 300, Font: o.Config().Font()}
	if _, err := o.Layout(ctx, sess, narrow); !errors.Is(err, paginate.ErrMeasure) {
		t.Fatalf("expected ErrMeasure, got %v", err)
	}

	ch, _ := sess.Book.Chapter(0)
	if l := ch.Layout(); l == nil || l.Params != good {
		t.Errorf("expected previous layout kept, got %+v", l)
	}
	if snap := o.Stats(); snap.Failed != 1 {
		t.Errorf("expected 1 failed run, got %d", snap.Failed)
	}
}

func TestRequestLayout_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.LayoutQueue = 1
	o := newTestOrchestrator(t, cfg, &fakeBackend{}, position.NewMemoryStore(), false)
	sess, err := o.Open(context.Background(), "book.md", []byte(twoChapters))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t1, err := o.RequestLayout(sess, 0, sess.Params())
	if err != nil {
		t.Fatalf("RequestLayout: %v", err)
	}
	if _, err := o.RequestLayout(sess, 1, sess.Params()); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if _, err := o.RequestLayout(sess, 7, sess.Params()); !errors.Is(err, reader.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange for a missing chapter, got %v", err)
	}

	o.Stop()
	if _, err := t1.Wait(context.Background()); !errors.Is(err, ErrSuperseded) {
		t.Errorf("expected queued run resolved as superseded, got %v", err)
	}
}

func TestNavigate_LaysOutOnDemand(t *testing.T) {
	store := position.NewMemoryStore()
	o := newTestOrchestrator(t, testConfig(), &fakeBackend{}, store, true)
	ctx := context.Background()
	sess, err := o.Open(ctx, "book.md", []byte(twoChapters))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	cur, err := o.GoTo(ctx, sess, 1, 0)
	if err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if cur != (reader.Cursor{Chapter: 1, Page: 0}) {
		t.Errorf("expected {1 0}, got %+v", cur)
	}
	pos, err := store.LoadPosition(ctx, sess.BookID)
	if err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}
	if pos.Chapter != 1 || pos.Page != 0 {
		t.Errorf("expected saved position {1 0}, got %+v", pos)
	}
}

func TestNavigate_WalksWholeBook(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeBackend{}, position.NewMemoryStore(), true)
	ctx := context.Background()
	sess, err := o.Open(ctx, "book.md", []byte(twoChapters))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := o.Layout(ctx, sess, sess.Params()); err != nil {
		t.Fatalf("Layout: %v", err)
	}
	waitComplete(t, sess.Book)

	moves := 0
	for {
		_, err := o.Next(ctx, sess)
		if errors.Is(err, reader.ErrOutOfRange) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		moves++
	}
	if moves != 4 {
		t.Errorf("expected 4 moves across 5 pages, got %d", moves)
	}
	if got := sess.Book.Cursor(); got != (reader.Cursor{Chapter: 1, Page: 1}) {
		t.Errorf("expected cursor at the last page, got %+v", got)
	}

	cur, err := o.Previous(ctx, sess)
	if err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if cur != (reader.Cursor{Chapter: 1, Page: 0}) {
		t.Errorf("expected {1 0}, got %+v", cur)
	}
}

func TestBookmarks(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeBackend{}, position.NewMemoryStore(), false)
	ctx := context.Background()
	sess, err := o.Open(ctx, "book.md", []byte(twoChapters))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	b, err := o.AddBookmark(ctx, sess, "start")
	if err != nil {
		t.Fatalf("AddBookmark: %v", err)
	}
	if b.BookID != sess.BookID || b.Label != "start" || b.ID == "" {
		t.Errorf("unexpected bookmark %+v", b)
	}
	list, err := o.Bookmarks(ctx, sess)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one bookmark, got %v (%v)", list, err)
	}
	if err := o.DeleteBookmark(ctx, sess, b.ID); err != nil {
		t.Fatalf("DeleteBookmark: %v", err)
	}
	if err := o.DeleteBookmark(ctx, sess, b.ID); !errors.Is(err, position.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClose(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeBackend{}, position.NewMemoryStore(), false)
	sess, err := o.Open(context.Background(), "book.txt", []byte("hi"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := o.Close(sess.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := o.Session(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := o.Close(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second close, got %v", err)
	}
	if o.SessionCount() != 0 {
		t.Errorf("expected no sessions, got %d", o.SessionCount())
	}
}
