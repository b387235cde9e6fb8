// Package pipeline opens books into sessions and runs chapter layout on a
// bounded worker pool. A new layout request for a chapter supersedes the one
// in flight; only the latest run publishes its pages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/folio/internal/config"
	"github.com/dgallion1/folio/internal/markup"
	"github.com/dgallion1/folio/internal/measure"
	"github.com/dgallion1/folio/internal/paginate"
	"github.com/dgallion1/folio/internal/position"
	"github.com/dgallion1/folio/internal/reader"
)

var (
	// ErrQueueFull is returned when the layout queue has no room.
	ErrQueueFull = errors.New("layout queue is full")
	// ErrSuperseded resolves tickets whose run was cancelled by a newer
	// request for the same chapter or by shutdown.
	ErrSuperseded = errors.New("layout superseded")
)

// Orchestrator manages sessions and the layout worker pool.
type Orchestrator struct {
	cfg       config.Config
	sessions  *SessionStore
	queue     chan *job
	oracle    *measure.Serialized
	paginator *paginate.Paginator
	parser    *markup.Parser
	store     position.Store
	stats     *LayoutStats
	log       *slog.Logger

	mu       sync.Mutex
	inflight map[jobKey]*job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Calls into backend are serialized.
func NewOrchestrator(cfg config.Config, backend measure.Backend, store position.Store, log *slog.Logger) *Orchestrator {
	oracle := measure.Serialize(backend)
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:       cfg,
		sessions:  NewSessionStore(cfg.SessionTTL),
		queue:     make(chan *job, cfg.LayoutQueue),
		oracle:    oracle,
		paginator: paginate.New(oracle, cfg.Geometry()),
		parser:    markup.New(markup.Options{MaxDepth: cfg.MaxParseDepth}),
		store:     store,
		stats:     NewLayoutStats(time.Hour),
		log:       log,
		inflight:  make(map[jobKey]*job),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches worker goroutines. Cancelling ctx stops them like Stop.
func (o *Orchestrator) Start(ctx context.Context) {
	stop := context.AfterFunc(ctx, o.cancel)

	for range o.cfg.LayoutWorkers {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-o.ctx.Done():
					return
				case j := <-o.queue:
					o.process(j)
				}
			}
		}()
	}

	// Session cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer stop()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-o.ctx.Done():
				return
			case <-ticker.C:
				for _, id := range o.sessions.Cleanup() {
					o.cancelSession(id)
					o.log.Info("session expired", "session", id)
				}
			}
		}
	}()
}

// Stop cancels in-flight runs, waits for workers and resolves queued
// tickets with ErrSuperseded.
func (o *Orchestrator) Stop() {
	o.cancel()
	o.wg.Wait()
	for {
		select {
		case j := <-o.queue:
			o.finish(j, nil, ErrSuperseded)
		default:
			return
		}
	}
}

// Session returns an open session by ID.
func (o *Orchestrator) Session(id string) (*Session, error) {
	return o.sessions.Get(id)
}

// Close ends a session and cancels its layout runs.
func (o *Orchestrator) Close(id string) error {
	if !o.sessions.Delete(id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	o.cancelSession(id)
	return nil
}

// Oracle returns the serialized measurement backend.
func (o *Orchestrator) Oracle() measure.Backend { return o.oracle }

// Config returns the orchestrator's configuration.
func (o *Orchestrator) Config() config.Config { return o.cfg }

// Stats returns a snapshot of layout run statistics.
func (o *Orchestrator) Stats() StatsSnapshot {
	snap := o.stats.Snapshot()
	snap.QueueDepth = len(o.queue)
	return snap
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// SessionCount returns the number of open sessions.
func (o *Orchestrator) SessionCount() int {
	return o.sessions.Len()
}

// RequestLayout queues pagination of one chapter with params, cancelling
// any run already in flight for it.
func (o *Orchestrator) RequestLayout(sess *Session, chapter int, params paginate.Params) (*Ticket, error) {
	if _, err := sess.Book.Chapter(chapter); err != nil {
		return nil, err
	}
	j, err := o.submit(sess, chapter, params, false)
	if err != nil {
		return nil, err
	}
	return &Ticket{j: j}, nil
}

// Layout records params for the session and lays out the current chapter,
// waiting for the result. The remaining chapters follow in the background.
func (o *Orchestrator) Layout(ctx context.Context, sess *Session, params paginate.Params) (*reader.Layout, error) {
	sess.SetParams(params)
	t, err := o.RequestLayout(sess, sess.Book.Cursor().Chapter, params)
	if err != nil {
		return nil, err
	}
	return t.Wait(ctx)
}

func (o *Orchestrator) cancelSession(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key, j := range o.inflight {
		if key.session == id {
			j.cancel()
		}
	}
}

// savePosition emits the session's cursor to the position store.
func (o *Orchestrator) savePosition(ctx context.Context, sess *Session) {
	cur := sess.Book.Cursor()
	err := o.store.SavePosition(ctx, position.Position{
		BookID:    sess.BookID,
		Chapter:   cur.Chapter,
		Page:      cur.Page,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		o.log.Warn("save position failed", "session", sess.ID, "book", sess.BookID, "error", err)
	}
}
