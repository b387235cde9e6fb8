package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/dgallion1/folio/internal/paginate"
	"github.com/dgallion1/folio/internal/reader"
)

type jobKey struct {
	session string
	chapter int
}

// job is one pagination run of one chapter.
type job struct {
	key        jobKey
	sess       *Session
	params     paginate.Params
	background bool

	ctx    context.Context
	cancel context.CancelFunc
	prev   *job // Superseded run that must exit before this one starts.

	done   chan struct{}
	layout *reader.Layout
	err    error
}

// Ticket tracks a queued layout request.
type Ticket struct {
	j *job
}

// Done is closed once the run has finished, published or not.
func (t *Ticket) Done() <-chan struct{} { return t.j.done }

// Wait blocks until the run finishes or ctx ends. A run replaced by a newer
// request returns ErrSuperseded.
func (t *Ticket) Wait(ctx context.Context) (*reader.Layout, error) {
	select {
	case <-t.j.done:
		return t.j.layout, t.j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel abandons the run.
func (t *Ticket) Cancel() { t.j.cancel() }

// submit queues a run. With background set, a chapter already being laid
// out with the same params is left alone and the returned job is nil.
func (o *Orchestrator) submit(sess *Session, chapter int, params paginate.Params, background bool) (*job, error) {
	ctx, cancel := context.WithCancel(o.ctx)
	key := jobKey{session: sess.ID, chapter: chapter}
	j := &job{
		key:        key,
		sess:       sess,
		params:     params,
		background: background,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	prev := o.inflight[key]
	if background && prev != nil && prev.params == params {
		cancel()
		return nil, nil
	}
	j.prev = prev
	select {
	case o.queue <- j:
	default:
		cancel()
		return nil, ErrQueueFull
	}
	if prev != nil {
		prev.cancel()
	}
	o.inflight[key] = j
	return j, nil
}

func (o *Orchestrator) process(j *job) {
	if j.prev != nil {
		select {
		case <-j.prev.done:
		case <-o.ctx.Done():
			o.finish(j, nil, ErrSuperseded)
			return
		}
	}
	log := o.log.With("session", j.key.session, "chapter", j.key.chapter)
	if j.ctx.Err() != nil {
		o.stats.Record(OutcomeSuperseded, 0)
		o.finish(j, nil, ErrSuperseded)
		return
	}

	ch, err := j.sess.Book.Chapter(j.key.chapter)
	if err != nil {
		o.finish(j, nil, err)
		return
	}

	start := time.Now()
	pages, err := o.paginator.PaginateUnits(j.ctx, ch.Units(), j.params)
	elapsed := time.Since(start)
	if err != nil {
		if j.ctx.Err() != nil {
			o.stats.Record(OutcomeSuperseded, elapsed)
			o.finish(j, nil, ErrSuperseded)
			return
		}
		// Previous pages stay published; the next request retries.
		o.stats.Record(OutcomeFailed, elapsed)
		log.Warn("layout failed", "error", err, "duration_ms", elapsed.Milliseconds())
		o.finish(j, nil, err)
		return
	}

	layout := &reader.Layout{Params: j.params, Pages: pages}
	if !o.publish(j, layout) {
		o.stats.Record(OutcomeSuperseded, elapsed)
		o.finish(j, nil, ErrSuperseded)
		return
	}
	o.stats.Record(OutcomePublished, elapsed)
	log.Debug("layout published", "pages", len(pages), "duration_ms", elapsed.Milliseconds(), "background", j.background)

	if j.key.chapter == j.sess.Book.Cursor().Chapter {
		o.savePosition(o.ctx, j.sess)
	}
	if !j.background {
		o.layoutRemaining(j.sess, j.params)
	}
	o.finish(j, layout, nil)
}

// publish swaps the layout in if j is still the latest run for its chapter.
func (o *Orchestrator) publish(j *job, layout *reader.Layout) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[j.key] != j || j.ctx.Err() != nil {
		return false
	}
	j.sess.Book.Publish(j.key.chapter, layout)
	return true
}

func (o *Orchestrator) finish(j *job, layout *reader.Layout, err error) {
	o.mu.Lock()
	if o.inflight[j.key] == j {
		delete(o.inflight, j.key)
	}
	o.mu.Unlock()

	j.layout, j.err = layout, err
	j.cancel()
	close(j.done)
}

// layoutRemaining queues background runs for every chapter whose published
// layout does not match params.
func (o *Orchestrator) layoutRemaining(sess *Session, params paginate.Params) {
	for _, ch := range sess.Book.Chapters() {
		if l := ch.Layout(); l != nil && l.Params == params {
			continue
		}
		if _, err := o.submit(sess, ch.Index, params, true); err != nil {
			if errors.Is(err, ErrQueueFull) {
				o.log.Debug("background layout deferred", "session", sess.ID, "chapter", ch.Index)
				return
			}
		}
	}
}
