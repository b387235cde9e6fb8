package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/folio/internal/paginate"
	"github.com/dgallion1/folio/internal/position"
	"github.com/dgallion1/folio/internal/reader"
	"github.com/dgallion1/folio/internal/source"
	"github.com/dgallion1/folio/internal/ulid"
)

// Open reads a book file, loads and parses every chapter, restores the
// stored reading position and registers a new session. Chapters that fail
// to load become empty chapters.
func (o *Orchestrator) Open(ctx context.Context, filename string, data []byte) (*Session, error) {
	src, err := source.ForFile(filename, data)
	if err != nil {
		return nil, err
	}
	bookID := ContentHashHex(data)
	log := o.log.With("book", bookID, "filename", filename)

	chapters := make([]*reader.Chapter, src.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.PreloadConcurrency)
	for i := range chapters {
		g.Go(func() error {
			ch, err := src.Load(gctx, i)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				log.Warn("chapter load failed", "chapter", i, "error", err)
				c := reader.NewChapter(i, fmt.Sprintf("Chapter %d", i+1), nil, 0)
				c.LoadErr = err
				chapters[i] = c
				return nil
			}
			chapters[i] = reader.NewChapter(i, ch.Title, o.parser.Parse(ch.Content), len(ch.Content))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load chapters: %w", err)
	}

	book := reader.New(bookID, src.Title(), chapters)
	switch pos, err := o.store.LoadPosition(ctx, bookID); {
	case err == nil:
		book.GoTo(pos.Chapter, pos.Page)
	case !errors.Is(err, position.ErrNotFound):
		log.Warn("load position failed", "error", err)
	}

	params := paginate.Params{Font: o.cfg.Font()}
	sess := NewSession(ulid.New(), bookID, filename, book, params, o.cfg.LayoutRate, o.cfg.LayoutBurst)
	o.sessions.Put(sess)
	log.Info("book opened", "session", sess.ID, "title", book.Title, "chapters", len(chapters))
	return sess, nil
}

// Next moves to the next non-empty page.
func (o *Orchestrator) Next(ctx context.Context, sess *Session) (reader.Cursor, error) {
	return o.navigate(ctx, sess, (*reader.Book).Next)
}

// Previous moves to the previous non-empty page.
func (o *Orchestrator) Previous(ctx context.Context, sess *Session) (reader.Cursor, error) {
	return o.navigate(ctx, sess, (*reader.Book).Previous)
}

// GoTo moves to a chapter and page, clamped to the book.
func (o *Orchestrator) GoTo(ctx context.Context, sess *Session, chapter, page int) (reader.Cursor, error) {
	return o.navigate(ctx, sess, func(b *reader.Book) (reader.Cursor, error) {
		return b.GoTo(chapter, page)
	})
}

// navigate applies move, laying out whichever chapter it reports as missing
// and retrying until the cursor settles. A settled move is saved.
func (o *Orchestrator) navigate(ctx context.Context, sess *Session, move func(*reader.Book) (reader.Cursor, error)) (reader.Cursor, error) {
	attempts := len(sess.Book.Chapters()) + 1
	for range attempts {
		cur, err := move(sess.Book)
		chapter, needs := reader.NeedsLayout(err)
		if !needs {
			if err == nil {
				o.savePosition(ctx, sess)
			}
			return cur, err
		}
		t, err := o.RequestLayout(sess, chapter, sess.Params())
		if err != nil {
			return cur, err
		}
		if _, err := t.Wait(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
			return cur, err
		}
	}
	return sess.Book.Cursor(), fmt.Errorf("navigation did not settle after %d layouts", attempts)
}

// AddBookmark stores a bookmark at the session's cursor.
func (o *Orchestrator) AddBookmark(ctx context.Context, sess *Session, label string) (position.Bookmark, error) {
	cur := sess.Book.Cursor()
	b := position.Bookmark{
		ID:        ulid.New(),
		BookID:    sess.BookID,
		Chapter:   cur.Chapter,
		Page:      cur.Page,
		Label:     label,
		CreatedAt: time.Now(),
	}
	if err := o.store.AddBookmark(ctx, b); err != nil {
		return position.Bookmark{}, fmt.Errorf("add bookmark: %w", err)
	}
	return b, nil
}

// Bookmarks lists the bookmarks of the session's book.
func (o *Orchestrator) Bookmarks(ctx context.Context, sess *Session) ([]position.Bookmark, error) {
	return o.store.ListBookmarks(ctx, sess.BookID)
}

// DeleteBookmark removes one bookmark of the session's book.
func (o *Orchestrator) DeleteBookmark(ctx context.Context, sess *Session, id string) error {
	return o.store.DeleteBookmark(ctx, sess.BookID, id)
}
