// Package reader models an open book: chapters with atomically published
// layouts, a reading cursor, and page navigation across chapter boundaries.
package reader

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgallion1/folio/internal/paginate"
)

var (
	// ErrNoLayout is returned when a chapter has not been laid out yet.
	ErrNoLayout = errors.New("chapter has no layout")
	// ErrOutOfRange is returned when navigation runs past either end of the
	// book.
	ErrOutOfRange = errors.New("no further page")
)

// NeedsLayoutError names the chapter that must be laid out before a
// navigation can settle. It matches ErrNoLayout with errors.Is.
type NeedsLayoutError struct {
	Chapter int
}

func (e *NeedsLayoutError) Error() string {
	return fmt.Sprintf("chapter %d has no layout", e.Chapter)
}

func (e *NeedsLayoutError) Unwrap() error { return ErrNoLayout }

// NeedsLayout extracts the chapter index from a NeedsLayoutError.
func NeedsLayout(err error) (int, bool) {
	var nl *NeedsLayoutError
	if errors.As(err, &nl) {
		return nl.Chapter, true
	}
	return 0, false
}

// Cursor is a reading position. Both indexes are 0-based.
type Cursor struct {
	Chapter int `json:"chapter"`
	Page    int `json:"page"`
}

// Book is an ordered list of chapters plus the reading cursor. Methods are
// safe for concurrent use.
type Book struct {
	ID    string
	Title string

	chapters []*Chapter

	mu  sync.Mutex
	cur Cursor
}

// New creates a book positioned at the first page of the first chapter. A
// book always has at least one chapter.
func New(id, title string, chapters []*Chapter) *Book {
	if len(chapters) == 0 {
		chapters = []*Chapter{NewChapter(0, title, nil, 0)}
	}
	return &Book{ID: id, Title: title, chapters: chapters}
}

// Chapters returns the book's chapters in order.
func (b *Book) Chapters() []*Chapter { return b.chapters }

// Chapter returns the chapter at index i.
func (b *Book) Chapter(i int) (*Chapter, error) {
	if i < 0 || i >= len(b.chapters) {
		return nil, fmt.Errorf("%w: chapter %d", ErrOutOfRange, i)
	}
	return b.chapters[i], nil
}

// Cursor returns the current reading position.
func (b *Book) Cursor() Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cur
}

// CurrentPage returns the page under the cursor.
func (b *Book) CurrentPage() (paginate.Page, Cursor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := b.chapters[b.cur.Chapter].Layout()
	if l == nil || len(l.Pages) == 0 {
		return paginate.Page{}, b.cur, &NeedsLayoutError{Chapter: b.cur.Chapter}
	}
	return l.Pages[b.cur.Page], b.cur, nil
}

// Publish installs a new layout for a chapter and clamps the cursor into its
// page range when the chapter is current.
func (b *Book) Publish(chapter int, l *Layout) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chapters[chapter].layout.Store(l)
	if b.cur.Chapter == chapter {
		b.cur.Page = clampPage(b.cur.Page, len(l.Pages))
	}
}

// Next advances to the next non-empty page, crossing into later chapters as
// needed. When a chapter on the way has no layout the cursor is left alone
// and a NeedsLayoutError is returned.
func (b *Book) Next() (Cursor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l := b.chapters[b.cur.Chapter].Layout()
	if l == nil {
		return b.cur, &NeedsLayoutError{Chapter: b.cur.Chapter}
	}
	for i := b.cur.Page + 1; i < len(l.Pages); i++ {
		if !l.Pages[i].IsEmpty() {
			b.cur.Page = i
			return b.cur, nil
		}
	}
	for c := b.cur.Chapter + 1; c < len(b.chapters); c++ {
		ch := b.chapters[c]
		if ch.Layout() == nil {
			return b.cur, &NeedsLayoutError{Chapter: c}
		}
		if ch.hasVisiblePage() {
			b.cur = Cursor{Chapter: c, Page: ch.FirstNonEmptyPage()}
			return b.cur, nil
		}
	}
	return b.cur, ErrOutOfRange
}

// Previous moves back to the previous non-empty page, landing on the last
// non-empty page of an earlier chapter when crossing a boundary.
func (b *Book) Previous() (Cursor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l := b.chapters[b.cur.Chapter].Layout()
	if l == nil {
		return b.cur, &NeedsLayoutError{Chapter: b.cur.Chapter}
	}
	for i := min(b.cur.Page, len(l.Pages)) - 1; i >= 0; i-- {
		if !l.Pages[i].IsEmpty() {
			b.cur.Page = i
			return b.cur, nil
		}
	}
	for c := b.cur.Chapter - 1; c >= 0; c-- {
		ch := b.chapters[c]
		if ch.Layout() == nil {
			return b.cur, &NeedsLayoutError{Chapter: c}
		}
		if ch.hasVisiblePage() {
			b.cur = Cursor{Chapter: c, Page: ch.LastNonEmptyPage()}
			return b.cur, nil
		}
	}
	return b.cur, ErrOutOfRange
}

// GoTo moves the cursor, clamping both indexes. If the target chapter has no
// layout yet the cursor still moves and the page is clamped on Publish.
func (b *Book) GoTo(chapter, page int) (Cursor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	chapter = min(max(chapter, 0), len(b.chapters)-1)
	b.cur = Cursor{Chapter: chapter, Page: max(page, 0)}
	l := b.chapters[chapter].Layout()
	if l == nil {
		return b.cur, &NeedsLayoutError{Chapter: chapter}
	}
	b.cur.Page = clampPage(b.cur.Page, len(l.Pages))
	return b.cur, nil
}

// OverallPage returns the 1-based page number across the whole book.
// complete is false when an earlier chapter has no layout yet, in which case
// the number undercounts.
func (b *Book) OverallPage() (n int, complete bool) {
	b.mu.Lock()
	cur := b.cur
	b.mu.Unlock()

	complete = true
	for _, c := range b.chapters[:cur.Chapter] {
		if c.Layout() == nil {
			complete = false
		}
		n += c.PageCount()
	}
	return n + cur.Page + 1, complete
}

// TotalPages returns the page count of the whole book. complete is false
// while any chapter lacks a layout.
func (b *Book) TotalPages() (n int, complete bool) {
	complete = true
	for _, c := range b.chapters {
		if c.Layout() == nil {
			complete = false
		}
		n += c.PageCount()
	}
	return n, complete
}

// Progress returns reading progress as a percentage in [0, 100]. Chapters
// are weighted by content length and the current chapter contributes its
// share scaled by the cursor's page position.
func (b *Book) Progress() float64 {
	b.mu.Lock()
	cur := b.cur
	b.mu.Unlock()

	total := 0
	for _, c := range b.chapters {
		total += c.contentLen
	}
	if total == 0 {
		return 0
	}

	before := 0
	for _, c := range b.chapters[:cur.Chapter] {
		before += c.contentLen
	}
	progress := float64(before) / float64(total)
	current := b.chapters[cur.Chapter]
	if pages := current.PageCount(); pages > 0 {
		weight := float64(current.contentLen) / float64(total)
		progress += weight * float64(cur.Page) / float64(pages)
	}
	return min(100, max(0, progress*100))
}

func clampPage(page, count int) int {
	if count == 0 {
		return 0
	}
	return min(max(page, 0), count-1)
}
