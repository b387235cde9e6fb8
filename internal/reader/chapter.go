package reader

import (
	"sync/atomic"

	"github.com/dgallion1/folio/internal/blocks"
	"github.com/dgallion1/folio/internal/paginate"
)

// Layout is one published pagination result for a chapter. It is never
// modified after publication.
type Layout struct {
	Params paginate.Params
	Pages  []paginate.Page
}

// Chapter holds a chapter's parsed blocks, its measurable units and the most
// recently published layout.
type Chapter struct {
	Index  int
	Title  string
	Blocks []blocks.Block

	// LoadErr records why the chapter's content could not be read. Such
	// chapters carry no blocks and lay out to the "no content" page.
	LoadErr error

	contentLen int
	units      []*paginate.Unit
	layout     atomic.Pointer[Layout]
}

// NewChapter builds a chapter from parsed blocks. rawLen is the length of the
// chapter's source content and weights the chapter in Progress.
func NewChapter(index int, title string, bs []blocks.Block, rawLen int) *Chapter {
	return &Chapter{
		Index:      index,
		Title:      title,
		Blocks:     bs,
		contentLen: rawLen,
		units:      paginate.NewUnits(blocks.Units(bs)),
	}
}

// Units returns the chapter's measurable units. Their height caches are
// only touched by the single layout run allowed per chapter.
func (c *Chapter) Units() []*paginate.Unit { return c.units }

// ContentLen returns the length of the chapter's source content.
func (c *Chapter) ContentLen() int { return c.contentLen }

// Layout returns the published layout, or nil before the first one.
func (c *Chapter) Layout() *Layout { return c.layout.Load() }

// PageCount returns the number of published pages, 0 without a layout.
func (c *Chapter) PageCount() int {
	if l := c.layout.Load(); l != nil {
		return len(l.Pages)
	}
	return 0
}

// FirstNonEmptyPage returns the index of the first page with visible
// content, or 0 when every page is empty.
func (c *Chapter) FirstNonEmptyPage() int {
	l := c.layout.Load()
	if l == nil {
		return 0
	}
	for i, p := range l.Pages {
		if !p.IsEmpty() {
			return i
		}
	}
	return 0
}

// LastNonEmptyPage returns the index of the last page with visible content,
// or the last index when every page is empty.
func (c *Chapter) LastNonEmptyPage() int {
	l := c.layout.Load()
	if l == nil {
		return 0
	}
	for i := len(l.Pages) - 1; i >= 0; i-- {
		if !l.Pages[i].IsEmpty() {
			return i
		}
	}
	return max(len(l.Pages)-1, 0)
}

func (c *Chapter) hasVisiblePage() bool {
	l := c.layout.Load()
	if l == nil {
		return false
	}
	for _, p := range l.Pages {
		if !p.IsEmpty() {
			return true
		}
	}
	return false
}
