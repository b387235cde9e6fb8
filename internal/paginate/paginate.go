// Package paginate packs measurable units into viewport-sized pages.
//
// Packing is greedy and single pass. Heights come only from the measurement
// oracle; a unit that does not fit on an empty page is split between words.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	"github.com/dgallion1/folio/internal/measure"
)

// ErrMeasure wraps oracle failures. A run that fails to measure returns no
// pages.
var ErrMeasure = errors.New("measure failed")

// Paginator runs pagination against one oracle.
type Paginator struct {
	oracle measure.Oracle
	cfg    Config
}

// New returns a Paginator. The zero Config selects DefaultConfig.
func New(oracle measure.Oracle, cfg Config) *Paginator {
	return &Paginator{oracle: oracle, cfg: cfg.orDefault()}
}

// Config returns the geometry constants in use.
func (p *Paginator) Config() Config { return p.cfg }

// Paginate packs texts into pages. Blank texts are skipped.
func (p *Paginator) Paginate(ctx context.Context, texts []string, params Params) ([]Page, error) {
	return p.PaginateUnits(ctx, NewUnits(texts), params)
}

// PaginateUnits packs pre-built units into pages, reusing their cached
// heights when params have not changed since they were measured.
func (p *Paginator) PaginateUnits(ctx context.Context, units []*Unit, params Params) ([]Page, error) {
	g := p.cfg.Geometry(params)
	font := params.Font

	var (
		pages  []Page
		acc    []string
		height float64
	)
	closePage := func() {
		pages = append(pages, newPage(len(pages)+1, acc, height))
		acc = nil
		height = 0
	}

	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := u.Height(p.oracle, g.PageWidth, font)
		if err != nil {
			return nil, fmt.Errorf("%w: unit %d: %w", ErrMeasure, u.Ordinal, err)
		}

		for {
			projected := h
			if len(acc) > 0 {
				projected = height + g.Spacing + h
			}
			if projected <= g.Threshold || (len(acc) == 0 && h <= g.Usable) {
				acc = append(acc, u.Text)
				height = projected
				break
			}
			if len(acc) > 0 {
				closePage()
				continue
			}

			split, err := p.splitWords(ctx, u, g, font)
			if err != nil {
				return nil, err
			}
			last := len(split) - 1
			for _, part := range split[:last] {
				pages = append(pages, newPage(len(pages)+1, []string{part.text}, part.height))
			}
			acc = []string{split[last].text}
			height = split[last].height
			break
		}
	}
	if len(acc) > 0 {
		closePage()
	}
	if len(pages) == 0 {
		pages = append(pages, NoContentPage())
	}
	return pages, nil
}

type part struct {
	text   string
	height float64
}

// splitWords breaks an oversized unit into candidates that each fit the
// usable height. A candidate always holds at least one word, so a single
// word taller than the page stays whole. Candidates are slices of the unit
// text, so whitespace between their words is kept as written.
func (p *Paginator) splitWords(ctx context.Context, u *Unit, g Geometry, font measure.Font) ([]part, error) {
	spans := wordSpans(u.Text)
	if len(spans) == 0 {
		return []part{{text: u.Text}}, nil
	}

	var out []part
	start, end := -1, -1
	var candHeight float64
	for _, sp := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trialStart := start
		if trialStart < 0 {
			trialStart = sp[0]
		}
		h, err := p.oracle.MeasureHeight(u.Text[trialStart:sp[1]], g.PageWidth, font)
		if err != nil {
			return nil, fmt.Errorf("%w: unit %d split: %w", ErrMeasure, u.Ordinal, err)
		}
		if h > g.Usable && start >= 0 {
			out = append(out, part{text: u.Text[start:end], height: candHeight})
			start, end = sp[0], sp[1]
			if candHeight, err = p.oracle.MeasureHeight(u.Text[start:end], g.PageWidth, font); err != nil {
				return nil, fmt.Errorf("%w: unit %d split: %w", ErrMeasure, u.Ordinal, err)
			}
			continue
		}
		start, end = trialStart, sp[1]
		candHeight = h
	}
	return append(out, part{text: u.Text[start:end], height: candHeight}), nil
}

// wordSpans returns the byte ranges of the whitespace-separated words in s.
func wordSpans(s string) [][2]int {
	var spans [][2]int
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, [2]int{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(s)})
	}
	return spans
}
