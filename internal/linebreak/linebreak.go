// Package linebreak streams formatted lines for continuous display.
package linebreak

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgallion1/folio/internal/blocks"
	"github.com/dgallion1/folio/internal/measure"
)

// ErrNoProgress is returned when the formatter returns a line that does not
// advance past its start offset.
var ErrNoProgress = errors.New("line formatter made no progress")

// Line is a formatted line or the blank spacer between two paragraphs.
// Offsets are relative to the paragraph's text.
type Line struct {
	measure.Line
	Paragraph int  `json:"paragraph"`
	Spacer    bool `json:"spacer,omitempty"`
}

// Renderer breaks text into lines at a fixed width.
type Renderer struct {
	f     measure.LineFormatter
	width float64
	font  measure.Font
}

// New returns a Renderer. Widths below one unit are raised to one.
func New(f measure.LineFormatter, width float64, font measure.Font) *Renderer {
	return &Renderer{f: f, width: max(width, 1), font: font}
}

// Lines yields the lines of text, one paragraph per blank-line separated
// block. Iteration is lazy and may be repeated. It stops at the first
// formatter error, which is yielded with a zero Line.
func (r *Renderer) Lines(text string) iter.Seq2[Line, error] {
	return func(yield func(Line, error) bool) {
		var e emitter
		for _, para := range splitParagraphs(text) {
			if !e.paragraph(r, para, r.font, yield) {
				return
			}
		}
	}
}

// Stream yields lines for a sequence of units. Each unit is reduced to its
// visible text and laid out as its own paragraph; headings use their
// scaled size.
func (r *Renderer) Stream(units []string) iter.Seq2[Line, error] {
	return func(yield func(Line, error) bool) {
		var e emitter
		for _, u := range units {
			font := r.font
			if level := blocks.HeadingLevel(u); level > 0 {
				font = font.Scaled(blocks.HeadingScale(level))
			}
			for _, para := range splitParagraphs(blocks.VisibleText(u)) {
				if !e.paragraph(r, para, font, yield) {
					return
				}
			}
		}
	}
}

// emitter tracks paragraph numbering and spacer placement across calls.
type emitter struct {
	index      int
	lastHeight float64
}

func (e *emitter) paragraph(r *Renderer, text string, font measure.Font, yield func(Line, error) bool) bool {
	if e.index > 0 {
		spacer := Line{Paragraph: e.index - 1, Spacer: true}
		spacer.Height = e.lastHeight / 2
		if !yield(spacer, nil) {
			return false
		}
	}
	for offset := 0; offset < len(text); {
		ln, err := r.f.FormatLine(text, offset, r.width, font)
		if err != nil {
			yield(Line{}, fmt.Errorf("format line at %d: %w", offset, err))
			return false
		}
		if ln.End <= offset {
			yield(Line{}, fmt.Errorf("%w at offset %d", ErrNoProgress, offset))
			return false
		}
		e.lastHeight = ln.Height
		if !yield(Line{Line: ln, Paragraph: e.index}, nil) {
			return false
		}
		offset = ln.End
	}
	e.index++
	return true
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
