// Package measure defines the text measurement oracle the paginator and the
// line renderer consult, plus two backends: vector fonts via tdewolff/canvas
// and fixed terminal cells via go-runewidth.
package measure

import (
	"fmt"
	"strings"
	"sync"
)

// Alignment is horizontal paragraph alignment.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
	AlignJustify
)

var alignNames = [...]string{"left", "center", "right", "justify"}

func (a Alignment) String() string {
	if a < 0 || int(a) >= len(alignNames) {
		return "left"
	}
	return alignNames[a]
}

// ParseAlignment accepts the names returned by String, case-insensitively.
func ParseAlignment(s string) (Alignment, error) {
	for i, name := range alignNames {
		if strings.EqualFold(s, name) {
			return Alignment(i), nil
		}
	}
	return AlignLeft, fmt.Errorf("unknown alignment %q", s)
}

// Font carries the typographic parameters of a measurement.
type Font struct {
	Family     string
	Size       float64
	LineHeight float64 // multiplier of Size
	Align      Alignment
}

// Scaled returns f with Size multiplied by scale.
func (f Font) Scaled(scale float64) Font {
	f.Size *= scale
	return f
}

// LinePitch is the vertical advance of one line.
func (f Font) LinePitch() float64 {
	lh := f.LineHeight
	if lh <= 0 {
		lh = 1
	}
	return f.Size * lh
}

// Oracle reports the rendered height of text laid out within maxWidth.
// Results must be deterministic for fixed inputs.
type Oracle interface {
	MeasureHeight(text string, maxWidth float64, font Font) (float64, error)
}

// Line is one formatted line. Start and End are byte offsets into the
// source text; End is where the next line starts, so it includes any
// whitespace or newline consumed by the break.
type Line struct {
	Start  int     `json:"start"`
	End    int     `json:"end"`
	Text   string  `json:"text"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// LineFormatter formats the single line of text starting at offset.
type LineFormatter interface {
	FormatLine(text string, offset int, maxWidth float64, font Font) (Line, error)
}

// Backend is a measurement implementation offering both primitives.
type Backend interface {
	Oracle
	LineFormatter
}

// Serialized guards a backend with a mutex so layout runs for different
// chapters never call it concurrently.
type Serialized struct {
	mu sync.Mutex
	b  Backend
}

// Serialize wraps b.
func Serialize(b Backend) *Serialized {
	return &Serialized{b: b}
}

func (s *Serialized) MeasureHeight(text string, maxWidth float64, font Font) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.MeasureHeight(text, maxWidth, font)
}

func (s *Serialized) FormatLine(text string, offset int, maxWidth float64, font Font) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.FormatLine(text, offset, maxWidth, font)
}
