package measure

import (
	"fmt"

	"github.com/mattn/go-runewidth"

	"github.com/dgallion1/folio/internal/blocks"
)

// Cells measures text on a fixed character grid, as a terminal shows it.
// Widths are in cells and each line is one row times the line height
// multiplier; font family and size are ignored except for heading scale,
// which has no effect on a grid.
type Cells struct {
	cond *runewidth.Condition
}

// NewCells returns a Cells backend. East Asian ambiguous-width runes count
// as two cells when eastAsian is set.
func NewCells(eastAsian bool) *Cells {
	cond := runewidth.NewCondition()
	cond.EastAsianWidth = eastAsian
	return &Cells{cond: cond}
}

func (c *Cells) MeasureHeight(text string, maxWidth float64, font Font) (float64, error) {
	plain, _ := prepare(text, font)
	n := countLines(plain, maxWidth, c.width)
	return float64(n) * rowPitch(font), nil
}

func (c *Cells) FormatLine(text string, offset int, maxWidth float64, font Font) (Line, error) {
	if offset < 0 || offset > len(text) {
		return Line{}, fmt.Errorf("offset %d out of range [0,%d]", offset, len(text))
	}
	end, next := breakLine(text, offset, maxWidth, c.width)
	return Line{
		Start:  offset,
		End:    next,
		Text:   text[offset:end],
		Width:  c.width(text[offset:end]),
		Height: rowPitch(font),
	}, nil
}

func (c *Cells) width(s string) float64 {
	return float64(c.cond.StringWidth(s))
}

func rowPitch(font Font) float64 {
	if font.LineHeight <= 0 {
		return 1
	}
	return font.LineHeight
}

// prepare reduces a fragment to plain text and applies the heading scale
// its opening tag implies.
func prepare(fragment string, font Font) (string, Font) {
	if level := blocks.HeadingLevel(fragment); level > 0 {
		font = font.Scaled(blocks.HeadingScale(level))
	}
	return blocks.VisibleText(fragment), font
}
