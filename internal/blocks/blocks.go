package blocks

import "strconv"

// Block is one structural unit of chapter content. The set of implementations
// is closed: Paragraph, Heading, ListItem, Section and Image.
type Block interface {
	block()
}

// Style is a bit set of inline emphasis markers.
type Style uint8

const (
	Emphasis Style = 1 << iota
	Strong
	Underline
)

// Has reports whether every bit of o is set in s.
func (s Style) Has(o Style) bool { return s&o == o }

// Run is a piece of inline content: styled text, or an explicit line break
// when Break is set (Text is then empty).
type Run struct {
	Text  string
	Style Style
	Break bool
}

// Paragraph is a run of inline content.
type Paragraph struct {
	Runs []Run
}

// Heading is a level 1-6 heading.
type Heading struct {
	Level int
	Runs  []Run
}

// ListItem is one entry of an ordered or unordered list. Index is 1-based
// within its list; Depth is 0 for top-level lists.
type ListItem struct {
	Ordered bool
	Index   int
	Depth   int
	Runs    []Run
}

// Section groups child blocks.
type Section struct {
	Children []Block
}

// Image references an embedded or external picture. Src may not resolve;
// the block is kept either way.
type Image struct {
	Src string
	Alt string
}

func (Paragraph) block() {}
func (Heading) block()   {}
func (ListItem) block()  {}
func (Section) block()   {}
func (Image) block()     {}

// Bullet prefixes unordered list items.
const Bullet = "• "

// Marker returns the prefix rendered before the item's text.
func (li ListItem) Marker() string {
	if li.Ordered {
		return strconv.Itoa(li.Index) + ". "
	}
	return Bullet
}

var headingScale = [...]float64{1: 2.0, 2: 1.5, 3: 1.3, 4: 1.2, 5: 1.1, 6: 1.0}

// HeadingScale returns the font size multiplier for a heading level.
// Levels outside 1-6 get 1.0.
func HeadingScale(level int) float64 {
	if level < 1 || level > 6 {
		return 1.0
	}
	return headingScale[level]
}

// Walk calls fn for every block in depth-first order, sections before their
// children.
func Walk(bs []Block, fn func(Block)) {
	for _, b := range bs {
		fn(b)
		if s, ok := b.(Section); ok {
			Walk(s.Children, fn)
		}
	}
}

// RunsText concatenates the text of runs, rendering breaks as newlines.
func RunsText(runs []Run) string {
	var n int
	for _, r := range runs {
		n += len(r.Text) + 1
	}
	buf := make([]byte, 0, n)
	for _, r := range runs {
		if r.Break {
			buf = append(buf, '\n')
			continue
		}
		buf = append(buf, r.Text...)
	}
	return string(buf)
}
