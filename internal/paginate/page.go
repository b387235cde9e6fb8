package paginate

import (
	"strings"

	"github.com/dgallion1/folio/internal/blocks"
	"github.com/dgallion1/folio/internal/measure"
)

// NoContentMarker is the text of the page produced for a chapter with no
// content.
const NoContentMarker = "No content"

// Page is one viewport-fitting bundle of units. Pages are never modified
// after a run returns them.
type Page struct {
	Number      int      `json:"number"` // 1-based within the chapter.
	Units       []string `json:"-"`
	Content     string   `json:"content"`
	Height      float64  `json:"height"`
	Placeholder bool     `json:"placeholder,omitempty"`
}

func newPage(number int, units []string, height float64) Page {
	return Page{
		Number:  number,
		Units:   units,
		Content: strings.Join(units, "\n"),
		Height:  height,
	}
}

// NoContentPage returns the placeholder page for an empty chapter.
func NoContentPage() Page {
	p := newPage(1, []string{"<p>" + NoContentMarker + "</p>"}, 0)
	p.Placeholder = true
	return p
}

// IsEmpty reports whether the page has nothing visible once markup and
// whitespace are removed.
func (p Page) IsEmpty() bool {
	return blocks.IsBlank(p.Content)
}

// Unit is a measurable piece of chapter content with a height cache keyed
// by the width and font it was measured at.
type Unit struct {
	Ordinal int
	Text    string

	measured bool
	key      unitKey
	height   float64
}

type unitKey struct {
	width float64
	font  measure.Font
}

// NewUnits builds units from texts, dropping empty and whitespace-only
// entries. Ordinals refer to positions in texts.
func NewUnits(texts []string) []*Unit {
	units := make([]*Unit, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		units = append(units, &Unit{Ordinal: i, Text: t})
	}
	return units
}

// Height returns the unit's rendered height, measuring only when the width
// or font differ from the cached measurement.
func (u *Unit) Height(o measure.Oracle, width float64, font measure.Font) (float64, error) {
	key := unitKey{width: width, font: font}
	if u.measured && u.key == key {
		return u.height, nil
	}
	h, err := o.MeasureHeight(u.Text, width, font)
	if err != nil {
		u.measured = false
		return 0, err
	}
	u.measured, u.key, u.height = true, key, h
	return h, nil
}
