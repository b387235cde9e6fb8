package paginate

import "github.com/dgallion1/folio/internal/measure"

// Config holds page geometry constants. The zero Config means
// DefaultConfig.
type Config struct {
	DefaultViewportHeight float64 // Used when the requested height is not positive.
	MinPageWidth          float64
	MaxPageWidth          float64
	WidthRatio            float64 // Page width as a fraction of viewport height.
	HorizontalInset       float64
	VerticalInset         float64
	MinUsableHeight       float64
	SpacingRatio          float64 // Paragraph spacing as a fraction of font size.
	MinSpacing            float64
	CloseTolerance        float64 // Overflow allowed before a page closes, as a fraction of usable height.
}

// DefaultConfig returns geometry tuned for point-based vector measurement.
func DefaultConfig() Config {
	return Config{
		DefaultViewportHeight: 800,
		MinPageWidth:          500,
		MaxPageWidth:          800,
		WidthRatio:            0.8,
		HorizontalInset:       8,
		VerticalInset:         4,
		MinUsableHeight:       400,
		SpacingRatio:          0.05,
		MinSpacing:            1,
		CloseTolerance:        0.02,
	}
}

// CellsConfig returns geometry for terminal grids, where widths are columns
// and heights are rows.
func CellsConfig() Config {
	return Config{
		DefaultViewportHeight: 24,
		MinPageWidth:          20,
		MaxPageWidth:          100,
		WidthRatio:            4,
		MinUsableHeight:       4,
		MinSpacing:            1,
	}
}

func (c Config) orDefault() Config {
	if c == (Config{}) {
		return DefaultConfig()
	}
	if c.DefaultViewportHeight <= 0 {
		c.DefaultViewportHeight = DefaultConfig().DefaultViewportHeight
	}
	if c.MaxPageWidth < c.MinPageWidth {
		c.MaxPageWidth = c.MinPageWidth
	}
	return c
}

// Params are the layout-affecting inputs of one pagination run.
type Params struct {
	ViewportHeight float64
	ViewportWidth  float64 // Optional; caps the derived page width when positive.
	Font           measure.Font
}

// Geometry is the derived page box for a run.
type Geometry struct {
	PageWidth float64
	Usable    float64
	Threshold float64
	Spacing   float64
}

// Geometry derives the page box for p.
func (c Config) Geometry(p Params) Geometry {
	c = c.orDefault()

	h := p.ViewportHeight
	if h <= 0 {
		h = c.DefaultViewportHeight
	}
	width := min(max(h*c.WidthRatio, c.MinPageWidth), c.MaxPageWidth)
	if p.ViewportWidth > 0 && p.ViewportWidth < width {
		width = p.ViewportWidth
	}
	width = max(width-c.HorizontalInset, 1)

	usable := max(c.MinUsableHeight, h-c.VerticalInset)
	return Geometry{
		PageWidth: width,
		Usable:    usable,
		Threshold: usable * (1 + c.CloseTolerance),
		Spacing:   max(c.MinSpacing, p.Font.Size*c.SpacingRatio),
	}
}
