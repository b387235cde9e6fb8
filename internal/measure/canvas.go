package measure

import (
	"fmt"
	"image/color"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// DefaultFamily is the family used when a Font names none or an unknown one.
const DefaultFamily = "Go"

// canvas measures text in millimetres; callers work in points.
const ptPerMM = 72.0 / 25.4

// Canvas measures text with real font outlines. Font sizes and widths are
// in points.
type Canvas struct {
	mu       sync.Mutex
	families map[string]*canvas.FontFamily
	faces    map[faceKey]*canvas.FontFace
}

type faceKey struct {
	family string
	size   float64
}

// NewCanvas returns a Canvas with the embedded Go fonts registered as "Go"
// and "Go Mono".
func NewCanvas() (*Canvas, error) {
	c := &Canvas{
		families: make(map[string]*canvas.FontFamily),
		faces:    make(map[faceKey]*canvas.FontFace),
	}
	goFamily := canvas.NewFontFamily(DefaultFamily)
	for _, f := range []struct {
		data  []byte
		style canvas.FontStyle
	}{
		{goregular.TTF, canvas.FontRegular},
		{gobold.TTF, canvas.FontBold},
		{goitalic.TTF, canvas.FontRegular | canvas.FontItalic},
		{gobolditalic.TTF, canvas.FontBold | canvas.FontItalic},
	} {
		if err := goFamily.LoadFont(f.data, 0, f.style); err != nil {
			return nil, fmt.Errorf("load go font: %w", err)
		}
	}
	c.families[strings.ToLower(DefaultFamily)] = goFamily

	if err := c.LoadFamily("Go Mono", gomono.TTF); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFamily registers a regular-weight font under name.
func (c *Canvas) LoadFamily(name string, regular []byte) error {
	family := canvas.NewFontFamily(name)
	if err := family.LoadFont(regular, 0, canvas.FontRegular); err != nil {
		return fmt.Errorf("load font %s: %w", name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.families[strings.ToLower(name)] = family
	for k := range c.faces {
		if k.family == strings.ToLower(name) {
			delete(c.faces, k)
		}
	}
	return nil
}

// MeasureHeight wraps the visible text of a fragment and returns line count
// times line pitch. Heading fragments are measured at their scaled size.
func (c *Canvas) MeasureHeight(text string, maxWidth float64, font Font) (float64, error) {
	plain, font := prepare(text, font)
	face, err := c.face(font)
	if err != nil {
		return 0, err
	}
	n := countLines(plain, maxWidth, widthFunc(face))
	return float64(n) * font.LinePitch(), nil
}

// FormatLine formats the plain-text line starting at offset.
func (c *Canvas) FormatLine(text string, offset int, maxWidth float64, font Font) (Line, error) {
	if offset < 0 || offset > len(text) {
		return Line{}, fmt.Errorf("offset %d out of range [0,%d]", offset, len(text))
	}
	face, err := c.face(font)
	if err != nil {
		return Line{}, err
	}
	widthOf := widthFunc(face)
	end, next := breakLine(text, offset, maxWidth, widthOf)
	return Line{
		Start:  offset,
		End:    next,
		Text:   text[offset:end],
		Width:  widthOf(text[offset:end]),
		Height: font.LinePitch(),
	}, nil
}

func (c *Canvas) face(font Font) (*canvas.FontFace, error) {
	if font.Size <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %v", font.Size)
	}
	name := strings.ToLower(font.Family)
	if name == "" {
		name = strings.ToLower(DefaultFamily)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	family, ok := c.families[name]
	if !ok {
		name = strings.ToLower(DefaultFamily)
		family = c.families[name]
	}
	key := faceKey{family: name, size: font.Size}
	if face, ok := c.faces[key]; ok {
		return face, nil
	}
	face := family.Face(font.Size, color.Black, canvas.FontRegular, canvas.FontNormal)
	c.faces[key] = face
	return face, nil
}

func widthFunc(face *canvas.FontFace) func(string) float64 {
	return func(s string) float64 {
		return face.TextWidth(s) * ptPerMM
	}
}
