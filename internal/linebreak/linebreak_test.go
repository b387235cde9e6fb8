package linebreak

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/folio/internal/measure"
)

// charFormatter breaks every maxWidth bytes.
type charFormatter struct {
	calls int
}

func (f *charFormatter) FormatLine(text string, offset int, maxWidth float64, font measure.Font) (measure.Line, error) {
	f.calls++
	end := min(offset+int(maxWidth), len(text))
	return measure.Line{Start: offset, End: end, Text: text[offset:end], Width: float64(end - offset), Height: font.LinePitch()}, nil
}

type stuckFormatter struct{}

func (stuckFormatter) FormatLine(text string, offset int, _ float64, _ measure.Font) (measure.Line, error) {
	return measure.Line{Start: offset, End: offset}, nil
}

func collect(t *testing.T, seq func(func(Line, error) bool)) []Line {
	t.Helper()
	var out []Line
	for ln, err := range seq {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, ln)
	}
	return out
}

func TestLines_ParagraphsAndSpacers(t *testing.T) {
	f := &charFormatter{}
	r := New(f, 4, measure.Font{Size: 10, LineHeight: 2})
	lines := collect(t, r.Lines("abcdefgh\n\nxyz"))

	// "abcd", "efgh", spacer, "xyz"
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %+v", len(lines), lines)
	}
	if lines[0].Text != "abcd" || lines[1].Text != "efgh" || lines[3].Text != "xyz" {
		t.Errorf("unexpected texts: %q %q %q", lines[0].Text, lines[1].Text, lines[3].Text)
	}
	if !lines[2].Spacer || lines[2].Height != 10 {
		t.Errorf("expected half-height spacer of 10, got %+v", lines[2])
	}
	if lines[3].Paragraph != 1 {
		t.Errorf("expected second paragraph index 1, got %d", lines[3].Paragraph)
	}
}

func TestLines_Restartable(t *testing.T) {
	r := New(&charFormatter{}, 3, measure.Font{Size: 1, LineHeight: 1})
	seq := r.Lines("one two three")
	first := collect(t, seq)
	second := collect(t, seq)
	if len(first) != len(second) || len(first) == 0 {
		t.Fatalf("expected identical non-empty runs, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("line %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestLines_Lazy(t *testing.T) {
	f := &charFormatter{}
	r := New(f, 1, measure.Font{Size: 1, LineHeight: 1})
	for range r.Lines(strings.Repeat("x", 1000)) {
		break
	}
	if f.calls != 1 {
		t.Errorf("expected one formatter call before break, got %d", f.calls)
	}
}

func TestLines_NoProgress(t *testing.T) {
	r := New(stuckFormatter{}, 10, measure.Font{Size: 1})
	var gotErr error
	for _, err := range r.Lines("text") {
		if err != nil {
			gotErr = err
		}
	}
	if !errors.Is(gotErr, ErrNoProgress) {
		t.Errorf("expected ErrNoProgress, got %v", gotErr)
	}
}

func TestStream_UnitsWithCells(t *testing.T) {
	r := New(measure.NewCells(false), 10, measure.Font{Size: 1, LineHeight: 1})
	units := []string{"<h2>Title</h2>", "<p>the quick brown fox</p>", "<p>  </p>"}
	lines := collect(t, r.Stream(units))

	var texts []string
	for _, ln := range lines {
		if ln.Spacer {
			texts = append(texts, "|")
			continue
		}
		texts = append(texts, ln.Text)
	}
	want := "Title,|,the quick,brown fox"
	if got := strings.Join(texts, ","); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestStream_MatchesMeasuredHeight(t *testing.T) {
	cells := measure.NewCells(false)
	font := measure.Font{Size: 1, LineHeight: 1}
	unit := "<p>" + strings.Repeat("lorem ipsum ", 20) + "</p>"

	r := New(cells, 17, font)
	var total float64
	for _, ln := range collect(t, r.Stream([]string{unit})) {
		total += ln.Height
	}
	h, err := cells.MeasureHeight(unit, 17, font)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != h {
		t.Errorf("streamed height %v differs from measured %v", total, h)
	}
}
