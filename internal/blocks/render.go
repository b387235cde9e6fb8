package blocks

import (
	"html"
	"strconv"
	"strings"
)

// Units flattens blocks into the ordered markup fragments handed to the
// paginator. Sections contribute their children; every other block becomes
// exactly one fragment.
func Units(bs []Block) []string {
	var out []string
	Walk(bs, func(b Block) {
		if _, ok := b.(Section); ok {
			return
		}
		if f := Fragment(b); f != "" {
			out = append(out, f)
		}
	})
	return out
}

// Fragment renders a single block as a markup fragment. A Section renders
// its children back to back.
func Fragment(b Block) string {
	var sb strings.Builder
	writeBlock(&sb, b)
	return sb.String()
}

func writeBlock(sb *strings.Builder, b Block) {
	switch v := b.(type) {
	case Paragraph:
		sb.WriteString("<p>")
		writeRuns(sb, v.Runs)
		sb.WriteString("</p>")
	case Heading:
		tag := "h" + strconv.Itoa(clampLevel(v.Level))
		sb.WriteString("<" + tag + ">")
		writeRuns(sb, v.Runs)
		sb.WriteString("</" + tag + ">")
	case ListItem:
		sb.WriteString("<li>")
		sb.WriteString(html.EscapeString(v.Marker()))
		writeRuns(sb, v.Runs)
		sb.WriteString("</li>")
	case Image:
		sb.WriteString(`<img src="`)
		sb.WriteString(html.EscapeString(v.Src))
		sb.WriteString(`" alt="`)
		sb.WriteString(html.EscapeString(v.Alt))
		sb.WriteString(`">`)
	case Section:
		for _, c := range v.Children {
			writeBlock(sb, c)
		}
	default:
		panic("blocks: unknown block type")
	}
}

func writeRuns(sb *strings.Builder, runs []Run) {
	for _, r := range runs {
		if r.Break {
			sb.WriteString("<br>")
			continue
		}
		if r.Style.Has(Strong) {
			sb.WriteString("<strong>")
		}
		if r.Style.Has(Emphasis) {
			sb.WriteString("<em>")
		}
		if r.Style.Has(Underline) {
			sb.WriteString("<u>")
		}
		sb.WriteString(html.EscapeString(r.Text))
		if r.Style.Has(Underline) {
			sb.WriteString("</u>")
		}
		if r.Style.Has(Emphasis) {
			sb.WriteString("</em>")
		}
		if r.Style.Has(Strong) {
			sb.WriteString("</strong>")
		}
	}
}

func clampLevel(level int) int {
	return min(max(level, 1), 6)
}
