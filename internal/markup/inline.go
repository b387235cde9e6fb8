package markup

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/dgallion1/folio/internal/blocks"
)

type inlineAcc struct {
	runs   []blocks.Run
	images []blocks.Image
}

// inline appends the runs for n and its descendants. Unknown inline
// elements are unwrapped; block elements met in inline context are too.
func (l *lowerer) inline(n *html.Node, style blocks.Style, depth int, acc *inlineAcc) {
	switch n.Type {
	case html.TextNode:
		acc.runs = append(acc.runs, blocks.Run{Text: n.Data, Style: style})
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.Data {
	case "br":
		acc.runs = append(acc.runs, blocks.Run{Break: true})
		return
	case "img":
		acc.images = append(acc.images, imageBlock(n))
		return
	case "em", "i", "cite", "dfn", "var":
		style |= blocks.Emphasis
	case "strong", "b":
		style |= blocks.Strong
	case "u", "ins":
		style |= blocks.Underline
	default:
		if isSkipped(n.Data) {
			return
		}
	}

	if depth >= l.maxDepth {
		acc.runs = append(acc.runs, blocks.Run{Text: textContent(n), Style: style})
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		l.inline(c, style, depth+1, acc)
	}
}

// normalizeRuns applies the emphasis spacing rule, collapses whitespace
// across run boundaries, trims the ends and merges neighbours that share a
// style.
func normalizeRuns(in []blocks.Run) []blocks.Run {
	runs := make([]blocks.Run, 0, len(in))
	for _, r := range in {
		if !r.Break {
			r.Text = squash(r.Text)
		}
		runs = append(runs, r)
	}
	separateEmphasis(runs)

	out := make([]blocks.Run, 0, len(runs))
	for _, r := range runs {
		if r.Break {
			trimLastRight(out)
			out = append(out, r)
			continue
		}
		text := r.Text
		if prevEndsSpace(out) {
			text = strings.TrimLeftFunc(text, unicode.IsSpace)
		}
		if text == "" {
			continue
		}
		if n := len(out); n > 0 && !out[n-1].Break && out[n-1].Style == r.Style {
			out[n-1].Text += text
			continue
		}
		out = append(out, blocks.Run{Text: text, Style: r.Style})
	}
	trimLastRight(out)

	for len(out) > 0 && out[len(out)-1].Break {
		out = out[:len(out)-1]
	}
	for len(out) > 0 && out[0].Break {
		out = out[1:]
	}
	return dropEmpty(out)
}

// separateEmphasis inserts a space where a styled run ends and the next run
// starts a word directly.
func separateEmphasis(runs []blocks.Run) {
	for i := 1; i < len(runs); i++ {
		prev, cur := runs[i-1], runs[i]
		if prev.Break || cur.Break || prev.Style&^cur.Style == 0 {
			continue
		}
		if prev.Text == "" || cur.Text == "" {
			continue
		}
		last, _ := utf8.DecodeLastRuneInString(prev.Text)
		first, _ := utf8.DecodeRuneInString(cur.Text)
		if unicode.IsSpace(last) || unicode.IsSpace(first) || unicode.IsPunct(first) {
			continue
		}
		runs[i].Text = " " + cur.Text
	}
}

// squash replaces each whitespace run with a single space.
func squash(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				sb.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}

func prevEndsSpace(out []blocks.Run) bool {
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Break {
			return true
		}
		if out[i].Text == "" {
			continue
		}
		last, _ := utf8.DecodeLastRuneInString(out[i].Text)
		return unicode.IsSpace(last)
	}
	return true
}

func trimLastRight(out []blocks.Run) {
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Break {
			return
		}
		out[i].Text = strings.TrimRightFunc(out[i].Text, unicode.IsSpace)
		if out[i].Text != "" {
			return
		}
	}
}

func dropEmpty(runs []blocks.Run) []blocks.Run {
	out := runs[:0]
	for _, r := range runs {
		if r.Break || r.Text != "" {
			out = append(out, r)
		}
	}
	return out
}

func hasText(runs []blocks.Run) bool {
	for _, r := range runs {
		if !r.Break && strings.TrimSpace(r.Text) != "" {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
