package markup

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/folio/internal/blocks"
)

type lowerer struct {
	maxDepth int
}

// container lowers the children of a block-level element. Runs of inline
// children are gathered into anonymous paragraphs.
func (l *lowerer) container(n *html.Node, depth int) []blocks.Block {
	var out []blocks.Block
	var pending []*html.Node

	flush := func() {
		if len(pending) > 0 {
			out = append(out, l.paragraph(pending, depth)...)
			pending = nil
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			pending = append(pending, c)
		case html.ElementNode:
			if isSkipped(c.Data) {
				continue
			}
			if isInline(c.Data) {
				pending = append(pending, c)
				continue
			}
			flush()
			out = append(out, l.element(c, depth)...)
		}
	}
	flush()
	return out
}

func (l *lowerer) element(n *html.Node, depth int) []blocks.Block {
	switch tag := n.Data; {
	case tag == "p":
		return l.paragraph(childNodes(n), depth)
	case headingLevel(tag) > 0:
		return l.heading(n, headingLevel(tag), depth)
	case tag == "ul" || tag == "ol":
		return l.list(n, depth)
	case tag == "img":
		return []blocks.Block{imageBlock(n)}
	case isSection(tag):
		return l.section(n, depth)
	default:
		// Unrecognized element: keep nested structure if there is any,
		// otherwise coerce its text into a paragraph.
		if hasBlockDescendant(n) {
			return l.section(n, depth)
		}
		return l.paragraph(childNodes(n), depth)
	}
}

func (l *lowerer) section(n *html.Node, depth int) []blocks.Block {
	if depth+1 >= l.maxDepth {
		return flatParagraphs(n)
	}
	children := l.container(n, depth+1)
	if len(children) == 0 {
		return nil
	}
	return []blocks.Block{blocks.Section{Children: children}}
}

// paragraph builds one Paragraph from inline nodes. Images found inline are
// hoisted after it.
func (l *lowerer) paragraph(nodes []*html.Node, depth int) []blocks.Block {
	var acc inlineAcc
	for _, n := range nodes {
		l.inline(n, 0, depth, &acc)
	}
	runs := normalizeRuns(acc.runs)

	var out []blocks.Block
	if hasText(runs) {
		out = append(out, blocks.Paragraph{Runs: runs})
	}
	for _, img := range acc.images {
		out = append(out, img)
	}
	return out
}

func (l *lowerer) heading(n *html.Node, level, depth int) []blocks.Block {
	var acc inlineAcc
	l.inline(n, 0, depth, &acc)
	runs := normalizeRuns(acc.runs)

	var out []blocks.Block
	if hasText(runs) {
		out = append(out, blocks.Heading{Level: level, Runs: runs})
	}
	for _, img := range acc.images {
		out = append(out, img)
	}
	return out
}

// list lowers ul/ol into a Section of ListItems. Nested lists follow their
// parent item with Depth increased.
func (l *lowerer) list(n *html.Node, depth int) []blocks.Block {
	items := l.listItems(n, 0, depth)
	if len(items) == 0 {
		text := collapseSpace(textContent(n))
		if text == "" {
			return nil
		}
		return []blocks.Block{blocks.Paragraph{Runs: []blocks.Run{{Text: text}}}}
	}
	return []blocks.Block{blocks.Section{Children: items}}
}

func (l *lowerer) listItems(list *html.Node, level, depth int) []blocks.Block {
	ordered := list.Data == "ol"
	var out []blocks.Block
	index := 0
	for li := list.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		index++

		var acc inlineAcc
		var nested []*html.Node
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
				nested = append(nested, c)
				continue
			}
			l.inline(c, 0, depth, &acc)
		}
		out = append(out, blocks.ListItem{
			Ordered: ordered,
			Index:   index,
			Depth:   level,
			Runs:    normalizeRuns(acc.runs),
		})
		for _, img := range acc.images {
			out = append(out, img)
		}
		for _, sub := range nested {
			if depth+1 >= l.maxDepth {
				out = append(out, flatParagraphs(sub)...)
				continue
			}
			out = append(out, l.listItems(sub, level+1, depth+1)...)
		}
	}
	return out
}

func imageBlock(n *html.Node) blocks.Image {
	img := blocks.Image{}
	for _, a := range n.Attr {
		switch a.Key {
		case "src":
			img.Src = strings.TrimSpace(a.Val)
		case "alt":
			img.Alt = strings.TrimSpace(a.Val)
		}
	}
	return img
}

// flatParagraphs is the depth-guard path: the subtree's text becomes plain
// paragraphs without further descent.
func flatParagraphs(n *html.Node) []blocks.Block {
	text := collapseSpace(textContent(n))
	if text == "" {
		return nil
	}
	return []blocks.Block{blocks.Paragraph{Runs: []blocks.Run{{Text: text}}}}
}

func childNodes(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// textContent concatenates descendant text iteratively.
func textContent(n *html.Node) string {
	var sb strings.Builder
	stack := []*html.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Type == html.TextNode {
			sb.WriteString(cur.Data)
			sb.WriteByte(' ')
			continue
		}
		if cur.Type == html.ElementNode && isSkipped(cur.Data) {
			continue
		}
		for c := cur.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return sb.String()
}

// hasBlockDescendant reports whether any element below n is a recognized
// block element.
func hasBlockDescendant(n *html.Node) bool {
	stack := []*html.Node{}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		stack = append(stack, c)
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Type != html.ElementNode {
			continue
		}
		if isRecognizedBlock(cur.Data) {
			return true
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			stack = append(stack, c)
		}
	}
	return false
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func isSection(tag string) bool {
	switch tag {
	case "div", "section", "article", "main", "aside", "header", "footer",
		"nav", "blockquote", "figure", "body":
		return true
	}
	return false
}

func isRecognizedBlock(tag string) bool {
	return tag == "p" || tag == "ul" || tag == "ol" || headingLevel(tag) > 0 || isSection(tag)
}

func isInline(tag string) bool {
	switch tag {
	case "a", "abbr", "b", "bdi", "bdo", "big", "br", "cite", "code", "del",
		"dfn", "em", "font", "i", "ins", "kbd", "label", "mark", "q", "s",
		"samp", "small", "span", "strike", "strong", "sub", "sup", "time",
		"tt", "u", "var", "wbr":
		return true
	}
	return false
}

func isSkipped(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "template", "head", "title", "meta", "link":
		return true
	}
	return false
}
