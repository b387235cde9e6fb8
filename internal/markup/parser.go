// Package markup lowers loosely structured chapter markup into blocks.
//
// Parsing never fails. Content that the structural pass cannot make sense of
// goes through a fallback chain that ends with the raw text as a single
// paragraph, so non-empty input always produces at least one block.
package markup

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dgallion1/folio/internal/blocks"
)

// DefaultMaxDepth bounds recursion into nested containers.
const DefaultMaxDepth = 64

// Options configures a Parser.
type Options struct {
	// MaxDepth caps container nesting. Deeper content is flattened into
	// paragraphs of its text.
	MaxDepth int
}

// Parser converts raw markup into blocks. It is safe for concurrent use.
type Parser struct {
	maxDepth int
}

// New returns a Parser. Zero options take defaults.
func New(opts Options) *Parser {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Parser{maxDepth: opts.MaxDepth}
}

var defaultParser = New(Options{})

// Parse lowers raw markup with default options.
func Parse(raw string) []blocks.Block {
	return defaultParser.Parse(raw)
}

// Parse lowers raw markup into an ordered block sequence.
func (p *Parser) Parse(raw string) []blocks.Block {
	cleaned := Clean(raw)

	var out []blocks.Block
	if strings.ContainsAny(cleaned, "<>") {
		src := cleaned
		if !blockTagRe.MatchString(src) {
			src = wrapParagraphs(src)
		}
		out = p.structural(src)
	} else {
		out = plainBlocks(cleaned)
	}
	if len(out) == 0 {
		out = fallback(cleaned, raw)
	}
	return out
}

var blockTagRe = regexp.MustCompile(`(?i)<(?:p|div|h[1-6]|ul|ol|li|section|article|blockquote|pre|table|body|html)\b`)

// wrapParagraphs turns blank-line separated text holding only inline markup
// into <p> elements, so paragraph boundaries survive the HTML parse.
func wrapParagraphs(s string) string {
	var sb strings.Builder
	for _, para := range strings.Split(s, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(para)
		sb.WriteString("</p>\n")
	}
	return sb.String()
}

// structural parses cleaned markup as HTML and lowers the body. A panic in
// the lowering is treated like an empty result.
func (p *Parser) structural(s string) (out []blocks.Block) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
		}
	}()

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return nil
	}
	body := goquery.NewDocumentFromNode(doc).Find("body").First()
	if body.Length() == 0 {
		return nil
	}
	l := lowerer{maxDepth: p.maxDepth}
	return l.container(body.Nodes[0], 0)
}

// plainBlocks splits text on blank lines. Single newlines inside a
// paragraph become line breaks.
func plainBlocks(s string) []blocks.Block {
	var out []blocks.Block
	for _, para := range strings.Split(s, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		var runs []blocks.Run
		for i, ln := range strings.Split(para, "\n") {
			if i > 0 {
				runs = append(runs, blocks.Run{Break: true})
			}
			runs = append(runs, blocks.Run{Text: strings.TrimSpace(ln)})
		}
		out = append(out, blocks.Paragraph{Runs: runs})
	}
	return out
}

// fallback strips whatever markup survived, then gives up and keeps the raw
// source as one paragraph.
func fallback(cleaned, raw string) []blocks.Block {
	if out := plainBlocks(normalizeWhitespace(decode(stripTags(cleaned)))); len(out) > 0 {
		return out
	}
	if t := strings.TrimSpace(raw); t != "" {
		return []blocks.Block{blocks.Paragraph{Runs: []blocks.Run{{Text: t}}}}
	}
	return nil
}
