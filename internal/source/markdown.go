package source

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Markdown renders a Markdown book to HTML with one chapter per level-1
// heading. Content before the first heading forms its own chapter.
func Markdown(filename string, data []byte) (Source, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(data))

	s := &static{title: baseTitle(filename)}
	var (
		current Chapter
		buf     bytes.Buffer
		started bool
	)
	flush := func() {
		current.Content = strings.TrimSpace(buf.String())
		if started || current.Content != "" {
			if current.Title == "" {
				current.Title = fmt.Sprintf("Chapter %d", len(s.chapters)+1)
			}
			s.chapters = append(s.chapters, current)
		}
		buf.Reset()
		current = Chapter{}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			flush()
			started = true
			current.Title = strings.TrimSpace(string(h.Text(data)))
			if len(s.chapters) == 0 {
				s.title = current.Title
			}
		}
		if err := md.Renderer().Render(&buf, data, n); err != nil {
			return nil, fmt.Errorf("render markdown: %w", err)
		}
	}
	flush()

	if len(s.chapters) == 0 {
		s.chapters = []Chapter{{Title: s.title}}
	}
	return s, nil
}
