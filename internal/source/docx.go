package source

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCX renders Word paragraphs to HTML, starting a new chapter at every
// Heading1 paragraph.
func DOCX(filename string, data []byte) (Source, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	s := &static{title: baseTitle(filename)}
	var current Chapter
	var body strings.Builder
	flush := func() {
		current.Content = body.String()
		if current.Title != "" || strings.TrimSpace(current.Content) != "" {
			if current.Title == "" {
				current.Title = fmt.Sprintf("Chapter %d", len(s.chapters)+1)
			}
			s.chapters = append(s.chapters, current)
		}
		current = Chapter{}
		body.Reset()
	}

	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		level := docxHeadingLevel(para)
		if level == 1 {
			flush()
			current.Title = text
			if len(s.chapters) == 0 {
				s.title = text
			}
		}
		escaped := html.EscapeString(text)
		if level > 0 {
			tag := "h" + strconv.Itoa(level)
			body.WriteString("<" + tag + ">" + escaped + "</" + tag + ">\n")
			continue
		}
		body.WriteString("<p>" + escaped + "</p>\n")
	}
	flush()

	if len(s.chapters) == 0 {
		s.chapters = []Chapter{{Title: s.title}}
	}
	return s, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	return styleHeadingLevel(para.Properties.Style.Val)
}

// styleHeadingLevel maps Word style ids such as "Heading2" or "heading 2"
// to a heading level, or 0.
func styleHeadingLevel(val string) int {
	style := strings.ToLower(strings.ReplaceAll(val, " ", ""))
	if !strings.HasPrefix(style, "heading") || len(style) != len("heading")+1 {
		return 0
	}
	if c := style[len(style)-1]; c >= '1' && c <= '6' {
		return int(c - '0')
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
