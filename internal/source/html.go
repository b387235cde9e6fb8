package source

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTML reads a single HTML document as one chapter.
func HTML(filename string, data []byte) (Source, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := documentTitle(doc)
	if title == "" {
		title = baseTitle(filename)
	}
	return &static{
		title:    title,
		chapters: []Chapter{{Title: title, Content: string(data)}},
	}, nil
}

// documentTitle prefers <title>, then the first heading.
func documentTitle(doc *goquery.Document) string {
	if t := collapse(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return collapse(doc.Find("h1, h2, h3, h4, h5, h6").First().Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
