package source

import (
	"strings"
)

// TextChapterTitle names the single chapter of a plain-text book.
const TextChapterTitle = "Content"

// Text reads a plain-text book as one chapter whose paragraphs are separated
// by blank lines.
func Text(filename string, data []byte) (Source, error) {
	var paragraphs []string
	var current strings.Builder

	// Lines of any length are accepted; the upload limit bounds the input.
	for line := range strings.Lines(string(data)) {
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	return &static{
		title: baseTitle(filename),
		chapters: []Chapter{{
			Title:   TextChapterTitle,
			Content: strings.Join(paragraphs, "\n\n"),
		}},
	}, nil
}
