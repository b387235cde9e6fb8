package source

import (
	"bytes"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDF reads each page's plain text as one chapter titled "Page N". Pages
// whose text cannot be extracted become empty chapters so numbering stays
// aligned with the document.
func PDF(filename string, data []byte) (Source, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	s := &static{title: baseTitle(filename)}
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		ch := Chapter{Title: fmt.Sprintf("Page %d", i)}
		page := reader.Page(i)
		if !page.V.IsNull() {
			if text, err := page.GetPlainText(nil); err == nil {
				ch.Content = strings.TrimSpace(text)
			}
		}
		s.chapters = append(s.chapters, ch)
	}
	if len(s.chapters) == 0 {
		return nil, fmt.Errorf("pdf %s has no pages", filename)
	}
	return s, nil
}
