// Package source reads book files into chapters of raw markup or text.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupported is returned by ForFile for unknown extensions.
	ErrUnsupported = errors.New("unsupported file extension")
	// ErrChapterRange is returned by Load for an index outside [0, Len).
	ErrChapterRange = errors.New("chapter index out of range")
)

// Chapter is one chapter's title and raw content.
type Chapter struct {
	Title   string
	Content string
}

// Source supplies chapters on demand. Load may be called concurrently for
// different indexes.
type Source interface {
	Title() string
	Len() int
	Load(ctx context.Context, index int) (Chapter, error)
}

// SupportedExtensions lists file extensions this service can open.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".xhtml":    true,
	".pdf":      true,
	".docx":     true,
	".epub":     true,
}

// ForFile opens data according to the extension of filename.
func ForFile(filename string, data []byte) (Source, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return Text(filename, data)
	case ".md", ".markdown":
		return Markdown(filename, data)
	case ".html", ".htm", ".xhtml":
		return HTML(filename, data)
	case ".pdf":
		return PDF(filename, data)
	case ".docx":
		return DOCX(filename, data)
	case ".epub":
		return EPUB(filename, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// static holds chapters that were fully extracted up front.
type static struct {
	title    string
	chapters []Chapter
}

func (s *static) Title() string { return s.title }
func (s *static) Len() int      { return len(s.chapters) }

func (s *static) Load(ctx context.Context, index int) (Chapter, error) {
	if err := ctx.Err(); err != nil {
		return Chapter{}, err
	}
	if index < 0 || index >= len(s.chapters) {
		return Chapter{}, fmt.Errorf("%w: %d", ErrChapterRange, index)
	}
	return s.chapters[index], nil
}

func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
