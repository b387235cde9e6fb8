package source

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const containerPath = "META-INF/container.xml"

// maxEntrySize caps the decompressed size of one archive entry.
const maxEntrySize = 64 << 20

var errNoRootfile = errors.New("epub: container lists no rootfile")

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Title    string `xml:"metadata>title"`
	Manifest []struct {
		ID   string `xml:"id,attr"`
		Href string `xml:"href,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// epubSource keeps the archive open and reads spine items on demand.
type epubSource struct {
	title string
	zr    *zip.Reader
	spine []string
}

// EPUB opens an EPUB archive. Chapters follow the spine order and are read
// lazily by Load.
func EPUB(filename string, data []byte) (Source, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}

	var container epubContainer
	if err := decodeXML(zr, containerPath, &container); err != nil {
		return nil, err
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return nil, errNoRootfile
	}
	opfPath := container.Rootfiles[0].FullPath

	var pkg epubPackage
	if err := decodeXML(zr, opfPath, &pkg); err != nil {
		return nil, err
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		hrefs[item.ID] = item.Href
	}
	dir := path.Dir(opfPath)
	s := &epubSource{title: collapse(pkg.Title), zr: zr}
	for _, ref := range pkg.Spine {
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		s.spine = append(s.spine, resolveHref(dir, href))
	}
	if len(s.spine) == 0 {
		return nil, fmt.Errorf("epub %s has an empty spine", filename)
	}
	if s.title == "" {
		s.title = baseTitle(filename)
	}
	return s, nil
}

func (s *epubSource) Title() string { return s.title }
func (s *epubSource) Len() int      { return len(s.spine) }

func (s *epubSource) Load(ctx context.Context, index int) (Chapter, error) {
	if err := ctx.Err(); err != nil {
		return Chapter{}, err
	}
	if index < 0 || index >= len(s.spine) {
		return Chapter{}, fmt.Errorf("%w: %d", ErrChapterRange, index)
	}
	data, err := readEntry(s.zr, s.spine[index])
	if err != nil {
		return Chapter{}, err
	}
	ch := Chapter{Content: string(data)}
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data)); err == nil {
		ch.Title = collapse(doc.Find("h1, h2, h3, h4, h5, h6").First().Text())
	}
	if ch.Title == "" {
		ch.Title = fmt.Sprintf("Chapter %d", index+1)
	}
	return ch, nil
}

// resolveHref joins a manifest href to the package directory. The href is
// percent-decoded and any fragment is dropped.
func resolveHref(dir, href string) string {
	href, _, _ = strings.Cut(strings.TrimSpace(href), "#")
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	return path.Join(dir, href)
}

func decodeXML(zr *zip.Reader, name string, v any) error {
	data, err := readEntry(zr, name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	name = strings.TrimPrefix(name, "/")
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) > maxEntrySize {
		return nil, fmt.Errorf("read %s: entry exceeds %d bytes", name, maxEntrySize)
	}
	return data, nil
}
