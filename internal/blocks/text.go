package blocks

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// ImagePlaceholder stands in for an image without alt text wherever
// fragments are reduced to plain text.
const ImagePlaceholder = "[image]"

// VisibleText reduces a markup fragment to the text a reader would see.
// Line breaks and block ends become newlines; images contribute their alt
// text or ImagePlaceholder. Fragments without markup pass through the
// tokenizer unchanged apart from entity decoding.
func VisibleText(fragment string) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "br":
				sb.WriteByte('\n')
			case "img":
				sb.WriteString(imageText(z, hasAttr))
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isBlockTag(string(name)) {
				sb.WriteByte('\n')
			}
		}
	}
}

// IsBlank reports whether a fragment has no visible characters once markup
// and whitespace are removed.
func IsBlank(fragment string) bool {
	return strings.IndexFunc(VisibleText(fragment), func(r rune) bool {
		return !unicode.IsSpace(r)
	}) < 0
}

// HeadingLevel returns the level of the heading a fragment opens with, or 0.
func HeadingLevel(fragment string) int {
	s := strings.TrimLeftFunc(fragment, unicode.IsSpace)
	if len(s) < 4 || s[0] != '<' || (s[1] != 'h' && s[1] != 'H') {
		return 0
	}
	if s[2] < '1' || s[2] > '6' {
		return 0
	}
	if c := s[3]; c != '>' && c != ' ' && c != '/' {
		return 0
	}
	return int(s[2] - '0')
}

func imageText(z *html.Tokenizer, hasAttr bool) string {
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) == "alt" {
			if alt := strings.TrimSpace(string(val)); alt != "" {
				return alt
			}
		}
	}
	return ImagePlaceholder
}

func isBlockTag(name string) bool {
	switch name {
	case "p", "li", "div", "section", "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}
