package markup

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	scriptRe    = regexp.MustCompile(`(?is)<script\b.*?(?:</script\s*>|$)`)
	styleRe     = regexp.MustCompile(`(?is)<style\b.*?(?:</style\s*>|$)`)
	commentRe   = regexp.MustCompile(`(?s)<!--.*?(?:-->|$)`)
	xmlDeclRe   = regexp.MustCompile(`(?s)<\?xml.*?\?>`)
	tagRe       = regexp.MustCompile(`(?s)<[a-zA-Z][^>]*>`)
	eventAttrRe = regexp.MustCompile(`(?i)\s+on[a-z]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)
	jsURLRe     = regexp.MustCompile(`(?i)(?:java|vb)script:[^"'>\s]*`)
	xmlnsRe     = regexp.MustCompile(`(?i)\s+xmlns(?::[a-z0-9_-]+)?\s*=\s*(?:"[^"]*"|'[^']*')`)
	hspaceRe    = regexp.MustCompile(`[\t\v\f \x{00a0}\x{1680}\x{2000}-\x{200a}\x{202f}\x{205f}\x{3000}]+`)
	anyTagRe    = regexp.MustCompile(`(?s)</?[a-zA-Z!?][^>]*>`)
)

// Clean runs the sanitize, decode and whitespace stages over raw markup.
// Each stage is idempotent, so Clean(Clean(s)) == Clean(s) for markup that
// decoding does not turn into new tags.
func Clean(raw string) string {
	return normalizeWhitespace(decode(sanitize(raw)))
}

// sanitize removes executable and style content. Event handler attributes
// and script URLs are only stripped inside tags so running text is left
// alone.
func sanitize(s string) string {
	s = scriptRe.ReplaceAllString(s, "")
	s = styleRe.ReplaceAllString(s, "")
	s = commentRe.ReplaceAllString(s, "")
	s = xmlDeclRe.ReplaceAllString(s, "")
	return tagRe.ReplaceAllStringFunc(s, func(tag string) string {
		tag = eventAttrRe.ReplaceAllString(tag, "")
		tag = jsURLRe.ReplaceAllString(tag, "")
		return xmlnsRe.ReplaceAllString(tag, "")
	})
}

func decode(s string) string {
	return norm.NFC.String(html.UnescapeString(s))
}

// normalizeWhitespace collapses horizontal whitespace to single spaces,
// trims every line, and keeps at most one blank line between text lines.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, ln := range lines {
		ln = strings.TrimSpace(hspaceRe.ReplaceAllString(ln, " "))
		if ln == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, ln)
	}
	return strings.Join(out, "\n")
}

// stripTags removes every tag, leaving text and entity references.
func stripTags(s string) string {
	return anyTagRe.ReplaceAllString(s, "")
}
