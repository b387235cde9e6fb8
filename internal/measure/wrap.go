package measure

import (
	"strings"
	"unicode/utf8"
)

// breakLine finds the greedy break for the line starting at start. It
// returns the end of the line's visible content and the offset where the
// following line begins. Hard newlines always end a line. A word wider than
// maxWidth on its own is split between runes, keeping at least one rune so
// every call makes progress.
func breakLine(text string, start int, maxWidth float64, widthOf func(string) float64) (contentEnd, next int) {
	if start >= len(text) {
		return len(text), len(text)
	}
	limit := len(text)
	if nl := strings.IndexByte(text[start:], '\n'); nl >= 0 {
		limit = start + nl
	}
	if widthOf(text[start:limit]) <= maxWidth {
		return limit, skipBreak(text, limit, limit)
	}

	end := start
	for i := start; i < limit; {
		j := i
		for j < limit && text[j] == ' ' {
			j++
		}
		k := j
		for k < limit && text[k] != ' ' {
			k++
		}
		if k == j {
			break
		}
		if widthOf(text[start:k]) > maxWidth {
			if end == start {
				end = splitWord(text, start, k, maxWidth, widthOf)
				return end, end
			}
			break
		}
		end = k
		i = k
	}
	return end, skipBreak(text, end, limit)
}

// skipBreak advances past the spaces after a break and, when the hard line
// is exhausted, the newline that ended it.
func skipBreak(text string, pos, limit int) int {
	for pos < limit && text[pos] == ' ' {
		pos++
	}
	if pos == limit && limit < len(text) {
		pos++
	}
	return pos
}

func splitWord(text string, start, end int, maxWidth float64, widthOf func(string) float64) int {
	_, size := utf8.DecodeRuneInString(text[start:])
	cut := start + size
	for cut < end {
		_, size = utf8.DecodeRuneInString(text[cut:])
		if widthOf(text[start:cut+size]) > maxWidth {
			break
		}
		cut += size
	}
	return cut
}

// countLines returns the number of lines text wraps to.
func countLines(text string, maxWidth float64, widthOf func(string) float64) int {
	if text == "" {
		return 0
	}
	lines := 0
	for pos := 0; pos < len(text); {
		_, next := breakLine(text, pos, maxWidth, widthOf)
		if next <= pos {
			next = pos + 1
		}
		pos = next
		lines++
	}
	if strings.HasSuffix(text, "\n") {
		lines++
	}
	return lines
}
