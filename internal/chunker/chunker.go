// Package chunker splits long posts into pieces small enough for a single
// translation request.
//
// Pieces are cut, in order of preference, after a blank line, after
// sentence-ending punctuation, before whitespace, or hard at the limit.
// Joining the pieces always reproduces the input exactly, so callers can
// translate the trimmed core of each piece and keep the original spacing.
package chunker

import (
	"unicode"
	"unicode/utf8"
)

// Split cuts text into pieces of at most maxChars runes. maxChars <= 0
// disables splitting.
func Split(text string, maxChars int) []string {
	return SplitBytes(text, maxChars, 0)
}

// SplitBytes is Split with an additional bound of maxBytes UTF-8 bytes per
// piece, for providers that limit the encoded query size. Either limit <= 0
// is ignored.
func SplitBytes(text string, maxChars, maxBytes int) []string {
	if (maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars) && (maxBytes <= 0 || len(text) <= maxBytes) {
		return []string{text}
	}

	var chunks []string
	rest := []rune(text)
	for {
		n := window(rest, maxChars, maxBytes)
		if n == len(rest) {
			break
		}
		cut := splitPoint(rest[:n])
		chunks = append(chunks, string(rest[:cut]))
		rest = rest[cut:]
	}
	if len(rest) > 0 {
		chunks = append(chunks, string(rest))
	}
	return chunks
}

// window returns the length of the longest prefix of rest within both limits,
// never less than one rune.
func window(rest []rune, maxChars, maxBytes int) int {
	n := len(rest)
	if maxChars > 0 && n > maxChars {
		n = maxChars
	}
	if maxBytes > 0 {
		size := 0
		for i := 0; i < n; i++ {
			size += utf8.RuneLen(rest[i])
			if size > maxBytes {
				n = i
				break
			}
		}
	}
	return max(n, 1)
}

// splitPoint returns n in [1, len(window)]: the piece is window[:n].
func splitPoint(window []rune) int {
	for i := len(window) - 1; i > 0; i-- {
		if window[i] == '\n' && window[i-1] == '\n' {
			return i + 1
		}
	}

	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '。', '！', '？':
			return i + 1
		case '.', '!', '?':
			if i+1 < len(window) && unicode.IsSpace(window[i+1]) {
				return i + 1
			}
		}
	}

	for i := len(window) - 1; i > 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}

	return len(window)
}
