// Package placeholder shields untranslatable spans of a post (code, URLs,
// HTML tags) from translation by swapping them for numbered markers such as
// [PH0] and putting them back afterwards.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// protected lists the span patterns in the order they are replaced. Marker
// look-alikes already in the post go first so they survive Restore, then
// fenced code so inline-code and URL patterns never see its insides.
var protected = []*regexp.Regexp{
	reMarker,
	regexp.MustCompile("(?s)```.*?```"),
	regexp.MustCompile("`[^`\n]+`"),
	regexp.MustCompile(`https?://[^\s<>()\[\]]+`),
	regexp.MustCompile(`</?[A-Za-z][^>\n]*>`),
}

// Machine translators sometimes insert spaces inside the brackets.
var reMarker = regexp.MustCompile(`\[\s*PH\s*(\d+)\s*\]`)

func marker(i int) string {
	return fmt.Sprintf("[PH%d]", i)
}

// Protect returns text with every protected span replaced by a marker and
// the original spans indexed by marker number.
func Protect(text string) (string, []string) {
	var spans []string
	for _, re := range protected {
		text = re.ReplaceAllStringFunc(text, func(match string) string {
			// A span may enclose markers placed by an earlier pattern.
			spans = append(spans, Restore(match, spans))
			return marker(len(spans) - 1)
		})
	}
	return text, spans
}

// Restore puts the spans captured by Protect back in place. Markers with an
// index outside spans are left untouched.
func Restore(text string, spans []string) string {
	if len(spans) == 0 {
		return text
	}
	return reMarker.ReplaceAllStringFunc(text, func(match string) string {
		sub := reMarker.FindStringSubmatch(match)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(spans) {
			return match
		}
		return spans[idx]
	})
}

// Missing returns the indices of markers absent from translated text.
func Missing(text string, spans []string) []int {
	seen := make(map[int]bool, len(spans))
	for _, sub := range reMarker.FindAllStringSubmatch(text, -1) {
		if idx, err := strconv.Atoi(sub[1]); err == nil {
			seen[idx] = true
		}
	}

	var missing []int
	for i := range spans {
		if !seen[i] {
			missing = append(missing, i)
		}
	}
	return missing
}

// InstructionHint is appended to LLM prompts when text carries markers.
func InstructionHint() string {
	return "Keep every [PHn] marker exactly as written; do not translate, move or drop them."
}

// HasMarkers reports whether text contains at least one marker.
func HasMarkers(text string) bool {
	return strings.Contains(text, "[PH") && reMarker.MatchString(text)
}

// StripMarkers removes every marker from text.
func StripMarkers(text string) string {
	return reMarker.ReplaceAllString(text, "")
}

// OnlyMarkers reports whether text holds nothing but markers and whitespace,
// i.e. there is nothing left to translate.
func OnlyMarkers(text string) bool {
	return strings.TrimSpace(StripMarkers(text)) == ""
}
