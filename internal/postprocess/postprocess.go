// Package postprocess strips the chatter LLM translators wrap around their
// answer, so the text that reaches the forum is only the translation.
package postprocess

import (
	"regexp"
	"strings"
)

var (
	// RE2 has no backreferences, so each tag pair is spelled out.
	reThinking = regexp.MustCompile(
		`(?is)<(?:thinking|think|reasoning|reflection)>.*?</(?:thinking|think|reasoning|reflection)>`,
	)
	// An opened block whose closing tag never arrived.
	reThinkingOpen = regexp.MustCompile(`(?is)<(?:thinking|think|reasoning|reflection)>.*$`)

	// Lead-ins such as "Here is the translation:" or "Sure, here's the
	// English translation:". A trailing colon is required.
	reLeadIn = regexp.MustCompile(
		`(?i)^(?:(?:certainly|sure|of course)[,.!]?\s+)?(?:here(?:'s| is)\s+)?(?:the\s+)?(?:english\s+)?(?:translated text|translation)(?:\s+(?:in|into)\s+english)?(?:\s*\([^)]*\))?\s*:\s*`,
	)
)

var quotePairs = [][2]rune{
	{'"', '"'},
	{'\'', '\''},
	{'«', '»'},
	{'“', '”'},
	{'‘', '’'},
}

// Clean removes reasoning blocks, answer lead-ins and wrapping quotes, in that
// order, and trims the result.
func Clean(text string) string {
	for _, step := range []func(string) string{stripThinking, stripLeadIn, stripQuotes} {
		text = strings.TrimSpace(step(text))
	}
	return text
}

func stripThinking(text string) string {
	text = reThinking.ReplaceAllString(text, "")
	return reThinkingOpen.ReplaceAllString(text, "")
}

func stripLeadIn(text string) string {
	if loc := reLeadIn.FindStringIndex(text); loc != nil {
		return text[loc[1]:]
	}
	return text
}

// stripQuotes removes one matching pair of quotes enclosing the whole text.
func stripQuotes(text string) string {
	runes := []rune(text)
	if len(runes) < 2 {
		return text
	}
	first, last := runes[0], runes[len(runes)-1]
	for _, p := range quotePairs {
		if first == p[0] && last == p[1] {
			return string(runes[1 : len(runes)-1])
		}
	}
	return text
}
