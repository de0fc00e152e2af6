package translator

import (
	"fmt"
	"strings"
)

// systemPrompt describes the task for LLM backends.
func systemPrompt(req TranslateRequest) string {
	source := "the detected language"
	if !isAuto(req.SourceLang) {
		source = languageName(req.SourceLang)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are translating a forum post from %s to %s.\n", source, languageName(req.TargetLang)))
	sb.WriteString("Only respond with the translation, nothing else. Keep markdown formatting, line breaks and emoji as they are.")
	if req.Instructions != "" {
		sb.WriteString(" ")
		sb.WriteString(req.Instructions)
	}
	return sb.String()
}
