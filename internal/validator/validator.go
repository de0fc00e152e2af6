// Package validator checks that provider output for a post reads as the
// target language.
package validator

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/valpere/posttran/internal/detector"
	"github.com/valpere/posttran/internal/markdown"
	"github.com/valpere/posttran/internal/placeholder"
)

// minProseRunes is the least prose worth running detection on. Shorter
// output is accepted unchecked.
const minProseRunes = 20

var (
	ErrEmpty         = errors.New("translation is empty")
	ErrWrongLanguage = errors.New("translation is in the wrong language")
)

type Validator struct {
	det *detector.Detector
}

// New creates a Validator with its own detector.
func New() *Validator {
	return &Validator{det: detector.New()}
}

// NewWithDetector shares an existing detector; building one loads language
// models and is expensive.
func NewWithDetector(det *detector.Detector) *Validator {
	return &Validator{det: det}
}

// IsValid reports whether translatedText reads as targetLang. Placeholder
// markers, code and markdown markup are dropped first so only prose is
// judged; output with too little prose, or of unknown language, passes.
func (v *Validator) IsValid(translatedText, targetLang string) (bool, error) {
	if targetLang == "" {
		return true, nil
	}
	if strings.TrimSpace(translatedText) == "" {
		return false, ErrEmpty
	}

	text := prose(translatedText)
	if utf8.RuneCountInString(text) < minProseRunes {
		return true, nil
	}

	detected, ok := v.det.DetectISO(text)
	if !ok {
		return true, nil
	}

	if !strings.EqualFold(detected, targetLang) {
		return false, fmt.Errorf("%w: expected %s but detected %s", ErrWrongLanguage, strings.ToLower(targetLang), strings.ToLower(detected))
	}
	return true, nil
}

func prose(text string) string {
	return markdown.ToPlainText([]byte(placeholder.StripMarkers(text)))
}
