// Package detector identifies the language a post is written in.
package detector

import (
	"slices"
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

type Detector struct {
	detector lingua.LanguageDetector
}

type options struct {
	languages   []lingua.Language
	minDistance float64
}

// Option tunes the underlying lingua detector.
type Option func(*options)

// WithLanguages restricts detection to the given ISO 639-1 codes. Unknown
// codes are ignored and English is always included.
func WithLanguages(codes ...string) Option {
	return func(o *options) {
		for _, code := range codes {
			if lang, ok := languageForISO(code); ok {
				o.languages = append(o.languages, lang)
			}
		}
	}
}

// WithMinRelativeDistance makes the detector answer "unknown" when the two
// most likely languages are closer than d.
func WithMinRelativeDistance(d float64) Option {
	return func(o *options) { o.minDistance = d }
}

func New(opts ...Option) *Detector {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var builder lingua.LanguageDetectorBuilder
	if len(o.languages) == 0 {
		builder = lingua.NewLanguageDetectorBuilder().FromAllLanguages()
	} else {
		langs := o.languages
		if !slices.Contains(langs, lingua.English) {
			langs = append(langs, lingua.English)
		}
		builder = lingua.NewLanguageDetectorBuilder().FromLanguages(langs...)
	}
	if o.minDistance > 0 {
		builder = builder.WithMinimumRelativeDistance(o.minDistance)
	}

	return &Detector{detector: builder.Build()}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}

func languageForISO(code string) (lingua.Language, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return lingua.Unknown, false
	}
	for _, lang := range lingua.AllLanguages() {
		if lang.IsoCode639_1().String() == code {
			return lang, true
		}
	}
	return lingua.Unknown, false
}
