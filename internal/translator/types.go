package translator

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type ServiceConfig struct {
	Credentials string        `mapstructure:"credentials" json:"credentials"`
	APIKey      string        `mapstructure:"api_key" json:"api_key"`
	Model       string        `mapstructure:"model" json:"model"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	ProjectID   string        `mapstructure:"project_id" json:"project_id"`
}

type TranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	// Instructions is appended to LLM prompts; other backends ignore it.
	Instructions string `json:"instructions,omitempty"`
}

type ServiceResult struct {
	ServiceName    string            `json:"service_name"`
	TranslatedText string            `json:"translated_text"`
	Confidence     float64           `json:"confidence"`
	Metadata       map[string]string `json:"metadata"`
	Latency        time.Duration     `json:"latency"`
	Error          string            `json:"error,omitempty"`
}

type TranslationService interface {
	Name() string
	Translate(ctx context.Context, cfg ServiceConfig, req TranslateRequest) (*ServiceResult, error)
	IsAvailable(ctx context.Context) error
	// SupportedLanguages lists ISO 639-1 codes, possibly with a region
	// ("zh-TW"). A nil list means any language.
	SupportedLanguages(ctx context.Context) ([]string, error)
}

// QueryLimiter is implemented by services that reject texts longer than a
// number of UTF-8 bytes.
type QueryLimiter interface {
	MaxQueryBytes() int
}

// MaxQueryBytes returns the smallest byte limit among services, or 0 when
// none has one.
func MaxQueryBytes(services []TranslationService) int {
	limit := 0
	for _, svc := range services {
		l, ok := svc.(QueryLimiter)
		if !ok || l.MaxQueryBytes() <= 0 {
			continue
		}
		if limit == 0 || l.MaxQueryBytes() < limit {
			limit = l.MaxQueryBytes()
		}
	}
	return limit
}

// Supports reports whether code appears in langs, ignoring case and region.
// A nil list supports everything.
func Supports(langs []string, code string) bool {
	if langs == nil || isAuto(code) {
		return true
	}
	for _, l := range langs {
		base, _, _ := strings.Cut(l, "-")
		if strings.EqualFold(base, code) || strings.EqualFold(l, code) {
			return true
		}
	}
	return false
}

// isAuto reports whether lang asks the backend to detect the source.
func isAuto(lang string) bool {
	return lang == "" || strings.EqualFold(lang, "auto")
}

// languageName renders an ISO code as an English language name for prompts,
// falling back to the code itself.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
