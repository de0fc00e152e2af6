package internal

import "time"

// PageResult is the body returned for a translated post.
type PageResult struct {
	IsEnglish         bool   `json:"is_english"`
	TranslatedContent string `json:"translated_content"`
}

type TranslationRequest struct {
	ID         string    `json:"id"`
	SourceText string    `json:"source_text"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	Timestamp  time.Time `json:"timestamp"`
}
