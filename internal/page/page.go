// Package page turns a forum post into the PageResult the root endpoint
// returns: English posts pass through, anything else is translated.
package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/posttran/internal"
	"github.com/valpere/posttran/internal/arbiter"
	"github.com/valpere/posttran/internal/chunker"
	"github.com/valpere/posttran/internal/markdown"
	"github.com/valpere/posttran/internal/orchestrator"
	"github.com/valpere/posttran/internal/placeholder"
	"github.com/valpere/posttran/internal/translator"
)

var (
	// ErrTranslationFailed wraps provider errors when no fallback is allowed.
	ErrTranslationFailed = errors.New("translation failed")
	// ErrContentTooLarge is returned before any work for oversized posts.
	ErrContentTooLarge = errors.New("content too large")
)

// Detector names the language of a text as an ISO 639-1 code.
type Detector interface {
	DetectISO(text string) (string, bool)
}

// Translator picks the best translation of a single request.
type Translator interface {
	Translate(ctx context.Context, cfg translator.ServiceConfig, req translator.TranslateRequest) (*translator.ServiceResult, *orchestrator.OrchestratorResult, error)
}

// Memory is the translation memory consulted before and fed after a
// translation. *store.Store satisfies it.
type Memory interface {
	GetCachedTranslation(ctx context.Context, sourceText, sourceLang, targetLang string) (string, bool, error)
	SaveToMemory(ctx context.Context, sourceText, sourceLang, targetLang, finalText, serviceUsed string) error
	SaveRequest(ctx context.Context, req internal.TranslationRequest) error
	SaveResult(ctx context.Context, requestID, serviceName, translatedText string, confidence float64, latencyMs int, errMsg string) error
}

type Options struct {
	TargetLang string
	// MaxChunkChars bounds the runes sent per provider request; <= 0 sends
	// the post whole.
	MaxChunkChars int
	// MaxChunkBytes additionally bounds the UTF-8 size of each request for
	// providers with a byte limit; <= 0 disables it.
	MaxChunkBytes int
	// ChunkConcurrency is how many chunks of one post are translated at
	// once; <= 0 means one.
	ChunkConcurrency int
	// MaxContentBytes rejects larger posts; <= 0 disables the check.
	MaxContentBytes int
	// FallbackToSource returns the untranslated post when every provider
	// fails instead of an error.
	FallbackToSource bool
	ServiceConfig    translator.ServiceConfig
	// Arbiter, when set, chooses between the outputs of several successful
	// services instead of the highest confidence.
	Arbiter arbiter.Arbiter
}

// Outcome is the PageResult plus what the transport may expose as metadata.
type Outcome struct {
	internal.PageResult
	// DetectedLang is the upper-case ISO 639-1 code, empty when unknown.
	DetectedLang string
	// Service lists the providers whose output was used, comma separated.
	Service string
	Cached  bool
}

type Service struct {
	detector   Detector
	translator Translator
	memory     Memory
	opts       Options
}

// New builds the pipeline. memory may be nil to disable the translation
// memory.
func New(det Detector, tr Translator, memory Memory, opts Options) *Service {
	if opts.TargetLang == "" {
		opts.TargetLang = "en"
	}
	opts.TargetLang = strings.ToLower(opts.TargetLang)
	if opts.ChunkConcurrency <= 0 {
		opts.ChunkConcurrency = 1
	}
	return &Service{detector: det, translator: tr, memory: memory, opts: opts}
}

// TargetLang returns the language posts are translated into.
func (s *Service) TargetLang() string {
	return s.opts.TargetLang
}

// Process detects the language of content and translates it when it is not
// already in the target language.
func (s *Service) Process(ctx context.Context, content string) (Outcome, error) {
	if s.opts.MaxContentBytes > 0 && len(content) > s.opts.MaxContentBytes {
		return Outcome{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrContentTooLarge, len(content), s.opts.MaxContentBytes)
	}

	verbatim := Outcome{PageResult: internal.PageResult{IsEnglish: true, TranslatedContent: content}}

	if strings.TrimSpace(content) == "" {
		pagesTotal.WithLabelValues("empty").Inc()
		return verbatim, nil
	}

	lang, ok := s.detector.DetectISO(markdown.ToPlainText([]byte(content)))
	if !ok {
		detectionsTotal.WithLabelValues("unknown").Inc()
		pagesTotal.WithLabelValues("unknown").Inc()
		return verbatim, nil
	}

	lang = strings.ToUpper(lang)
	detectionsTotal.WithLabelValues(lang).Inc()
	verbatim.DetectedLang = lang
	sourceLang := strings.ToLower(lang)

	if sourceLang == s.opts.TargetLang {
		pagesTotal.WithLabelValues("passthrough").Inc()
		return verbatim, nil
	}

	out := Outcome{DetectedLang: lang}

	if s.memory != nil {
		cached, found, err := s.memory.GetCachedTranslation(ctx, content, sourceLang, s.opts.TargetLang)
		switch {
		case err != nil:
			slog.Warn("translation memory lookup failed", "error", err)
		case found:
			cacheLookups.WithLabelValues("hit").Inc()
			pagesTotal.WithLabelValues("cached").Inc()
			out.TranslatedContent = cached
			out.Cached = true
			return out, nil
		default:
			cacheLookups.WithLabelValues("miss").Inc()
		}
	}

	run, err := s.translate(ctx, content, sourceLang)
	if err != nil {
		if s.memory != nil {
			s.persist(ctx, content, sourceLang, run, false)
		}
		if !s.opts.FallbackToSource {
			pagesTotal.WithLabelValues("failed").Inc()
			return out, fmt.Errorf("%w: %w", ErrTranslationFailed, err)
		}
		slog.Warn("translation failed, returning source", "lang", lang, "error", err)
		pagesTotal.WithLabelValues("fallback").Inc()
		out.TranslatedContent = content
		return out, nil
	}

	pagesTotal.WithLabelValues("translated").Inc()
	out.TranslatedContent = run.text
	out.Service = strings.Join(run.services, ",")

	if s.memory != nil {
		s.persist(ctx, content, sourceLang, run, true)
	}
	return out, nil
}

type translation struct {
	text     string
	services []string
	results  []translator.ServiceResult
}

// translate always returns the run, with the provider results gathered so
// far when it fails.
func (s *Service) translate(ctx context.Context, content, sourceLang string) (*translation, error) {
	protected, spans := placeholder.Protect(content)
	pieces := chunker.SplitBytes(protected, s.opts.MaxChunkChars, s.opts.MaxChunkBytes)

	run := &translation{}
	out := make([]string, len(pieces))
	used := make([]string, len(pieces))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ChunkConcurrency)
	for i, piece := range pieces {
		lead, core, trail := splitSpace(piece)
		if placeholder.OnlyMarkers(core) {
			out[i] = piece
			continue
		}

		g.Go(func() error {
			text, service, results, err := s.translateChunk(gctx, core, sourceLang)
			mu.Lock()
			run.results = append(run.results, results...)
			mu.Unlock()
			if err != nil {
				return err
			}
			out[i] = lead + text + trail
			used[i] = service
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return run, err
	}

	for _, service := range used {
		if service != "" && !slices.Contains(run.services, service) {
			run.services = append(run.services, service)
		}
	}

	translated := strings.Join(out, "")
	// Spans nested inside other spans never had a marker of their own.
	nested := len(placeholder.Missing(protected, spans))
	if missing := len(placeholder.Missing(translated, spans)) - nested; missing > 0 {
		slog.Warn("translation dropped protected spans", "missing", missing)
	}
	run.text = placeholder.Restore(translated, spans)
	return run, nil
}

// translateChunk returns the chosen text and service for one chunk plus every
// provider result, failed ones included.
func (s *Service) translateChunk(ctx context.Context, core, sourceLang string) (string, string, []translator.ServiceResult, error) {
	req := translator.TranslateRequest{
		Text:       core,
		SourceLang: sourceLang,
		TargetLang: s.opts.TargetLang,
	}
	if placeholder.HasMarkers(core) {
		req.Instructions = placeholder.InstructionHint()
	}

	best, all, err := s.translator.Translate(ctx, s.opts.ServiceConfig, req)
	var results []translator.ServiceResult
	if all != nil {
		results = append(results, all.Results...)
		results = append(results, all.Failures...)
	}
	if err != nil {
		return "", "", results, err
	}

	translationDuration.WithLabelValues(best.ServiceName).Observe(best.Latency.Seconds())

	text, service := best.TranslatedText, best.ServiceName
	if s.opts.Arbiter != nil && all != nil && all.Succeeded > 1 {
		text, service = s.arbitrate(ctx, req, all.Results, text, service)
	}
	return text, service, results, nil
}

// arbitrate asks the arbiter to pick among the successful results and keeps
// the orchestrator's choice if it cannot.
func (s *Service) arbitrate(ctx context.Context, req translator.TranslateRequest, results []translator.ServiceResult, text, service string) (string, string) {
	var ok []translator.ServiceResult
	for _, r := range results {
		if r.Error == "" && strings.TrimSpace(r.TranslatedText) != "" {
			ok = append(ok, r)
		}
	}

	eval, err := s.opts.Arbiter.Evaluate(ctx, req, ok)
	if err != nil {
		slog.Warn("arbiter failed, keeping best result", "service", service, "error", err)
		return text, service
	}

	slog.Debug("arbiter decision", "selected", eval.SelectedService, "reasoning", eval.Reasoning)
	return eval.CompositeText, eval.SelectedService
}

// persist records the run and, when memorise is set, its final text.
// Failures are logged and never surface to callers.
func (s *Service) persist(ctx context.Context, content, sourceLang string, run *translation, memorise bool) {
	// The request may already be cancelled; its audit rows are still written.
	ctx = context.WithoutCancel(ctx)

	reqID := uuid.NewString()
	req := internal.TranslationRequest{
		ID:         reqID,
		SourceText: content,
		SourceLang: sourceLang,
		TargetLang: s.opts.TargetLang,
		Timestamp:  time.Now(),
	}
	if err := s.memory.SaveRequest(ctx, req); err != nil {
		slog.Warn("failed to save translation request", "error", err)
		return
	}

	for _, r := range run.results {
		if err := s.memory.SaveResult(ctx, reqID, r.ServiceName, r.TranslatedText, r.Confidence, int(r.Latency.Milliseconds()), r.Error); err != nil {
			slog.Warn("failed to save translation result", "service", r.ServiceName, "error", err)
		}
	}

	if !memorise {
		return
	}
	if err := s.memory.SaveToMemory(ctx, content, sourceLang, s.opts.TargetLang, run.text, strings.Join(run.services, ",")); err != nil {
		slog.Warn("failed to save translation memory", "error", err)
	}
}

// splitSpace separates the leading and trailing whitespace of s from its core.
func splitSpace(s string) (lead, core, trail string) {
	core = strings.TrimLeftFunc(s, unicode.IsSpace)
	lead = s[:len(s)-len(core)]
	trimmed := strings.TrimRightFunc(core, unicode.IsSpace)
	trail = core[len(trimmed):]
	return lead, trimmed, trail
}
