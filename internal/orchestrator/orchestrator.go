package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/valpere/posttran/internal/translator"
	"github.com/valpere/posttran/internal/validator"
)

// ErrNoServices is returned by Translate when no service is configured.
var ErrNoServices = errors.New("no translation services configured")

type OrchestratorConfig struct {
	// Timeout bounds each attempt against a single service.
	Timeout time.Duration
	// MaxAttempts counts the first try; 1 disables retries.
	MaxAttempts int
	RetryDelay  time.Duration
	// SkipValidation accepts any non-empty output without checking its language.
	SkipValidation bool
	// Validator is used instead of building a new one when set.
	Validator *validator.Validator
}

type OrchestratorResult struct {
	Results []translator.ServiceResult
	// Failures holds one result per failed service with Error set.
	Failures  []translator.ServiceResult
	Errors    []error
	Succeeded int
	Failed    int
	// Skipped names services that do not support the source language.
	Skipped []string
}

type Orchestrator struct {
	services  []translator.TranslationService
	config    OrchestratorConfig
	validator *validator.Validator

	mu    sync.Mutex
	langs map[string][]string
}

func New(services []translator.TranslationService, config OrchestratorConfig) *Orchestrator {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 500 * time.Millisecond
	}

	o := &Orchestrator{services: services, config: config, langs: make(map[string][]string)}
	if !config.SkipValidation {
		o.validator = config.Validator
		if o.validator == nil {
			o.validator = validator.New()
		}
	}
	return o
}

// Services returns the configured services in priority order.
func (o *Orchestrator) Services() []translator.TranslationService {
	return o.services
}

// Execute runs every service supporting the source language concurrently
// and collects the outcomes. Results keep service configuration order.
func (o *Orchestrator) Execute(ctx context.Context, cfg translator.ServiceConfig, req translator.TranslateRequest) *OrchestratorResult {
	type outcome struct {
		res *translator.ServiceResult
		err error
	}

	result := &OrchestratorResult{
		Results: make([]translator.ServiceResult, 0, len(o.services)),
	}

	var eligible []translator.TranslationService
	for _, svc := range o.services {
		if !o.supports(ctx, svc, req.SourceLang) {
			result.Skipped = append(result.Skipped, svc.Name())
			continue
		}
		eligible = append(eligible, svc)
	}

	outcomes := make([]outcome, len(eligible))

	var wg sync.WaitGroup
	for i, svc := range eligible {
		wg.Add(1)
		go func(index int, service translator.TranslationService) {
			defer wg.Done()
			res, err := o.runWithRetry(ctx, service, cfg, req)
			outcomes[index] = outcome{res: res, err: err}
		}(i, svc)
	}
	wg.Wait()

	for i, oc := range outcomes {
		if oc.err != nil {
			var failure translator.ServiceResult
			if oc.res != nil {
				failure = *oc.res
			}
			failure.ServiceName = eligible[i].Name()
			failure.Error = oc.err.Error()
			result.Failures = append(result.Failures, failure)
			result.Errors = append(result.Errors, oc.err)
			result.Failed++
			continue
		}
		result.Results = append(result.Results, *oc.res)
		result.Succeeded++
	}

	if len(eligible) == 0 && len(o.services) > 0 {
		result.Errors = append(result.Errors, fmt.Errorf("no service supports source language %q: skipped %s", req.SourceLang, strings.Join(result.Skipped, ", ")))
	}
	return result
}

// supports asks svc for its languages once and remembers the answer. A
// service whose list cannot be fetched is tried anyway.
func (o *Orchestrator) supports(ctx context.Context, svc translator.TranslationService, lang string) bool {
	o.mu.Lock()
	langs, ok := o.langs[svc.Name()]
	o.mu.Unlock()

	if !ok {
		var err error
		langs, err = svc.SupportedLanguages(ctx)
		if err != nil {
			slog.Debug("failed to list supported languages", "service", svc.Name(), "error", err)
			return true
		}
		o.mu.Lock()
		o.langs[svc.Name()] = langs
		o.mu.Unlock()
	}
	return translator.Supports(langs, lang)
}

// Translate executes all services and returns the best result, or an error
// joining every service failure.
func (o *Orchestrator) Translate(ctx context.Context, cfg translator.ServiceConfig, req translator.TranslateRequest) (*translator.ServiceResult, *OrchestratorResult, error) {
	if len(o.services) == 0 {
		return nil, nil, ErrNoServices
	}

	result := o.Execute(ctx, cfg, req)
	best := Best(result.Results)
	if best == nil {
		return nil, result, fmt.Errorf("all translation services failed: %w", errors.Join(result.Errors...))
	}
	return best, result, nil
}

// Best returns the result with the highest confidence; earlier results win
// ties. It returns nil for an empty slice.
func Best(results []translator.ServiceResult) *translator.ServiceResult {
	var best *translator.ServiceResult
	for i := range results {
		if best == nil || results[i].Confidence > best.Confidence {
			best = &results[i]
		}
	}
	return best
}

// runWithRetry returns the accepted result, or the last attempt's result (may
// be nil) with the error that rejected it.
func (o *Orchestrator) runWithRetry(ctx context.Context, service translator.TranslationService, cfg translator.ServiceConfig, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	var (
		lastRes *translator.ServiceResult
		lastErr error
	)

	for attempt := 1; attempt <= o.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return lastRes, fmt.Errorf("%s: %w", service.Name(), ctx.Err())
			case <-time.After(o.config.RetryDelay):
			}
		}

		res, err := o.attempt(ctx, service, cfg, req)
		lastRes = res
		switch {
		case err != nil:
			lastErr = fmt.Errorf("%s: %w", service.Name(), err)
		case res.Error != "":
			lastErr = fmt.Errorf("%s: %s", service.Name(), res.Error)
		case strings.TrimSpace(res.TranslatedText) == "":
			lastErr = fmt.Errorf("%s: empty translation", service.Name())
		default:
			if verr := o.validate(res, req.TargetLang); verr != nil {
				if attempt < o.config.MaxAttempts {
					lastErr = fmt.Errorf("%s: %w", service.Name(), verr)
					slog.Debug("translation failed validation, retrying", "service", service.Name(), "attempt", attempt, "error", verr)
					continue
				}
				// Out of retries: keep the output but rank it below validated ones.
				res.Confidence /= 2
				if res.Metadata == nil {
					res.Metadata = map[string]string{}
				}
				res.Metadata["validation"] = verr.Error()
			}
			return res, nil
		}

		slog.Debug("translation attempt failed", "service", service.Name(), "attempt", attempt, "error", lastErr)
		if ctx.Err() != nil {
			break
		}
	}

	return lastRes, lastErr
}

func (o *Orchestrator) attempt(ctx context.Context, service translator.TranslationService, cfg translator.ServiceConfig, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	res, err := service.Translate(attemptCtx, cfg, req)
	if err == nil && res == nil {
		err = errors.New("service returned no result")
	}
	return res, err
}

func (o *Orchestrator) validate(res *translator.ServiceResult, targetLang string) error {
	if o.validator == nil {
		return nil
	}
	_, err := o.validator.IsValid(res.TranslatedText, targetLang)
	return err
}
