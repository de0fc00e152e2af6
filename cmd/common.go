/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/valpere/posttran/internal/arbiter"
	"github.com/valpere/posttran/internal/config"
	"github.com/valpere/posttran/internal/detector"
	"github.com/valpere/posttran/internal/orchestrator"
	"github.com/valpere/posttran/internal/page"
	"github.com/valpere/posttran/internal/server"
	"github.com/valpere/posttran/internal/store"
	"github.com/valpere/posttran/internal/translator"
	"github.com/valpere/posttran/internal/validator"
)

// buildServices constructs the enabled translation services in priority order.
func buildServices(cfg *config.Config) ([]translator.TranslationService, error) {
	var list []translator.TranslationService

	for _, name := range cfg.Translation.Services {
		switch name {
		case "google":
			list = append(list, translator.NewGoogleService(cfg.Google.Credentials))
		case "mymemory":
			list = append(list, translator.NewMyMemoryService(cfg.MyMemory.Email, cfg.MyMemory.BaseURL))
		case "ollama":
			svc := translator.NewOllamaTranslator(cfg.Ollama.URL, cfg.Ollama.Models)
			slog.Debug("ollama models", "models", svc.GetModels())
			list = append(list, svc)
		case "openrouter":
			list = append(list, translator.NewOpenRouterService(cfg.OpenRouter.APIKey, cfg.OpenRouter.BaseURL, cfg.OpenRouter.Models))
		default:
			slog.Warn("unknown service, skipping", "service", name)
		}
	}

	if len(list) == 0 {
		return nil, fmt.Errorf("no valid services configured")
	}
	return list, nil
}

// app bundles the pipeline with the resources it owns.
type app struct {
	pipeline *page.Service
	orch     *orchestrator.Orchestrator
	memory   *store.Store
}

func newApp(cfg *config.Config) (*app, error) {
	services, err := buildServices(cfg)
	if err != nil {
		return nil, err
	}

	// Both the page and the validator use one detector; each instance holds
	// its own language models.
	det := detector.New(
		detector.WithLanguages(cfg.Detector.Languages...),
		detector.WithMinRelativeDistance(cfg.Detector.MinRelativeDistance),
	)

	orch := orchestrator.New(services, orchestrator.OrchestratorConfig{
		Timeout:        cfg.Translation.Timeout,
		MaxAttempts:    cfg.Translation.MaxAttempts,
		RetryDelay:     cfg.Translation.RetryDelay,
		SkipValidation: cfg.Translation.SkipValidation,
		Validator:      validator.NewWithDetector(det),
	})

	a := &app{orch: orch}

	// A nil *store.Store must not end up inside the Memory interface.
	var memory page.Memory
	if cfg.Cache.Enabled {
		a.memory, err = store.New(cfg.Cache.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		memory = a.memory
	}

	opts := page.Options{
		TargetLang:       cfg.Translation.TargetLang,
		MaxChunkChars:    cfg.Translation.MaxChunkChars,
		MaxChunkBytes:    chunkBytes(cfg, services),
		ChunkConcurrency: cfg.Translation.ChunkConcurrency,
		MaxContentBytes:  cfg.Server.MaxContentBytes,
		FallbackToSource: cfg.Translation.FallbackToSource,
		ServiceConfig: translator.ServiceConfig{
			Credentials: cfg.Google.Credentials,
			ProjectID:   cfg.Google.ProjectID,
			Timeout:     cfg.Translation.Timeout,
		},
	}
	if cfg.Arbiter.Enabled {
		opts.Arbiter = arbiter.NewOllamaArbiter(cfg.Arbiter.Model, cfg.Arbiter.URL)
	}
	a.pipeline = page.New(det, orch, memory, opts)

	slog.Debug("pipeline ready",
		"services", cfg.Translation.Services,
		"target", cfg.Translation.TargetLang,
		"memory", cfg.Cache.Enabled,
		"arbiter", cfg.Arbiter.Enabled,
	)
	return a, nil
}

// chunkBytes is the configured byte cap per request, or the tightest limit
// among the services when none is set.
func chunkBytes(cfg *config.Config, services []translator.TranslationService) int {
	if cfg.Translation.MaxChunkBytes > 0 {
		return cfg.Translation.MaxChunkBytes
	}
	return translator.MaxQueryBytes(services)
}

// checks returns the readiness probes for the server.
func (a *app) checks() []server.Check {
	var checks []server.Check
	if a.memory != nil {
		checks = append(checks, server.Check{Name: "memory", Fn: a.memory.Ping})
	}
	checks = append(checks, server.Check{Name: "providers", Fn: a.anyProviderAvailable})
	return checks
}

func (a *app) anyProviderAvailable(ctx context.Context) error {
	var errs []error
	for _, svc := range a.orch.Services() {
		err := svc.IsAvailable(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", svc.Name(), err))
	}
	return errors.Join(errs...)
}

func (a *app) Close() error {
	var errs []error
	for _, svc := range a.orch.Services() {
		if c, ok := svc.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	if a.memory != nil {
		errs = append(errs, a.memory.Close())
	}
	return errors.Join(errs...)
}

// openStore opens the translation memory named by the configuration.
func openStore(cfg *config.Config) (*store.Store, error) {
	db, err := store.New(cfg.Cache.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
