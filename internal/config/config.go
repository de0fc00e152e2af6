// Package config holds the runtime configuration of the translation service
// and the loader that assembles it from defaults, config files, .env files,
// environment variables and command-line flags.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// KnownServices lists the translation backends that can be enabled.
var KnownServices = []string{"google", "mymemory", "ollama", "openrouter"}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Translation TranslationConfig `mapstructure:"translation"`
	Detector    DetectorConfig    `mapstructure:"detector"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Google      GoogleConfig      `mapstructure:"google"`
	MyMemory    MyMemoryConfig    `mapstructure:"mymemory"`
	Ollama      OllamaConfig      `mapstructure:"ollama"`
	OpenRouter  OpenRouterConfig  `mapstructure:"openrouter"`
	Arbiter     ArbiterConfig     `mapstructure:"arbiter"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins       []string      `mapstructure:"cors_origins"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxContentBytes   int           `mapstructure:"max_content_bytes"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type TranslationConfig struct {
	Services         []string      `mapstructure:"services"`
	TargetLang       string        `mapstructure:"target_lang"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	MaxChunkChars    int           `mapstructure:"max_chunk_chars"`
	// MaxChunkBytes caps each request in UTF-8 bytes. 0 takes the smallest
	// limit of the configured services.
	MaxChunkBytes    int           `mapstructure:"max_chunk_bytes"`
	ChunkConcurrency int           `mapstructure:"chunk_concurrency"`
	FallbackToSource bool          `mapstructure:"fallback_to_source"`
	SkipValidation   bool          `mapstructure:"skip_validation"`
}

type DetectorConfig struct {
	// Languages restricts detection to these ISO 639-1 codes. Empty means all.
	Languages           []string `mapstructure:"languages"`
	MinRelativeDistance float64  `mapstructure:"min_relative_distance"`
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

type GoogleConfig struct {
	Credentials string `mapstructure:"credentials"`
	ProjectID   string `mapstructure:"project_id"`
}

type MyMemoryConfig struct {
	Email   string `mapstructure:"email"`
	BaseURL string `mapstructure:"base_url"`
}

type OllamaConfig struct {
	URL    string   `mapstructure:"url"`
	Models []string `mapstructure:"models"`
}

type OpenRouterConfig struct {
	APIKey  string   `mapstructure:"api_key"`
	BaseURL string   `mapstructure:"base_url"`
	Models  []string `mapstructure:"models"`
}

// ArbiterConfig enables an Ollama model that picks between the outputs of
// several successful services.
type ArbiterConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	URL     string `mapstructure:"url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxContentBytes <= 0 {
		return fmt.Errorf("server.max_content_bytes must be positive")
	}
	if c.Server.RequestsPerMinute < 0 {
		return fmt.Errorf("server.requests_per_minute must not be negative")
	}

	if len(c.Translation.Services) == 0 {
		return fmt.Errorf("translation.services must name at least one service")
	}
	for _, name := range c.Translation.Services {
		if !slices.Contains(KnownServices, strings.ToLower(strings.TrimSpace(name))) {
			return fmt.Errorf("unknown translation service %q (known: %s)", name, strings.Join(KnownServices, ", "))
		}
	}
	if strings.TrimSpace(c.Translation.TargetLang) == "" {
		return fmt.Errorf("translation.target_lang is required")
	}
	if c.Translation.MaxChunkChars <= 0 {
		return fmt.Errorf("translation.max_chunk_chars must be positive")
	}
	if c.Translation.MaxChunkBytes < 0 {
		return fmt.Errorf("translation.max_chunk_bytes must not be negative")
	}
	if c.Translation.ChunkConcurrency < 1 {
		return fmt.Errorf("translation.chunk_concurrency must be at least 1")
	}
	if c.Translation.MaxAttempts < 1 {
		return fmt.Errorf("translation.max_attempts must be at least 1")
	}
	if c.Translation.Timeout <= 0 {
		return fmt.Errorf("translation.timeout must be positive")
	}

	if c.Detector.MinRelativeDistance < 0 || c.Detector.MinRelativeDistance >= 1 {
		return fmt.Errorf("detector.min_relative_distance must be in [0, 1)")
	}

	if c.Cache.Enabled && c.Cache.DBPath == "" {
		return fmt.Errorf("cache.db_path is required when the cache is enabled")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text; got %q", c.Log.Format)
	}

	return nil
}
