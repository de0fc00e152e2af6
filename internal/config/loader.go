package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the config file base name, without extension.
	ConfigFileName = "posttran"

	// EnvPrefix prefixes every environment variable, e.g. POSTTRAN_SERVER_PORT.
	EnvPrefix = "POSTTRAN"
)

// Loader assembles a Config from defaults, an optional config file, a .env
// file, environment variables and any flags bound to its viper instance.
type Loader struct {
	v        *viper.Viper
	envFiles []string
}

func NewLoader() *Loader {
	return &Loader{v: viper.New(), envFiles: []string{".env"}}
}

// Viper exposes the underlying instance so commands can bind their flags.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// WithEnvFiles replaces the list of dotenv files read before the environment.
func (l *Loader) WithEnvFiles(files ...string) *Loader {
	l.envFiles = files
	return l
}

// Load searches the default locations for a config file. A missing file is
// not an error.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", ConfigFileName))
	}
	l.v.AddConfigPath(filepath.Join("/etc", ConfigFileName))

	l.prepare()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.decode()
}

// LoadWithFile reads configuration from an explicit file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.prepare()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	return l.decode()
}

func (l *Loader) prepare() {
	l.loadEnvFiles()
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
	setDefaults(l.v)
}

// loadEnvFiles copies .env entries into the process environment. Variables
// already set win over the file.
func (l *Loader) loadEnvFiles() {
	for _, f := range l.envFiles {
		if err := godotenv.Load(f); err != nil {
			slog.Debug("env file not loaded", "file", f, "error", err)
		}
	}
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func normalize(cfg *Config) {
	services := cfg.Translation.Services[:0]
	for _, s := range cfg.Translation.Services {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			services = append(services, s)
		}
	}
	cfg.Translation.Services = services
	cfg.Translation.TargetLang = strings.ToLower(strings.TrimSpace(cfg.Translation.TargetLang))
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.requests_per_minute", 120)
	v.SetDefault("server.max_content_bytes", 64*1024)

	v.SetDefault("translation.services", []string{"mymemory"})
	v.SetDefault("translation.target_lang", "en")
	v.SetDefault("translation.timeout", "30s")
	v.SetDefault("translation.max_attempts", 2)
	v.SetDefault("translation.retry_delay", "500ms")
	v.SetDefault("translation.max_chunk_chars", 450)
	// 0 takes the services' own byte limits, e.g. 500 for MyMemory.
	v.SetDefault("translation.max_chunk_bytes", 0)
	v.SetDefault("translation.chunk_concurrency", 4)
	v.SetDefault("translation.fallback_to_source", true)
	v.SetDefault("translation.skip_validation", false)

	v.SetDefault("detector.languages", []string{})
	v.SetDefault("detector.min_relative_distance", 0.0)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.db_path", "./data/posttran.db")

	v.SetDefault("google.credentials", "")
	v.SetDefault("google.project_id", "")
	v.SetDefault("mymemory.email", "")
	v.SetDefault("mymemory.base_url", "https://api.mymemory.translated.net")
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("ollama.models", []string{})
	v.SetDefault("openrouter.api_key", "")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.models", []string{})

	v.SetDefault("arbiter.enabled", false)
	v.SetDefault("arbiter.model", "llama3.2")
	v.SetDefault("arbiter.url", "http://localhost:11434")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
