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
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/posttran/internal/config"
)

var version = "0.1.0"

var (
	configLoader = config.NewLoader()
	globalConfig *config.Config
	cfgFile      string
	envFiles     []string
)

var rootCmd = &cobra.Command{
	Use:   "posttran",
	Short: "Forum post language detection and translation service",
	Long: `posttran tells a forum whether a post is written in English and, when it
is not, translates it using one or more translation services.

The forum calls GET /?content=<post> and receives
  {"is_english": <bool>, "translated_content": <string>}

Supported services: Google Translate, MyMemory, Ollama (LLM), OpenRouter (LLM)

Use "posttran serve --help" to run the HTTP service.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd)
		cfg, err := configLoader.WithEnvFiles(envFiles...).LoadWithFile(cfgFile)
		if err != nil {
			return err
		}
		applyToggles(cmd, cfg)
		globalConfig = cfg
		slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.Log))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flagKeys maps flag names onto configuration keys. Several commands share
// a flag name, so binding happens for the command actually running.
var flagKeys = map[string]string{
	"log-level":           "log.level",
	"log-format":          "log.format",
	"host":                "server.host",
	"port":                "server.port",
	"requests-per-minute": "server.requests_per_minute",
	"services":            "translation.services",
	"target":              "translation.target_lang",
	"db":                  "cache.db_path",
}

func bindFlags(cmd *cobra.Command) {
	v := configLoader.Viper()
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			v.BindPFlag(key, f)
		}
	}
}

// applyToggles applies flags that negate a configuration value.
func applyToggles(cmd *cobra.Command, cfg *config.Config) {
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		cfg.Translation.FallbackToSource = false
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is posttran.yaml in ., $HOME/.config/posttran, /etc/posttran)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files read before the environment")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
}
