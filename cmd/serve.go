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
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/posttran/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP translation service",
	Long: `Start an HTTP server answering the forum's translation requests.

Endpoints:
  GET  /?content=<post>  - detect and translate a post
  POST /                 - same, with {"content": "<post>"} as the body
  GET  /health           - liveness probe
  GET  /ready            - readiness probe (translation memory, providers)
  GET  /metrics          - Prometheus metrics

Examples:
  posttran serve
  posttran serve --port 8080 --services google,mymemory`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := globalConfig

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				slog.Error("cleanup failed", "error", err)
			}
		}()

		srv := server.NewServer(a.pipeline, server.Config{
			CORSOrigins:       cfg.Server.CORSOrigins,
			RequestsPerMinute: cfg.Server.RequestsPerMinute,
			MaxContentBytes:   cfg.Server.MaxContentBytes,
			RequestTimeout:    cfg.Server.RequestTimeout,
		}, a.checks()...)

		httpServer := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("starting server", "addr", httpServer.Addr, "services", cfg.Translation.Services)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig.String())
		case err, ok := <-errCh:
			if ok {
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		slog.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
			return err
		}
		slog.Info("shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("host", "H", "0.0.0.0", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().StringSlice("services", nil, "translation services in priority order (google, mymemory, ollama, openrouter)")
	serveCmd.Flags().Int("requests-per-minute", 120, "per-client rate limit on / (0 disables)")
	serveCmd.Flags().Bool("strict", false, "answer 502 instead of the source text when every service fails")
	serveCmd.Flags().Bool("no-cache", false, "disable the translation memory")
}
