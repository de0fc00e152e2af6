package server

import (
	"context"
	"time"

	"github.com/valpere/posttran/internal/page"
)

// pipelineInterface defines the methods needed by the server from the page pipeline.
type pipelineInterface interface {
	Process(ctx context.Context, content string) (page.Outcome, error)
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Config holds server configuration.
type Config struct {
	CORSOrigins       []string
	RequestsPerMinute int
	MaxContentBytes   int
	RequestTimeout    time.Duration
}

// Response types for API endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// indexRequest is the POST / body for posts too long for a query string.
type indexRequest struct {
	Content string `json:"content"`
}
