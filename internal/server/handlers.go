package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/valpere/posttran/internal/page"
)

const (
	headerDetectedLanguage   = "X-Detected-Language"
	headerTranslationService = "X-Translation-Service"
	headerTranslationCached  = "X-Translation-Cached"

	readyTimeout = 5 * time.Second
)

// indexHandler answers GET /?content=... and POST / {"content": ...} with a
// PageResult.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	var content string

	switch r.Method {
	case http.MethodGet:
		content = r.URL.Query().Get("content")
	case http.MethodPost:
		if s.config.MaxContentBytes > 0 {
			// Leave room for the JSON envelope and escapes; the pipeline
			// enforces the exact limit.
			r.Body = http.MaxBytesReader(w, r.Body, int64(s.config.MaxContentBytes)*2+1024)
		}
		var req indexRequest
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeErrorResponse(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			writeErrorResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		content = req.Content
	default:
		writeErrorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	contentLength.Observe(float64(len(content)))

	out, err := s.pipeline.Process(r.Context(), content)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			slog.Error("page processing failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		}
		writeErrorResponse(w, err.Error(), status)
		return
	}

	w.Header().Set(headerDetectedLanguage, out.DetectedLang)
	if out.Service != "" {
		w.Header().Set(headerTranslationService, out.Service)
	}
	w.Header().Set(headerTranslationCached, strconv.FormatBool(out.Cached))
	writeJSON(w, http.StatusOK, out.PageResult)
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// readyHandler runs every readiness check and reports 503 if any fails.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK
	for _, c := range s.checks {
		if err := c.Fn(ctx); err != nil {
			resp.Checks[c.Name] = err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, page.ErrContentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, page.ErrTranslationFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
