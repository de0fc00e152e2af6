package arbiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valpere/posttran/internal/translator"
)

const compositeService = "composite"

type OllamaArbiter struct {
	model   string
	baseURL string
	client  *http.Client
}

type OllamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type OllamaResponse struct {
	Response string `json:"response"`
}

func NewOllamaArbiter(model, baseURL string) *OllamaArbiter {
	if model == "" {
		model = "llama3.2"
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaArbiter{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (a *OllamaArbiter) Evaluate(ctx context.Context, req translator.TranslateRequest, results []translator.ServiceResult) (*EvaluationResult, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no results to evaluate")
	}

	if len(results) == 1 {
		return &EvaluationResult{
			SelectedService: results[0].ServiceName,
			CompositeText:   results[0].TranslatedText,
			Reasoning:       "Only one service available",
		}, nil
	}

	reqBody := OllamaRequest{
		Model:  a.model,
		Prompt: buildArbiterPrompt(req, results),
		Stream: false,
		Format: "json",
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("arbiter request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arbiter returned status %d", resp.StatusCode)
	}

	var ollamaResp OllamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	res, err := parseArbiterResponse(ollamaResp.Response)
	if err != nil {
		return nil, err
	}

	if res.IsComposite {
		return res, nil
	}

	// Prefer the service's own output over the model's copy of it. A name
	// that matches no candidate makes the model's text a composite.
	for _, r := range results {
		if r.ServiceName == res.SelectedService {
			res.CompositeText = r.TranslatedText
			return res, nil
		}
	}
	res.SelectedService = compositeService
	res.IsComposite = true
	return res, nil
}

func buildArbiterPrompt(req translator.TranslateRequest, results []translator.ServiceResult) string {
	var sb strings.Builder
	sb.WriteString("You are reviewing machine translations of a forum post.\n")
	fmt.Fprintf(&sb, "Original text (%s):\n%q\n\n", req.SourceLang, req.Text)
	fmt.Fprintf(&sb, "Candidate translations to %s:\n", req.TargetLang)

	names := make([]string, 0, len(results)+1)
	for i, r := range results {
		fmt.Fprintf(&sb, "  %d. [%s]: %q\n", i+1, r.ServiceName, r.TranslatedText)
		names = append(names, r.ServiceName)
	}
	names = append(names, compositeService)

	sb.WriteString("\nSelect the most accurate and natural translation, or compose an improved one from the candidates.\n")
	if req.Instructions != "" {
		sb.WriteString(req.Instructions)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, `Respond ONLY in JSON:
{
  "selected_service": "%s",
  "final_text": "...",
  "reasoning": "..."
}
`, strings.Join(names, "|"))

	return sb.String()
}

func parseArbiterResponse(response string) (*EvaluationResult, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")

	var parsed struct {
		SelectedService string `json:"selected_service"`
		FinalText       string `json:"final_text"`
		Reasoning       string `json:"reasoning"`
	}

	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse arbiter response as JSON: %w", err)
	}
	if strings.TrimSpace(parsed.FinalText) == "" {
		return nil, fmt.Errorf("arbiter returned an empty translation")
	}

	return &EvaluationResult{
		SelectedService: parsed.SelectedService,
		CompositeText:   parsed.FinalText,
		IsComposite:     parsed.SelectedService == compositeService,
		Reasoning:       parsed.Reasoning,
	}, nil
}
