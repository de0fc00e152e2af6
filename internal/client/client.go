// Package client calls a running posttran server the way the forum does.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valpere/posttran/internal"
)

// maxQueryLen is the longest escaped content sent in a query string; longer
// posts are POSTed as JSON.
const maxQueryLen = 6000

// APIError is a non-200 answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("translator returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("translator returned status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// Translate asks the server whether content is English and for its
// translation.
func (c *Client) Translate(ctx context.Context, content string) (bool, string, error) {
	res, err := c.Page(ctx, content)
	if err != nil {
		return false, "", err
	}
	return res.IsEnglish, res.TranslatedContent, nil
}

// TranslateOrKeep is Translate for callers that must not fail: any error
// yields (true, content) so the post is shown untouched.
func (c *Client) TranslateOrKeep(ctx context.Context, content string) (bool, string) {
	isEnglish, translated, err := c.Translate(ctx, content)
	if err != nil {
		return true, content
	}
	return isEnglish, translated
}

// Page returns the full PageResult for content.
func (c *Client) Page(ctx context.Context, content string) (*internal.PageResult, error) {
	req, err := c.newRequest(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil {
			apiErr.Message = body.Message
		}
		return nil, apiErr
	}

	var result internal.PageResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func (c *Client) newRequest(ctx context.Context, content string) (*http.Request, error) {
	q := url.Values{}
	q.Set("content", content)
	if encoded := q.Encode(); len(encoded) <= maxQueryLen {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+encoded, nil)
	}

	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
