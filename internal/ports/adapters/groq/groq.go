// Package groq implements the frame-based vision provider over the
// Groq chat-completions API: extracted PNG frames are sent inline as
// base64 data URLs.
package groq

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Eduhs21/ClipBuilder/internal/apperr"
)

const (
	defaultBaseURL = "https://api.groq.com/openai"
	requestTimeout = 90 * time.Second
)

// visionModels are the Groq-hosted models that accept image input.
var visionModels = map[string]struct{}{
	"meta-llama/llama-4-maverick-17b-128e-instruct": {},
	"meta-llama/llama-4-scout-17b-16e-instruct":     {},
	"llama-3.2-11b-vision-preview":                  {},
	"llama-3.2-90b-vision-preview":                  {},
}

type Adapter struct {
	key     string
	baseURL string
	client  *http.Client
}

func New(apiKey, baseURL string) *Adapter {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		key:     apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (a *Adapter) SupportsVision(model string) bool {
	_, ok := visionModels[strings.TrimSpace(model)]
	return ok
}

// SupportedVisionModels lists the accepted models, for error messages.
func SupportedVisionModels() []string {
	out := make([]string, 0, len(visionModels))
	for m := range visionModels {
		out = append(out, m)
	}
	return out
}

func (a *Adapter) DescribeFrames(ctx context.Context, frames [][]byte, model, prompt string) (string, error) {
	if len(frames) == 0 {
		return "", apperr.New(apperr.InvalidArgument, "no frames to describe")
	}

	content := []map[string]any{{"type": "text", "text": prompt}}
	for _, frame := range frames {
		content = append(content, map[string]any{
			"type": "image_url",
			"image_url": map[string]any{
				"url": "data:image/png;base64," + base64.StdEncoding.EncodeToString(frame),
			},
		})
	}
	payload := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.Transient, err, "groq describe")
	}
	defer resp.Body.Close()
	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", a.statusErr(resp.StatusCode, rb)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rb, &out); err != nil {
		return "", fmt.Errorf("decode describe response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", apperr.New(apperr.Transient, "groq returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (a *Adapter) statusErr(status int, body []byte) error {
	msg := truncate(redactSecrets(string(body), a.key), 400)
	switch {
	case status == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(string(body))
		return apperr.RateLimitedAfter(retryAfter, "groq rate limited: %s", msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.New(apperr.PermissionDenied, "groq: %s", msg)
	case status == http.StatusNotFound:
		return apperr.New(apperr.NotFound, "groq: %s", msg)
	case status == http.StatusBadRequest:
		return apperr.New(apperr.InvalidArgument, "groq: %s", msg)
	case status >= 500:
		return apperr.New(apperr.Transient, "groq status %d: %s", status, msg)
	default:
		return apperr.New(apperr.Fatal, "groq status %d: %s", status, msg)
	}
}

var retryAfterRE = regexp.MustCompile(`(?i)try again in\s+([0-9]+(?:\.[0-9]+)?)s`)

func parseRetryAfter(body string) time.Duration {
	m := retryAfterRE.FindStringSubmatch(body)
	if m == nil {
		return 0
	}
	var v float64
	if _, err := fmt.Sscanf(m[1], "%f", &v); err != nil || v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	return bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
}
