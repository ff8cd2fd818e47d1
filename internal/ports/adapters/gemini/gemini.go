// Package gemini implements the clip-upload provider against the
// Gemini file API: upload a clip, poll until the file is ACTIVE, then
// ask the model to describe it.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Eduhs21/ClipBuilder/internal/apperr"
	"github.com/Eduhs21/ClipBuilder/internal/ports"
)

const requestTimeout = 90 * time.Second

type Adapter struct {
	key     string
	baseURL string
	client  *http.Client
}

func New(apiKey, baseURL string) *Adapter {
	return &Adapter{
		key:     apiKey,
		baseURL: normalizeBaseURL(baseURL),
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (a *Adapter) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open clip: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat clip: %w", err)
	}

	url := a.baseURL + "/upload/v1beta/files?key=" + a.key
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, f)
	if err != nil {
		return "", err
	}
	req.ContentLength = st.Size()
	req.Header.Set("Content-Type", "video/mp4")
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.Transient, err, "gemini upload")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", a.statusErr("upload", resp.StatusCode, body)
	}

	var out struct {
		File struct {
			Name string `json:"name"`
		} `json:"file"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.File.Name == "" {
		return "", apperr.New(apperr.Fatal, "gemini upload returned no file name")
	}
	return out.File.Name, nil
}

func (a *Adapter) PollState(ctx context.Context, handle string) (ports.ArtifactState, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := a.baseURL + "/v1beta/" + handle + "?key=" + a.key
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return ports.ArtifactFailed, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return ports.ArtifactFailed, apperr.Wrap(apperr.Transient, err, "gemini file status")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ports.ArtifactFailed, a.statusErr("file status", resp.StatusCode, body)
	}

	var out struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return ports.ArtifactFailed, fmt.Errorf("decode file status: %w", err)
	}
	switch strings.ToUpper(out.State) {
	case "ACTIVE":
		return ports.ArtifactActive, nil
	case "FAILED", "ERROR":
		return ports.ArtifactFailed, apperr.New(apperr.Fatal, "gemini failed to process the file")
	default:
		return ports.ArtifactProcessing, nil
	}
}

func (a *Adapter) Describe(ctx context.Context, handle, model, prompt string) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{{
			"parts": []map[string]any{
				{"file_data": map[string]any{"file_uri": a.baseURL + "/v1beta/" + handle}},
				{"text": prompt},
			},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := a.baseURL + "/v1beta/" + normalizeModel(model) + ":generateContent?key=" + a.key
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.Transient, err, "gemini describe")
	}
	defer resp.Body.Close()
	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", a.statusErr("describe", resp.StatusCode, rb)
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(rb, &out); err != nil {
		return "", fmt.Errorf("decode describe response: %w", err)
	}
	var b strings.Builder
	for _, c := range out.Candidates {
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
		break
	}
	return strings.TrimSpace(b.String()), nil
}

// statusErr maps an HTTP failure onto the error taxonomy, with the
// response body truncated and stripped of secrets.
func (a *Adapter) statusErr(op string, status int, body []byte) error {
	msg := truncate(redactSecrets(string(body), a.key), 400)
	switch {
	case status == http.StatusTooManyRequests:
		return apperr.RateLimitedAfter(ParseRetryHint(string(body)), "gemini %s rate limited: %s", op, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.New(apperr.PermissionDenied, "gemini %s: %s", op, msg)
	case status == http.StatusNotFound:
		return apperr.New(apperr.NotFound, "gemini %s: %s", op, msg)
	case status == http.StatusBadRequest:
		return apperr.New(apperr.InvalidArgument, "gemini %s: %s", op, msg)
	case status >= 500:
		return apperr.New(apperr.Transient, "gemini %s status %d: %s", op, status, msg)
	default:
		return apperr.New(apperr.Fatal, "gemini %s status %d: %s", op, status, msg)
	}
}

var retryHintREs = []*regexp.Regexp{
	regexp.MustCompile(`(?i)retry in\s+([0-9]+(?:\.[0-9]+)?)s`),
	regexp.MustCompile(`(?i)"retryDelay"\s*:\s*"([0-9]+(?:\.[0-9]+)?)s"`),
}

// ParseRetryHint extracts the provider-suggested backoff from an error
// body (e.g. "Please retry in 13.644857575s."). Zero means no hint.
func ParseRetryHint(body string) time.Duration {
	for _, re := range retryHintREs {
		m := re.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v <= 0 {
			continue
		}
		return time.Duration(v * float64(time.Second))
	}
	return 0
}

// normalizeModel accepts "gemini-2.0-flash" or "models/gemini-2.0-flash".
func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	if model != "" && !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	return model
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var apiKeyParamRE = regexp.MustCompile(`(?i)(key=)[A-Za-z0-9._-]+`)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	return apiKeyParamRE.ReplaceAllString(out, "${1}[REDACTED]")
}
