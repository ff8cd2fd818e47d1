package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Eduhs21/ClipBuilder/internal/apperr"
)

func TestSupportsVision(t *testing.T) {
	t.Parallel()

	a := New("k", "")
	if !a.SupportsVision("meta-llama/llama-4-scout-17b-16e-instruct") {
		t.Fatalf("expected scout to support vision")
	}
	if a.SupportsVision("llama-3.3-70b-versatile") {
		t.Fatalf("text-only model must not report vision support")
	}
}

func TestDescribeFramesSendsDataURLs(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]string{"content": "  Click the save button.  "},
			}},
		})
	}))
	defer srv.Close()

	a := New("test-key", srv.URL)
	text, err := a.DescribeFrames(context.Background(), [][]byte{[]byte("png1"), []byte("png2")}, "scout", "what?")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if text != "Click the save button." {
		t.Fatalf("text = %q", text)
	}

	msgs := gotBody["messages"].([]any)
	content := msgs[0].(map[string]any)["content"].([]any)
	if len(content) != 3 { // prompt + 2 frames
		t.Fatalf("content parts = %d, want 3", len(content))
	}
	img := content[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(img, "data:image/png;base64,") {
		t.Fatalf("frame url = %q", img)
	}
}

func TestDescribeFramesErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		body   string
		kind   apperr.Kind
	}{
		{http.StatusTooManyRequests, "Rate limit reached. Please try again in 4.2s.", apperr.RateLimited},
		{http.StatusUnauthorized, "invalid api key", apperr.PermissionDenied},
		{http.StatusNotFound, "model not found", apperr.NotFound},
		{http.StatusBadRequest, "bad image", apperr.InvalidArgument},
		{http.StatusServiceUnavailable, "overloaded", apperr.Transient},
	}
	for _, tc := range cases {
		tc := tc
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, tc.body, tc.status)
		}))
		a := New("k", srv.URL)
		_, err := a.DescribeFrames(context.Background(), [][]byte{[]byte("x")}, "m", "p")
		srv.Close()
		if !apperr.Is(err, tc.kind) {
			t.Fatalf("status %d: got %v, want kind %v", tc.status, err, tc.kind)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	if got := parseRetryAfter("Please try again in 4.2s."); got != time.Duration(4.2*float64(time.Second)) {
		t.Fatalf("got %v", got)
	}
	if got := parseRetryAfter("no hint here"); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestDescribeFramesRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	a := New("k", "")
	_, err := a.DescribeFrames(context.Background(), nil, "m", "p")
	if !apperr.Is(err, apperr.InvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
