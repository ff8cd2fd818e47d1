package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Eduhs21/ClipBuilder/internal/apperr"
	"github.com/Eduhs21/ClipBuilder/internal/ingest"
	"github.com/Eduhs21/ClipBuilder/internal/ports"
	"github.com/Eduhs21/ClipBuilder/internal/registry"
	"github.com/Eduhs21/ClipBuilder/internal/usecase"
)

type fakeMedia struct{}

func (fakeMedia) ProbeDuration(context.Context, string) (time.Duration, error) {
	return 10 * time.Minute, nil
}

func (fakeMedia) ExtractFrame(_ context.Context, _ string, _ float64, outPath string) error {
	return os.WriteFile(outPath, []byte("png"), 0o644)
}

func (fakeMedia) ExtractClip(_ context.Context, _ string, _ float64, clipSeconds int, outPath string) (int, int, error) {
	return 0, clipSeconds, os.WriteFile(outPath, []byte("clip"), 0o644)
}

func (fakeMedia) ExtractFramesWindow(context.Context, string, float64, float64, int) ([][]byte, error) {
	return [][]byte{[]byte("png")}, nil
}

func (fakeMedia) ExtractAudioWindow(context.Context, string, float64, float64, string) (bool, error) {
	return false, nil
}

type fakeClip struct {
	describeErrs []error
}

func (f *fakeClip) Upload(context.Context, string) (string, error) { return "files/fake", nil }

func (f *fakeClip) PollState(context.Context, string) (ports.ArtifactState, error) {
	return ports.ArtifactActive, nil
}

func (f *fakeClip) Describe(context.Context, string, string, string) (string, error) {
	if len(f.describeErrs) > 0 {
		err := f.describeErrs[0]
		f.describeErrs = f.describeErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return "open the settings panel", nil
}

func newTestServer(t *testing.T, clip *fakeClip) (*Server, *registry.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	reg := registry.New(dir, nil)
	ing := ingest.New(reg, nil, 1<<20, 20, nil)

	uc := usecase.New(usecase.Deps{
		Media:    fakeMedia{},
		Clip:     clip,
		Registry: reg,
	}, usecase.Config{DataDir: dir, ClipSeconds: 90, DefaultModel: "test-model"})

	return NewServer(ing, reg, uc, nil), reg, dir
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var m map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t, &fakeClip{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRawUploadStatusAndFile(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t, &fakeClip{})

	req := httptest.NewRequest(http.MethodPost, "/videos/raw", strings.NewReader("video-bytes"))
	req.Header.Set("X-Filename", "demo.mp4")
	rec := doRequest(s, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body.String())
	}
	id := decodeBody(t, rec)["video_id"]
	if id == "" {
		t.Fatal("missing video_id")
	}

	rec = doRequest(s, httptest.NewRequest(http.MethodGet, "/videos/"+id+"/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["status"]; got != "ready" {
		t.Fatalf("status = %q", got)
	}

	rec = doRequest(s, httptest.NewRequest(http.MethodGet, "/videos/"+id+"/file", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("file code = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "video-bytes" {
		t.Fatalf("file body = %q", body)
	}
}

func TestMultipartUpload(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t, &fakeClip{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "demo.mp4")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("multipart-bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/videos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := doRequest(s, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestUploadMissingFileField(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t, &fakeClip{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "x")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/videos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if rec := doRequest(s, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t, &fakeClip{})

	req := httptest.NewRequest(http.MethodPost, "/videos/raw", bytes.NewReader(make([]byte, 2<<20)))
	req.Header.Set("X-Filename", "big.mp4")
	if rec := doRequest(s, req); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestYouTubeBadURL(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t, &fakeClip{})

	req := httptest.NewRequest(http.MethodPost, "/videos/youtube", strings.NewReader(`{"url":"https://example.com/x"}`))
	if rec := doRequest(s, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	s, reg, dir := newTestServer(t, &fakeClip{})
	registerReady(t, reg, dir, "v1")

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/videos/v1/describe?timestamp=1:30", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["description"] != "open the settings panel" {
		t.Fatalf("description = %q", body["description"])
	}
	if body["timestamp"] != "00:01:30" {
		t.Fatalf("timestamp = %q", body["timestamp"])
	}
}

func TestDescribeBadTimestamp(t *testing.T) {
	t.Parallel()
	s, reg, dir := newTestServer(t, &fakeClip{})
	registerReady(t, reg, dir, "v1")

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/videos/v1/describe?timestamp=1:2:3:4", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDescribeUnknownVideo(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t, &fakeClip{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/videos/nope/describe?t=10", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDescribeProcessingVideoConflicts(t *testing.T) {
	t.Parallel()
	s, reg, dir := newTestServer(t, &fakeClip{})
	reg.Register("v1", filepath.Join(dir, "video_v1.mp4"), registry.StatusProcessing)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/videos/v1/describe?t=10", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDescribeRateLimitedSetsRetryAfter(t *testing.T) {
	t.Parallel()
	rl := apperr.RateLimitedAfter(time.Second, "rate limit exceeded")
	s, reg, dir := newTestServer(t, &fakeClip{describeErrs: []error{rl, rl}})
	registerReady(t, reg, dir, "v1")

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/videos/v1/describe?t=10", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q", got)
	}
}

func registerReady(t *testing.T, reg *registry.Registry, dir, id string) {
	t.Helper()
	path := filepath.Join(dir, "video_"+id+".mp4")
	if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}
	reg.Register(id, path, registry.StatusReady)
}
