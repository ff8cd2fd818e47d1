// Package web is the thin HTTP boundary: it parses requests, calls the
// core services and maps error kinds to status codes. No business logic
// lives here.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Eduhs21/ClipBuilder/internal/apperr"
	"github.com/Eduhs21/ClipBuilder/internal/ingest"
	"github.com/Eduhs21/ClipBuilder/internal/registry"
	"github.com/Eduhs21/ClipBuilder/internal/timecode"
	"github.com/Eduhs21/ClipBuilder/internal/usecase"
)

// maxMultipartMemory bounds the in-memory part of multipart parsing;
// larger uploads spill to temp files.
const maxMultipartMemory = 32 << 20

type Server struct {
	ingest *ingest.Service
	reg    *registry.Registry
	uc     *usecase.Usecase
	log    *slog.Logger
	mux    *http.ServeMux
}

func NewServer(ing *ingest.Service, reg *registry.Registry, uc *usecase.Usecase, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{ingest: ing, reg: reg, uc: uc, log: log, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /videos", s.handleUpload)
	s.mux.HandleFunc("POST /videos/raw", s.handleUploadRaw)
	s.mux.HandleFunc("POST /videos/youtube", s.handleYouTube)
	s.mux.HandleFunc("GET /videos/{id}/status", s.handleStatus)
	s.mux.HandleFunc("GET /videos/{id}/file", s.handleFile)
	s.mux.HandleFunc("GET /videos/{id}/describe", s.handleDescribe)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		s.writeError(w, r, apperr.New(apperr.Validation, "invalid multipart body: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, apperr.New(apperr.Validation, "missing multipart field %q", "file"))
		return
	}
	defer file.Close()

	id, err := s.ingest.SaveUpload(r.Context(), file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("video uploaded", "video_id", id, "filename", header.Filename)
	writeJSON(w, http.StatusCreated, map[string]string{"video_id": id, "status": string(registry.StatusReady)})
}

// handleUploadRaw accepts the request body as the video bytes; the
// original filename travels in the X-Filename header.
func (s *Server) handleUploadRaw(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	id, err := s.ingest.SaveUpload(r.Context(), r.Body, r.Header.Get("X-Filename"), r.Header.Get("Content-Type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("video uploaded", "video_id", id)
	writeJSON(w, http.StatusCreated, map[string]string{"video_id": id, "status": string(registry.StatusReady)})
}

func (s *Server) handleYouTube(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.New(apperr.Validation, "invalid JSON body: %v", err))
		return
	}
	id, err := s.ingest.StartYouTube(req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("youtube download started", "video_id", id)
	writeJSON(w, http.StatusAccepted, map[string]string{"video_id": id, "status": string(registry.StatusProcessing)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	entry, err := s.reg.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := map[string]string{"video_id": entry.ID, "status": string(entry.Status)}
	if entry.Err != "" {
		resp["error"] = entry.Err
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	entry, err := s.reg.Ready(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.ServeFile(w, r, entry.Path)
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ts := q.Get("timestamp")
	if ts == "" {
		ts = q.Get("t")
	}
	seconds, err := timecode.Parse(ts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	in := usecase.DescribeInput{
		VideoID:          r.PathValue("id"),
		Seconds:          seconds,
		Model:            q.Get("model"),
		Prompt:           q.Get("prompt"),
		IncludeTimestamp: boolParam(q.Get("include_timestamp"), true),
		AudioContext:     boolParam(q.Get("audio_context"), false),
	}
	text, err := s.uc.Describe(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"video_id":    in.VideoID,
		"timestamp":   timecode.Format(seconds),
		"description": text,
	})
}

func boolParam(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

// statusFor maps the closed error taxonomy onto HTTP statuses. Kinds
// not listed fall through to 500.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.Validation, apperr.InvalidTimestamp, apperr.InvalidArgument:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.NotReady:
		return http.StatusConflict
	case apperr.TooLarge:
		return http.StatusRequestEntityTooLarge
	case apperr.DiskFull:
		return http.StatusInsufficientStorage
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	case apperr.PermissionDenied:
		return http.StatusForbidden
	case apperr.Transient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.log.Info("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	var ae *apperr.Error
	body := map[string]string{"error": err.Error()}
	if errors.As(err, &ae) && ae.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(ae.RetryAfter.Seconds())))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
