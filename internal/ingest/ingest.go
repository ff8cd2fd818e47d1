// Package ingest persists source videos into the data directory: direct
// streaming uploads with a byte ceiling, and asynchronous YouTube
// downloads.
package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/Eduhs21/ClipBuilder/internal/apperr"
	"github.com/Eduhs21/ClipBuilder/internal/ports"
	"github.com/Eduhs21/ClipBuilder/internal/registry"
)

const copyChunkBytes = 1 << 20

var contentTypeExt = map[string]string{
	"video/mp4":              ".mp4",
	"video/x-matroska":       ".mkv",
	"application/x-matroska": ".mkv",
}

type Service struct {
	reg        *registry.Registry
	downloader ports.SourceDownloader
	maxBytes   int64
	maxFiles   int
	log        *slog.Logger
}

func New(reg *registry.Registry, downloader ports.SourceDownloader, maxBytes int64, maxFiles int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{reg: reg, downloader: downloader, maxBytes: maxBytes, maxFiles: maxFiles, log: log}
}

// NewID returns an opaque hex video identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ResolveExt picks the storage extension from the declared filename,
// falling back to the content type. Only .mp4 and .mkv are accepted.
func ResolveExt(filename, contentType string) (string, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if ext == "" {
		ext = contentTypeExt[strings.ToLower(strings.TrimSpace(contentType))]
	}
	if ext != ".mp4" && ext != ".mkv" {
		return "", apperr.New(apperr.Validation,
			"unsupported format (filename=%q, content_type=%q): use .mp4 or .mkv", filename, contentType)
	}
	return ext, nil
}

// SaveUpload streams the request body to disk, registers the entry as
// ready and enforces the retention budget. The cumulative byte ceiling
// aborts the transfer midway; the partial file never survives a failure.
func (s *Service) SaveUpload(ctx context.Context, body io.Reader, filename, contentType string) (string, error) {
	ext, err := ResolveExt(filename, contentType)
	if err != nil {
		return "", err
	}

	id := NewID()
	target := s.reg.FilePath(id, ext)

	if err := s.writeCapped(ctx, body, target); err != nil {
		os.Remove(target)
		return "", err
	}

	s.reg.Register(id, target, registry.StatusReady)
	s.reg.EnforceRetention(s.maxFiles)
	s.log.Info("video ingested", "video_id", id, "path", target)
	return id, nil
}

func (s *Service) writeCapped(ctx context.Context, body io.Reader, target string) error {
	f, err := os.Create(target)
	if err != nil {
		return mapWriteErr(err)
	}
	defer f.Close()

	var total int64
	buf := make([]byte, copyChunkBytes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > s.maxBytes {
				return apperr.New(apperr.TooLarge,
					"video too large (limit %d MB): adjust CLIPBUILDER_MAX_VIDEO_BYTES", s.maxBytes/(1<<20))
			}
			if _, werr := f.Write(buf[:n]); werr != nil {
				return mapWriteErr(werr)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return apperr.Wrap(apperr.Validation, rerr, "failed to read upload (connection interrupted?)")
		}
	}
}

func mapWriteErr(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return apperr.Wrap(apperr.DiskFull, err,
			"no disk space left for the video: point CLIPBUILDER_DATA_DIR at a larger volume")
	}
	return err
}

// SupportedYouTubeURL reports whether the URL is an http(s) YouTube
// link.
func SupportedYouTubeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "youtu.be":
		return true
	}
	return strings.HasSuffix(host, ".youtube.com")
}

// StartYouTube registers a processing entry and downloads the video in
// the background, flipping the entry to ready or error when done.
func (s *Service) StartYouTube(rawURL string) (string, error) {
	if !SupportedYouTubeURL(rawURL) {
		return "", apperr.New(apperr.Validation, "unsupported URL: use a youtube.com / youtu.be link")
	}
	if s.downloader == nil {
		return "", apperr.New(apperr.ToolUnavailable, "YouTube ingestion is not configured")
	}

	id := NewID()
	target := s.reg.FilePath(id, ".mp4")
	s.reg.Register(id, target, registry.StatusProcessing)

	go func() {
		// Detached from the request: the job outlives the HTTP call and
		// reports through the registry only.
		err := s.downloader.Download(context.Background(), rawURL, target)
		if err == nil {
			err = s.checkDownloaded(target)
		}
		if err != nil {
			os.Remove(target)
			s.reg.SetStatus(id, registry.StatusError, err.Error())
			s.log.Error("youtube download failed", "video_id", id, "error", err)
			return
		}
		s.reg.SetStatus(id, registry.StatusReady, "")
		s.reg.EnforceRetention(s.maxFiles)
		s.log.Info("youtube video ingested", "video_id", id, "path", target)
	}()

	return id, nil
}

func (s *Service) checkDownloaded(target string) error {
	st, err := os.Stat(target)
	if err != nil || st.Size() == 0 {
		return apperr.New(apperr.Transient, "download failed: output file was not created")
	}
	if st.Size() > s.maxBytes {
		return apperr.New(apperr.TooLarge,
			"video too large (limit %d MB): adjust CLIPBUILDER_MAX_VIDEO_BYTES", s.maxBytes/(1<<20))
	}
	return nil
}
