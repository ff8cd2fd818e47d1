// Package app wires the configured adapters into the core services and
// runs the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Eduhs21/ClipBuilder/internal/config"
	"github.com/Eduhs21/ClipBuilder/internal/ingest"
	"github.com/Eduhs21/ClipBuilder/internal/ports"
	"github.com/Eduhs21/ClipBuilder/internal/ports/adapters/ffmpeg"
	"github.com/Eduhs21/ClipBuilder/internal/ports/adapters/gemini"
	"github.com/Eduhs21/ClipBuilder/internal/ports/adapters/groq"
	"github.com/Eduhs21/ClipBuilder/internal/ports/adapters/whispercpp"
	"github.com/Eduhs21/ClipBuilder/internal/ports/adapters/ytdlp"
	"github.com/Eduhs21/ClipBuilder/internal/registry"
	"github.com/Eduhs21/ClipBuilder/internal/usecase"
	"github.com/Eduhs21/ClipBuilder/internal/web"
)

// Compile-time checks that every adapter satisfies its port.
var (
	_ ports.MediaTool        = (*ffmpeg.Adapter)(nil)
	_ ports.ClipProvider     = (*gemini.Adapter)(nil)
	_ ports.VisionProvider   = (*groq.Adapter)(nil)
	_ ports.Transcriber      = (*whispercpp.Adapter)(nil)
	_ ports.SourceDownloader = (*ytdlp.Adapter)(nil)
)

const shutdownGrace = 10 * time.Second

// Run builds the service graph from cfg and serves until ctx is
// cancelled or a termination signal arrives.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	media := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, cfg.ProxyHeight, log)
	if err := media.Check(); err != nil {
		return err
	}

	var downloader ports.SourceDownloader
	if cfg.YtdlpPath != "" {
		downloader = ytdlp.New(cfg.YtdlpPath, cfg.MaxVideoBytes, cfg.CookiesFile, cfg.CookiesFromBrowser)
	}

	var asr ports.Transcriber
	if cfg.WhisperBin != "" && cfg.WhisperModel != "" {
		asr = whispercpp.New(cfg.WhisperBin, cfg.WhisperModel)
	}

	deps := usecase.Deps{
		Media:    media,
		ASR:      asr,
		Registry: registry.New(cfg.DataDir, log),
		Log:      log,
	}

	var defaultModel string
	switch cfg.Provider {
	case config.ProviderGemini:
		deps.Clip = gemini.New(cfg.GeminiAPIKey, cfg.GeminiBaseURL)
		defaultModel = cfg.GeminiModel
	case config.ProviderGroq:
		deps.Vision = groq.New(cfg.GroqAPIKey, cfg.GroqBaseURL)
		defaultModel = cfg.GroqModel
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	uc := usecase.New(deps, usecase.Config{
		DataDir:      cfg.DataDir,
		ClipSeconds:  cfg.ClipSeconds,
		FrameCount:   cfg.FrameCount,
		FrameWindow:  float64(cfg.FrameWindow),
		PollInterval: cfg.PollInterval(),
		PollTimeout:  cfg.PollTimeout(),
		DefaultModel: defaultModel,
	})

	ing := ingest.New(deps.Registry, downloader, cfg.MaxVideoBytes, cfg.MaxVideoFiles, log)
	handler := web.NewServer(ing, deps.Registry, uc, log)

	return serve(ctx, cfg.ListenAddr, handler, log)
}

func serve(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
