// Package usecase orchestrates "describe what happens at time T":
// resolve the video, derive a clip or frame set, cache the remote
// artifact and query the configured provider.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Eduhs21/ClipBuilder/internal/apperr"
	"github.com/Eduhs21/ClipBuilder/internal/ports"
	"github.com/Eduhs21/ClipBuilder/internal/registry"
	"github.com/Eduhs21/ClipBuilder/internal/timecode"
)

type Deps struct {
	Media    ports.MediaTool
	Clip     ports.ClipProvider   // exactly one of Clip/Vision is set
	Vision   ports.VisionProvider //
	ASR      ports.Transcriber    // optional prompt-context transcriber
	Registry *registry.Registry
	Log      *slog.Logger
}

type Config struct {
	DataDir     string
	ClipSeconds int
	FrameCount  int
	// FrameWindow is the half-width in seconds of the frame-set window
	// for the vision provider path.
	FrameWindow  float64
	PollInterval time.Duration
	PollTimeout  time.Duration
	DefaultModel string
}

type Usecase struct {
	d   Deps
	cfg Config

	sleep func(ctx context.Context, d time.Duration) error
}

func New(d Deps, cfg Config) *Usecase {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if cfg.ClipSeconds < 10 {
		cfg.ClipSeconds = 90
	}
	if cfg.FrameCount <= 0 {
		cfg.FrameCount = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 300 * time.Second
	}
	return &Usecase{d: d, cfg: cfg, sleep: sleepCtx}
}

type DescribeInput struct {
	VideoID string
	// Seconds is the already-parsed target timestamp.
	Seconds          float64
	Model            string
	Prompt           string
	IncludeTimestamp bool
	AudioContext     bool
}

// Describe returns the provider's description of the video around the
// target timestamp.
func (u *Usecase) Describe(ctx context.Context, in DescribeInput) (string, error) {
	entry, err := u.d.Registry.Ready(in.VideoID)
	if err != nil {
		return "", err
	}

	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = u.cfg.DefaultModel
	}

	prompt := u.buildPrompt(ctx, entry, in)

	if u.d.Vision != nil {
		return u.describeFrames(ctx, entry, in, model, prompt)
	}
	return u.describeClip(ctx, entry, in, model, prompt)
}

func (u *Usecase) describeFrames(ctx context.Context, entry registry.Entry, in DescribeInput, model, prompt string) (string, error) {
	if !u.d.Vision.SupportsVision(model) {
		return "", apperr.New(apperr.Validation, "model %q does not support image input", model)
	}
	frames, err := u.d.Media.ExtractFramesWindow(ctx, entry.Path, in.Seconds, u.cfg.FrameWindow, u.cfg.FrameCount)
	if err != nil {
		return "", err
	}
	return u.withRateLimitRetry(ctx, func() (string, error) {
		return u.d.Vision.DescribeFrames(ctx, frames, model, prompt)
	})
}

func (u *Usecase) describeClip(ctx context.Context, entry registry.Entry, in DescribeInput, model, prompt string) (string, error) {
	key := CacheKey(in.Seconds, u.cfg.ClipSeconds)

	handle, cached := u.d.Registry.CachedArtifact(entry.ID, key)
	if !cached {
		handle, err := u.prepareArtifact(ctx, entry, in.Seconds, key)
		if err != nil {
			return "", err
		}
		return u.withRateLimitRetry(ctx, func() (string, error) {
			return u.d.Clip.Describe(ctx, handle, model, prompt)
		})
	}

	text, err := u.withRateLimitRetry(ctx, func() (string, error) {
		return u.d.Clip.Describe(ctx, handle, model, prompt)
	})
	if err != nil && apperr.Is(err, apperr.NotFound) {
		// The provider expired the uploaded clip; treat as a cache miss
		// and re-derive the artifact once.
		u.d.Log.Info("cached artifact expired, re-uploading", "video_id", entry.ID, "key", key)
		u.d.Registry.DropArtifact(entry.ID, key)
		handle, err := u.prepareArtifact(ctx, entry, in.Seconds, key)
		if err != nil {
			return "", err
		}
		return u.withRateLimitRetry(ctx, func() (string, error) {
			return u.d.Clip.Describe(ctx, handle, model, prompt)
		})
	}
	return text, err
}

// prepareArtifact extracts a proxy clip, uploads it and waits for the
// provider to finish processing. The temp clip is deleted on every exit
// path.
func (u *Usecase) prepareArtifact(ctx context.Context, entry registry.Entry, seconds float64, key string) (string, error) {
	tmp, err := os.CreateTemp(u.cfg.DataDir, "clip_*.mp4")
	if err != nil {
		return "", fmt.Errorf("create clip temp file: %w", err)
	}
	clipPath := tmp.Name()
	tmp.Close()
	defer os.Remove(clipPath)

	start, duration, err := u.d.Media.ExtractClip(ctx, entry.Path, seconds, u.cfg.ClipSeconds, clipPath)
	if err != nil {
		return "", err
	}
	u.d.Log.Debug("clip extracted", "video_id", entry.ID, "start", start, "duration", duration)

	handle, err := u.d.Clip.Upload(ctx, clipPath)
	if err != nil {
		return "", err
	}
	if err := u.waitActive(ctx, handle); err != nil {
		return "", err
	}

	u.d.Registry.CacheArtifact(entry.ID, key, handle)
	return handle, nil
}

func (u *Usecase) waitActive(ctx context.Context, handle string) error {
	deadline := time.Now().Add(u.cfg.PollTimeout)
	for {
		state, err := u.d.Clip.PollState(ctx, handle)
		if err != nil {
			return err
		}
		switch state {
		case ports.ArtifactActive:
			return nil
		case ports.ArtifactFailed:
			return apperr.New(apperr.Fatal, "provider failed to process the uploaded clip")
		}
		if time.Now().After(deadline) {
			return apperr.New(apperr.Fatal, "timeout waiting for the provider to process the clip")
		}
		if err := u.sleep(ctx, u.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// withRateLimitRetry runs call, and on a rate-limit failure sleeps for
// the provider-hinted delay (bounded) and retries exactly once.
func (u *Usecase) withRateLimitRetry(ctx context.Context, call func() (string, error)) (string, error) {
	text, err := call()
	if err == nil || !apperr.Is(err, apperr.RateLimited) {
		return text, err
	}
	if serr := u.sleep(ctx, retryDelay(err)); serr != nil {
		return "", serr
	}
	return call()
}

const (
	defaultRetryDelay = 2 * time.Second
	minRetryDelay     = 500 * time.Millisecond
	maxRetryDelay     = 15 * time.Second
)

func retryDelay(err error) time.Duration {
	d := defaultRetryDelay
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.RetryAfter > 0 {
		d = ae.RetryAfter
	}
	if d < minRetryDelay {
		d = minRetryDelay
	}
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

// CacheKey collapses a timestamp to its floored second plus the clip
// window, so two requests inside the same second for the same window
// share one remote upload.
func CacheKey(seconds float64, clipSeconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%d", int(seconds), clipSeconds)
}

func (u *Usecase) buildPrompt(ctx context.Context, entry registry.Entry, in DescribeInput) string {
	var b strings.Builder
	b.WriteString("Write only the procedure being performed, as short imperative steps. ")
	b.WriteString("Do not narrate the screen, the cursor, or the video itself. ")
	if in.IncludeTimestamp {
		fmt.Fprintf(&b, "Describe the procedure happening specifically at %s. ", timecode.Format(in.Seconds))
	} else {
		b.WriteString("Do not include a timestamp in the answer. ")
	}
	if p := strings.TrimSpace(in.Prompt); p != "" {
		b.WriteString("\n\nExtra context from the user:\n")
		b.WriteString(p)
	}
	if in.AudioContext {
		if tr := u.audioContext(ctx, entry, in.Seconds); tr != "" {
			b.WriteString("\n\nAudio transcript around the target moment:\n")
			b.WriteString(tr)
		}
	}
	return b.String()
}

// audioContext is best-effort: any failure yields an empty transcript.
func (u *Usecase) audioContext(ctx context.Context, entry registry.Entry, seconds float64) string {
	if u.d.ASR == nil {
		return ""
	}
	tmp, err := os.CreateTemp(u.cfg.DataDir, "audio_*.wav")
	if err != nil {
		return ""
	}
	wavPath := tmp.Name()
	tmp.Close()
	defer os.Remove(wavPath)

	window := float64(u.cfg.ClipSeconds) / 2
	ok, err := u.d.Media.ExtractAudioWindow(ctx, entry.Path, seconds, window, wavPath)
	if err != nil || !ok {
		return ""
	}
	text, err := u.d.ASR.Transcribe(ctx, wavPath, u.cfg.DataDir)
	if err != nil {
		u.d.Log.Debug("audio transcription failed", "video_id", entry.ID, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
