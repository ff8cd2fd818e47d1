// Package ffmpeg drives the external ffmpeg/ffprobe binaries for
// probing, frame grabs, proxy clip rendering and audio extraction.
package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Eduhs21/ClipBuilder/internal/apperr"
)

// stderrTailLines bounds how much tool output is carried in error
// messages.
const stderrTailLines = 20

// proxyEncoders are tried in order when rendering a reduced-resolution
// clip. Fedora's ffmpeg-free ships without libx264, hence the openh264
// fallback; stream copy is the last resort.
var proxyEncoders = []string{"libx264", "libopenh264"}

type Adapter struct {
	ffmpeg      string
	ffprobe     string
	proxyHeight int
	log         *slog.Logger
}

func New(ffmpegPath, ffprobePath string, proxyHeight int, log *slog.Logger) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if proxyHeight < 144 {
		proxyHeight = 144
	}
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, proxyHeight: proxyHeight, log: log}
}

// Check verifies the ffmpeg binary is installed.
func (a *Adapter) Check() error {
	if _, err := exec.LookPath(a.ffmpeg); err != nil {
		return apperr.Wrap(apperr.ToolUnavailable, err, "ffmpeg is not installed on the server")
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, source string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		source,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, tail(string(b)))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func (a *Adapter) ExtractFrame(ctx context.Context, source string, timestamp float64, outPath string) error {
	if err := a.Check(); err != nil {
		return err
	}
	ts := int(timestamp)
	if ts < 0 {
		ts = 0
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-ss", strconv.Itoa(ts),
		"-i", source,
		"-frames:v", "1",
		"-q:v", "2",
		outPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return apperr.New(apperr.ExtractionFailed, "ffmpeg failed to extract frame: %s", tail(string(b)))
	}
	if !nonEmptyFile(outPath) {
		return apperr.New(apperr.ExtractionFailed, "frame was not generated")
	}
	return nil
}

func (a *Adapter) ExtractClip(ctx context.Context, source string, timestamp float64, clipSeconds int, outPath string) (int, int, error) {
	if err := a.Check(); err != nil {
		return 0, 0, err
	}
	start, duration := ClipWindow(timestamp, clipSeconds)

	// First choice: re-encode to a small proxy (cheapest to upload).
	vf := "scale=-2:" + strconv.Itoa(a.proxyHeight)
	for _, encoder := range proxyEncoders {
		cmd := exec.CommandContext(ctx, a.ffmpeg,
			"-y",
			"-ss", strconv.Itoa(start),
			"-t", strconv.Itoa(duration),
			"-i", source,
			"-vf", vf,
			"-c:v", encoder,
			"-preset", "veryfast",
			"-crf", "28",
			"-c:a", "aac",
			"-b:a", "96k",
			"-movflags", "+faststart",
			outPath,
		)
		b, err := cmd.CombinedOutput()
		if err == nil {
			return start, duration, nil
		}
		if strings.Contains(string(b), "Unknown encoder '"+encoder+"'") {
			a.log.Debug("encoder unavailable, trying next", "encoder", encoder)
			continue
		}
		// Not an encoder-availability problem, go straight to stream copy.
		a.log.Warn("proxy clip re-encode failed, falling back to stream copy",
			"encoder", encoder, "stderr", tail(string(b)))
		break
	}

	// Stream copy: no re-encode, larger output, works on every build.
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-ss", strconv.Itoa(start),
		"-t", strconv.Itoa(duration),
		"-i", source,
		"-c", "copy",
		"-movflags", "+faststart",
		outPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, 0, apperr.New(apperr.ExtractionFailed, "ffmpeg failed: %s", tail(string(b)))
	}
	if !nonEmptyFile(outPath) {
		return 0, 0, apperr.New(apperr.ExtractionFailed, "clip was not generated")
	}
	return start, duration, nil
}

func (a *Adapter) ExtractFramesWindow(ctx context.Context, source string, timestamp, window float64, frameCount int) ([][]byte, error) {
	if err := a.Check(); err != nil {
		return nil, err
	}

	duration, err := a.ProbeDuration(ctx, source)
	if err != nil {
		// Probe failure must not fail extraction; estimate generously.
		duration = time.Duration((timestamp + window + probeFallbackMarginSec) * float64(time.Second))
		a.log.Warn("duration probe failed, using estimate",
			"source", source, "estimate", duration, "error", err)
	}

	stamps := FrameTimestamps(timestamp, window, duration.Seconds(), frameCount)
	frames := make([][]byte, 0, len(stamps))
	for _, ts := range stamps {
		out, err := os.CreateTemp("", "clipbuilder-frame-*.png")
		if err != nil {
			return nil, fmt.Errorf("create frame temp file: %w", err)
		}
		path := out.Name()
		out.Close()

		err = a.ExtractFrame(ctx, source, ts, path)
		if err != nil {
			a.log.Warn("skipping frame", "timestamp", ts, "error", err)
			os.Remove(path)
			continue
		}
		b, err := os.ReadFile(path)
		os.Remove(path)
		if err != nil {
			a.log.Warn("skipping unreadable frame", "timestamp", ts, "error", err)
			continue
		}
		frames = append(frames, b)
	}
	if len(frames) == 0 {
		return nil, apperr.New(apperr.ExtractionFailed, "no frames could be extracted around %.0fs", timestamp)
	}
	return frames, nil
}

func (a *Adapter) ExtractAudioWindow(ctx context.Context, source string, timestamp, window float64, outPath string) (bool, error) {
	if err := a.Check(); err != nil {
		return false, err
	}
	start := timestamp - window
	if start < 0 {
		start = 0
	}
	length := timestamp + window - start

	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-ss", fmtSeconds(start),
		"-t", fmtSeconds(length),
		"-i", source,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		a.log.Debug("audio extraction failed", "source", source, "stderr", tail(string(b)))
		return false, nil
	}
	st, err := os.Stat(outPath)
	if err != nil || st.Size() < minPlausibleWAVBytes {
		return false, nil
	}
	return true, nil
}

const (
	probeFallbackMarginSec = 30
	minPlausibleWAVBytes   = 1000
)

// ClipWindow computes the integer start/duration of a clip of
// clipSeconds centered on timestamp, clamped at the stream start.
// Clips shorter than 10s are bumped up to 10s.
func ClipWindow(timestamp float64, clipSeconds int) (start, duration int) {
	if clipSeconds < 10 {
		clipSeconds = 10
	}
	start = int(timestamp) - clipSeconds/2
	if start < 0 {
		start = 0
	}
	return start, clipSeconds
}

// FrameTimestamps spreads frameCount timestamps evenly across
// [center-window, center+window] clamped to [0, total]. frameCount <= 1
// degenerates to the (clamped) center alone.
func FrameTimestamps(center, window, total float64, frameCount int) []float64 {
	lo := center - window
	hi := center + window
	if lo < 0 {
		lo = 0
	}
	if total > 0 && hi > total {
		hi = total
	}
	if hi < lo {
		hi = lo
	}
	if frameCount <= 1 || hi == lo {
		return []float64{lo + (hi-lo)/2}
	}
	out := make([]float64, frameCount)
	step := (hi - lo) / float64(frameCount-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	return out
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func nonEmptyFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Size() > 0
}
