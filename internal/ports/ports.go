package ports

import (
	"context"
	"time"
)

// MediaTool abstracts the external media binary (ffmpeg/ffprobe).
type MediaTool interface {
	// ProbeDuration returns the container duration. Callers must treat a
	// failure as non-fatal and fall back to an estimate.
	ProbeDuration(ctx context.Context, source string) (time.Duration, error)

	// ExtractFrame writes one still image taken at timestamp to outPath.
	ExtractFrame(ctx context.Context, source string, timestamp float64, outPath string) error

	// ExtractClip writes a clip of clipSeconds centered on the timestamp
	// (clamped at zero) to outPath and reports the actual start/duration.
	ExtractClip(ctx context.Context, source string, timestamp float64, clipSeconds int, outPath string) (start, duration int, err error)

	// ExtractFramesWindow returns up to frameCount PNG frames spread
	// evenly across [timestamp-window, timestamp+window]. Partial results
	// are fine; zero frames is an error.
	ExtractFramesWindow(ctx context.Context, source string, timestamp, window float64, frameCount int) ([][]byte, error)

	// ExtractAudioWindow writes a mono 16kHz WAV of the window around the
	// timestamp to outPath. Best-effort: returns ok=false instead of an
	// error when the tool fails or the output is implausibly small.
	ExtractAudioWindow(ctx context.Context, source string, timestamp, window float64, outPath string) (ok bool, err error)
}

// ArtifactState is the remote provider's processing state for an
// uploaded clip.
type ArtifactState int

const (
	ArtifactProcessing ArtifactState = iota
	ArtifactActive
	ArtifactFailed
)

// ClipProvider is a remote vision model that ingests whole video clips
// asynchronously: upload, poll until active, then describe by handle.
type ClipProvider interface {
	Upload(ctx context.Context, path string) (handle string, err error)
	PollState(ctx context.Context, handle string) (ArtifactState, error)
	Describe(ctx context.Context, handle, model, prompt string) (string, error)
}

// VisionProvider is a remote model that describes still frames sent
// inline with the request.
type VisionProvider interface {
	DescribeFrames(ctx context.Context, frames [][]byte, model, prompt string) (string, error)
	// SupportsVision reports whether the model accepts image input.
	SupportsVision(model string) bool
}

// Transcriber produces a plain-text transcript of a WAV file. Used only
// for optional prompt context.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, workDir string) (string, error)
}

// SourceDownloader fetches a remote video into a local file.
type SourceDownloader interface {
	Download(ctx context.Context, url, outPath string) error
}
