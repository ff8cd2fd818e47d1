// Package whispercpp transcribes short audio windows with a local
// whisper.cpp binary. The transcript is only ever used as optional
// prompt context, so callers treat every failure as "no transcript".
package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type Adapter struct {
	bin   string
	model string
}

func New(binPath, modelPath string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath}
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, workDir string) (string, error) {
	outPrefix := filepath.Join(workDir, "whisper_"+strings.TrimSuffix(filepath.Base(wavPath), ".wav"))
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}
	defer os.Remove(outPrefix + ".json")

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return "", err
	}
	return transcriptText(jb)
}

// transcriptText flattens whisper.cpp's segment JSON into one line of
// text.
func transcriptText(raw []byte) (string, error) {
	var out struct {
		Segments []struct {
			Text string `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(out.Segments))
	for _, s := range out.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}
