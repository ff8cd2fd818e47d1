// Package ytdlp downloads YouTube sources with the yt-dlp binary.
package ytdlp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Eduhs21/ClipBuilder/internal/apperr"
)

type Adapter struct {
	bin         string
	maxMB       int64
	cookies     string // path to a cookies.txt export
	fromBrowser string // browser selector, e.g. "firefox" or "chrome:Profile 1"
}

func New(binPath string, maxBytes int64, cookiesFile, cookiesFromBrowser string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	maxMB := maxBytes / (1 << 20)
	if maxMB < 1 {
		maxMB = 1
	}
	return &Adapter{bin: binPath, maxMB: maxMB, cookies: cookiesFile, fromBrowser: cookiesFromBrowser}
}

func (a *Adapter) Download(ctx context.Context, url, outPath string) error {
	if _, err := exec.LookPath(a.bin); err != nil {
		return apperr.Wrap(apperr.ToolUnavailable, err, "yt-dlp is not installed on the server")
	}

	args := []string{
		"--no-playlist",
		"--no-warnings",
	}
	args = append(args, a.authArgs()...)
	args = append(args,
		"--max-filesize", fmt.Sprintf("%dM", a.maxMB),
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"-o", outPath,
		url,
	)

	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		tail := outputTail(string(b))
		lowered := strings.ToLower(tail)
		if strings.Contains(lowered, "sign in to confirm") && strings.Contains(lowered, "not a bot") {
			return apperr.New(apperr.PermissionDenied,
				"YouTube asked for bot verification; configure CLIPBUILDER_YTDLP_COOKIES_FILE or CLIPBUILDER_YTDLP_COOKIES_FROM_BROWSER")
		}
		return apperr.New(apperr.Transient, "yt-dlp failed: %s", tail)
	}

	st, err := os.Stat(outPath)
	if err != nil || st.Size() == 0 {
		return apperr.New(apperr.Transient, "download failed: output file was not created")
	}
	return nil
}

// authArgs prefers browser cookies (no manual export needed) over a
// cookies file.
func (a *Adapter) authArgs() []string {
	if sel := strings.TrimSpace(a.fromBrowser); sel != "" {
		return []string{"--cookies-from-browser", sel}
	}
	raw := strings.TrimSpace(a.cookies)
	if raw == "" {
		return nil
	}
	path := raw
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	if st, err := os.Stat(path); err != nil || st.IsDir() {
		return nil
	}
	return []string{"--cookies", path}
}

func outputTail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 20 {
		lines = lines[len(lines)-20:]
	}
	out := strings.TrimSpace(strings.Join(lines, "\n"))
	if out == "" {
		return "unknown error"
	}
	return out
}
