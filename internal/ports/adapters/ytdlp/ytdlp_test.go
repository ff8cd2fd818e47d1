package ytdlp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewClampsMaxMB(t *testing.T) {
	a := New("", 0, "", "")
	if a.bin != "yt-dlp" {
		t.Fatalf("bin = %q", a.bin)
	}
	if a.maxMB != 1 {
		t.Fatalf("maxMB = %d", a.maxMB)
	}
	if a = New("yt-dlp", 700<<20, "", ""); a.maxMB != 700 {
		t.Fatalf("maxMB = %d", a.maxMB)
	}
}

func TestAuthArgsPrefersBrowser(t *testing.T) {
	dir := t.TempDir()
	cookies := filepath.Join(dir, "cookies.txt")
	if err := os.WriteFile(cookies, []byte("# Netscape HTTP Cookie File"), 0o600); err != nil {
		t.Fatal(err)
	}

	a := New("yt-dlp", 1<<20, cookies, "firefox")
	got := a.authArgs()
	if len(got) != 2 || got[0] != "--cookies-from-browser" || got[1] != "firefox" {
		t.Fatalf("authArgs = %v", got)
	}
}

func TestAuthArgsCookiesFile(t *testing.T) {
	dir := t.TempDir()
	cookies := filepath.Join(dir, "cookies.txt")
	if err := os.WriteFile(cookies, []byte("# Netscape HTTP Cookie File"), 0o600); err != nil {
		t.Fatal(err)
	}

	a := New("yt-dlp", 1<<20, cookies, "")
	got := a.authArgs()
	if len(got) != 2 || got[0] != "--cookies" || got[1] != cookies {
		t.Fatalf("authArgs = %v", got)
	}
}

func TestAuthArgsMissingCookiesFile(t *testing.T) {
	a := New("yt-dlp", 1<<20, filepath.Join(t.TempDir(), "nope.txt"), "")
	if got := a.authArgs(); got != nil {
		t.Fatalf("authArgs = %v", got)
	}
}

func TestAuthArgsEmpty(t *testing.T) {
	a := New("yt-dlp", 1<<20, "", "")
	if got := a.authArgs(); got != nil {
		t.Fatalf("authArgs = %v", got)
	}
}

func TestOutputTail(t *testing.T) {
	if got := outputTail(""); got != "unknown error" {
		t.Fatalf("empty tail = %q", got)
	}
	if got := outputTail("line1\nline2\n"); got != "line1\nline2" {
		t.Fatalf("tail = %q", got)
	}

	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("line\n")
	}
	b.WriteString("last")
	got := outputTail(b.String())
	if n := strings.Count(got, "\n") + 1; n != 20 {
		t.Fatalf("kept %d lines, want 20", n)
	}
	if !strings.HasSuffix(got, "last") {
		t.Fatalf("tail lost the final line: %q", got)
	}
}
