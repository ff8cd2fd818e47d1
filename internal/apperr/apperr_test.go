package apperr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"
)

func TestErrorMessage(t *testing.T) {
	err := New(NotFound, "video %s not found", "abc")
	want := "not_found: video abc not found"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapKeepsCauseChain(t *testing.T) {
	cause := fs.ErrNotExist
	err := Wrap(ToolUnavailable, cause, "ffmpeg lookup")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("cause lost from chain")
	}
	if KindOf(err) != ToolUnavailable {
		t.Fatalf("KindOf = %v", KindOf(err))
	}
}

func TestKindOfWrappedDeep(t *testing.T) {
	inner := New(DiskFull, "no space left")
	outer := fmt.Errorf("save upload: %w", inner)
	if KindOf(outer) != DiskFull {
		t.Fatalf("KindOf = %v", KindOf(outer))
	}
	if !Is(outer, DiskFull) {
		t.Fatal("Is(outer, DiskFull) = false")
	}
}

func TestKindOfForeignError(t *testing.T) {
	if KindOf(errors.New("plain")) != Fatal {
		t.Fatal("foreign errors should report Fatal")
	}
	if Is(errors.New("plain"), Validation) {
		t.Fatal("Is matched a foreign error")
	}
}

func TestRateLimitedAfter(t *testing.T) {
	err := RateLimitedAfter(13600*time.Millisecond, "rate limit exceeded")
	if err.Kind != RateLimited {
		t.Fatalf("Kind = %v", err.Kind)
	}
	if err.RetryAfter != 13600*time.Millisecond {
		t.Fatalf("RetryAfter = %v", err.RetryAfter)
	}
}

func TestKindStringsAreDistinct(t *testing.T) {
	kinds := []Kind{
		Validation, InvalidTimestamp, NotFound, NotReady, TooLarge,
		DiskFull, ToolUnavailable, ExtractionFailed, RateLimited,
		PermissionDenied, InvalidArgument, Transient, Fatal,
	}
	seen := make(map[string]Kind, len(kinds))
	for _, k := range kinds {
		s := k.String()
		if s == "" {
			t.Fatalf("empty string for kind %d", k)
		}
		if prev, dup := seen[s]; dup {
			t.Fatalf("kinds %d and %d share string %q", prev, k, s)
		}
		seen[s] = k
	}
}
