// Package apperr defines the closed set of error categories the service
// surfaces at its boundaries. Provider adapters map vendor failures into
// these kinds before any business logic inspects them.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	// Validation covers malformed caller input: bad payloads, unsupported
	// file extensions, unknown models.
	Validation Kind = iota
	InvalidTimestamp
	NotFound
	// NotReady means the video entry exists but is still processing or
	// failed ingestion.
	NotReady
	TooLarge
	DiskFull
	// ToolUnavailable is a configuration-class failure: ffmpeg or yt-dlp
	// is not installed on the host.
	ToolUnavailable
	ExtractionFailed
	RateLimited
	PermissionDenied
	InvalidArgument
	Transient
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case InvalidTimestamp:
		return "invalid_timestamp"
	case NotFound:
		return "not_found"
	case NotReady:
		return "not_ready"
	case TooLarge:
		return "too_large"
	case DiskFull:
		return "disk_full"
	case ToolUnavailable:
		return "tool_unavailable"
	case ExtractionFailed:
		return "extraction_failed"
	case RateLimited:
		return "rate_limited"
	case PermissionDenied:
		return "permission_denied"
	case InvalidArgument:
		return "invalid_argument"
	case Transient:
		return "transient"
	default:
		return "fatal"
	}
}

type Error struct {
	Kind Kind
	// RetryAfter carries the provider-suggested backoff for RateLimited
	// errors; zero when the provider gave no hint.
	RetryAfter time.Duration
	msg        string
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Kind.String() + ": " + e.msg + ": " + e.cause.Error()
	}
	return e.Kind.String() + ": " + e.msg
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

// RateLimitedAfter builds a RateLimited error carrying the provider's
// retry hint.
func RateLimitedAfter(retryAfter time.Duration, format string, args ...any) *Error {
	return &Error{Kind: RateLimited, RetryAfter: retryAfter, msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind of err, or Fatal for errors outside the taxonomy.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Fatal
}

// Is reports whether err belongs to the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
