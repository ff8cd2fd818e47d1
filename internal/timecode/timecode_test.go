package timecode

import (
	"math"
	"testing"

	"github.com/Eduhs21/ClipBuilder/internal/apperr"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"90", 90},
		{"90.5", 90.5},
		{"1:30", 90},
		{"01:01:01", 3661},
		{"00:00:00", 0},
		{"2:15:04", 8104},
		{" 1:30 ", 90},
		{"", 0},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"1:2:3:4", "abc", "1:xx", "::", "1:2:"} {
		_, err := Parse(in)
		if err == nil {
			t.Errorf("Parse(%q): expected error", in)
			continue
		}
		if apperr.KindOf(err) != apperr.InvalidTimestamp {
			t.Errorf("Parse(%q): kind = %v", in, apperr.KindOf(err))
		}
	}
}

func TestParseNegativeClampsToZero(t *testing.T) {
	got, err := Parse("-5")
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Fatalf("Parse(-5) = %v", got)
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00"},
		{90, "00:01:30"},
		{90.9, "00:01:30"},
		{3661, "01:01:01"},
		{8104, "02:15:04"},
		{-12, "00:00:00"},
	}
	for _, tc := range cases {
		if got := Format(tc.in); got != tc.want {
			t.Errorf("Format(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []float64{0, 1, 59.2, 61, 3599.9, 3600, 4523.7, 86399} {
		got, err := Parse(Format(s))
		if err != nil {
			t.Fatalf("round trip %v: %v", s, err)
		}
		if got != math.Floor(s) {
			t.Errorf("Parse(Format(%v)) = %v, want %v", s, got, math.Floor(s))
		}
	}
}
