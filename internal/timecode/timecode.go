// Package timecode converts between "HH:MM:SS" timestamps and seconds.
package timecode

import (
	"strconv"
	"strings"

	"github.com/Eduhs21/ClipBuilder/internal/apperr"
)

// Format renders seconds as "HH:MM:SS". Sub-second precision is dropped
// and negative input clamps to zero.
func Format(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	hh := total / 3600
	mm := (total % 3600) / 60
	ss := total % 60
	return pad2(hh) + ":" + pad2(mm) + ":" + pad2(ss)
}

// Parse accepts "SS", "MM:SS" or "HH:MM:SS"; the last component may be
// fractional. Empty input parses to zero.
func Parse(timestamp string) (float64, error) {
	ts := strings.TrimSpace(timestamp)
	if ts == "" {
		return 0, nil
	}
	parts := strings.Split(ts, ":")
	if len(parts) > 3 {
		return 0, apperr.New(apperr.InvalidTimestamp, "invalid timestamp %q: use HH:MM:SS", timestamp)
	}
	nums := make([]float64, 0, 3)
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, apperr.New(apperr.InvalidTimestamp, "invalid timestamp %q: use HH:MM:SS", timestamp)
		}
		nums = append(nums, v)
	}
	for len(nums) < 3 {
		nums = append([]float64{0}, nums...)
	}
	seconds := nums[0]*3600 + nums[1]*60 + nums[2]
	if seconds < 0 {
		seconds = 0
	}
	return seconds, nil
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
