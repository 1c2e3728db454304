package srs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day and Week extend the stdlib units for interval encoding. Settings
// store durations as strings like "10m", "4h", "3d", "16w".
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// ParseDuration parses the settings encoding: everything
// time.ParseDuration accepts, plus "d" (days) and "w" (weeks) suffixes.
func ParseDuration(s string) (time.Duration, error) {
	if n, ok := strings.CutSuffix(s, "d"); ok {
		return scaled(n, Day, s)
	}
	if n, ok := strings.CutSuffix(s, "w"); ok {
		return scaled(n, Week, s)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

func scaled(n string, unit time.Duration, orig string) (time.Duration, error) {
	f, err := strconv.ParseFloat(n, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
	}
	return time.Duration(f * float64(unit)), nil
}

// FormatDuration renders a duration in the largest exact unit.
func FormatDuration(d time.Duration) string {
	switch {
	case d != 0 && d%Week == 0:
		return fmt.Sprintf("%dw", d/Week)
	case d != 0 && d%Day == 0:
		return fmt.Sprintf("%dd", d/Day)
	case d != 0 && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d != 0 && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return d.String()
	}
}
