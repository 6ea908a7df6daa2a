package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DurationResult represents the result of parsing a duration.
type DurationResult struct {
	Duration time.Duration
	Valid    bool
	Error    error
}

// durationPattern matches expressions like "2h", "30m", "1h 30m", "2.5h", "1d".
var durationPattern = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(d|day|days|h|hr|hrs|hour|hours|m|min|mins|minute|minutes|s|sec|secs|second|seconds)?\s*(?:(\d+(?:\.\d+)?)\s*(m|min|mins|minute|minutes))?$`)

// ParseDuration parses a human-readable duration string.
// Supports formats like:
//   - "2h" or "2 hours"
//   - "30m" or "30 minutes"
//   - "1h30m" or "1 hour 30 minutes"
//   - "1d" or "2 days"
//   - "15" (minutes)
func ParseDuration(input string) DurationResult {
	input = strings.TrimSpace(input)
	if input == "" {
		return DurationResult{Valid: false}
	}

	if d, err := time.ParseDuration(input); err == nil {
		return DurationResult{Duration: d, Valid: true}
	}

	matches := durationPattern.FindStringSubmatch(input)
	if matches == nil {
		return DurationResult{Valid: false}
	}

	var total time.Duration

	if matches[1] != "" {
		value, _ := strconv.ParseFloat(matches[1], 64)
		total += unitToDuration(value, strings.ToLower(matches[2]))
	}

	// "1h 30m" style
	if matches[3] != "" {
		value, _ := strconv.ParseFloat(matches[3], 64)
		total += unitToDuration(value, strings.ToLower(matches[4]))
	}

	if total == 0 {
		return DurationResult{Valid: false}
	}

	return DurationResult{Duration: total, Valid: true}
}

// ParsePositiveDuration parses input and rejects zero or negative values.
func ParsePositiveDuration(field, input string) (time.Duration, error) {
	result := ParseDuration(input)
	if !result.Valid || result.Duration <= 0 {
		e := NewDurationError(input)
		e.Field = field
		return 0, e.ToUserError()
	}
	return result.Duration, nil
}

// unitToDuration converts a value and unit to a duration. No unit means
// minutes.
func unitToDuration(value float64, unit string) time.Duration {
	switch unit {
	case "d", "day", "days":
		return time.Duration(value * float64(24*time.Hour))
	case "h", "hr", "hrs", "hour", "hours":
		return time.Duration(value * float64(time.Hour))
	case "s", "sec", "secs", "second", "seconds":
		return time.Duration(value * float64(time.Second))
	default:
		return time.Duration(value * float64(time.Minute))
	}
}

// IsDurationLike checks if a string looks like a duration expression.
func IsDurationLike(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s[0] < '0' || s[0] > '9' {
		return false
	}
	if durationPattern.MatchString(s) {
		return true
	}
	_, err := time.ParseDuration(s)
	return err == nil
}
