package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// relativeRegex matches relative expressions like "+5m", "+1h", "+2d".
var relativeRegex = regexp.MustCompile(`^\+(\d+)([smhdw])$`)

// ParseAt parses a dispatch time for a queued notification. Supports:
//   - "+5m", "+1h", "+2d" (relative to now)
//   - "friday 5pm", "tomorrow 9am" (natural language)
//   - "2026-01-15T14:00:00Z" (RFC 3339)
//
// A time earlier today is moved to the same time tomorrow; other past
// times are rejected.
func ParseAt(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, NewScheduleError(input, "dispatch time is required").ToUserError()
	}

	if match := relativeRegex.FindStringSubmatch(input); match != nil {
		return parseRelative(input, match[1], match[2], now)
	}

	result := ParseTimestamp(input, now)
	if result.Error != nil {
		return time.Time{}, NewScheduleError(input, "could not parse dispatch time").ToUserError()
	}

	at := result.Time
	if !at.After(now) {
		if !isSameDay(at, now) {
			return time.Time{}, NewScheduleError(input, "dispatch time must be in the future").ToUserError()
		}
		at = at.AddDate(0, 0, 1)
	}
	return at, nil
}

// ParseSchedule resolves the --at and --in flags of a push into a dispatch
// time. Both empty means deliver immediately (nil).
func ParseSchedule(at, in string, now time.Time) (*time.Time, error) {
	switch {
	case at != "" && in != "":
		return nil, NewScheduleError(at+" / "+in, "use either --at or --in, not both").ToUserError()
	case at != "":
		t, err := ParseAt(at, now)
		if err != nil {
			return nil, err
		}
		return &t, nil
	case in != "":
		d, err := ParsePositiveDuration("in", in)
		if err != nil {
			return nil, err
		}
		t := now.Add(d)
		return &t, nil
	default:
		return nil, nil
	}
}

func parseRelative(input, numStr, unit string, now time.Time) (time.Time, error) {
	num, _ := strconv.Atoi(numStr)
	if num <= 0 {
		return time.Time{}, NewScheduleError(input, "offset must be positive").ToUserError()
	}

	var d time.Duration
	switch unit {
	case "s":
		d = time.Second
	case "m":
		d = time.Minute
	case "h":
		d = time.Hour
	case "d":
		d = 24 * time.Hour
	case "w":
		d = 7 * 24 * time.Hour
	}

	return now.Add(time.Duration(num) * d), nil
}

func isSameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// FormatTimeUntil describes how far t is from now ("in 5 minutes",
// "overdue").
func FormatTimeUntil(t, now time.Time) string {
	diff := t.Sub(now)
	if diff < 0 {
		return "overdue"
	}

	if diff < time.Minute {
		return "less than a minute"
	}
	if diff < time.Hour {
		return "in " + plural(int(diff.Minutes()), "minute")
	}
	if diff < 24*time.Hour {
		hours := int(diff.Hours())
		mins := int(diff.Minutes()) % 60
		if mins > 0 {
			return fmt.Sprintf("in %s %s", plural(hours, "hour"), plural(mins, "minute"))
		}
		return "in " + plural(hours, "hour")
	}
	if diff < 7*24*time.Hour {
		return "in " + plural(int(diff.Hours()/24), "day")
	}
	return "in " + plural(int(diff.Hours()/(24*7)), "week")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
