// Package businesshours answers which business-hour windows are open on a
// given day and which cron triggers must exist to open and close them.
package businesshours

import (
	"fmt"
	"strings"
	"time"

	"github.com/manav03panchal/livedesk/internal/errors"
)

// Weekdays lists the day names stored in cron.dayOfWeek, Sunday first.
var Weekdays = []string{
	time.Sunday.String(),
	time.Monday.String(),
	time.Tuesday.String(),
	time.Wednesday.String(),
	time.Thursday.String(),
	time.Friday.String(),
	time.Saturday.String(),
}

// TimeLayout is the "HH:mm" layout used for every stored time.
const TimeLayout = "15:04"

// ParseDay normalizes a weekday name ("monday", "Mon") to its stored form.
func ParseDay(day string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(day))
	if len(d) >= 3 {
		for _, w := range Weekdays {
			lw := strings.ToLower(w)
			if d == lw || d == lw[:3] {
				return w, nil
			}
		}
	}
	return "", errors.NewUserErrorWithField("day", day,
		"Invalid day of week",
		"Use a weekday name such as Monday or Mon")
}

// Weekday converts a stored day name to time.Weekday.
func Weekday(day string) (time.Weekday, bool) {
	for i, w := range Weekdays {
		if w == day {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// ParseTime validates an "HH:mm" time and returns it zero padded.
func ParseTime(s string) (string, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(s))
	if err != nil {
		// Accept "9:30" as well as "09:30".
		t, err = time.Parse("3:04", strings.TrimSpace(s))
		if err != nil {
			return "", errors.NewUserErrorWithField("time", s,
				"Invalid time",
				"Use 24-hour HH:mm, for example 08:30 or 17:00")
		}
	}
	return t.Format(TimeLayout), nil
}

// CronSpec builds the robfig/cron (with seconds) spec that fires at the
// given stored day and time.
func CronSpec(day, hhmm string) (string, error) {
	wd, ok := Weekday(day)
	if !ok {
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidDay, day)
	}
	t, err := time.Parse(TimeLayout, hhmm)
	if err != nil {
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidTime, hhmm)
	}
	return fmt.Sprintf("0 %d %d * * %s", t.Minute(), t.Hour(), strings.ToUpper(wd.String()[:3])), nil
}

// Today returns the stored day name and "HH:mm" for t.
func Today(t time.Time) (string, string) {
	return t.Weekday().String(), t.Format(TimeLayout)
}

// UTCOffsetHours formats the offset of loc at t in hours, the way the
// timezone.utc field stores it ("-3", "5.5", "0").
func UTCOffsetHours(t time.Time, loc *time.Location) string {
	_, offset := t.In(loc).Zone()
	hours := float64(offset) / 3600
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", hours), "0"), ".")
}
