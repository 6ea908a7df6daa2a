package businesshours

import (
	"github.com/manav03panchal/livedesk/internal/model"
)

// DayQuery selects windows with an open work hour touching Day.
type DayQuery struct {
	Day string
}

// TriggerQuery selects windows whose start (or finish) cron fires exactly
// at Day and Time. An empty Type matches every type.
type TriggerQuery struct {
	Day  string
	Time string
	Type model.BusinessHourType
}

// OpenOnDay reports whether b has an open work hour whose start or finish
// cron day is day.
func OpenOnDay(b *model.BusinessHour, day string) bool {
	for _, wh := range b.WorkHours {
		if wh.Open && (wh.Start.Cron.DayOfWeek == day || wh.Finish.Cron.DayOfWeek == day) {
			return true
		}
	}
	return false
}

// OpenStartAndFinishOnDay is the stricter form of OpenOnDay: one open work
// hour must start and finish on day.
func OpenStartAndFinishOnDay(b *model.BusinessHour, day string) bool {
	for _, wh := range b.WorkHours {
		if wh.Open && wh.Start.Cron.DayOfWeek == day && wh.Finish.Cron.DayOfWeek == day {
			return true
		}
	}
	return false
}

// OpensAt reports whether an open work hour of b starts at q.Day/q.Time.
func OpensAt(b *model.BusinessHour, q TriggerQuery) bool {
	if q.Type != "" && b.Type != q.Type {
		return false
	}
	for _, wh := range b.WorkHours {
		if wh.Open && wh.Start.Cron.DayOfWeek == q.Day && wh.Start.Cron.Time == q.Time {
			return true
		}
	}
	return false
}

// ClosesAt reports whether an open work hour of b finishes at q.Day/q.Time.
func ClosesAt(b *model.BusinessHour, q TriggerQuery) bool {
	if q.Type != "" && b.Type != q.Type {
		return false
	}
	for _, wh := range b.WorkHours {
		if wh.Open && wh.Finish.Cron.DayOfWeek == q.Day && wh.Finish.Cron.Time == q.Time {
			return true
		}
	}
	return false
}

// Filter returns the active windows for which keep returns true.
func Filter(hours []*model.BusinessHour, keep func(*model.BusinessHour) bool) []*model.BusinessHour {
	out := make([]*model.BusinessHour, 0, len(hours))
	for _, b := range hours {
		if b.Active && keep(b) {
			out = append(out, b)
		}
	}
	return out
}
