package businesshours

import (
	"sort"
	"time"

	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/scheduler"
)

// CronJobsItem groups the distinct trigger times of one cron day.
type CronJobsItem struct {
	Day   string   `json:"day" bson:"day"`
	Times []string `json:"times" bson:"times"`
}

// ScheduleTable holds the open (Start) and close (Finish) triggers the cron
// scheduler must register. Within a grouping every (day, time) pair is
// unique.
type ScheduleTable struct {
	Start  []CronJobsItem `json:"start" bson:"start"`
	Finish []CronJobsItem `json:"finish" bson:"finish"`
}

// Trigger is a single (day, time) pair from a schedule table.
type Trigger struct {
	Day  string
	Time string
}

// StartTriggers flattens the Start grouping.
func (t ScheduleTable) StartTriggers() []Trigger {
	return flatten(t.Start)
}

// FinishTriggers flattens the Finish grouping.
func (t ScheduleTable) FinishTriggers() []Trigger {
	return flatten(t.Finish)
}

// IsEmpty reports whether there is nothing to schedule.
func (t ScheduleTable) IsEmpty() bool {
	return len(t.Start) == 0 && len(t.Finish) == 0
}

func flatten(items []CronJobsItem) []Trigger {
	var out []Trigger
	for _, item := range items {
		for _, tm := range item.Times {
			out = append(out, Trigger{Day: item.Day, Time: tm})
		}
	}
	return out
}

// BuildScheduleTable reduces active windows into a schedule table: for every
// open work hour the start cron time is added to the set of its start day
// and the finish cron time to the set of its finish day.
func BuildScheduleTable(hours []*model.BusinessHour) ScheduleTable {
	start := make(map[string]map[string]struct{})
	finish := make(map[string]map[string]struct{})

	for _, b := range hours {
		if !b.Active {
			continue
		}
		for _, wh := range b.WorkHours {
			if !wh.Open {
				continue
			}
			addToSet(start, wh.Start.Cron.DayOfWeek, wh.Start.Cron.Time)
			addToSet(finish, wh.Finish.Cron.DayOfWeek, wh.Finish.Cron.Time)
		}
	}

	return ScheduleTable{
		Start:  toItems(start),
		Finish: toItems(finish),
	}
}

// Normalize sorts and deduplicates a table produced elsewhere (for example
// by a store-side aggregation) so it compares equal to BuildScheduleTable.
func (t ScheduleTable) Normalize() ScheduleTable {
	return ScheduleTable{
		Start:  normalizeItems(t.Start),
		Finish: normalizeItems(t.Finish),
	}
}

func normalizeItems(items []CronJobsItem) []CronJobsItem {
	sets := make(map[string]map[string]struct{})
	for _, item := range items {
		for _, tm := range item.Times {
			addToSet(sets, item.Day, tm)
		}
	}
	return toItems(sets)
}

func addToSet(m map[string]map[string]struct{}, day, tm string) {
	set, ok := m[day]
	if !ok {
		set = make(map[string]struct{})
		m[day] = set
	}
	set[tm] = struct{}{}
}

func toItems(m map[string]map[string]struct{}) []CronJobsItem {
	items := make([]CronJobsItem, 0, len(m))
	for day, set := range m {
		times := make([]string, 0, len(set))
		for tm := range set {
			times = append(times, tm)
		}
		sort.Strings(times)
		items = append(items, CronJobsItem{Day: day, Times: times})
	}
	sort.Slice(items, func(i, j int) bool {
		wi, _ := Weekday(items[i].Day)
		wj, _ := Weekday(items[j].Day)
		if wi != wj {
			return wi < wj
		}
		return items[i].Day < items[j].Day
	})
	return items
}

// Upcoming is a trigger with its next activation.
type Upcoming struct {
	Action string    `json:"action"`
	Day    string    `json:"day"`
	Time   string    `json:"time"`
	At     time.Time `json:"at"`
}

// Trigger actions.
const (
	ActionOpen  = "open"
	ActionClose = "close"
)

// NextTriggers returns up to n triggers of t ordered by their next
// activation after from. Times are interpreted in the location of from.
// n <= 0 returns all of them.
func (t ScheduleTable) NextTriggers(from time.Time, n int) []Upcoming {
	var out []Upcoming
	add := func(action string, triggers []Trigger) {
		for _, tr := range triggers {
			spec, err := CronSpec(tr.Day, tr.Time)
			if err != nil {
				continue
			}
			at, err := scheduler.Next(spec, from)
			if err != nil {
				continue
			}
			out = append(out, Upcoming{Action: action, Day: tr.Day, Time: tr.Time, At: at})
		}
	}
	add(ActionOpen, t.StartTriggers())
	add(ActionClose, t.FinishTriggers())

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].Action > out[j].Action
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
