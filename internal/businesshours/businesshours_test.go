package businesshours

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/scheduler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mark(day, hhmm string) model.HourMark {
	return model.HourMark{
		Time: hhmm,
		UTC:  model.DayTime{DayOfWeek: day, Time: hhmm},
		Cron: model.DayTime{DayOfWeek: day, Time: hhmm},
	}
}

func wh(day, start, finish string, open bool) model.WorkHour {
	return model.WorkHour{Day: day, Start: mark(day, start), Finish: mark(day, finish), Open: open}
}

func hours(typ model.BusinessHourType, whs ...model.WorkHour) *model.BusinessHour {
	return model.NewBusinessHour("bh", typ, model.Timezone{Name: "UTC", UTC: "0"}, whs)
}

// =============================================================================
// Day and time helpers
// =============================================================================

func TestParseDay(t *testing.T) {
	for in, want := range map[string]string{
		"monday":  "Monday",
		"Mon":     "Monday",
		" SUN ":   "Sunday",
		"Friday":  "Friday",
		"thu":     "Thursday",
		"saturda": "",
	} {
		got, err := ParseDay(in)
		if want == "" {
			assert.Error(t, err, in)
			assert.True(t, errors.IsUserError(err))
			continue
		}
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("9:05")
	require.NoError(t, err)
	assert.Equal(t, "09:05", got)

	got, err = ParseTime("17:30")
	require.NoError(t, err)
	assert.Equal(t, "17:30", got)

	_, err = ParseTime("25:00")
	assert.Error(t, err)
}

func TestCronSpec(t *testing.T) {
	spec, err := CronSpec("Monday", "08:30")
	require.NoError(t, err)
	assert.Equal(t, "0 30 8 * * MON", spec)
	assert.NoError(t, scheduler.ValidateSpec(spec))

	spec, err = CronSpec("Sunday", "00:00")
	require.NoError(t, err)
	assert.Equal(t, "0 0 0 * * SUN", spec)

	_, err = CronSpec("Funday", "08:00")
	assert.ErrorIs(t, err, errors.ErrInvalidDay)

	_, err = CronSpec("Monday", "8am")
	assert.ErrorIs(t, err, errors.ErrInvalidTime)
}

func TestToday(t *testing.T) {
	day, hhmm := Today(time.Date(2026, 10, 19, 7, 5, 0, 0, time.UTC))
	assert.Equal(t, "Monday", day)
	assert.Equal(t, "07:05", hhmm)
}

func TestUTCOffsetHours(t *testing.T) {
	at := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "0", UTCOffsetHours(at, time.UTC))
	assert.Equal(t, "-3", UTCOffsetHours(at, time.FixedZone("BRT", -3*3600)))
	assert.Equal(t, "5.5", UTCOffsetHours(at, time.FixedZone("IST", 5*3600+1800)))
	assert.Equal(t, "5.75", UTCOffsetHours(at, time.FixedZone("NPT", 5*3600+2700)))
}

// =============================================================================
// Predicates
// =============================================================================

func TestPredicates(t *testing.T) {
	overnight := model.WorkHour{Day: "Friday", Start: mark("Friday", "22:00"), Finish: mark("Saturday", "02:00"), Open: true}
	b := hours(model.BusinessHourDefault, overnight, wh("Monday", "08:00", "17:00", true), wh("Tuesday", "08:00", "17:00", false))

	assert.True(t, OpenOnDay(b, "Friday"))
	assert.True(t, OpenOnDay(b, "Saturday"))
	assert.True(t, OpenOnDay(b, "Monday"))
	assert.False(t, OpenOnDay(b, "Tuesday"))

	assert.False(t, OpenStartAndFinishOnDay(b, "Saturday"))
	assert.True(t, OpenStartAndFinishOnDay(b, "Monday"))

	assert.True(t, OpensAt(b, TriggerQuery{Day: "Monday", Time: "08:00"}))
	assert.True(t, OpensAt(b, TriggerQuery{Day: "Monday", Time: "08:00", Type: model.BusinessHourDefault}))
	assert.False(t, OpensAt(b, TriggerQuery{Day: "Monday", Time: "08:00", Type: model.BusinessHourCustom}))
	assert.False(t, OpensAt(b, TriggerQuery{Day: "Tuesday", Time: "08:00"}))
	assert.True(t, ClosesAt(b, TriggerQuery{Day: "Saturday", Time: "02:00"}))
	assert.False(t, ClosesAt(b, TriggerQuery{Day: "Monday", Time: "17:01"}))
}

func TestFilterSkipsInactive(t *testing.T) {
	active := hours(model.BusinessHourCustom)
	inactive := hours(model.BusinessHourCustom)
	inactive.Active = false

	got := Filter([]*model.BusinessHour{active, inactive}, func(*model.BusinessHour) bool { return true })
	assert.Equal(t, []*model.BusinessHour{active}, got)
}

// =============================================================================
// Schedule table
// =============================================================================

func TestBuildScheduleTableDeduplicates(t *testing.T) {
	a := hours(model.BusinessHourDefault, wh("Monday", "08:00", "17:00", true), wh("Sunday", "10:00", "12:00", true))
	b := hours(model.BusinessHourCustom, wh("Monday", "08:00", "17:00", true), wh("Monday", "13:00", "17:00", true))
	c := hours(model.BusinessHourCustom, wh("Monday", "06:00", "07:00", true))
	c.Active = false
	d := hours(model.BusinessHourCustom, wh("Tuesday", "06:00", "07:00", false))

	table := BuildScheduleTable([]*model.BusinessHour{a, b, c, d})

	assert.Equal(t, []CronJobsItem{
		{Day: "Sunday", Times: []string{"10:00"}},
		{Day: "Monday", Times: []string{"08:00", "13:00"}},
	}, table.Start)
	assert.Equal(t, []CronJobsItem{
		{Day: "Sunday", Times: []string{"12:00"}},
		{Day: "Monday", Times: []string{"17:00"}},
	}, table.Finish)

	for _, triggers := range [][]Trigger{table.StartTriggers(), table.FinishTriggers()} {
		seen := map[Trigger]bool{}
		for _, tr := range triggers {
			assert.False(t, seen[tr], "duplicate trigger %v", tr)
			seen[tr] = true
		}
	}
}

func TestNextTriggersOrdersByActivation(t *testing.T) {
	table := ScheduleTable{
		Start:  []CronJobsItem{{Day: "Sunday", Times: []string{"10:00"}}, {Day: "Monday", Times: []string{"08:00"}}},
		Finish: []CronJobsItem{{Day: "Monday", Times: []string{"17:00"}}},
	}
	// Monday 12:00 UTC
	from := time.Date(2026, 10, 12, 12, 0, 0, 0, time.UTC)

	next := table.NextTriggers(from, 0)
	require.Len(t, next, 3)

	assert.Equal(t, Upcoming{Action: ActionClose, Day: "Monday", Time: "17:00",
		At: time.Date(2026, 10, 12, 17, 0, 0, 0, time.UTC)}, next[0])
	assert.Equal(t, ActionOpen, next[1].Action)
	assert.Equal(t, time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC), next[1].At)
	assert.Equal(t, time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC), next[2].At)

	assert.Len(t, table.NextTriggers(from, 2), 2)
	assert.Empty(t, ScheduleTable{}.NextTriggers(from, 5))
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("mon=8:30-17:00")
	require.NoError(t, err)
	assert.Equal(t, Window{Day: "Monday", Start: "08:30", Finish: "17:00"}, w)

	for _, bad := range []string{"Monday", "Monday=08:00", "Funday=08:00-17:00", "Monday=25:00-17:00", "Monday=08:00-08:00"} {
		_, err := ParseWindow(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.IsUserError(err), bad)
	}
}

func TestBuilderWorkHours(t *testing.T) {
	brt := time.FixedZone("BRT", -3*3600)
	b := Builder{TZ: brt, Server: time.UTC, Ref: time.Date(2026, 10, 12, 12, 0, 0, 0, time.UTC)}

	hours, err := b.WorkHours([]Window{
		{Day: "Monday", Start: "08:00", Finish: "17:00"},
		{Day: "Friday", Start: "22:00", Finish: "02:00"},
	})
	require.NoError(t, err)
	require.Len(t, hours, 7)

	monday := hours[1]
	assert.True(t, monday.Open)
	assert.Equal(t, "08:00", monday.Start.Time)
	assert.Equal(t, model.DayTime{DayOfWeek: "Monday", Time: "11:00"}, monday.Start.UTC)
	assert.Equal(t, model.DayTime{DayOfWeek: "Monday", Time: "11:00"}, monday.Start.Cron)
	assert.Equal(t, model.DayTime{DayOfWeek: "Monday", Time: "20:00"}, monday.Finish.Cron)

	friday := hours[5]
	assert.Equal(t, model.DayTime{DayOfWeek: "Saturday", Time: "01:00"}, friday.Start.Cron)
	assert.Equal(t, model.DayTime{DayOfWeek: "Saturday", Time: "05:00"}, friday.Finish.Cron)

	assert.False(t, hours[0].Open)
	assert.Equal(t, "Sunday", hours[0].Day)

	_, err = b.WorkHours([]Window{{Day: "Monday", Start: "08:00", Finish: "09:00"}, {Day: "Monday", Start: "10:00", Finish: "11:00"}})
	assert.Error(t, err)

	assert.Equal(t, model.Timezone{Name: "BRT", UTC: "-3"}, b.Timezone())
}

func TestBuilderRebuild(t *testing.T) {
	ref := time.Date(2026, 10, 12, 12, 0, 0, 0, time.UTC)
	b := Builder{TZ: time.UTC, Server: time.UTC, Ref: ref}
	hours, err := b.WorkHours([]Window{{Day: "Monday", Start: "08:00", Finish: "17:00"}})
	require.NoError(t, err)
	bh := &model.BusinessHour{WorkHours: hours}

	Builder{TZ: time.UTC, Server: time.FixedZone("CET", 3600), Ref: ref}.Rebuild(bh)

	assert.Equal(t, model.DayTime{DayOfWeek: "Monday", Time: "09:00"}, bh.WorkHours[1].Start.Cron)
	assert.Equal(t, model.DayTime{DayOfWeek: "Monday", Time: "08:00"}, bh.WorkHours[1].Start.UTC)
	assert.Equal(t, "08:00", bh.WorkHours[1].Start.Time)
}

func TestNormalize(t *testing.T) {
	raw := ScheduleTable{
		Start: []CronJobsItem{
			{Day: "Monday", Times: []string{"09:00", "08:00"}},
			{Day: "Sunday", Times: []string{"10:00"}},
			{Day: "Monday", Times: []string{"08:00"}},
		},
	}
	assert.Equal(t, ScheduleTable{
		Start: []CronJobsItem{
			{Day: "Sunday", Times: []string{"10:00"}},
			{Day: "Monday", Times: []string{"08:00", "09:00"}},
		},
		Finish: []CronJobsItem{},
	}, raw.Normalize())
	assert.True(t, ScheduleTable{}.IsEmpty())
}

// =============================================================================
// Manager
// =============================================================================

type fakeDirectory struct {
	Directory

	mu      sync.Mutex
	table   ScheduleTable
	opening []*model.BusinessHour
	closing []*model.BusinessHour
	queries []TriggerQuery
}

func (f *fakeDirectory) ComputeScheduleTable(context.Context) (ScheduleTable, error) {
	return f.table, nil
}

func (f *fakeDirectory) FindActiveToOpen(_ context.Context, q TriggerQuery) ([]*model.BusinessHour, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.opening, nil
}

func (f *fakeDirectory) FindActiveToClose(_ context.Context, q TriggerQuery) ([]*model.BusinessHour, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.closing, nil
}

func TestManagerRefreshRegistersOneTriggerPerPair(t *testing.T) {
	dir := &fakeDirectory{table: BuildScheduleTable([]*model.BusinessHour{
		hours(model.BusinessHourDefault, wh("Monday", "08:00", "17:00", true)),
		hours(model.BusinessHourCustom, wh("Monday", "08:00", "18:00", true)),
	})}
	s := scheduler.NewScheduler(time.UTC)
	m := NewManager(dir, s, Hooks{})

	table, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dir.table, table)
	assert.Equal(t, table, m.Table())

	assert.Equal(t, []string{"Monday 08:00"}, s.GroupJobs(GroupOpen))
	assert.Equal(t, []string{"Monday 17:00", "Monday 18:00"}, s.GroupJobs(GroupClose))
	assert.Len(t, s.Entries(), 3)

	dir.table = ScheduleTable{}
	_, err = m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.Entries())

	m.Stop()
}

func TestManagerFireInvokesHooks(t *testing.T) {
	b := hours(model.BusinessHourCustom, wh("Monday", "08:00", "17:00", true))
	dir := &fakeDirectory{opening: []*model.BusinessHour{b}}

	var opened []*model.BusinessHour
	var closedCalled bool
	m := NewManager(dir, scheduler.NewScheduler(time.UTC), Hooks{
		OnOpen: func(_ context.Context, at Trigger, hs []*model.BusinessHour) {
			assert.Equal(t, Trigger{Day: "Monday", Time: "08:00"}, at)
			opened = hs
		},
		OnClose: func(context.Context, Trigger, []*model.BusinessHour) { closedCalled = true },
	})
	m.Type = model.BusinessHourCustom

	require.NoError(t, m.Open(context.Background(), Trigger{Day: "Monday", Time: "08:00"}))
	assert.Equal(t, []*model.BusinessHour{b}, opened)
	assert.False(t, m.LastFired().IsZero())

	// No matching windows means no hook call.
	require.NoError(t, m.Close(context.Background(), Trigger{Day: "Monday", Time: "17:00"}))
	assert.False(t, closedCalled)

	assert.Equal(t, []TriggerQuery{
		{Day: "Monday", Time: "08:00", Type: model.BusinessHourCustom},
		{Day: "Monday", Time: "17:00", Type: model.BusinessHourCustom},
	}, dir.queries)
}

func TestManagerRefreshRejectsBadTable(t *testing.T) {
	dir := &fakeDirectory{table: ScheduleTable{Start: []CronJobsItem{{Day: "Someday", Times: []string{"08:00"}}}}}
	s := scheduler.NewScheduler(time.UTC)
	m := NewManager(dir, s, Hooks{})

	_, err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, errors.ErrInvalidDay)
	assert.Empty(t, s.Entries())
}
