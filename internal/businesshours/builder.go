package businesshours

import (
	"strings"
	"time"

	"github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
)

// Window is one "Day=HH:mm-HH:mm" open interval as an admin enters it.
type Window struct {
	Day    string
	Start  string
	Finish string
}

// ParseWindow parses "Monday=08:00-17:00". A finish earlier than the start
// closes on the following day.
func ParseWindow(s string) (Window, error) {
	day, span, ok := strings.Cut(s, "=")
	start, finish, ok2 := strings.Cut(span, "-")
	if !ok || !ok2 {
		return Window{}, errors.NewUserErrorWithField("open", s,
			"Invalid open window",
			"Use Day=HH:mm-HH:mm, for example Monday=08:00-17:00")
	}

	var err error
	var w Window
	if w.Day, err = ParseDay(day); err != nil {
		return Window{}, err
	}
	if w.Start, err = ParseTime(start); err != nil {
		return Window{}, err
	}
	if w.Finish, err = ParseTime(finish); err != nil {
		return Window{}, err
	}
	if w.Start == w.Finish {
		return Window{}, errors.NewUserErrorWithField("open", s,
			"Open window is empty",
			"Start and finish must differ")
	}
	return w, nil
}

// Builder converts windows entered in a business hour's timezone into
// stored work hours. Server is the location cron triggers run in; Ref
// picks the week used to resolve offsets, which matters across DST
// changes.
type Builder struct {
	TZ     *time.Location
	Server *time.Location
	Ref    time.Time
}

// WorkHours returns one work hour per weekday, Sunday first. Days without
// a window are closed.
func (b Builder) WorkHours(windows []Window) ([]model.WorkHour, error) {
	byDay := make(map[string]Window, len(windows))
	for _, w := range windows {
		if _, dup := byDay[w.Day]; dup {
			return nil, errors.NewUserErrorWithField("open", w.Day,
				"Day given more than once",
				"Give each weekday at most one open window")
		}
		byDay[w.Day] = w
	}

	hours := make([]model.WorkHour, 0, len(Weekdays))
	for _, day := range Weekdays {
		w, open := byDay[day]
		if !open {
			w = Window{Day: day, Start: "00:00", Finish: "00:00"}
		}
		hours = append(hours, b.workHour(w, open))
	}
	return hours, nil
}

// Rebuild recomputes the UTC and cron marks of every work hour from the
// entered times, for example after the server timezone changed.
func (b Builder) Rebuild(bh *model.BusinessHour) {
	for i, wh := range bh.WorkHours {
		bh.WorkHours[i] = b.workHour(Window{Day: wh.Day, Start: wh.Start.Time, Finish: wh.Finish.Time}, wh.Open)
	}
}

// Timezone returns the stored timezone descriptor for TZ at Ref.
func (b Builder) Timezone() model.Timezone {
	return model.Timezone{Name: b.TZ.String(), UTC: UTCOffsetHours(b.Ref, b.TZ)}
}

func (b Builder) workHour(w Window, open bool) model.WorkHour {
	start := b.instant(w.Day, w.Start, 0)
	finishOffset := 0
	if open && w.Finish < w.Start {
		finishOffset = 1
	}
	finish := b.instant(w.Day, w.Finish, finishOffset)

	return model.WorkHour{
		Day:    w.Day,
		Open:   open,
		Start:  b.mark(w.Start, start),
		Finish: b.mark(w.Finish, finish),
	}
}

// instant resolves day and hhmm in TZ within the week of Ref.
func (b Builder) instant(day, hhmm string, extraDays int) time.Time {
	wd, _ := Weekday(day)
	clock, _ := time.Parse(TimeLayout, hhmm)
	ref := b.Ref.In(b.TZ)
	offset := (int(wd) - int(ref.Weekday()) + 7) % 7
	return time.Date(ref.Year(), ref.Month(), ref.Day()+offset+extraDays,
		clock.Hour(), clock.Minute(), 0, 0, b.TZ)
}

func (b Builder) mark(entered string, t time.Time) model.HourMark {
	utc := t.UTC()
	cron := t.In(b.Server)
	return model.HourMark{
		Time: entered,
		UTC:  model.DayTime{DayOfWeek: utc.Weekday().String(), Time: utc.Format(TimeLayout)},
		Cron: model.DayTime{DayOfWeek: cron.Weekday().String(), Time: cron.Format(TimeLayout)},
	}
}
