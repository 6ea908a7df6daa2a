package model

import (
	"time"
)

// BusinessHourType distinguishes the single fallback schedule from
// additional named schedules.
type BusinessHourType string

// Business hour types.
const (
	BusinessHourDefault BusinessHourType = "default"
	BusinessHourCustom  BusinessHourType = "custom"

	// Legacy values written before types were normalized.
	LegacyBusinessHourSingle   BusinessHourType = "single"
	LegacyBusinessHourMultiple BusinessHourType = "multiple"
)

// IsValid reports whether t is one of the current (non-legacy) types.
func (t BusinessHourType) IsValid() bool {
	return t == BusinessHourDefault || t == BusinessHourCustom
}

// IsLegacy reports whether t is a pre-normalization value.
func (t BusinessHourType) IsLegacy() bool {
	return t == LegacyBusinessHourSingle || t == LegacyBusinessHourMultiple
}

// Timezone is the timezone a business hour was configured in.
// UTC holds the offset in hours as a string ("-3", "5.5").
type Timezone struct {
	Name string `json:"name" bson:"name"`
	UTC  string `json:"utc" bson:"utc"`
}

// DayTime is a weekday name plus an "HH:mm" time.
type DayTime struct {
	DayOfWeek string `json:"dayOfWeek" bson:"dayOfWeek"`
	Time      string `json:"time" bson:"time"`
}

// HourMark is one edge (start or finish) of a work hour. Time is what the
// admin entered, UTC the same instant in UTC and Cron the instant in the
// server location that cron triggers are registered with.
type HourMark struct {
	Time string  `json:"time" bson:"time"`
	UTC  DayTime `json:"utc" bson:"utc"`
	Cron DayTime `json:"cron" bson:"cron"`
}

// WorkHour is the open/close window for a single configured day.
type WorkHour struct {
	Day    string   `json:"day" bson:"day"`
	Start  HourMark `json:"start" bson:"start"`
	Finish HourMark `json:"finish" bson:"finish"`
	Open   bool     `json:"open" bson:"open"`
	Code   int      `json:"code,omitempty" bson:"code,omitempty"`
}

// BusinessHour is a timezone-aware schedule of open and closed intervals
// per weekday.
type BusinessHour struct {
	ID        string           `json:"_id" bson:"_id"`
	Name      string           `json:"name,omitempty" bson:"name,omitempty"`
	Type      BusinessHourType `json:"type" bson:"type"`
	Active    bool             `json:"active" bson:"active"`
	Timezone  Timezone         `json:"timezone" bson:"timezone"`
	WorkHours []WorkHour       `json:"workHours" bson:"workHours"`
	TS        time.Time        `json:"ts" bson:"ts"`
	UpdatedAt time.Time        `json:"_updatedAt,omitempty" bson:"_updatedAt,omitempty"`
}

// SetKey sets the database key for this business hour.
func (b *BusinessHour) SetKey(key string) {
	b.ID = IDFromKey(PrefixBusinessHour, key)
}

// GetKey returns the database key for this business hour.
func (b *BusinessHour) GetKey() string {
	return GenerateKey(PrefixBusinessHour, b.ID)
}

// IsDefault returns true for the fallback schedule.
func (b *BusinessHour) IsDefault() bool {
	return b.Type == BusinessHourDefault
}

// DisplayName returns the name, falling back to the type for the unnamed
// default schedule and to the id otherwise.
func (b *BusinessHour) DisplayName() string {
	switch {
	case b.Name != "":
		return b.Name
	case b.IsDefault():
		return string(BusinessHourDefault)
	default:
		return b.ID
	}
}

// OpenWorkHours returns the work hours flagged open.
func (b *BusinessHour) OpenWorkHours() []WorkHour {
	var open []WorkHour
	for _, wh := range b.WorkHours {
		if wh.Open {
			open = append(open, wh)
		}
	}
	return open
}

// NewBusinessHour creates an active business hour with the given type.
func NewBusinessHour(name string, t BusinessHourType, tz Timezone, workHours []WorkHour) *BusinessHour {
	return &BusinessHour{
		Name:      name,
		Type:      t,
		Active:    true,
		Timezone:  tz,
		WorkHours: workHours,
	}
}
