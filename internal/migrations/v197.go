package migrations

import (
	"context"
	"time"

	"github.com/manav03panchal/livedesk/internal/businesshours"
	"github.com/manav03panchal/livedesk/internal/logging"
	"github.com/manav03panchal/livedesk/internal/model"
)

// NormalizeBusinessHourTypes rewrites legacy business hour types:
// "multiple" becomes custom, and exactly one of the "single"/"default"
// records becomes the DEFAULT window stamped with the server timezone. An
// existing "default" record wins over "single"; ties go to the oldest ts.
// Every other former default is demoted to custom.
func NormalizeBusinessHourTypes(dir businesshours.Directory, loc *time.Location, now func() time.Time) Migration {
	return Migration{
		Version: 197,
		Name:    "normalize business hour types",
		Up: func(ctx context.Context) error {
			return normalizeBusinessHourTypes(ctx, dir, loc, now())
		},
	}
}

func normalizeBusinessHourTypes(ctx context.Context, dir businesshours.Directory, loc *time.Location, now time.Time) error {
	hours, err := dir.List(ctx)
	if err != nil {
		return err
	}

	var canonical *model.BusinessHour
	var candidates []*model.BusinessHour
	for _, b := range hours {
		switch b.Type {
		case model.LegacyBusinessHourMultiple:
			b.Type = model.BusinessHourCustom
			if err := dir.Update(ctx, b); err != nil {
				return err
			}
		case model.LegacyBusinessHourSingle, model.BusinessHourDefault:
			candidates = append(candidates, b)
			// List is oldest first, so the first existing default wins.
			if canonical == nil || (b.Type == model.BusinessHourDefault && canonical.Type != model.BusinessHourDefault) {
				canonical = b
			}
		}
	}
	if canonical == nil {
		return nil
	}

	for _, b := range candidates {
		if b == canonical {
			b.Type = model.BusinessHourDefault
			b.Timezone = model.Timezone{
				Name: loc.String(),
				UTC:  businesshours.UTCOffsetHours(now, loc),
			}
		} else {
			b.Type = model.BusinessHourCustom
			logging.Warn("demoting duplicate default business hour",
				logging.KeyBusinessHour, b.ID,
				"kept", canonical.ID)
		}
		if err := dir.Update(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// Builtin returns every migration livedesk ships.
func Builtin(dir businesshours.Directory, loc *time.Location, now func() time.Time) []Migration {
	return []Migration{
		NormalizeBusinessHourTypes(dir, loc, now),
	}
}
