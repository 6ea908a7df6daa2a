package businesshours

import (
	"context"

	"github.com/manav03panchal/livedesk/internal/model"
)

// Directory is the business-hours store. Finders return nil or an empty
// slice for absent records, never an error.
type Directory interface {
	// FindDefault returns the single DEFAULT window, or nil.
	FindDefault(ctx context.Context) (*model.BusinessHour, error)
	// FindActiveOpenByDay returns active windows with an open work hour
	// whose start or finish falls on q.Day.
	FindActiveOpenByDay(ctx context.Context, q DayQuery) ([]*model.BusinessHour, error)
	// FindDefaultActiveOpenByDay is FindActiveOpenByDay restricted to the
	// DEFAULT type, requiring start day == finish day == q.Day.
	FindDefaultActiveOpenByDay(ctx context.Context, q DayQuery) ([]*model.BusinessHour, error)
	// ComputeScheduleTable groups the open start and finish cron times of
	// active windows by cron day.
	ComputeScheduleTable(ctx context.Context) (ScheduleTable, error)
	// FindActiveToOpen returns windows whose start cron fires at q.
	FindActiveToOpen(ctx context.Context, q TriggerQuery) ([]*model.BusinessHour, error)
	// FindActiveToClose returns windows whose finish cron fires at q.
	FindActiveToClose(ctx context.Context, q TriggerQuery) ([]*model.BusinessHour, error)

	// Insert stores a new window, assigning ID and TS when unset.
	Insert(ctx context.Context, b *model.BusinessHour) error
	// Update replaces a stored window.
	Update(ctx context.Context, b *model.BusinessHour) error
	// FindByID returns a window or nil.
	FindByID(ctx context.Context, id string) (*model.BusinessHour, error)
	// List returns every window, active or not.
	List(ctx context.Context) ([]*model.BusinessHour, error)
	// Remove soft-deletes a window into the trash store. Removing an
	// unknown id is a no-op.
	Remove(ctx context.Context, id string) error
}
