package businesshours

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/manav03panchal/livedesk/internal/logging"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/scheduler"
)

// Scheduler group names for registered triggers.
const (
	GroupOpen  = "business-hours:open"
	GroupClose = "business-hours:close"
)

// Registrar is the cron side the manager registers triggers with.
type Registrar interface {
	ReplaceGroup(group string, jobs []scheduler.Job) error
	RemoveGroup(group string)
}

// Hooks are invoked when a trigger fires with the windows it matched.
// Either hook may be nil.
type Hooks struct {
	OnOpen  func(ctx context.Context, at Trigger, hours []*model.BusinessHour)
	OnClose func(ctx context.Context, at Trigger, hours []*model.BusinessHour)
}

// Manager keeps the cron triggers in sync with the directory.
type Manager struct {
	dir       Directory
	registrar Registrar
	hooks     Hooks

	// Type restricts fired lookups; empty means every type.
	Type model.BusinessHourType

	mu    sync.Mutex
	table ScheduleTable
	fired time.Time
}

// NewManager creates a manager over dir.
func NewManager(dir Directory, registrar Registrar, hooks Hooks) *Manager {
	return &Manager{
		dir:       dir,
		registrar: registrar,
		hooks:     hooks,
	}
}

// Refresh recomputes the schedule table and replaces the registered
// triggers. Distinct (day, time) pairs get exactly one trigger each.
func (m *Manager) Refresh(ctx context.Context) (ScheduleTable, error) {
	table, err := m.dir.ComputeScheduleTable(ctx)
	if err != nil {
		return ScheduleTable{}, fmt.Errorf("compute schedule table: %w", err)
	}

	openJobs, err := m.jobs(table.StartTriggers(), m.open)
	if err != nil {
		return ScheduleTable{}, err
	}
	closeJobs, err := m.jobs(table.FinishTriggers(), m.close)
	if err != nil {
		return ScheduleTable{}, err
	}

	if err := m.registrar.ReplaceGroup(GroupOpen, openJobs); err != nil {
		return ScheduleTable{}, err
	}
	if err := m.registrar.ReplaceGroup(GroupClose, closeJobs); err != nil {
		return ScheduleTable{}, err
	}

	m.mu.Lock()
	m.table = table
	m.mu.Unlock()

	logging.Info("business hour triggers registered",
		"open", len(openJobs),
		"close", len(closeJobs))
	return table, nil
}

// Stop removes every trigger the manager registered.
func (m *Manager) Stop() {
	m.registrar.RemoveGroup(GroupOpen)
	m.registrar.RemoveGroup(GroupClose)
}

// Table returns the table from the last successful Refresh.
func (m *Manager) Table() ScheduleTable {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table
}

// LastFired returns when a trigger last fired.
func (m *Manager) LastFired() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fired
}

func (m *Manager) jobs(triggers []Trigger, fire func(context.Context, Trigger) error) ([]scheduler.Job, error) {
	jobs := make([]scheduler.Job, 0, len(triggers))
	for _, tr := range triggers {
		spec, err := CronSpec(tr.Day, tr.Time)
		if err != nil {
			return nil, err
		}
		tr := tr
		jobs = append(jobs, scheduler.Job{
			Name: tr.Day + " " + tr.Time,
			Spec: spec,
			Run: func() {
				if err := fire(context.Background(), tr); err != nil {
					logging.Error("business hour trigger failed",
						logging.KeyDay, tr.Day,
						logging.KeyTime, tr.Time,
						logging.KeyError, err)
				}
			},
		})
	}
	return jobs, nil
}

// Open resolves and reports the windows opening at tr. It is what the
// registered open trigger runs.
func (m *Manager) Open(ctx context.Context, tr Trigger) error {
	return m.open(ctx, tr)
}

// Close resolves and reports the windows closing at tr.
func (m *Manager) Close(ctx context.Context, tr Trigger) error {
	return m.close(ctx, tr)
}

func (m *Manager) open(ctx context.Context, tr Trigger) error {
	hours, err := m.dir.FindActiveToOpen(ctx, TriggerQuery{Day: tr.Day, Time: tr.Time, Type: m.Type})
	if err != nil {
		return err
	}
	m.markFired()
	logging.Info("business hours opening",
		logging.KeyDay, tr.Day,
		logging.KeyTime, tr.Time,
		logging.KeyCount, len(hours))
	if m.hooks.OnOpen != nil && len(hours) > 0 {
		m.hooks.OnOpen(ctx, tr, hours)
	}
	return nil
}

func (m *Manager) close(ctx context.Context, tr Trigger) error {
	hours, err := m.dir.FindActiveToClose(ctx, TriggerQuery{Day: tr.Day, Time: tr.Time, Type: m.Type})
	if err != nil {
		return err
	}
	m.markFired()
	logging.Info("business hours closing",
		logging.KeyDay, tr.Day,
		logging.KeyTime, tr.Time,
		logging.KeyCount, len(hours))
	if m.hooks.OnClose != nil && len(hours) > 0 {
		m.hooks.OnClose(ctx, tr, hours)
	}
	return nil
}

func (m *Manager) markFired() {
	m.mu.Lock()
	m.fired = time.Now()
	m.mu.Unlock()
}
