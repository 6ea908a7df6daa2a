package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/livedesk/internal/businesshours"
	"github.com/manav03panchal/livedesk/internal/queue"
)

// Monday 12:00 UTC
var watchNow = time.Date(2026, 10, 12, 12, 0, 0, 0, time.UTC)

func testWatchConfig() WatchConfig {
	return WatchConfig{
		Stats: func(context.Context) (queue.Stats, error) {
			return queue.Stats{Total: 4, Pending: 2, Scheduled: 1, Failed: 1}, nil
		},
		Table: func(context.Context) (businesshours.ScheduleTable, error) {
			return businesshours.ScheduleTable{
				Start:  []businesshours.CronJobsItem{{Day: "Tuesday", Times: []string{"08:00"}}},
				Finish: []businesshours.CronJobsItem{{Day: "Monday", Times: []string{"17:00"}}},
			}, nil
		},
		Location: time.UTC,
		Now:      func() time.Time { return watchNow },
	}
}

func sized(m *WatchModel) *WatchModel {
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

// =============================================================================
// ProgressBar Tests
// =============================================================================

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name       string
		percentage float64
		width      int
	}{
		{"zero", 0, 10},
		{"half", 50, 10},
		{"full", 100, 10},
		{"over", 150, 10},
		{"negative", -10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEmpty(t, ProgressBar(tt.percentage, tt.width))
		})
	}
}

func TestProgressBarWidth(t *testing.T) {
	assert.Greater(t, len(ProgressBar(50, 20)), len(ProgressBar(50, 10)))
}

// =============================================================================
// Component Tests
// =============================================================================

func TestQueueComponentView(t *testing.T) {
	qc := NewQueueComponent(queue.Stats{Total: 3, Pending: 2, Sending: 1}, 80)
	view := qc.View()

	assert.Contains(t, view, "Notification Queue")
	assert.Contains(t, view, queue.StatePending)
	assert.Contains(t, view, queue.StateFailed)
	assert.False(t, qc.NeedsAttention())
}

func TestQueueComponentNeedsAttention(t *testing.T) {
	assert.True(t, NewQueueComponent(queue.Stats{Total: 1, Stale: 1}, 80).NeedsAttention())
	assert.True(t, NewQueueComponent(queue.Stats{Total: 1, Failed: 1}, 80).NeedsAttention())
}

func TestQueueComponentEmptyQueue(t *testing.T) {
	view := NewQueueComponent(queue.Stats{}, 15).View()
	assert.Contains(t, view, "0")
}

func TestTriggersComponentView(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		view := NewTriggersComponent(nil, watchNow, 80).View()
		assert.Contains(t, view, "No business hours scheduled")
	})

	t.Run("with_triggers", func(t *testing.T) {
		triggers := []businesshours.Upcoming{
			{Action: businesshours.ActionClose, Day: "Monday", Time: "17:00", At: watchNow.Add(5 * time.Hour)},
			{Action: businesshours.ActionOpen, Day: "Tuesday", Time: "08:00", At: watchNow.Add(20 * time.Hour)},
		}
		view := NewTriggersComponent(triggers, watchNow, 80).View()

		assert.Contains(t, view, "Next Triggers")
		assert.Contains(t, view, "close")
		assert.Contains(t, view, "Tuesday")
		assert.Contains(t, view, "in 5h")
		assert.Contains(t, view, "in 20h")
	})
}

func TestHelpBar(t *testing.T) {
	bar := HelpBar()

	assert.Contains(t, bar, "refresh")
	assert.Contains(t, bar, "quit")
}

func TestStateStyle(t *testing.T) {
	for _, state := range []string{queue.StatePending, queue.StateScheduled, queue.StateSending, queue.StateStale, queue.StateFailed} {
		assert.NotEmpty(t, StateStyle(state).Render(state))
	}
}

// =============================================================================
// WatchModel Tests
// =============================================================================

func TestNewWatchModelDefaults(t *testing.T) {
	m := NewWatchModel(WatchConfig{})

	assert.Equal(t, 2*time.Second, m.cfg.RefreshInterval)
	assert.Equal(t, 6, m.cfg.MaxTriggers)
	assert.NotNil(t, m.cfg.Now)
	assert.NotNil(t, m.cfg.Location)
	assert.NotNil(t, m.Init())
}

func TestWatchModelLoad(t *testing.T) {
	m := NewWatchModel(testWatchConfig())

	msg := m.load()
	require.NoError(t, msg.err)
	assert.Equal(t, 4, msg.stats.Total)
	require.Len(t, msg.triggers, 2)
	assert.Equal(t, businesshours.ActionClose, msg.triggers[0].Action)
	assert.Equal(t, time.Date(2026, 10, 13, 8, 0, 0, 0, time.UTC), msg.triggers[1].At)
}

func TestWatchModelLoadErrors(t *testing.T) {
	cfg := testWatchConfig()
	cfg.Stats = func(context.Context) (queue.Stats, error) {
		return queue.Stats{}, errors.New("store down")
	}
	msg := NewWatchModel(cfg).load()
	require.Error(t, msg.err)
	assert.Contains(t, msg.err.Error(), "store down")

	cfg = testWatchConfig()
	cfg.Table = func(context.Context) (businesshours.ScheduleTable, error) {
		return businesshours.ScheduleTable{}, errors.New("no table")
	}
	msg = NewWatchModel(cfg).load()
	require.Error(t, msg.err)
	assert.Contains(t, msg.err.Error(), "load schedule")
}

func TestWatchModelWithoutTable(t *testing.T) {
	cfg := testWatchConfig()
	cfg.Table = nil

	msg := NewWatchModel(cfg).load()
	require.NoError(t, msg.err)
	assert.Empty(t, msg.triggers)
}

func TestWatchModelUpdateSnapshot(t *testing.T) {
	m := sized(NewWatchModel(testWatchConfig()))
	assert.Equal(t, "Loading...", m.View())

	m.Update(m.load())

	assert.Equal(t, 4, m.Stats().Total)
	assert.Len(t, m.Triggers(), 2)
	assert.NoError(t, m.Err())

	view := m.View()
	assert.Contains(t, view, "livedesk queue")
	assert.Contains(t, view, "Notification Queue")
	assert.Contains(t, view, "Next Triggers")
	assert.Contains(t, view, "Monday")
}

func TestWatchModelKeepsLastSnapshotOnError(t *testing.T) {
	m := sized(NewWatchModel(testWatchConfig()))
	m.Update(m.load())

	m.Update(snapshotMsg{err: errors.New("store down")})

	assert.Equal(t, 4, m.Stats().Total)
	assert.Error(t, m.Err())
	assert.Contains(t, m.View(), "store down")
}

func TestWatchModelKeys(t *testing.T) {
	m := NewWatchModel(testWatchConfig())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	msg, ok := cmd().(snapshotMsg)
	require.True(t, ok)
	assert.Equal(t, 4, msg.stats.Total)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Nil(t, cmd)
}

func TestWatchModelTickSchedulesLoad(t *testing.T) {
	m := NewWatchModel(testWatchConfig())

	_, cmd := m.Update(tickMsg(watchNow))
	assert.NotNil(t, cmd)
}
