package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/manav03panchal/livedesk/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestStaleCutoff(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(-5*time.Minute), StaleCutoff(now, 0))
	assert.Equal(t, now.Add(-time.Minute), StaleCutoff(now, time.Minute))
}

func TestEligible(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	stale := StaleCutoff(now, DefaultStaleWindow)

	tests := []struct {
		name string
		job  model.NotificationJob
		want bool
	}{
		{"fresh", model.NotificationJob{}, true},
		{"failed", model.NotificationJob{Error: ptr("boom")}, false},
		{"claimed recently", model.NotificationJob{Sending: ptr(now.Add(-time.Minute))}, false},
		{"claim at cutoff", model.NotificationJob{Sending: ptr(stale)}, true},
		{"claim expired", model.NotificationJob{Sending: ptr(now.Add(-10 * time.Minute))}, true},
		{"scheduled future", model.NotificationJob{Schedule: ptr(now.Add(time.Hour))}, false},
		{"scheduled now", model.NotificationJob{Schedule: ptr(now)}, true},
		{"scheduled past", model.NotificationJob{Schedule: ptr(now.Add(-time.Hour))}, true},
		{
			"stale claim but failed",
			model.NotificationJob{Sending: ptr(now.Add(-time.Hour)), Error: ptr("x")},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Eligible(&tt.job, now, stale))
		})
	}
}

func TestExpiresAt(t *testing.T) {
	ts := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, ts.Add(2*time.Hour), ExpiresAt(&model.NotificationJob{TS: ts}))
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	stale := StaleCutoff(now, DefaultStaleWindow)

	jobs := []*model.NotificationJob{
		{},
		{},
		{Schedule: ptr(now.Add(time.Hour))},
		{Schedule: ptr(now.Add(-time.Hour))},
		{Sending: ptr(now)},
		{Sending: ptr(now.Add(-time.Hour))},
		{Error: ptr("bad address")},
	}

	assert.Equal(t, Stats{
		Total:     7,
		Pending:   3,
		Scheduled: 1,
		Sending:   1,
		Stale:     1,
		Failed:    1,
	}, Summarize(jobs, now, stale))
}

func TestState(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	stale := StaleCutoff(now, DefaultStaleWindow)

	assert.Equal(t, StatePending, State(&model.NotificationJob{}, now, stale))
	assert.Equal(t, StateScheduled, State(&model.NotificationJob{Schedule: ptr(now.Add(time.Second))}, now, stale))
	assert.Equal(t, StateSending, State(&model.NotificationJob{Sending: ptr(now)}, now, stale))
	assert.Equal(t, StateStale, State(&model.NotificationJob{Sending: ptr(stale)}, now, stale))
	assert.Equal(t, StateFailed, State(&model.NotificationJob{Sending: ptr(now), Error: ptr("x")}, now, stale))
}
