// Package queue defines the per-user notification dispatch queue that
// delivery workers claim jobs from.
package queue

import (
	"context"
	"time"

	"github.com/manav03panchal/livedesk/internal/model"
)

const (
	// Retention is how long a job lives after its ts before the store
	// expires it.
	Retention = 2 * time.Hour

	// DefaultStaleWindow is how long a claim is honored before another
	// worker may take the job over.
	DefaultStaleWindow = 5 * time.Minute
)

// Store is the notification queue. Every operation on a single job is
// atomic with respect to concurrent workers.
type Store interface {
	// Enqueue stores a new job, assigning ID and TS when unset.
	Enqueue(ctx context.Context, job *model.NotificationJob) error

	// ClaimNext atomically picks the oldest eligible job, marks it sending
	// at now and returns the updated job. It returns nil when nothing is
	// eligible. A job is eligible when it is not claimed (or its claim is
	// at or before staleAfter), its schedule is absent or due and it has
	// no error.
	ClaimNext(ctx context.Context, staleAfter time.Time) (*model.NotificationJob, error)

	// Release clears the claim so the job can be claimed again.
	Release(ctx context.Context, id string) error

	// MarkFailed records a terminal error. Failed jobs are never claimed.
	MarkFailed(ctx context.Context, id, reason string) error

	// ClearSchedule makes every scheduled job of uid immediately due and
	// returns how many were changed.
	ClearSchedule(ctx context.Context, uid string) (int, error)

	// ClearQueue deletes every job of uid and returns how many were
	// deleted.
	ClearQueue(ctx context.Context, uid string) (int, error)

	// Remove deletes a delivered job. Removing an unknown id is a no-op.
	Remove(ctx context.Context, id string) error

	// FindByUser returns the jobs of uid, oldest first.
	FindByUser(ctx context.Context, uid string) ([]*model.NotificationJob, error)

	// Stats summarizes the queue relative to staleAfter.
	Stats(ctx context.Context, staleAfter time.Time) (Stats, error)
}

// Stats counts queued jobs by state.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Scheduled int `json:"scheduled"`
	Sending   int `json:"sending"`
	Stale     int `json:"stale"`
	Failed    int `json:"failed"`
}

// StaleCutoff returns the staleAfter bound for a claim window.
func StaleCutoff(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = DefaultStaleWindow
	}
	return now.Add(-window)
}

// Eligible reports whether job may be claimed at now.
func Eligible(job *model.NotificationJob, now, staleAfter time.Time) bool {
	if job.Error != nil {
		return false
	}
	if job.Sending != nil && job.Sending.After(staleAfter) {
		return false
	}
	if job.Schedule != nil && job.Schedule.After(now) {
		return false
	}
	return true
}

// ExpiresAt returns when the store may drop job.
func ExpiresAt(job *model.NotificationJob) time.Time {
	return job.TS.Add(Retention)
}

// Job states as reported by State.
const (
	StatePending   = "pending"
	StateScheduled = "scheduled"
	StateSending   = "sending"
	StateStale     = "stale"
	StateFailed    = "failed"
)

// State classifies job at now relative to the staleAfter cutoff.
func State(job *model.NotificationJob, now, staleAfter time.Time) string {
	switch {
	case job.Error != nil:
		return StateFailed
	case job.Sending != nil && !job.Sending.After(staleAfter):
		return StateStale
	case job.Sending != nil:
		return StateSending
	case job.Schedule != nil && job.Schedule.After(now):
		return StateScheduled
	default:
		return StatePending
	}
}

// Summarize computes Stats over jobs.
func Summarize(jobs []*model.NotificationJob, now, staleAfter time.Time) Stats {
	var s Stats
	for _, j := range jobs {
		s.Total++
		switch State(j, now, staleAfter) {
		case StateFailed:
			s.Failed++
		case StateStale:
			s.Stale++
		case StateSending:
			s.Sending++
		case StateScheduled:
			s.Scheduled++
		default:
			s.Pending++
		}
	}
	return s
}
