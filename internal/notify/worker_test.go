package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/queue"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memQueue is an in-memory queue.Store. Claims are serialized by mu, which
// gives the same exclusivity the real stores get from their atomic
// find-and-modify.
type memQueue struct {
	mu   sync.Mutex
	now  func() time.Time
	seq  int
	jobs []*model.NotificationJob
}

func newMemQueue(now func() time.Time) *memQueue {
	return &memQueue{now: now}
}

func (q *memQueue) Enqueue(_ context.Context, job *model.NotificationJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%03d", q.seq)
	}
	if job.TS.IsZero() {
		job.TS = q.now().Add(time.Duration(q.seq) * time.Millisecond)
	}
	cp := *job
	q.jobs = append(q.jobs, &cp)
	return nil
}

func (q *memQueue) ClaimNext(_ context.Context, staleAfter time.Time) (*model.NotificationJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for _, j := range q.jobs {
		if queue.Eligible(j, now, staleAfter) {
			t := now
			j.Sending = &t
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (q *memQueue) find(id string) *model.NotificationJob {
	for _, j := range q.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (q *memQueue) Release(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j := q.find(id); j != nil {
		j.Sending = nil
	}
	return nil
}

func (q *memQueue) MarkFailed(_ context.Context, id, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j := q.find(id); j != nil {
		j.Sending = nil
		j.Error = &reason
	}
	return nil
}

func (q *memQueue) ClearSchedule(_ context.Context, uid string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, j := range q.jobs {
		if j.UID == uid && j.Schedule != nil {
			j.Schedule = nil
			n++
		}
	}
	return n, nil
}

func (q *memQueue) ClearQueue(_ context.Context, uid string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.jobs[:0]
	n := 0
	for _, j := range q.jobs {
		if j.UID == uid {
			n++
			continue
		}
		kept = append(kept, j)
	}
	q.jobs = kept
	return n, nil
}

func (q *memQueue) Remove(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, j := range q.jobs {
		if j.ID == id {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *memQueue) FindByUser(_ context.Context, uid string) ([]*model.NotificationJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*model.NotificationJob
	for _, j := range q.jobs {
		if j.UID == uid {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (q *memQueue) Stats(_ context.Context, staleAfter time.Time) (queue.Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return queue.Summarize(q.jobs, q.now(), staleAfter), nil
}

func (q *memQueue) get(id string) *model.NotificationJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j := q.find(id); j != nil {
		cp := *j
		return &cp
	}
	return nil
}

func (q *memQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// recorder is a Sender that records delivered job ids.
type recorder struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (r *recorder) Deliver(_ context.Context, job *model.NotificationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, job.ID)
	return r.err
}

func (r *recorder) delivered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func newTestWorker(store queue.Store, sender Sender, clk *testClock) *Worker {
	w := NewWorker(store, sender)
	w.StaleWindow = 5 * time.Minute
	w.CyclePause = 10 * time.Millisecond
	w.BatchSize = 5
	w.Workers = 1
	w.Now = clk.Now
	return w
}

func enqueue(t *testing.T, q queue.Store, uid string, schedule *time.Time) *model.NotificationJob {
	t.Helper()
	job := model.NewNotificationJob(uid, "", "", model.NotificationItem{Type: model.ItemPush})
	job.Schedule = schedule
	require.NoError(t, q.Enqueue(context.Background(), job))
	return job
}

func TestWorkerDeliversAndRemoves(t *testing.T) {
	clk := newTestClock()
	q := newMemQueue(clk.Now)
	a := enqueue(t, q, "u1", nil)
	b := enqueue(t, q, "u2", nil)

	rec := &recorder{}
	w := newTestWorker(q, rec, clk)

	assert.Equal(t, 2, w.RunOnce(context.Background()))
	assert.Equal(t, []string{a.ID, b.ID}, rec.delivered())
	assert.Equal(t, 0, q.len())

	stats := w.Stats()
	assert.Equal(t, 2, stats.Claimed)
	assert.Equal(t, 2, stats.Sent)
	assert.Zero(t, stats.Failed)

	assert.Equal(t, 0, w.RunOnce(context.Background()), "idle pass claims nothing")
}

func TestWorkerMarksFailed(t *testing.T) {
	clk := newTestClock()
	q := newMemQueue(clk.Now)
	job := enqueue(t, q, "u1", nil)

	w := newTestWorker(q, &recorder{err: errors.New("boom")}, clk)
	assert.Equal(t, 1, w.RunOnce(context.Background()))

	got := q.get(job.ID)
	require.NotNil(t, got)
	assert.Equal(t, "boom", got.ErrorMessage())
	assert.False(t, got.IsClaimed())
	assert.Equal(t, 1, w.Stats().Failed)

	clk.Advance(time.Hour)
	assert.Equal(t, 0, w.RunOnce(context.Background()), "failed jobs are never claimed again")
}

func TestWorkerDefersRecoverableFailure(t *testing.T) {
	clk := newTestClock()
	q := newMemQueue(clk.Now)
	job := enqueue(t, q, "u1", nil)

	rec := &recorder{err: lderrors.NewRecoverableError("webhook host unavailable", errors.New("open"), 0)}
	w := newTestWorker(q, rec, clk)

	assert.Equal(t, 1, w.RunOnce(context.Background()))
	got := q.get(job.ID)
	require.NotNil(t, got)
	assert.True(t, got.IsClaimed(), "claim is kept until it goes stale")
	assert.False(t, got.IsFailed())
	assert.Equal(t, 1, w.Stats().Deferred)

	assert.Equal(t, 0, w.RunOnce(context.Background()))

	clk.Advance(5 * time.Minute)
	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()
	assert.Equal(t, 1, w.RunOnce(context.Background()), "stale claim is taken over")
	assert.Equal(t, 0, q.len())
	assert.Equal(t, []string{job.ID, job.ID}, rec.delivered())
}

func TestWorkerFlushesScheduledJobsFirst(t *testing.T) {
	clk := newTestClock()
	q := newMemQueue(clk.Now)
	later := clk.Now().Add(time.Hour)
	first := enqueue(t, q, "u1", nil)
	scheduled := enqueue(t, q, "u1", &later)
	other := enqueue(t, q, "u2", nil)

	rec := &recorder{}
	w := newTestWorker(q, rec, clk)

	assert.Equal(t, 4, w.RunOnce(context.Background()))
	assert.Equal(t, []string{first.ID, scheduled.ID, other.ID}, rec.delivered())

	stats := w.Stats()
	assert.Equal(t, 1, stats.Flushed)
	assert.Equal(t, 3, stats.Sent)
	assert.Equal(t, 4, stats.Claimed)
}

func TestWorkerRespectsBatchSize(t *testing.T) {
	clk := newTestClock()
	q := newMemQueue(clk.Now)
	for i := 0; i < 3; i++ {
		enqueue(t, q, fmt.Sprintf("u%d", i), nil)
	}

	w := newTestWorker(q, &recorder{}, clk)
	w.BatchSize = 2

	assert.Equal(t, 2, w.RunOnce(context.Background()))
	assert.Equal(t, 1, q.len())
	assert.Equal(t, 1, w.RunOnce(context.Background()))
}

func TestWorkerSkipsFutureSchedule(t *testing.T) {
	clk := newTestClock()
	q := newMemQueue(clk.Now)
	later := clk.Now().Add(time.Minute)
	job := enqueue(t, q, "u1", &later)

	rec := &recorder{}
	w := newTestWorker(q, rec, clk)
	assert.Equal(t, 0, w.RunOnce(context.Background()))
	assert.Empty(t, rec.delivered())

	// Once due, the first claim clears the job's own schedule and releases
	// it; the second claim delivers it.
	clk.Advance(time.Minute)
	assert.Equal(t, 2, w.RunOnce(context.Background()))
	assert.Equal(t, []string{job.ID}, rec.delivered())
	assert.Equal(t, 0, q.len())

	stats := w.Stats()
	assert.Equal(t, 1, stats.Flushed)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 2, stats.Claimed)
}

func TestWorkerStartStop(t *testing.T) {
	q := newMemQueue(time.Now)
	const total = 40
	for i := 0; i < total; i++ {
		enqueue(t, q, fmt.Sprintf("u%d", i%7), nil)
	}

	rec := &recorder{}
	w := NewWorker(q, rec)
	w.CyclePause = 5 * time.Millisecond
	w.BatchSize = 3
	w.Workers = 4

	w.Start()
	w.Start()
	require.Eventually(t, func() bool { return w.Stats().Sent == total }, 5*time.Second, 10*time.Millisecond)
	w.Stop()
	w.Stop()

	seen := make(map[string]int)
	for _, id := range rec.delivered() {
		seen[id]++
	}
	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s delivered more than once", id)
	}
	assert.Equal(t, 0, q.len())
}

func TestSenderFunc(t *testing.T) {
	var got string
	s := SenderFunc(func(_ context.Context, job *model.NotificationJob) error {
		got = job.ID
		return nil
	})
	require.NoError(t, s.Deliver(context.Background(), &model.NotificationJob{ID: "x"}))
	assert.Equal(t, "x", got)
}
