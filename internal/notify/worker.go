package notify

import (
	"context"
	"sync"
	"time"

	"github.com/manav03panchal/livedesk/internal/config"
	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/logging"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/queue"
)

// Sender delivers a claimed job.
type Sender interface {
	Deliver(ctx context.Context, job *model.NotificationJob) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, job *model.NotificationJob) error

// Deliver calls f.
func (f SenderFunc) Deliver(ctx context.Context, job *model.NotificationJob) error {
	return f(ctx, job)
}

// Worker drains the notification queue. Every loop claims jobs through the
// store, so any number of workers in any number of processes can share one
// queue.
type Worker struct {
	store  queue.Store
	sender Sender

	StaleWindow time.Duration
	CyclePause  time.Duration
	BatchSize   int
	Workers     int
	Now         func() time.Time

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	stats   WorkerStats
}

// WorkerStats counts what the worker did since it was created.
type WorkerStats struct {
	Claimed  int `json:"claimed"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Deferred int `json:"deferred"`
	Flushed  int `json:"flushed"`
}

// NewWorker creates a worker using config.Global.Queue.
func NewWorker(store queue.Store, sender Sender) *Worker {
	cfg := config.Global.Queue
	return &Worker{
		store:       store,
		sender:      sender,
		StaleWindow: cfg.StaleAfter,
		CyclePause:  cfg.CyclePause,
		BatchSize:   cfg.BatchSize,
		Workers:     cfg.Workers,
		Now:         time.Now,
	}
}

// Start launches the claim loops in the background.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())

	n := w.Workers
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go w.loop(w.ctx)
	}
	logging.Info("notification worker started", logging.KeyCount, n)
}

// Stop cancels the claim loops and waits for them to return.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	logging.Info("notification worker stopped")
}

// Stats returns the current counters.
func (w *Worker) Stats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.CyclePause):
		}
	}
}

// RunOnce handles up to BatchSize jobs and returns how many were claimed.
// It stops early when the queue has nothing eligible.
func (w *Worker) RunOnce(ctx context.Context) int {
	batch := w.BatchSize
	if batch < 1 {
		batch = 1
	}

	handled := 0
	for handled < batch {
		if ctx.Err() != nil {
			return handled
		}
		job, err := w.store.ClaimNext(ctx, queue.StaleCutoff(w.now(), w.StaleWindow))
		if err != nil {
			logging.ErrorContext(ctx, "claim failed", logging.KeyError, err)
			return handled
		}
		if job == nil {
			return handled
		}
		handled++
		w.count(func(s *WorkerStats) { s.Claimed++ })
		w.process(ctx, job)
	}
	return handled
}

// process delivers one claimed job. When the user still had scheduled jobs
// they are made due and the claim is released, so the next pass sends
// everything in ts order.
func (w *Worker) process(ctx context.Context, job *model.NotificationJob) {
	flushed, err := w.store.ClearSchedule(ctx, job.UID)
	if err != nil {
		logging.ErrorContext(ctx, "clear schedule failed",
			logging.KeyJobID, job.ID,
			logging.KeyUserID, job.UID,
			logging.KeyError, err)
		w.release(ctx, job)
		return
	}
	if flushed > 0 {
		logging.DebugContext(ctx, "flushed scheduled jobs",
			logging.KeyUserID, job.UID,
			logging.KeyCount, flushed)
		w.count(func(s *WorkerStats) { s.Flushed += flushed })
		w.release(ctx, job)
		return
	}

	start := time.Now()
	err = w.sender.Deliver(ctx, job)
	switch {
	case err == nil:
		if rerr := w.store.Remove(ctx, job.ID); rerr != nil {
			logging.ErrorContext(ctx, "remove delivered job failed",
				logging.KeyJobID, job.ID,
				logging.KeyError, rerr)
		}
		w.count(func(s *WorkerStats) { s.Sent++ })
		logging.DebugContext(ctx, "job delivered",
			logging.KeyJobID, job.ID,
			logging.KeyDuration, time.Since(start).Milliseconds())
	case lderrors.IsRecoverableError(err):
		// The claim stays in place and the job comes back once it is stale.
		w.count(func(s *WorkerStats) { s.Deferred++ })
		logging.WarnContext(ctx, "job delivery deferred",
			logging.KeyJobID, job.ID,
			logging.KeyError, err)
	default:
		if merr := w.store.MarkFailed(ctx, job.ID, err.Error()); merr != nil {
			logging.ErrorContext(ctx, "mark failed job failed",
				logging.KeyJobID, job.ID,
				logging.KeyError, merr)
		}
		w.count(func(s *WorkerStats) { s.Failed++ })
		logging.WarnContext(ctx, "job delivery failed",
			logging.KeyJobID, job.ID,
			logging.KeyError, err)
	}
}

func (w *Worker) release(ctx context.Context, job *model.NotificationJob) {
	if err := w.store.Release(ctx, job.ID); err != nil {
		logging.ErrorContext(ctx, "release failed",
			logging.KeyJobID, job.ID,
			logging.KeyError, err)
	}
}

func (w *Worker) count(fn func(*WorkerStats)) {
	w.mu.Lock()
	fn(&w.stats)
	w.mu.Unlock()
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
