// Package scheduler provides cron-based trigger registration for the daemon.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/manav03panchal/livedesk/internal/logging"
)

// parser accepts the six-field (seconds first) specs and descriptors such
// as "@every 1m".
var parser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Job is a named cron job registered as part of a group.
type Job struct {
	Name string
	Spec string
	Run  func()
}

// Scheduler manages scheduled jobs using cron.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	groups  map[string]map[string]cron.EntryID // group -> job name -> entry
	running bool
}

// NewScheduler creates a scheduler firing in loc. A nil loc means the
// server's local time.
func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:   cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
		groups: make(map[string]map[string]cron.EntryID),
	}
}

// Start starts the cron loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	logging.DebugLog("scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	logging.DebugLog("scheduler stopped")
}

// ValidateSpec reports whether spec parses.
func ValidateSpec(spec string) error {
	_, err := parser.Parse(spec)
	return err
}

// AddJob adds an ungrouped job to the scheduler.
func (s *Scheduler) AddJob(spec string, job func()) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, job)
}

// RemoveJob removes a job from the scheduler.
func (s *Scheduler) RemoveJob(id cron.EntryID) {
	s.cron.Remove(id)
}

// ReplaceGroup swaps every job of group for jobs. All specs are parsed
// before anything is removed, so an invalid spec leaves the group as it was.
func (s *Scheduler) ReplaceGroup(group string, jobs []Job) error {
	schedules := make([]cron.Schedule, len(jobs))
	for i, job := range jobs {
		sched, err := parser.Parse(job.Spec)
		if err != nil {
			return fmt.Errorf("invalid spec %q for job %s: %w", job.Spec, job.Name, err)
		}
		schedules[i] = sched
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.groups[group] {
		s.cron.Remove(id)
	}

	entries := make(map[string]cron.EntryID, len(jobs))
	for i, job := range jobs {
		entries[job.Name] = s.cron.Schedule(schedules[i], cron.FuncJob(job.Run))
	}
	s.groups[group] = entries

	logging.DebugLog("scheduler group replaced", "group", group, logging.KeyCount, len(jobs))
	return nil
}

// RemoveGroup removes every job registered under group.
func (s *Scheduler) RemoveGroup(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.groups[group] {
		s.cron.Remove(id)
	}
	delete(s.groups, group)
}

// GroupJobs returns the job names registered under group, sorted.
func (s *Scheduler) GroupJobs(group string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.groups[group]))
	for name := range s.groups[group] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns all scheduled entries.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// NextRun returns the next scheduled run time for any job.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}

	next := entries[0].Next
	for _, e := range entries[1:] {
		if next.IsZero() || (!e.Next.IsZero() && e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

// Next returns the first activation of spec strictly after from, in the
// location of from.
func Next(spec string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}
