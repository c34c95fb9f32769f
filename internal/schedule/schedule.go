// Package schedule runs digest jobs on cron schedules.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single scheduled run.
const DefaultJobTimeout = 30 * time.Minute

// Job represents a scheduled task.
type Job func(ctx context.Context) error

// JobInfo contains information about a scheduled job.
type JobInfo struct {
	Name     string
	Schedule string
	NextRun  time.Time
	LastRun  time.Time
}

type entry struct {
	id   cron.EntryID
	spec string
}

// Scheduler manages periodic jobs. Jobs never run concurrently with each
// other, since they share one database writer.
type Scheduler struct {
	cron     *cron.Cron
	jobs     map[string]entry
	timezone *time.Location
	timeout  time.Duration
	running  sync.Mutex
}

// New creates a new scheduler with the given timezone.
func New(timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		jobs:     make(map[string]entry),
		timezone: loc,
		timeout:  DefaultJobTimeout,
	}, nil
}

// AddJob adds a job with a standard five-field cron schedule, e.g. "0 7 * * *".
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}
	id, err := s.cron.AddFunc(spec, s.wrap(name, job))
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	s.jobs[name] = entry{id: id, spec: spec}
	slog.Info("job scheduled", "job", name, "schedule", spec, "timezone", s.timezone.String())
	return nil
}

func (s *Scheduler) wrap(name string, job Job) func() {
	return func() {
		s.running.Lock()
		defer s.running.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		slog.Info("job started", "job", name)
		start := time.Now()
		if err := job(ctx); err != nil {
			slog.Error("job failed", "job", name, "err", err)
			return
		}
		slog.Info("job completed", "job", name, "elapsed", time.Since(start).Round(time.Millisecond))
	}
}

// RemoveJob removes a scheduled job.
func (s *Scheduler) RemoveJob(name string) {
	if e, ok := s.jobs[name]; ok {
		s.cron.Remove(e.id)
		delete(s.jobs, name)
		slog.Info("job removed", "job", name)
	}
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunNow executes job immediately, waiting for any scheduled job in progress.
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	s.running.Lock()
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	slog.Info("running job now", "job", name)
	return job(ctx)
}

// ListJobs returns the scheduled jobs ordered by name.
func (s *Scheduler) ListJobs() []JobInfo {
	infos := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		ce := s.cron.Entry(e.id)
		infos = append(infos, JobInfo{
			Name:     name,
			Schedule: e.spec,
			NextRun:  ce.Next,
			LastRun:  ce.Prev,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// NextRun returns the next activation of spec after from in the scheduler's
// timezone.
func (s *Scheduler) NextRun(spec string, from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from.In(s.timezone)), nil
}
