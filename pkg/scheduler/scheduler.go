// Package scheduler runs jobs on fixed intervals.
//
// A Scheduler is an explicitly owned value: jobs are registered by id, the
// scheduler is started once with Start and torn down with Stop. Registering
// a job under an existing id replaces the previous registration. At most one
// invocation of a given job runs at a time; ticks that arrive while the job
// is still running are skipped.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var ErrStopped = errors.New("scheduler stopped")

type Job struct {
	ID       string
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

type entry struct {
	job     Job
	cancel  context.CancelFunc
	// running is shared by every registration of the same job id.
	running *atomic.Bool
	done    chan struct{}
}

type Scheduler struct {
	log *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*entry
	guards  map[string]*atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
	runs    sync.WaitGroup
}

func New(log *slog.Logger) *Scheduler {
	return &Scheduler{log: log, jobs: map[string]*entry{}, guards: map[string]*atomic.Bool{}}
}

// Add registers job, replacing any job with the same id. If the scheduler is
// running the job starts ticking immediately.
func (s *Scheduler) Add(job Job) error {
	if job.ID == "" || job.Run == nil || job.Interval <= 0 {
		return errors.New("scheduler: job needs an id, a run func and a positive interval")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}

	if old, ok := s.jobs[job.ID]; ok {
		s.stopEntry(old)
		s.log.Info("scheduler job replaced", "job_id", job.ID)
	}
	e := &entry{job: job, running: s.guard(job.ID)}
	s.jobs[job.ID] = e
	if s.started {
		s.startEntry(e)
	}
	return nil
}

func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.jobs[id]; ok {
		s.stopEntry(e)
		delete(s.jobs, id)
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	for _, e := range s.jobs {
		s.startEntry(e)
	}
	s.log.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop halts all tickers and waits for in-flight invocations to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for _, e := range s.jobs {
		s.stopEntry(e)
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.runs.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, e.job)
	}
	return out
}

// guard returns the in-flight flag for id. It outlives Remove and replacement
// so a run still in progress blocks the next registration's ticks.
// Must be called with s.mu held.
func (s *Scheduler) guard(id string) *atomic.Bool {
	g, ok := s.guards[id]
	if !ok {
		g = &atomic.Bool{}
		s.guards[id] = g
	}
	return g
}

// startEntry must be called with s.mu held.
func (s *Scheduler) startEntry(e *entry) {
	ctx, cancel := context.WithCancel(s.ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go s.loop(ctx, s.ctx, e)
}

// stopEntry must be called with s.mu held. It does not wait for a running
// invocation; Stop does.
func (s *Scheduler) stopEntry(e *entry) {
	if e.cancel != nil {
		e.cancel()
		<-e.done
		e.cancel = nil
	}
}

// loop ticks until ctx is done. Invocations run under runCtx so that
// replacing a job does not cancel a run already in flight.
func (s *Scheduler) loop(ctx, runCtx context.Context, e *entry) {
	defer close(e.done)
	t := time.NewTicker(e.job.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !e.running.CompareAndSwap(false, true) {
				s.log.Warn("scheduler job skipped, previous run still in progress", "job_id", e.job.ID, "job_name", e.job.Name)
				continue
			}
			s.runs.Add(1)
			go func() {
				defer s.runs.Done()
				defer e.running.Store(false)
				defer func() {
					if r := recover(); r != nil {
						s.log.Error("scheduler job panicked", "job_id", e.job.ID, "panic", r)
					}
				}()
				e.job.Run(runCtx)
			}()
		}
	}
}
