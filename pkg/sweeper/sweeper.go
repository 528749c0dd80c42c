// Package sweeper runs periodic expiry sweeps on a cron schedule.
package sweeper

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const logPrefix = "sweeper:sweeper"

// Job removes expired entries and returns how many it removed.
type Job struct {
	Name  string
	Sweep func() int
}

// Sweeper schedules Jobs at a fixed interval.
type Sweeper struct {
	mu       sync.Mutex
	cron     *cron.Cron
	interval time.Duration
	jobs     []Job
	onSweep  func(name string, removed int)
	running  bool
}

// New creates a Sweeper. onSweep is called after every job run and may be nil.
func New(interval time.Duration, onSweep func(name string, removed int)) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		interval: interval,
		onSweep:  onSweep,
	}
}

// Interval returns the sweep interval.
func (s *Sweeper) Interval() time.Duration { return s.interval }

// Add schedules job.
func (s *Sweeper) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.run(job) }); err != nil {
		return fmt.Errorf("%s - schedule %s: %w", logPrefix, job.Name, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// RunNow runs every job once synchronously.
func (s *Sweeper) RunNow() {
	s.mu.Lock()
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()
	for _, job := range jobs {
		s.run(job)
	}
}

func (s *Sweeper) run(job Job) {
	removed := job.Sweep()
	if removed > 0 {
		slog.Debug(fmt.Sprintf("%s - %s removed %d expired entries", logPrefix, job.Name, removed))
	}
	if s.onSweep != nil {
		s.onSweep(job.Name, removed)
	}
}

// Start begins scheduling. Calling Start twice is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}
