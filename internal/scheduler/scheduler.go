package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron and tracks its jobs by name.
type Scheduler struct {
	mu   sync.RWMutex
	c    *cron.Cron
	jobs map[string]cron.EntryID
}

// New creates a stopped Scheduler. Call Start to activate it.
func New() *Scheduler {
	return &Scheduler{
		c:    cron.New(),
		jobs: make(map[string]cron.EntryID),
	}
}

// SetJob registers fn under name on the given cron expression, replacing any
// job previously registered under the same name.
func (s *Scheduler) SetJob(name, expr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.c.AddFunc(expr, fn)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if old, ok := s.jobs[name]; ok {
		s.c.Remove(old)
	}
	s.jobs[name] = id
	slog.Info("scheduler: job set", "job", name, "cron", expr)
	return nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// NextRunAt returns the next scheduled time of the named job, or nil if the
// job does not exist or the scheduler has not been started.
func (s *Scheduler) NextRunAt(name string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.jobs[name]
	if !ok {
		return nil
	}
	entry := s.c.Entry(id)
	if entry.ID == 0 || entry.Next.IsZero() {
		return nil
	}
	t := entry.Next
	return &t
}
