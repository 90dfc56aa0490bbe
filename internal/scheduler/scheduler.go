// Package scheduler wraps gocron for the periodic refresh jobs.  Every job
// runs once eagerly at startup and then on its interval, with singleton
// mode so a slow run swallows the triggers that fire during it instead of
// queueing or overlapping.
package scheduler

import (
	"time"

	"github.com/balasaravanank/PhotonIQ/internal/log"
	"github.com/go-co-op/gocron"
)

// Scheduler drives the registered periodic jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
}

// New creates a new Scheduler.
func New() *Scheduler {
	return &Scheduler{scheduler: gocron.NewScheduler(time.UTC)}
}

// AddJob registers a named periodic job.
func (s *Scheduler) AddJob(name string, interval time.Duration, task func()) error {
	job, err := s.scheduler.Every(interval).
		SingletonMode().
		StartImmediately().
		Do(task)
	if err != nil {
		return err
	}
	job.Tag(name)
	log.Infof("scheduled %s job every %v", name, interval)
	return nil
}

// Start starts the underlying scheduler asynchronously.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
