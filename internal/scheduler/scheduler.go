// Package scheduler runs the background jobs on cron schedules.
//
// Jobs are plain structs implementing the Job interface; the scheduler
// times every run, logs the outcome and announces it on the event bus,
// so individual jobs only worry about their own work.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/metron/internal/events"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron     *cron.Cron
	eventMgr *events.Manager
	log      zerolog.Logger
}

// New creates a new scheduler. Schedules use the six-field cron format
// with a leading seconds column.
func New(eventMgr *events.Manager, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		eventMgr: eventMgr,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.execute(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job.Name(), err)
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside its schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.execute(job)
}

// execute runs a job, logs the outcome and announces it on the bus
func (s *Scheduler) execute(job Job) error {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	startTime := time.Now()

	err := job.Run()
	duration := time.Since(startTime)

	data := &events.JobRunData{
		JobName:   job.Name(),
		Status:    "completed",
		Duration:  duration.Seconds(),
		Timestamp: time.Now().UTC(),
	}

	if err != nil {
		data.Status = "failed"
		data.Error = err.Error()
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration_ms", duration).
			Msg("Job failed")
	} else {
		s.log.Debug().
			Str("job", job.Name()).
			Dur("duration_ms", duration).
			Msg("Job completed")
	}

	s.eventMgr.EmitTyped(data.EventType(), "scheduler", data)

	return err
}
