// Package scheduler runs the background jobs: live quote refreshes during
// market hours and the end-of-day snapshot update after the close. Schedules
// are built from explicit configuration and evaluated in the market timezone.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/config"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs on cron schedules
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a new scheduler whose schedules fire in the given location
func New(loc *time.Location, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		log:  log.With().Str("component", "scheduler").Logger(),
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
		s.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			s.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// QuoteSchedule builds the market-hours quote refresh schedule from config:
// every N minutes, weekdays, during the trading session hours. The job still
// checks the calendar at run time, so the hour bounds only trim wakeups.
func QuoteSchedule(cfg *config.Config) string {
	return fmt.Sprintf("*/%d 9-16 * * MON-FRI", cfg.QuoteRefreshMinutes)
}

// EODSchedule builds the end-of-day update schedule from config.
func EODSchedule(cfg *config.Config) string {
	return fmt.Sprintf("%d %d * * MON-FRI", cfg.EODMinute, cfg.EODHour)
}
