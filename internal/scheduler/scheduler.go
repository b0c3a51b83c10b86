package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/i474232898/weather-diary/internal/config"
	"github.com/i474232898/weather-diary/internal/observability"
	"github.com/i474232898/weather-diary/internal/weather"
)

// Refresher stores today's weather.
type Refresher interface {
	Refresh(ctx context.Context) (weather.Record, error)
}

// Scheduler runs the daily weather refresh on a cron schedule.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	schedule  string
	next      cron.Schedule
	location  *time.Location
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a Scheduler that evaluates schedule (six fields, seconds first) in loc.
func New(refresher Refresher, schedule string, timeout time.Duration, loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	s := gocron.NewScheduler(loc)
	// A slow tick must not overlap the next one.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		schedule:  schedule,
		location:  loc,
		timeout:   timeout,
		logger:    observability.OrNop(logger),
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	parsed, err := config.CronParser.Parse(s.schedule)
	if err != nil {
		return fmt.Errorf("parse refresh schedule %q: %w", s.schedule, err)
	}
	if _, err := s.scheduler.CronWithSeconds(s.schedule).Do(s.runOnce); err != nil {
		return fmt.Errorf("schedule refresh %q: %w", s.schedule, err)
	}
	s.next = parsed

	s.scheduler.StartAsync()
	s.logger.Info("refresh scheduled",
		zap.String("schedule", s.schedule),
		zap.Time("next_run", s.NextRun(time.Now())))
	return nil
}

// NextRun returns the first scheduled refresh after from, or the zero time
// before Start.
func (s *Scheduler) NextRun(from time.Time) time.Time {
	if s.next == nil {
		return time.Time{}
	}
	return s.next.Next(from.In(s.location))
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// runOnce performs a single refresh. Failures are logged and counted, never retried.
func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	rec, err := s.refresher.Refresh(ctx)
	observability.WeatherRefreshTotal.WithLabelValues(observability.Outcome(err)).Inc()
	if err != nil {
		s.logger.Error("weather refresh failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}
	s.logger.Info("weather refreshed",
		zap.String("date", weather.FormatDate(rec.Date)),
		zap.String("weather", rec.Condition),
		zap.Float64("temperature", rec.Temperature),
		zap.Duration("duration", time.Since(start)))
}
