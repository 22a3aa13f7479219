package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/i474232898/caci-forecaster/internal/pipeline"
)

// Runner executes one pipeline run.
type Runner interface {
	RunOnce(ctx context.Context) pipeline.Outcome
}

// Config controls the run cadence.
type Config struct {
	// ChannelID is the telemetry channel; nothing is scheduled without one.
	ChannelID  string
	Interval   time.Duration
	RunTimeout time.Duration
	RunOnStart bool
}

// Scheduler runs the forecast pipeline every Interval for the lifetime of
// the process. Runs may overlap if one outlasts the interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	cfg       Config
	logger    zerolog.Logger

	running atomic.Int64
	ticks   atomic.Int64
}

// New creates a new Scheduler.
func New(cfg Config, runner Runner, logger zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Second
	}
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.cfg.ChannelID == "" {
		s.logger.Warn().Msg("scheduler: no channel configured; nothing to schedule")
		return nil
	}

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 7 * time.Minute
	}

	job := s.scheduler.Every(interval)
	if !s.cfg.RunOnStart {
		job = job.WaitForSchedule()
	}
	if _, err := job.Do(s.tick); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info().Dur("interval", interval).Bool("run_on_start", s.cfg.RunOnStart).Msg("scheduler: started")
	return nil
}

func (s *Scheduler) tick() {
	s.ticks.Add(1)
	if n := s.running.Add(1); n > 1 {
		s.logger.Warn().Int64("in_flight", n).Msg("scheduler: previous run still in flight")
	}
	defer s.running.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()

	out := s.runner.RunOnce(ctx)
	s.logger.Debug().Str("run_id", out.RunID).Bool("ok", out.OK()).
		Dur("took", out.Finished.Sub(out.Started)).Msg("scheduler: run completed")
}

// Running returns the number of runs in flight; zero means idle.
func (s *Scheduler) Running() int {
	return int(s.running.Load())
}

// Ticks returns how many runs have been started.
func (s *Scheduler) Ticks() int {
	return int(s.ticks.Load())
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
