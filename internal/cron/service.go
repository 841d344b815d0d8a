package cron

import (
	"context"
	"fmt"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/angelmondragon/payoutledger/pkg/logger"
	"github.com/angelmondragon/payoutledger/pkg/metrics"
)

const defaultInterval = time.Hour

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Interval drives jobs registered without a schedule.
	Interval time.Duration
}

// Service executes registered cron jobs on their schedules.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run schedules every job in UTC and blocks until the context is canceled,
// then waits for running jobs to return.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	scheduler := robfigcron.New(
		robfigcron.WithLocation(time.UTC),
		robfigcron.WithChain(robfigcron.SkipIfStillRunning(robfigcron.DiscardLogger)),
	)
	for _, e := range s.registry.entries {
		spec := e.schedule
		if spec == "" {
			spec = "@every " + s.interval.String()
		}
		job := e.job
		if _, err := scheduler.AddFunc(spec, func() { _ = s.runJob(ctx, job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "schedule": spec}), "job scheduled")
	}

	scheduler.Start()
	<-ctx.Done()
	s.logg.Info(ctx, "cron service context canceled")
	<-scheduler.Stop().Done()
	return ctx.Err()
}

// RunOnce runs the named job immediately under its lock.
func (s *Service) RunOnce(ctx context.Context, name string) error {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.runJob(ctx, job)
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")

	locked, err := s.lock.Acquire(jobCtx, job.Name())
	if err != nil {
		s.logg.Error(jobCtx, "lock acquire failed", err)
		s.recordFailure(job.Name())
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(jobCtx, "another cron instance is running this job; skipping")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(jobCtx, job.Name()); relErr != nil {
			s.logg.Error(jobCtx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err = job.Run(jobCtx)
	duration := time.Since(start)
	s.observeDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.recordFailure(job.Name())
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	s.recordSuccess(job.Name())
	return nil
}

func (s *Service) observeDuration(job string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(job, duration)
}

func (s *Service) recordSuccess(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncSuccess(job)
}

func (s *Service) recordFailure(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncFailure(job)
}
