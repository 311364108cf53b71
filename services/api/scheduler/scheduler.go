package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/observability"
)

// IngestInterval is how often the ingestion job fires.
const IngestInterval = time.Minute

const retentionInterval = time.Hour

// Runner is one scheduled unit of work; the result is not consulted.
type Runner interface {
	Run(ctx context.Context)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context)

func (f RunnerFunc) Run(ctx context.Context) { f(ctx) }

// Pruner deletes rows older than a cutoff.
type Pruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs ingestion on a fixed interval and, optionally, retention.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ingest    Runner
	interval  time.Duration
	pruner    Pruner
	maxAge    time.Duration
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithInterval overrides IngestInterval; used by tests.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithRetention enables an hourly prune of rows older than maxAge.
func WithRetention(p Pruner, maxAge time.Duration) Option {
	return func(s *Scheduler) {
		s.pruner = p
		s.maxAge = maxAge
	}
}

// New creates a Scheduler for the ingestion runner.
func New(ingest Runner, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		ingest:    ingest,
		interval:  IngestInterval,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start schedules the jobs and starts the scheduler. The ingestion job fires
// immediately, which provides the eager startup run.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().StartImmediately().Do(func() {
		s.ingest.Run(s.ctx)
	})
	if err != nil {
		return err
	}

	if s.pruner != nil && s.maxAge > 0 {
		_, err = s.scheduler.Every(retentionInterval).SingletonMode().Do(func() {
			Prune(s.ctx, s.pruner, s.maxAge, s.logger)
		})
		if err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started",
		zap.Duration("ingest_interval", s.interval),
		zap.Duration("retention_max_age", s.maxAge),
	)
	return nil
}

// Stop cancels in-flight runs and stops future ones.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Prune performs one retention pass and logs the result.
func Prune(ctx context.Context, p Pruner, maxAge time.Duration, logger *zap.Logger) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	n, err := p.PruneOlderThan(ctx, cutoff)
	if err != nil {
		logger.Error("retention prune failed", zap.Error(err), zap.Time("cutoff", cutoff))
		return 0, err
	}
	observability.RetentionPrunedRowsTotal.Add(float64(n))
	logger.Info("retention prune complete", zap.Int64("rows", n), zap.Time("cutoff", cutoff))
	return n, nil
}
