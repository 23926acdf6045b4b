package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is a task repeated on a fixed interval.
type Job struct {
	Name       string
	Interval   time.Duration
	RunAtStart bool
	Run        func(ctx context.Context) error
}

// RunPeriodic drives every job on its own ticker until ctx is cancelled.
// A failing run is logged and retried on the next tick.
func RunPeriodic(ctx context.Context, logger *zap.Logger, jobs ...Job) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		if job.Interval <= 0 || job.Run == nil {
			logger.Warn("periodic job disabled", zap.String("job", job.Name))
			continue
		}
		job := job
		g.Go(func() error {
			return loop(ctx, logger.With(zap.String("job", job.Name)), job)
		})
	}
	return g.Wait()
}

func loop(ctx context.Context, logger *zap.Logger, job Job) error {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	logger.Info("periodic job started", zap.Duration("interval", job.Interval))
	if job.RunAtStart {
		runJob(ctx, logger, job)
	}
	for {
		select {
		case <-ctx.Done():
			logger.Info("periodic job stopped")
			return nil
		case <-ticker.C:
			runJob(ctx, logger, job)
		}
	}
}

func runJob(ctx context.Context, logger *zap.Logger, job Job) {
	if err := job.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("periodic job failed", zap.Error(err))
	}
}
