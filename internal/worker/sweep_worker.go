package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-ticket-bot/internal/cache"
	"github.com/spec-kit/guild-ticket-bot/internal/config"
	"github.com/spec-kit/guild-ticket-bot/internal/service"
)

// SweepJobs returns the maintenance loops: the tenant config refresh and the
// three ticket sweeps.
func SweepJobs(lc config.LifecycleConfig, configs *cache.TenantConfigCache, sweeper *service.SweeperService) []Job {
	sweep := func(name string) func(context.Context) error {
		return func(ctx context.Context) error {
			_, err := sweeper.RunOnce(ctx, name)
			return err
		}
	}
	return []Job{
		{Name: "config_refresh", Interval: lc.ConfigRefreshInterval, Run: configs.Refresh},
		{Name: "sweep_" + service.SweepOrphans, Interval: lc.OrphanSweepInterval, Run: sweep(service.SweepOrphans)},
		{Name: "sweep_" + service.SweepInactivity, Interval: lc.InactiveSweepInterval, Run: sweep(service.SweepInactivity)},
		{Name: "sweep_" + service.SweepRetention, Interval: lc.RetentionSweepInterval, Run: sweep(service.SweepRetention)},
	}
}

// StartSweepWorker runs the maintenance loops until ctx ends.
func StartSweepWorker(ctx context.Context, logger *zap.Logger, lc config.LifecycleConfig, configs *cache.TenantConfigCache, sweeper *service.SweeperService) error {
	return RunPeriodic(ctx, logger, SweepJobs(lc, configs, sweeper)...)
}
