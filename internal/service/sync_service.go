package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-ticket-bot/internal/cache"
	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	"github.com/spec-kit/guild-ticket-bot/internal/platform"
	"github.com/spec-kit/guild-ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/guild-ticket-bot/pkg/util/errorutil"
)

// intakeScanDepth is how many recent intake messages are checked for an
// existing prompt.
const intakeScanDepth = 10

// SyncService reconciles tenant configuration with the platform.
type SyncService struct {
	configs  repository.TenantConfigRepository
	tickets  repository.TicketRepository
	history  repository.TicketHistoryRepository
	cache    *cache.TenantConfigCache
	platform platform.Client
	assets   Assets
	logger   *zap.Logger
	now      func() time.Time
}

// SyncDependencies bundles collaborators for the sync service.
type SyncDependencies struct {
	Configs  repository.TenantConfigRepository
	Tickets  repository.TicketRepository
	History  repository.TicketHistoryRepository // optional
	Cache    *cache.TenantConfigCache
	Platform platform.Client
	Assets   Assets
	Logger   *zap.Logger
}

// NewSyncService constructs the service.
func NewSyncService(deps SyncDependencies) *SyncService {
	return &SyncService{
		configs:  deps.Configs,
		tickets:  deps.Tickets,
		history:  deps.History,
		cache:    deps.Cache,
		platform: deps.Platform,
		assets:   deps.Assets,
		logger:   deps.Logger,
		now:      time.Now,
	}
}

// SyncAll force-refreshes the cache and ensures every enabled tenant has its
// intake prompt. Per-tenant failures are logged and skipped.
func (s *SyncService) SyncAll(ctx context.Context) {
	for _, cfg := range s.cache.All(ctx, true) {
		if !cfg.Enabled || cfg.IntakeChannelID == "" {
			continue
		}
		if _, err := s.EnsurePrompt(ctx, cfg); err != nil {
			s.logger.Error("failed to ensure intake prompt",
				zap.String("tenant_id", cfg.TenantID),
				zap.String("channel_id", cfg.IntakeChannelID),
				zap.Error(err))
		}
	}
}

// EnsurePrompt posts the entry-point prompt unless one of the most recent
// intake messages already is one. It reports whether a prompt was posted.
func (s *SyncService) EnsurePrompt(ctx context.Context, cfg domain.TenantConfig) (bool, error) {
	if cfg.IntakeChannelID == "" {
		return false, nil
	}
	recent, err := s.platform.FetchRecentMessages(ctx, cfg.IntakeChannelID, intakeScanDepth, "")
	if errors.Is(err, platform.ErrNotFound) {
		s.logger.Warn("intake channel not found", zap.String("tenant_id", cfg.TenantID), zap.String("channel_id", cfg.IntakeChannelID))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("scan intake channel: %w", err)
	}
	for _, m := range recent {
		if isIntakePrompt(m) {
			return false, nil
		}
	}

	if _, err := s.platform.SendMessage(ctx, cfg.IntakeChannelID, intakePrompt(s.assets, s.now())); err != nil {
		return false, fmt.Errorf("post intake prompt: %w", err)
	}
	s.logger.Info("intake prompt posted", zap.String("tenant_id", cfg.TenantID), zap.String("channel_id", cfg.IntakeChannelID))
	return true, nil
}

// ReloadTenant refreshes one tenant in the cache and re-ensures its prompt.
func (s *SyncService) ReloadTenant(ctx context.Context, tenantID string) (domain.TenantConfig, error) {
	cfg, ok, err := s.cache.Reload(ctx, tenantID)
	if err != nil {
		return domain.TenantConfig{}, apperrors.NewInternalError("Failed to reload ticket configuration.", err)
	}
	if !ok {
		return domain.TenantConfig{}, apperrors.NewNotFound("Ticket configuration not found.")
	}
	if cfg.Enabled {
		if _, err := s.EnsurePrompt(ctx, cfg); err != nil {
			s.logger.Warn("reload could not ensure intake prompt", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	return cfg, nil
}

// DecommissionTenant removes every trace of a tenant: its config, all its
// ticket records, its history and its cache entry.
func (s *SyncService) DecommissionTenant(ctx context.Context, tenantID string) (int64, error) {
	if err := s.configs.Delete(ctx, tenantID); err != nil {
		return 0, fmt.Errorf("delete config of %s: %w", tenantID, err)
	}
	removed, err := s.tickets.DeleteMany(ctx, repository.TicketFilter{TenantID: tenantID})
	if err != nil {
		return 0, fmt.Errorf("delete tickets of %s: %w", tenantID, err)
	}
	if s.history != nil {
		if _, err := s.history.DeleteByTenant(ctx, tenantID); err != nil {
			return 0, fmt.Errorf("delete history of %s: %w", tenantID, err)
		}
	}
	s.cache.Invalidate(tenantID)
	s.logger.Info("tenant decommissioned", zap.String("tenant_id", tenantID), zap.Int64("tickets_removed", removed))
	return removed, nil
}

// UpsertTenant validates and stores a config, then reloads it.
func (s *SyncService) UpsertTenant(ctx context.Context, cfg domain.TenantConfig) (domain.TenantConfig, error) {
	if err := cfg.Validate(); err != nil {
		return domain.TenantConfig{}, apperrors.NewValidationError(err.Error(), nil)
	}
	if err := s.configs.Upsert(ctx, &cfg); err != nil {
		return domain.TenantConfig{}, apperrors.NewInternalError("Failed to save ticket configuration.", err)
	}
	return s.ReloadTenant(ctx, cfg.TenantID)
}

// Tenant returns the stored config, bypassing the cache.
func (s *SyncService) Tenant(ctx context.Context, tenantID string) (domain.TenantConfig, error) {
	cfg, err := s.configs.Get(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.TenantConfig{}, apperrors.NewNotFound("Ticket configuration not found.")
	}
	if err != nil {
		return domain.TenantConfig{}, apperrors.NewInternalError("Failed to load ticket configuration.", err)
	}
	return *cfg, nil
}

// TenantTickets lists a tenant's tickets, optionally by state.
func (s *SyncService) TenantTickets(ctx context.Context, tenantID string, state domain.TicketState, limit int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{TenantID: tenantID, State: state, Limit: limit})
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to list tickets.", err)
	}
	return tickets, nil
}
