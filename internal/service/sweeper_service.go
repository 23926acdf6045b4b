package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	"github.com/spec-kit/guild-ticket-bot/internal/observability"
	"github.com/spec-kit/guild-ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/guild-ticket-bot/pkg/util/errorutil"
)

// Sweep names accepted by RunOnce.
const (
	SweepOrphans    = "orphans"
	SweepInactivity = "inactivity"
	SweepRetention  = "retention"
)

// SweepNames lists every sweep in run order.
var SweepNames = []string{SweepOrphans, SweepInactivity, SweepRetention}

// SweepReport summarises one sweep run.
type SweepReport struct {
	Name     string        `json:"name"`
	Examined int           `json:"examined"`
	Acted    int           `json:"acted"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// SweeperService runs the periodic ticket maintenance passes.
type SweeperService struct {
	tickets   repository.TicketRepository
	lifecycle *LifecycleService
	limiter   *rate.Limiter
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewSweeperService builds a sweeper. ratePerSecond paces platform calls.
func NewSweeperService(tickets repository.TicketRepository, lifecycle *LifecycleService, ratePerSecond float64, metrics *observability.Metrics, logger *zap.Logger) *SweeperService {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &SweeperService{
		tickets:   tickets,
		lifecycle: lifecycle,
		limiter:   rate.NewLimiter(limit, 1),
		metrics:   metrics,
		logger:    logger,
		now:       lifecycle.now,
	}
}

// RunOnce executes the named sweep.
func (s *SweeperService) RunOnce(ctx context.Context, name string) (SweepReport, error) {
	switch name {
	case SweepOrphans:
		return s.SweepOrphans(ctx)
	case SweepInactivity:
		return s.SweepInactive(ctx)
	case SweepRetention:
		return s.SweepRetention(ctx)
	}
	return SweepReport{}, apperrors.NewValidationError("Unknown sweep.", map[string]any{"name": name, "allowed": SweepNames})
}

// SweepOrphans removes records whose channel no longer exists.
func (s *SweeperService) SweepOrphans(ctx context.Context) (SweepReport, error) {
	return s.sweep(ctx, SweepOrphans, repository.TicketFilter{}, s.lifecycle.ReconcileOrphan)
}

// SweepInactive schedules the close of open tickets idle past the inactivity timeout.
func (s *SweeperService) SweepInactive(ctx context.Context) (SweepReport, error) {
	cutoff := s.now().Add(-s.lifecycle.settings.InactivityTimeout)
	return s.sweep(ctx, SweepInactivity, repository.TicketFilter{
		State:          domain.TicketStateOpen,
		InactiveBefore: &cutoff,
	}, s.lifecycle.AutoClose)
}

// SweepRetention deletes closed tickets kept past the retention window.
func (s *SweeperService) SweepRetention(ctx context.Context) (SweepReport, error) {
	cutoff := s.now().Add(-s.lifecycle.settings.ClosedRetention)
	return s.sweep(ctx, SweepRetention, repository.TicketFilter{
		State:        domain.TicketStateClosed,
		ClosedBefore: &cutoff,
	}, s.lifecycle.AutoDelete)
}

func (s *SweeperService) sweep(ctx context.Context, name string, filter repository.TicketFilter, act func(context.Context, domain.Ticket) (bool, error)) (SweepReport, error) {
	start := time.Now()
	report := SweepReport{Name: name}

	candidates, err := s.tickets.List(ctx, filter)
	if err != nil {
		return report, fmt.Errorf("%s sweep: list tickets: %w", name, err)
	}
	report.Examined = len(candidates)

	for _, ticket := range candidates {
		if err := s.limiter.Wait(ctx); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		acted, err := act(ctx, ticket)
		if err != nil {
			report.Failed++
			s.logger.Error("sweep item failed",
				zap.String("sweep", name),
				zap.String("ticket_id", ticket.ID),
				zap.String("tenant_id", ticket.TenantID),
				zap.Error(err))
			continue
		}
		if acted {
			report.Acted++
		}
	}

	report.Duration = time.Since(start)
	s.metrics.RecordSweep(name, report.Acted, report.Failed, report.Duration)
	if report.Acted > 0 || report.Failed > 0 {
		s.logger.Info("sweep finished",
			zap.String("sweep", name),
			zap.Int("examined", report.Examined),
			zap.Int("acted", report.Acted),
			zap.Int("failed", report.Failed),
			zap.Duration("duration", report.Duration))
	}
	return report, nil
}
