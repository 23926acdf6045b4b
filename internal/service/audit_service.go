package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	"github.com/spec-kit/guild-ticket-bot/internal/events"
	"github.com/spec-kit/guild-ticket-bot/internal/observability"
	"github.com/spec-kit/guild-ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/guild-ticket-bot/pkg/util/errorutil"
)

const maxHistoryPage = 500

// AuditService records lifecycle events in the log, in metrics and, when a
// history store is set, in the ticket history.
type AuditService struct {
	dispatcher events.Dispatcher
	history    repository.TicketHistoryRepository
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service. history may be nil.
func NewAuditService(dispatcher events.Dispatcher, history repository.TicketHistoryRepository, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		history:    history,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to every lifecycle event.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	events.SubscribeAll(a.dispatcher, a.handle)
}

// History lists a tenant's most recent audit entries, newest first.
func (a *AuditService) History(ctx context.Context, tenantID string, limit int) ([]domain.TicketHistory, error) {
	if a.history == nil {
		return nil, nil
	}
	if limit <= 0 || limit > maxHistoryPage {
		limit = maxHistoryPage
	}
	entries, err := a.history.ListByTenant(ctx, tenantID, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to load ticket history.", err)
	}
	return entries, nil
}

func (a *AuditService) handle(ctx context.Context, event events.Event) error {
	a.metrics.RecordTransition(string(event.Type))
	a.logger.Info("ticket event",
		zap.String("event_id", event.ID),
		zap.String("event", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("tenant_id", event.TenantID),
		zap.String("channel_id", event.ChannelID),
		zap.String("actor_id", event.Actor.UserID),
		zap.Bool("system", event.Actor.System),
		zap.Any("payload", event.Payload))

	if a.history == nil {
		return nil
	}
	payload, err := payloadMap(event.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event.Type, err)
	}
	entry := &domain.TicketHistory{
		ID:        event.ID,
		TenantID:  event.TenantID,
		TicketID:  event.TicketID,
		ChannelID: event.ChannelID,
		EventType: string(event.Type),
		ActorID:   event.Actor.UserID,
		System:    event.Actor.System,
		Payload:   payload,
		CreatedAt: event.Timestamp,
	}
	if err := a.history.Create(ctx, entry); err != nil {
		return fmt.Errorf("record %s history: %w", event.Type, err)
	}
	return nil
}

func payloadMap(payload any) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
