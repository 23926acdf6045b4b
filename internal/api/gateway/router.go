package gateway

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	"github.com/spec-kit/guild-ticket-bot/internal/observability"
	"github.com/spec-kit/guild-ticket-bot/internal/platform"
	"github.com/spec-kit/guild-ticket-bot/internal/repository"
	"github.com/spec-kit/guild-ticket-bot/internal/service"
	apperrors "github.com/spec-kit/guild-ticket-bot/pkg/util/errorutil"
)

// Interaction is a component press or modal submit received from the gateway.
type Interaction struct {
	GuildID   string
	ChannelID string
	CustomID  string
	Values    []string
	Fields    map[string]string
	Actor     domain.Actor
}

// Reply is the ephemeral answer to an interaction. When Modal is set the
// transport opens it instead of replying.
type Reply struct {
	Content string
	Embeds  []platform.Embed
	Modal   *service.CreatePrompt
}

// Lifecycle is the subset of the lifecycle service the router drives.
type Lifecycle interface {
	Settings() service.LifecycleSettings
	BeginCreate(ctx context.Context, tenantID string, actor domain.Actor, rawType string) (*service.CreatePrompt, error)
	CompleteCreate(ctx context.Context, req service.CreateRequest) (*domain.Ticket, error)
	RecordActivity(ctx context.Context, evt service.ActivityEvent) error
	RequestClose(ctx context.Context, tenantID string, actor domain.Actor, handle domain.TicketHandle) error
	Reopen(ctx context.Context, tenantID string, actor domain.Actor, handle domain.TicketHandle) (service.ReopenResult, error)
	Delete(ctx context.Context, tenantID string, actor domain.Actor, handle domain.TicketHandle) error
	PingStaff(ctx context.Context, tenantID string, actor domain.Actor, channelID string) error
	Pin(ctx context.Context, tenantID string, actor domain.Actor, channelID string) error
	Unpin(ctx context.Context, tenantID string, actor domain.Actor, channelID string) error
	Claim(ctx context.Context, tenantID string, actor domain.Actor, channelID string) error
}

// Syncer is the subset of the sync service the router drives.
type Syncer interface {
	SyncAll(ctx context.Context)
	DecommissionTenant(ctx context.Context, tenantID string) (int64, error)
}

// Options tunes the router.
type Options struct {
	DedupeTTL      time.Duration
	BootstrapDelay time.Duration
}

// Router turns gateway events into lifecycle operations.
type Router struct {
	lifecycle Lifecycle
	sync      Syncer
	guard     repository.ActionGuard
	metrics   *observability.Metrics
	logger    *zap.Logger
	opts      Options
}

// NewRouter wires the router. guard may be nil to disable de-duplication.
func NewRouter(lifecycle Lifecycle, sync Syncer, guard repository.ActionGuard, metrics *observability.Metrics, logger *zap.Logger, opts Options) *Router {
	return &Router{
		lifecycle: lifecycle,
		sync:      sync,
		guard:     guard,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

const genericFailure = "❌ Something went wrong. Please try again later."

// HandleInteraction dispatches one interaction. handled is false for custom
// ids this bot does not own.
func (r *Router) HandleInteraction(ctx context.Context, in Interaction) (reply Reply, handled bool) {
	action, err := domain.DecodeAction(in.CustomID)
	if err != nil {
		return Reply{}, false
	}
	log := r.logger.With(
		zap.String("action", string(action.Kind)),
		zap.String("tenant_id", in.GuildID),
		zap.String("channel_id", in.ChannelID),
		zap.String("user_id", in.Actor.UserID))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("interaction handler panicked", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			r.metrics.RecordInteraction(string(action.Kind), "panic")
			reply, handled = Reply{Content: genericFailure}, true
		}
	}()

	if in.GuildID == "" {
		return Reply{Content: "❌ Tickets can only be used inside a server."}, true
	}

	if !r.acquire(ctx, log, in) {
		r.metrics.RecordInteraction(string(action.Kind), "duplicate")
		return Reply{Content: "⏳ Your previous request is still being processed."}, true
	}

	reply, err = r.dispatch(ctx, action, in)
	if err != nil {
		r.metrics.RecordInteraction(string(action.Kind), apperrors.ToDomainError(err).Code)
		return r.errorReply(log, err), true
	}
	r.metrics.RecordInteraction(string(action.Kind), "ok")
	return reply, true
}

func (r *Router) acquire(ctx context.Context, log *zap.Logger, in Interaction) bool {
	if r.guard == nil || r.opts.DedupeTTL <= 0 {
		return true
	}
	key := in.GuildID + ":" + in.Actor.UserID + ":" + in.CustomID
	ok, err := r.guard.Acquire(ctx, key, r.opts.DedupeTTL)
	if err != nil {
		log.Warn("interaction guard unavailable", zap.Error(err))
		return true
	}
	return ok
}

func (r *Router) dispatch(ctx context.Context, action domain.Action, in Interaction) (Reply, error) {
	delay := service.HumanDuration(r.lifecycle.Settings().ActionDelay)

	switch action.Kind {
	case domain.ActionSelectType:
		if len(in.Values) == 0 {
			return Reply{}, apperrors.NewValidationError("No ticket type selected.", nil)
		}
		prompt, err := r.lifecycle.BeginCreate(ctx, in.GuildID, in.Actor, in.Values[0])
		if err != nil {
			return Reply{}, err
		}
		return Reply{Modal: prompt}, nil

	case domain.ActionSubmitReason:
		if action.TenantID != in.GuildID || action.Handle.OwnerID != in.Actor.UserID {
			return Reply{}, apperrors.NewForbidden("This form belongs to someone else.")
		}
		ticket, err := r.lifecycle.CompleteCreate(ctx, service.CreateRequest{
			TenantID: action.TenantID,
			Actor:    in.Actor,
			Type:     action.Type,
			Reason:   in.Fields[service.ReasonFieldID],
		})
		if err != nil {
			return Reply{}, err
		}
		return Reply{Content: "✅ Your ticket has been created: " + platform.ChannelMention(ticket.ChannelID)}, nil

	case domain.ActionClose:
		if err := r.lifecycle.RequestClose(ctx, in.GuildID, in.Actor, action.Handle); err != nil {
			return Reply{}, err
		}
		return Reply{Content: fmt.Sprintf("✅ Ticket closing in %s...", delay)}, nil

	case domain.ActionReopenClosed:
		result, err := r.lifecycle.Reopen(ctx, in.GuildID, in.Actor, action.Handle)
		if err != nil {
			return Reply{}, err
		}
		if result.CancelledClose {
			return Reply{Content: "✅ Ticket close cancelled."}, nil
		}
		return Reply{Content: "✅ Ticket has been reopened successfully!"}, nil

	case domain.ActionDelete:
		if err := r.lifecycle.Delete(ctx, in.GuildID, in.Actor, action.Handle); err != nil {
			return Reply{}, err
		}
		return Reply{Content: fmt.Sprintf("✅ Ticket will be deleted in %s.", delay)}, nil

	case domain.ActionDeleteClosed:
		if err := r.lifecycle.Delete(ctx, in.GuildID, in.Actor, action.Handle); err != nil {
			if apperrors.HasCode(err, apperrors.CodeForbidden) {
				return Reply{}, apperrors.NewForbidden("Only staff members can permanently delete closed tickets.")
			}
			return Reply{}, err
		}
		return Reply{Content: fmt.Sprintf("✅ Closed ticket will be permanently deleted in %s.", delay)}, nil

	case domain.ActionPingStaff:
		if err := r.lifecycle.PingStaff(ctx, in.GuildID, in.Actor, in.ChannelID); err != nil {
			return Reply{}, err
		}
		return Reply{Embeds: []platform.Embed{{
			Color:       0x00FF00,
			Title:       "✅ Staff Notified",
			Description: "A support team member has been notified and will assist you shortly.",
		}}}, nil

	case domain.ActionClaim:
		if err := r.lifecycle.Claim(ctx, in.GuildID, in.Actor, targetChannel(action, in)); err != nil {
			return Reply{}, err
		}
		return Reply{Content: "✅ You have claimed this ticket!"}, nil

	case domain.ActionPin:
		if err := r.lifecycle.Pin(ctx, in.GuildID, in.Actor, targetChannel(action, in)); err != nil {
			return Reply{}, err
		}
		return Reply{Content: "✅ Ticket pinned!"}, nil

	case domain.ActionUnpin:
		if err := r.lifecycle.Unpin(ctx, in.GuildID, in.Actor, targetChannel(action, in)); err != nil {
			return Reply{}, err
		}
		return Reply{Content: "✅ Ticket unpinned!"}, nil
	}
	return Reply{}, apperrors.NewValidationError("Unsupported action.", map[string]any{"kind": action.Kind})
}

// targetChannel prefers the channel named by the button over the one it was
// pressed in.
func targetChannel(action domain.Action, in Interaction) string {
	if action.Handle.ChannelID != "" {
		return action.Handle.ChannelID
	}
	return in.ChannelID
}

func (r *Router) errorReply(log *zap.Logger, err error) Reply {
	de := apperrors.ToDomainError(err)
	switch de.Code {
	case apperrors.CodeCooldown:
		retryAt, _ := de.Details["retry_at"].(time.Time)
		return Reply{Embeds: []platform.Embed{{
			Color:       0xFF0000,
			Title:       "🕒 Cooldown Active",
			Description: "You can ping staff again " + platform.RelativeTimestamp(retryAt) + ".",
		}}}
	case apperrors.CodeNotConfigured:
		return Reply{Content: "⚠️ " + de.Message}
	case apperrors.CodeConflict:
		if _, existing := de.Details["channel_id"]; existing {
			return Reply{Content: "❌ " + de.Message}
		}
		return Reply{Content: "ℹ️ " + de.Message}
	case apperrors.CodeInternal:
		log.Error("interaction failed", zap.Error(err))
		return Reply{Content: "❌ " + de.Message}
	}
	log.Info("interaction rejected", zap.String("code", de.Code), zap.String("reason", de.Message))
	return Reply{Content: "❌ " + de.Message}
}

// HandleMessage records owner activity for messages posted in guild channels.
func (r *Router) HandleMessage(ctx context.Context, guildID string, msg platform.Message) {
	if guildID == "" || msg.AuthorBot {
		return
	}
	err := r.lifecycle.RecordActivity(ctx, service.ActivityEvent{
		TenantID:  guildID,
		ChannelID: msg.ChannelID,
		AuthorID:  msg.AuthorID,
		AuthorBot: msg.AuthorBot,
	})
	if err != nil {
		r.logger.Warn("failed to record ticket activity", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}
}

// HandleTenantRemoved cleans up after the bot leaves a guild.
func (r *Router) HandleTenantRemoved(ctx context.Context, guildID string) {
	if _, err := r.sync.DecommissionTenant(ctx, guildID); err != nil {
		r.logger.Error("failed to decommission tenant", zap.String("tenant_id", guildID), zap.Error(err))
	}
}

// HandleReady posts missing intake prompts once the gateway session settles.
// It blocks for BootstrapDelay and returns early if ctx ends.
func (r *Router) HandleReady(ctx context.Context) {
	if r.opts.BootstrapDelay > 0 {
		timer := time.NewTimer(r.opts.BootstrapDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
	r.logger.Info("syncing intake prompts")
	r.sync.SyncAll(ctx)
}
