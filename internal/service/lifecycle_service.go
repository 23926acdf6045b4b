package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	"github.com/spec-kit/guild-ticket-bot/internal/events"
	"github.com/spec-kit/guild-ticket-bot/internal/platform"
	"github.com/spec-kit/guild-ticket-bot/internal/repository"
	"github.com/spec-kit/guild-ticket-bot/internal/scheduler"
	apperrors "github.com/spec-kit/guild-ticket-bot/pkg/util/errorutil"
)

// ReasonFieldID is the modal input that carries the ticket reason.
const ReasonFieldID = "ticket_reason"

// TenantConfigReader is the read side of the tenant config cache.
type TenantConfigReader interface {
	Get(ctx context.Context, tenantID string, force bool) (domain.TenantConfig, bool)
}

// TranscriptGenerator renders a channel history into an uploadable file.
type TranscriptGenerator interface {
	Generate(ctx context.Context, channel platform.Channel) (platform.File, error)
}

// LifecycleSettings is the timing policy of the state machine.
type LifecycleSettings struct {
	ActionDelay       time.Duration
	InactivityTimeout time.Duration
	ClosedRetention   time.Duration
	PingCooldown      time.Duration
}

// DefaultLifecycleSettings mirrors the production defaults.
func DefaultLifecycleSettings() LifecycleSettings {
	return LifecycleSettings{
		ActionDelay:       5 * time.Second,
		InactivityTimeout: 72 * time.Hour,
		ClosedRetention:   24 * time.Hour,
		PingCooldown:      6 * time.Hour,
	}
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	Tickets     repository.TicketRepository
	Configs     TenantConfigReader
	Platform    platform.Client
	Scheduler   scheduler.Scheduler
	Transcripts TranscriptGenerator
	Dispatcher  events.Dispatcher
	StaffPings  repository.StaffPingStore
	Logger      *zap.Logger
	Settings    LifecycleSettings
	Assets      Assets
	Now         func() time.Time
}

// LifecycleService drives tickets through Open, Closed and Deleted.
type LifecycleService struct {
	tickets     repository.TicketRepository
	configs     TenantConfigReader
	platform    platform.Client
	scheduler   scheduler.Scheduler
	transcripts TranscriptGenerator
	dispatcher  events.Dispatcher
	staffPings  repository.StaffPingStore
	logger      *zap.Logger
	settings    LifecycleSettings
	assets      Assets
	now         func() time.Time
	locks       *keyedMutex
	closes      *closeIntents
}

// CreatePrompt describes the reason modal shown before a ticket is created.
type CreatePrompt struct {
	CustomID    string
	Title       string
	FieldID     string
	FieldLabel  string
	Placeholder string
}

// CreateRequest is a submitted reason modal.
type CreateRequest struct {
	TenantID string
	Actor    domain.Actor
	Type     domain.TicketType
	Reason   string
}

// ReopenResult tells the caller which reopen path was taken.
type ReopenResult struct {
	CancelledClose bool
}

// ActivityEvent is a message posted in some guild channel.
type ActivityEvent struct {
	TenantID  string
	ChannelID string
	AuthorID  string
	AuthorBot bool
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var staffPings repository.StaffPingStore = repository.NewMemoryStaffPingStore()
	if deps.StaffPings != nil {
		staffPings = deps.StaffPings
	}
	return &LifecycleService{
		tickets:     deps.Tickets,
		configs:     deps.Configs,
		platform:    deps.Platform,
		scheduler:   deps.Scheduler,
		transcripts: deps.Transcripts,
		dispatcher:  deps.Dispatcher,
		staffPings:  staffPings,
		logger:      logger,
		settings:    deps.Settings,
		assets:      deps.Assets,
		now:         now,
		locks:       newKeyedMutex(),
		closes:      newCloseIntents(),
	}
}

// Settings returns the timing policy in effect.
func (s *LifecycleService) Settings() LifecycleSettings {
	return s.settings
}

func closeKey(channelID string) string  { return "close:" + channelID }
func deleteKey(channelID string) string { return "delete:" + channelID }

// ClosePending reports whether an archive move is scheduled for the channel.
func (s *LifecycleService) ClosePending(channelID string) bool {
	return s.closes.pending(channelID)
}

// cancelClose revokes any close of channelID, including one whose timer has
// fired but whose continuation has not run yet.
func (s *LifecycleService) cancelClose(channelID string) bool {
	timer := s.scheduler.Cancel(closeKey(channelID))
	intent := s.closes.revoke(channelID)
	return timer || intent
}

// BeginCreate validates a type selection and returns the reason prompt.
func (s *LifecycleService) BeginCreate(ctx context.Context, tenantID string, actor domain.Actor, rawType string) (*CreatePrompt, error) {
	ticketType, ok := domain.ParseTicketType(rawType)
	if !ok {
		return nil, apperrors.NewValidationError("Unknown ticket type.", map[string]any{"type": rawType})
	}
	cfg, err := s.enabledConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoOpenTicket(ctx, cfg, actor.UserID); err != nil {
		return nil, err
	}

	action := domain.Action{
		Kind:     domain.ActionSubmitReason,
		TenantID: tenantID,
		Type:     ticketType,
		Handle:   domain.TicketHandle{OwnerID: actor.UserID},
	}
	return &CreatePrompt{
		CustomID:    action.CustomID(),
		Title:       ticketType.Title() + " Ticket Details",
		FieldID:     ReasonFieldID,
		FieldLabel:  "Reason / Product name",
		Placeholder: "Describe the issue or enter product/service name",
	}, nil
}

// CompleteCreate opens the ticket channel and persists the record.
func (s *LifecycleService) CompleteCreate(ctx context.Context, req CreateRequest) (*domain.Ticket, error) {
	if _, ok := domain.ParseTicketType(string(req.Type)); !ok {
		return nil, apperrors.NewValidationError("Unknown ticket type.", map[string]any{"type": req.Type})
	}
	owner := req.Actor

	// one creation at a time per (tenant, owner)
	unlock := s.locks.Lock("create:" + req.TenantID + ":" + owner.UserID)
	defer unlock()

	cfg, err := s.enabledConfig(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoOpenTicket(ctx, cfg, owner.UserID); err != nil {
		return nil, err
	}

	viewSendHistory := platform.PermissionViewChannel | platform.PermissionSendMessages | platform.PermissionReadMessageHistory
	overwrites := []platform.PermissionOverwrite{
		{SubjectID: platform.EveryoneRoleID(cfg.TenantID), Kind: platform.OverwriteRole, Deny: platform.PermissionViewChannel},
		{SubjectID: owner.UserID, Kind: platform.OverwriteMember, Allow: viewSendHistory},
	}
	if cfg.AdminRoleID != "" {
		overwrites = append(overwrites, platform.PermissionOverwrite{
			SubjectID: cfg.AdminRoleID, Kind: platform.OverwriteRole, Allow: viewSendHistory,
		})
	}

	channel, err := s.platform.CreateChannel(ctx, cfg.TenantID, platform.ChannelSpec{
		Name:       channelName(req.Type, owner.Username),
		ParentID:   cfg.ActiveCategoryID,
		Overwrites: overwrites,
		Reason:     fmt.Sprintf("%s ticket opened by %s", req.Type.Title(), actorName(owner)),
	})
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to create your ticket. Please try again later.", err)
	}

	now := s.now()
	ticket := &domain.Ticket{
		ID:               domain.TicketID(owner.UserID, channel.ID),
		OwnerUserID:      owner.UserID,
		TenantID:         cfg.TenantID,
		ChannelID:        channel.ID,
		Type:             req.Type,
		ReasonText:       strings.TrimSpace(req.Reason),
		CreatedAt:        now,
		LastActivityTime: now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		if delErr := s.platform.DeleteChannel(ctx, channel.ID, "Ticket record could not be saved"); delErr != nil {
			s.logger.Error("failed to roll back ticket channel", zap.String("channel_id", channel.ID), zap.Error(delErr))
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("You already have an open ticket.", nil)
		}
		return nil, apperrors.NewInternalError("Failed to create your ticket. Please try again later.", err)
	}

	if _, err := s.platform.SendMessage(ctx, channel.ID, controlPanel(*ticket, cfg, s.assets, s.settings.InactivityTimeout, now)); err != nil {
		s.logger.Warn("failed to post ticket control panel", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	if _, err := s.platform.SendDirectMessage(ctx, owner.UserID, createdDM(*ticket, platform.ChannelURL(cfg.TenantID, channel.ID), s.assets, now)); err != nil {
		s.logger.Info("could not DM ticket owner", zap.String("user_id", owner.UserID), zap.Error(err))
	}

	s.publish(ctx, events.EventTicketCreated, *ticket, owner, events.TicketCreatedPayload{Type: ticket.Type, Reason: ticket.ReasonText})
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("tenant_id", ticket.TenantID),
		zap.String("channel_id", ticket.ChannelID))
	return ticket, nil
}

// RecordActivity stamps the owner's latest message time on their ticket.
func (s *LifecycleService) RecordActivity(ctx context.Context, evt ActivityEvent) error {
	if evt.AuthorBot {
		return nil
	}
	unlock := s.locks.Lock(evt.ChannelID)
	defer unlock()

	ticket, err := s.tickets.Get(ctx, repository.TicketFilter{ChannelID: evt.ChannelID})
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load ticket for activity: %w", err)
	}
	if ticket.OwnerUserID != evt.AuthorID {
		return nil
	}
	ticket.LastActivityTime = s.now()
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return fmt.Errorf("record activity on %s: %w", ticket.ID, err)
	}
	return nil
}

// RequestClose schedules the archive move of an open ticket.
func (s *LifecycleService) RequestClose(ctx context.Context, tenantID string, actor domain.Actor, handle domain.TicketHandle) error {
	cfg, err := s.requireConfig(ctx, tenantID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(handle.ChannelID)
	defer unlock()

	ticket, err := s.ticketByChannel(ctx, handle.ChannelID)
	if err != nil {
		return err
	}
	if !canManageTicket(cfg, actor, ticket) {
		return apperrors.NewForbidden("You do not have permission to close this ticket.")
	}
	if ticket.State() == domain.TicketStateClosed {
		return apperrors.NewConflict("This ticket is already closed.", nil)
	}
	if s.closes.pending(ticket.ChannelID) {
		return apperrors.NewConflict("This ticket is already closing.", nil)
	}

	s.scheduleClose(*ticket, actor, false)
	return nil
}

// AutoClose warns the channel and schedules the archive move of an inactive
// ticket. It reports whether a close was scheduled.
func (s *LifecycleService) AutoClose(ctx context.Context, candidate domain.Ticket) (bool, error) {
	unlock := s.locks.Lock(candidate.ChannelID)
	defer unlock()

	ticket, err := s.tickets.Get(ctx, repository.TicketFilter{ID: candidate.ID})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reload ticket %s: %w", candidate.ID, err)
	}

	cutoff := s.now().Add(-s.settings.InactivityTimeout)
	if ticket.State() != domain.TicketStateOpen || !ticket.LastActivityTime.Before(cutoff) {
		return false, nil
	}
	if s.closes.pending(ticket.ChannelID) {
		return false, nil
	}

	warning := autoCloseWarning(s.settings.InactivityTimeout, s.settings.ActionDelay, s.now())
	if _, err := s.platform.SendMessage(ctx, ticket.ChannelID, warning); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			// orphan sweep owns records whose channel is gone
			return false, nil
		}
		s.logger.Warn("failed to post auto-close warning", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	s.scheduleClose(*ticket, domain.SystemActor, true)
	return true, nil
}

// scheduleClose must be called with the channel lock held.
func (s *LifecycleService) scheduleClose(ticket domain.Ticket, actor domain.Actor, automatic bool) {
	ticketID, channelID := ticket.ID, ticket.ChannelID
	token := s.closes.arm(channelID)
	s.scheduler.Schedule(closeKey(channelID), s.settings.ActionDelay, func(ctx context.Context) {
		s.finishClose(ctx, ticketID, channelID, token, actor, automatic)
	})
	s.publish(context.Background(), events.EventTicketCloseScheduled, ticket, actor,
		events.TicketCloseScheduledPayload{Automatic: automatic, Delay: s.settings.ActionDelay})
}

// finishClose is the delayed continuation of a close request.
func (s *LifecycleService) finishClose(ctx context.Context, ticketID, channelID string, token uint64, actor domain.Actor, automatic bool) {
	unlock := s.locks.Lock(channelID)
	defer unlock()

	log := s.logger.With(zap.String("ticket_id", ticketID), zap.String("channel_id", channelID))
	if !s.closes.consume(channelID, token) {
		log.Info("close revoked before it ran")
		return
	}

	ticket, err := s.tickets.Get(ctx, repository.TicketFilter{ID: ticketID})
	if errors.Is(err, repository.ErrNotFound) {
		log.Info("ticket gone before close completed")
		return
	}
	if err != nil {
		log.Error("failed to load ticket for close", zap.Error(err))
		return
	}
	if ticket.State() != domain.TicketStateOpen {
		return
	}

	cfg, ok := s.configs.Get(ctx, ticket.TenantID, false)
	if !ok {
		log.Warn("tenant config missing; close abandoned", zap.String("tenant_id", ticket.TenantID))
		return
	}

	channel, err := s.platform.Channel(ctx, channelID)
	if errors.Is(err, platform.ErrNotFound) {
		log.Info("ticket channel gone before close completed")
		return
	}
	if err != nil {
		log.Error("failed to resolve ticket channel", zap.Error(err))
		return
	}

	if !cfg.HasArchive() {
		if err := s.platform.DeleteChannel(ctx, channel.ID, "Ticket closed"); err != nil && !errors.Is(err, platform.ErrNotFound) {
			log.Error("failed to delete closed ticket channel", zap.Error(err))
			return
		}
		if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
			log.Error("failed to delete closed ticket record", zap.Error(err))
		}
		s.publish(ctx, events.EventTicketClosed, *ticket, actor, events.TicketClosedPayload{Archived: false})
		log.Info("ticket closed without archive; channel deleted")
		return
	}

	if err := s.platform.SetParentCategory(ctx, channel.ID, cfg.ArchiveCategoryID); err != nil {
		log.Error("failed to move ticket to archive", zap.Error(err))
		return
	}
	if err := s.platform.EditPermissionOverwrite(ctx, channel.ID, ownerOverwrite(ticket.OwnerUserID, false)); err != nil {
		log.Warn("failed to revoke owner send permission", zap.Error(err))
	}

	closedAt := s.now()
	ticket.ClosedAt = &closedAt
	if err := s.tickets.Update(ctx, ticket); err != nil {
		log.Error("failed to stamp ticket closed", zap.Error(err))
		return
	}

	panel := closedPanel(ticket.Handle(), automatic, s.settings.InactivityTimeout, s.settings.ClosedRetention, s.assets, closedAt)
	if _, err := s.platform.SendMessage(ctx, channel.ID, panel); err != nil {
		log.Warn("failed to post closed panel", zap.Error(err))
	}

	s.publish(ctx, events.EventTicketClosed, *ticket, actor, events.TicketClosedPayload{Archived: true})
	log.Info("ticket closed and archived", zap.Bool("automatic", automatic))
}

// Reopen cancels a pending close, or moves a closed ticket back to the
// active category.
func (s *LifecycleService) Reopen(ctx context.Context, tenantID string, actor domain.Actor, handle domain.TicketHandle) (ReopenResult, error) {
	cfg, err := s.requireConfig(ctx, tenantID)
	if err != nil {
		return ReopenResult{}, err
	}

	unlock := s.locks.Lock(handle.ChannelID)
	defer unlock()

	ticket, err := s.ticketByChannel(ctx, handle.ChannelID)
	if err != nil {
		return ReopenResult{}, err
	}
	if !canManageTicket(cfg, actor, ticket) {
		return ReopenResult{}, apperrors.NewForbidden("Only staff members or the ticket owner can reopen this ticket.")
	}

	now := s.now()
	if s.cancelClose(ticket.ChannelID) {
		if _, err := s.platform.SendMessage(ctx, ticket.ChannelID, closeCancelledNotice(actor, now)); err != nil {
			s.logger.Warn("failed to post close cancelled notice", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
		s.publish(ctx, events.EventTicketReopened, *ticket, actor, events.TicketReopenedPayload{CancelledPendingClose: true})
		return ReopenResult{CancelledClose: true}, nil
	}

	if ticket.State() == domain.TicketStateOpen {
		return ReopenResult{}, apperrors.NewConflict("This ticket is already open.", nil)
	}
	if cfg.ActiveCategoryID == "" {
		return ReopenResult{}, apperrors.NewNotConfigured("No active tickets category configured.")
	}
	other, err := s.tickets.Get(ctx, repository.TicketFilter{
		OwnerUserID: ticket.OwnerUserID, TenantID: ticket.TenantID, State: domain.TicketStateOpen,
	})
	switch {
	case err == nil && other.ID != ticket.ID:
		return ReopenResult{}, errOwnerHasOpenTicket(other.ChannelID)
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return ReopenResult{}, apperrors.NewInternalError("Failed to reopen ticket.", err)
	}

	if err := s.platform.SetParentCategory(ctx, ticket.ChannelID, cfg.ActiveCategoryID); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return ReopenResult{}, apperrors.NewNotFound("Ticket channel no longer exists.")
		}
		return ReopenResult{}, apperrors.NewInternalError("Failed to reopen ticket.", err)
	}
	if err := s.platform.EditPermissionOverwrite(ctx, ticket.ChannelID, ownerOverwrite(ticket.OwnerUserID, true)); err != nil {
		s.logger.Warn("failed to restore owner send permission", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	ticket.ClosedAt = nil
	ticket.LastActivityTime = now
	if err := s.tickets.Update(ctx, ticket); err != nil {
		s.rearchive(ctx, cfg, ticket)
		if errors.Is(err, repository.ErrConflict) {
			return ReopenResult{}, errOwnerHasOpenTicket("")
		}
		return ReopenResult{}, apperrors.NewInternalError("Failed to reopen ticket.", err)
	}

	if _, err := s.platform.SendMessage(ctx, ticket.ChannelID, reopenedNotice(actor, s.assets, now)); err != nil {
		s.logger.Warn("failed to post reopened notice", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	s.publish(ctx, events.EventTicketReopened, *ticket, actor, events.TicketReopenedPayload{})
	return ReopenResult{}, nil
}

// Delete removes a ticket on staff request. Open tickets get a transcript
// first. The channel itself is deleted after ActionDelay.
func (s *LifecycleService) Delete(ctx context.Context, tenantID string, actor domain.Actor, handle domain.TicketHandle) error {
	cfg, err := s.requireConfig(ctx, tenantID)
	if err != nil {
		return err
	}
	if !IsStaff(cfg, actor) {
		return apperrors.NewForbidden("Only staff members can delete tickets.")
	}

	unlock := s.locks.Lock(handle.ChannelID)
	defer unlock()

	if s.scheduler.Pending(deleteKey(handle.ChannelID)) {
		return apperrors.NewConflict("This ticket is already being deleted.", nil)
	}

	ticket, err := s.tickets.Get(ctx, repository.TicketFilter{ChannelID: handle.ChannelID})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewInternalError("Failed to delete ticket.", err)
	}
	if errors.Is(err, repository.ErrNotFound) {
		ticket = nil
	}

	channel, err := s.platform.Channel(ctx, handle.ChannelID)
	if errors.Is(err, platform.ErrNotFound) {
		if ticket != nil {
			if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
				s.logger.Error("failed to drop ticket of missing channel", zap.String("ticket_id", ticket.ID), zap.Error(err))
			}
		}
		return apperrors.NewNotFound("Ticket channel no longer exists.")
	}
	if err != nil {
		return apperrors.NewInternalError("Failed to delete ticket.", err)
	}

	s.cancelClose(channel.ID)

	closed := ticket != nil && ticket.State() == domain.TicketStateClosed
	transcriptSaved := false
	if !closed {
		ownerID := ""
		if ticket != nil {
			ownerID = ticket.OwnerUserID
		}
		transcriptSaved = s.deliverTranscript(ctx, cfg, *channel, ownerID, transcriptNotice{
			title:    "Ticket Deleted",
			dmText:   "Your ticket in **%s** has been deleted.",
			logField: platform.EmbedField{Name: "Deleted By", Value: actorName(actor), Inline: true},
		})
	}

	if _, err := s.platform.SendMessage(ctx, channel.ID, deletionNotice(actor, closed, s.settings.ActionDelay, s.assets, s.now())); err != nil {
		s.logger.Warn("failed to post deletion notice", zap.String("channel_id", channel.ID), zap.Error(err))
	}

	if ticket != nil {
		if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
			return apperrors.NewInternalError("Failed to delete ticket.", err)
		}
	}

	channelID := channel.ID
	s.scheduler.Schedule(deleteKey(channelID), s.settings.ActionDelay, func(ctx context.Context) {
		if err := s.platform.DeleteChannel(ctx, channelID, "Ticket deleted by staff"); err != nil && !errors.Is(err, platform.ErrNotFound) {
			s.logger.Error("failed to delete ticket channel", zap.String("channel_id", channelID), zap.Error(err))
		}
	})

	evtTicket := domain.Ticket{TenantID: tenantID, ChannelID: channel.ID}
	if ticket != nil {
		evtTicket = *ticket
	}
	s.publish(ctx, events.EventTicketDeleted, evtTicket, actor, events.TicketDeletedPayload{
		Reason: "deleted by staff", TranscriptSaved: transcriptSaved,
	})
	return nil
}

// AutoDelete removes a closed ticket whose retention expired. It reports
// whether the ticket was removed.
func (s *LifecycleService) AutoDelete(ctx context.Context, candidate domain.Ticket) (bool, error) {
	unlock := s.locks.Lock(candidate.ChannelID)
	defer unlock()

	ticket, err := s.tickets.Get(ctx, repository.TicketFilter{ID: candidate.ID})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reload ticket %s: %w", candidate.ID, err)
	}
	cutoff := s.now().Add(-s.settings.ClosedRetention)
	if ticket.ClosedAt == nil || !ticket.ClosedAt.Before(cutoff) {
		return false, nil
	}

	channel, err := s.platform.Channel(ctx, ticket.ChannelID)
	switch {
	case errors.Is(err, platform.ErrNotFound):
		channel = nil
	case err != nil:
		return false, fmt.Errorf("resolve channel of %s: %w", ticket.ID, err)
	}

	transcriptSaved := false
	if channel != nil {
		cfg, _ := s.configs.Get(ctx, ticket.TenantID, false)
		transcriptSaved = s.deliverTranscript(ctx, cfg, *channel, ticket.OwnerUserID, transcriptNotice{
			title:    "Ticket Auto-Deleted",
			dmText:   "Your ticket in **%s** has been automatically deleted.",
			logField: platform.EmbedField{Name: "Reason", Value: HumanDuration(s.settings.ClosedRetention) + " retention expired", Inline: true},
		})
		if err := s.platform.DeleteChannel(ctx, channel.ID, "Auto-deleted: closed ticket retention expired"); err != nil && !errors.Is(err, platform.ErrNotFound) {
			return false, fmt.Errorf("delete channel of %s: %w", ticket.ID, err)
		}
	}

	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		return false, fmt.Errorf("delete ticket %s: %w", ticket.ID, err)
	}
	s.publish(ctx, events.EventTicketDeleted, *ticket, domain.SystemActor, events.TicketDeletedPayload{
		Reason: "retention expired", TranscriptSaved: transcriptSaved,
	})
	return true, nil
}

// ReconcileOrphan drops the record of a ticket whose channel no longer
// exists. It reports whether the record was removed.
func (s *LifecycleService) ReconcileOrphan(ctx context.Context, candidate domain.Ticket) (bool, error) {
	unlock := s.locks.Lock(candidate.ChannelID)
	defer unlock()

	_, err := s.platform.Channel(ctx, candidate.ChannelID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, platform.ErrNotFound) {
		return false, fmt.Errorf("resolve channel of %s: %w", candidate.ID, err)
	}

	s.cancelClose(candidate.ChannelID)
	if err := s.tickets.Delete(ctx, candidate.ID); err != nil {
		return false, fmt.Errorf("delete orphaned ticket %s: %w", candidate.ID, err)
	}
	s.publish(ctx, events.EventTicketDeleted, candidate, domain.SystemActor, events.TicketDeletedPayload{Reason: "channel missing"})
	return true, nil
}

// PingStaff mentions the admin role in a ticket channel. Each member may
// ping once per cooldown in a tenant, whichever ticket they ping from.
func (s *LifecycleService) PingStaff(ctx context.Context, tenantID string, actor domain.Actor, channelID string) error {
	cfg, ok := s.configs.Get(ctx, tenantID, false)
	if !ok || cfg.AdminRoleID == "" {
		return apperrors.NewNotConfigured("Unable to ping staff as no admin role is set for tickets.")
	}

	unlock := s.locks.Lock(channelID)
	defer unlock()

	ticket, err := s.tickets.Get(ctx, repository.TicketFilter{ChannelID: channelID})
	if err != nil {
		return s.storeError(err, "Ticket data not found.")
	}

	now := s.now()
	last, reserved, err := s.staffPings.Reserve(ctx, tenantID, actor.UserID, now, s.settings.PingCooldown)
	if err != nil {
		return apperrors.NewInternalError("Failed to ping staff.", err)
	}
	if !reserved {
		retryAt := last.Add(s.settings.PingCooldown)
		return apperrors.NewCooldown(retryAt, retryAt.Sub(now))
	}

	if _, err := s.platform.SendMessage(ctx, channelID, staffPingNotice(actor, cfg.AdminRoleID, s.assets, now)); err != nil {
		if rerr := s.staffPings.Release(ctx, tenantID, actor.UserID); rerr != nil {
			s.logger.Warn("failed to release staff ping cooldown", zap.String("user_id", actor.UserID), zap.Error(rerr))
		}
		return apperrors.NewInternalError("Failed to ping staff.", err)
	}

	ticket.LastStaffPingTime = &now
	if err := s.tickets.Update(ctx, ticket); err != nil {
		s.logger.Warn("failed to stamp staff ping on ticket", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	s.publish(ctx, events.EventStaffPinged, *ticket, actor, events.StaffPingedPayload{RoleID: cfg.AdminRoleID})
	return nil
}

// Pin marks the ticket channel and moves it to the top of its category.
func (s *LifecycleService) Pin(ctx context.Context, tenantID string, actor domain.Actor, channelID string) error {
	cfg, err := s.staffConfig(ctx, tenantID, actor, "Only staff members can pin tickets.")
	if err != nil {
		return err
	}
	if err := s.requireBotManageChannels(ctx, cfg.TenantID, "I need the `Manage Channels` permission to pin (rename) tickets."); err != nil {
		return err
	}

	unlock := s.locks.Lock(channelID)
	defer unlock()

	channel, err := s.resolveChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if platform.HasPinMarker(channel.Name) {
		return apperrors.NewConflict("This ticket is already pinned.", nil)
	}

	if err := s.platform.SetChannelName(ctx, channel.ID, platform.PinMarker+channel.Name, "Pinned by "+actorName(actor)); err != nil {
		return apperrors.NewInternalError("Failed to rename channel. Missing permissions or invalid name.", err)
	}

	original := channel.Position
	target := original
	if channel.ParentID != "" {
		target = 0
		if siblings, err := s.platform.CategoryChannels(ctx, cfg.TenantID, channel.ParentID); err != nil {
			s.logger.Warn("failed to list category channels", zap.String("channel_id", channel.ID), zap.Error(err))
		} else {
			last := -1
			for _, sib := range siblings {
				if sib.ID != channel.ID && platform.HasPinMarker(sib.Name) && sib.Position > last {
					last = sib.Position
				}
			}
			target = last + 1
		}
		if err := s.platform.SetChannelPosition(ctx, channel.ID, target); err != nil {
			s.logger.Warn("failed to reposition pinned ticket", zap.String("channel_id", channel.ID), zap.Error(err))
		}
	}

	handle := domain.TicketHandle{ChannelID: channel.ID}
	evtTicket := domain.Ticket{TenantID: cfg.TenantID, ChannelID: channel.ID}
	if ticket, err := s.tickets.Get(ctx, repository.TicketFilter{ChannelID: channel.ID}); err == nil {
		ticket.OriginalChannelPosition = &original
		if err := s.tickets.Update(ctx, ticket); err != nil {
			s.logger.Warn("failed to save original position", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
		handle = ticket.Handle()
		evtTicket = *ticket
	}

	if _, err := s.platform.SendMessage(ctx, channel.ID, pinnedNotice(handle, s.assets, s.now())); err != nil {
		s.logger.Warn("failed to post pinned notice", zap.String("channel_id", channel.ID), zap.Error(err))
	}
	s.publish(ctx, events.EventTicketPinned, evtTicket, actor, events.TicketPinnedPayload{FromPosition: original, ToPosition: target})
	return nil
}

// Unpin strips the pin marker and restores the channel's earlier position.
func (s *LifecycleService) Unpin(ctx context.Context, tenantID string, actor domain.Actor, channelID string) error {
	cfg, err := s.staffConfig(ctx, tenantID, actor, "Only staff members can unpin tickets.")
	if err != nil {
		return err
	}
	if err := s.requireBotManageChannels(ctx, cfg.TenantID, "I need the `Manage Channels` permission to unpin tickets."); err != nil {
		return err
	}

	unlock := s.locks.Lock(channelID)
	defer unlock()

	channel, err := s.resolveChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if !platform.HasPinMarker(channel.Name) {
		return apperrors.NewConflict("This ticket is not pinned.", nil)
	}

	if err := s.platform.SetChannelName(ctx, channel.ID, strings.TrimPrefix(channel.Name, platform.PinMarker), "Unpinned by "+actorName(actor)); err != nil {
		return apperrors.NewInternalError("Failed to rename channel. Missing permissions or invalid name.", err)
	}

	evtTicket := domain.Ticket{TenantID: cfg.TenantID, ChannelID: channel.ID}
	ticket, err := s.tickets.Get(ctx, repository.TicketFilter{ChannelID: channel.ID})
	if err != nil {
		ticket = nil
	}

	switch {
	case ticket != nil && ticket.OriginalChannelPosition != nil:
		if err := s.platform.SetChannelPosition(ctx, channel.ID, *ticket.OriginalChannelPosition); err != nil {
			s.logger.Warn("failed to restore ticket position", zap.String("channel_id", channel.ID), zap.Error(err))
		}
		ticket.OriginalChannelPosition = nil
		if err := s.tickets.Update(ctx, ticket); err != nil {
			s.logger.Warn("failed to clear original position", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	case channel.ParentID != "":
		siblings, err := s.platform.CategoryChannels(ctx, cfg.TenantID, channel.ParentID)
		if err != nil {
			s.logger.Warn("failed to list category channels", zap.String("channel_id", channel.ID), zap.Error(err))
			break
		}
		last := -1
		for _, sib := range siblings {
			if sib.Position > last {
				last = sib.Position
			}
		}
		if err := s.platform.SetChannelPosition(ctx, channel.ID, last+1); err != nil {
			s.logger.Warn("failed to move unpinned ticket", zap.String("channel_id", channel.ID), zap.Error(err))
		}
	}
	if ticket != nil {
		evtTicket = *ticket
	}

	if _, err := s.platform.SendMessage(ctx, channel.ID, unpinnedNotice(s.assets, s.now())); err != nil {
		s.logger.Warn("failed to post unpinned notice", zap.String("channel_id", channel.ID), zap.Error(err))
	}
	s.publish(ctx, events.EventTicketUnpinned, evtTicket, actor, nil)
	return nil
}

// Claim announces that a staff member is handling the ticket.
func (s *LifecycleService) Claim(ctx context.Context, tenantID string, actor domain.Actor, channelID string) error {
	cfg, err := s.staffConfig(ctx, tenantID, actor, "Only staff members can claim tickets.")
	if err != nil {
		return err
	}
	if _, err := s.platform.SendMessage(ctx, channelID, claimNotice(actor, s.assets, s.now())); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return apperrors.NewNotFound("Ticket channel no longer exists.")
		}
		return apperrors.NewInternalError("Failed to claim ticket.", err)
	}

	evtTicket := domain.Ticket{TenantID: cfg.TenantID, ChannelID: channelID}
	if ticket, err := s.tickets.Get(ctx, repository.TicketFilter{ChannelID: channelID}); err == nil {
		evtTicket = *ticket
	}
	s.publish(ctx, events.EventTicketClaimed, evtTicket, actor, nil)
	return nil
}

func (s *LifecycleService) requireConfig(ctx context.Context, tenantID string) (domain.TenantConfig, error) {
	cfg, ok := s.configs.Get(ctx, tenantID, false)
	if !ok {
		return domain.TenantConfig{}, apperrors.NewNotConfigured("Ticket configuration not found.")
	}
	return cfg, nil
}

func (s *LifecycleService) enabledConfig(ctx context.Context, tenantID string) (domain.TenantConfig, error) {
	cfg, ok := s.configs.Get(ctx, tenantID, false)
	if !ok || !cfg.Enabled {
		return domain.TenantConfig{}, apperrors.NewNotConfigured("Ticket system is not configured or is disabled.")
	}
	return cfg, nil
}

func (s *LifecycleService) staffConfig(ctx context.Context, tenantID string, actor domain.Actor, denied string) (domain.TenantConfig, error) {
	cfg, err := s.requireConfig(ctx, tenantID)
	if err != nil {
		return cfg, err
	}
	if !IsStaff(cfg, actor) {
		return cfg, apperrors.NewForbidden(denied)
	}
	return cfg, nil
}

func (s *LifecycleService) requireBotManageChannels(ctx context.Context, tenantID, denied string) error {
	ok, err := s.platform.CanManageChannels(ctx, tenantID)
	if err != nil {
		return apperrors.NewInternalError("Failed to check bot permissions.", err)
	}
	if !ok {
		return apperrors.NewForbidden(denied)
	}
	return nil
}

// ensureNoOpenTicket rejects a second open ticket, dropping a stale record
// whose channel was deleted out from under it.
func (s *LifecycleService) ensureNoOpenTicket(ctx context.Context, cfg domain.TenantConfig, ownerID string) error {
	existing, err := s.tickets.Get(ctx, repository.TicketFilter{
		OwnerUserID: ownerID, TenantID: cfg.TenantID, State: domain.TicketStateOpen,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.NewInternalError("Failed to look up your tickets.", err)
	}

	if _, err := s.platform.Channel(ctx, existing.ChannelID); errors.Is(err, platform.ErrNotFound) {
		s.logger.Info("removing ticket record with missing channel", zap.String("ticket_id", existing.ID))
		if err := s.tickets.Delete(ctx, existing.ID); err != nil {
			return apperrors.NewInternalError("Failed to look up your tickets.", err)
		}
		return nil
	}
	return apperrors.NewConflict(
		"You already have an open ticket: "+platform.ChannelMention(existing.ChannelID),
		map[string]any{"channel_id": existing.ChannelID},
	)
}

func (s *LifecycleService) ticketByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, repository.TicketFilter{ChannelID: channelID})
	if err != nil {
		return nil, s.storeError(err, "Ticket data not found.")
	}
	return ticket, nil
}

func (s *LifecycleService) resolveChannel(ctx context.Context, channelID string) (*platform.Channel, error) {
	channel, err := s.platform.Channel(ctx, channelID)
	if errors.Is(err, platform.ErrNotFound) {
		return nil, apperrors.NewNotFound("Ticket channel no longer exists.")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to load ticket channel.", err)
	}
	return channel, nil
}

// rearchive puts a channel whose reopen could not be recorded back into
// the archive with the owner muted.
func (s *LifecycleService) rearchive(ctx context.Context, cfg domain.TenantConfig, ticket *domain.Ticket) {
	log := s.logger.With(zap.String("ticket_id", ticket.ID), zap.String("channel_id", ticket.ChannelID))
	if !cfg.HasArchive() {
		log.Warn("archive category no longer configured; channel left in place")
	} else if err := s.platform.SetParentCategory(ctx, ticket.ChannelID, cfg.ArchiveCategoryID); err != nil {
		log.Error("failed to move ticket back to archive", zap.Error(err))
	}
	if err := s.platform.EditPermissionOverwrite(ctx, ticket.ChannelID, ownerOverwrite(ticket.OwnerUserID, false)); err != nil {
		log.Error("failed to revoke owner send permission", zap.Error(err))
	}
}

func ownerOverwrite(ownerID string, canSend bool) platform.PermissionOverwrite {
	ow := platform.PermissionOverwrite{
		SubjectID: ownerID,
		Kind:      platform.OverwriteMember,
		Allow:     platform.PermissionViewChannel | platform.PermissionReadMessageHistory,
	}
	if canSend {
		ow.Allow |= platform.PermissionSendMessages | platform.PermissionAddReactions
	} else {
		ow.Deny = platform.PermissionSendMessages | platform.PermissionAddReactions
	}
	return ow
}

func errOwnerHasOpenTicket(channelID string) error {
	var details map[string]any
	if channelID != "" {
		details = map[string]any{"channel_id": channelID}
	}
	return apperrors.NewConflict("The ticket owner already has another open ticket.", details)
}

func (s *LifecycleService) storeError(err error, notFound string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(notFound)
	}
	return apperrors.NewInternalError("Ticket store unavailable.", err)
}

func (s *LifecycleService) publish(ctx context.Context, eventType events.EventType, ticket domain.Ticket, actor domain.Actor, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, events.New(eventType, ticket, actor, s.now(), payload)); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}
