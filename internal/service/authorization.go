package service

import "github.com/spec-kit/guild-ticket-bot/internal/domain"

// IsStaff reports whether actor may perform staff-only ticket actions in the
// tenant: holders of the admin role, the configured owner, and members with
// Manage Channels.
func IsStaff(cfg domain.TenantConfig, actor domain.Actor) bool {
	if actor.CanManageChannels {
		return true
	}
	if cfg.OwnerID != "" && actor.UserID == cfg.OwnerID {
		return true
	}
	return actor.HasRole(cfg.AdminRoleID)
}

// canManageTicket allows the ticket owner or staff.
func canManageTicket(cfg domain.TenantConfig, actor domain.Actor, ticket *domain.Ticket) bool {
	if ticket != nil && actor.UserID == ticket.OwnerUserID {
		return true
	}
	return IsStaff(cfg, actor)
}
