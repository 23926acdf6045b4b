package dto

import (
	"time"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
)

// TenantConfigRequest is the body of PUT /admin/tenants/:id.
type TenantConfigRequest struct {
	IntakeChannelID     string `json:"intake_channel_id"`
	TranscriptChannelID string `json:"transcript_channel_id"`
	AdminRoleID         string `json:"admin_role_id"`
	ActiveCategoryID    string `json:"active_category_id"`
	ArchiveCategoryID   string `json:"archive_category_id"`
	OwnerID             string `json:"owner_id"`
	Enabled             *bool  `json:"enabled"`
}

// ToDomain builds the config for tenantID. Enabled defaults to true.
func (r TenantConfigRequest) ToDomain(tenantID string) domain.TenantConfig {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return domain.TenantConfig{
		TenantID:            tenantID,
		IntakeChannelID:     r.IntakeChannelID,
		TranscriptChannelID: r.TranscriptChannelID,
		AdminRoleID:         r.AdminRoleID,
		ActiveCategoryID:    r.ActiveCategoryID,
		ArchiveCategoryID:   r.ArchiveCategoryID,
		OwnerID:             r.OwnerID,
		Enabled:             enabled,
	}
}

// TenantConfigResponse mirrors a stored config.
type TenantConfigResponse struct {
	TenantID            string    `json:"tenant_id"`
	IntakeChannelID     string    `json:"intake_channel_id"`
	TranscriptChannelID string    `json:"transcript_channel_id,omitempty"`
	AdminRoleID         string    `json:"admin_role_id,omitempty"`
	ActiveCategoryID    string    `json:"active_category_id,omitempty"`
	ArchiveCategoryID   string    `json:"archive_category_id,omitempty"`
	OwnerID             string    `json:"owner_id,omitempty"`
	Enabled             bool      `json:"enabled"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// NewTenantConfigResponse converts a domain config.
func NewTenantConfigResponse(cfg domain.TenantConfig) TenantConfigResponse {
	return TenantConfigResponse{
		TenantID:            cfg.TenantID,
		IntakeChannelID:     cfg.IntakeChannelID,
		TranscriptChannelID: cfg.TranscriptChannelID,
		AdminRoleID:         cfg.AdminRoleID,
		ActiveCategoryID:    cfg.ActiveCategoryID,
		ArchiveCategoryID:   cfg.ArchiveCategoryID,
		OwnerID:             cfg.OwnerID,
		Enabled:             cfg.Enabled,
		UpdatedAt:           cfg.UpdatedAt,
	}
}

// SweepReportResponse is the result of POST /admin/sweeps/:name.
type SweepReportResponse struct {
	Name       string `json:"name"`
	Examined   int    `json:"examined"`
	Acted      int    `json:"acted"`
	Failed     int    `json:"failed"`
	DurationMS int64  `json:"duration_ms"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID        string         `json:"id"`
	TicketID  string         `json:"ticket_id,omitempty"`
	ChannelID string         `json:"channel_id,omitempty"`
	Event     string         `json:"event"`
	ActorID   string         `json:"actor_id"`
	System    bool           `json:"system"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewTicketHistoryResponse converts a domain entry.
func NewTicketHistoryResponse(h domain.TicketHistory) TicketHistoryResponse {
	return TicketHistoryResponse{
		ID:        h.ID,
		TicketID:  h.TicketID,
		ChannelID: h.ChannelID,
		Event:     h.EventType,
		ActorID:   h.ActorID,
		System:    h.System,
		Payload:   h.Payload,
		CreatedAt: h.CreatedAt,
	}
}
