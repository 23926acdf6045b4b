package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guild-ticket-bot/internal/api/dto"
	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/guild-ticket-bot/pkg/util/errorutil"
)

const maxTicketPage = 500

// TenantAdmin is the tenant administration surface of the sync service.
type TenantAdmin interface {
	UpsertTenant(ctx context.Context, cfg domain.TenantConfig) (domain.TenantConfig, error)
	Tenant(ctx context.Context, tenantID string) (domain.TenantConfig, error)
	ReloadTenant(ctx context.Context, tenantID string) (domain.TenantConfig, error)
	DecommissionTenant(ctx context.Context, tenantID string) (int64, error)
	TenantTickets(ctx context.Context, tenantID string, state domain.TicketState, limit int) ([]domain.Ticket, error)
}

// HistoryReader lists audit entries of a tenant.
type HistoryReader interface {
	History(ctx context.Context, tenantID string, limit int) ([]domain.TicketHistory, error)
}

// TenantsHandler manages tenant configuration endpoints.
type TenantsHandler struct {
	admin   TenantAdmin
	history HistoryReader
}

// NewTenantsHandler constructs handler.
func NewTenantsHandler(admin TenantAdmin, history HistoryReader) *TenantsHandler {
	return &TenantsHandler{admin: admin, history: history}
}

// Upsert PUT /admin/tenants/:id.
func (h *TenantsHandler) Upsert(c *fiber.Ctx) error {
	var req dto.TenantConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	cfg, err := h.admin.UpsertTenant(c.UserContext(), req.ToDomain(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTenantConfigResponse(cfg)})
}

// Get GET /admin/tenants/:id.
func (h *TenantsHandler) Get(c *fiber.Ctx) error {
	cfg, err := h.admin.Tenant(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTenantConfigResponse(cfg)})
}

// Reload POST /admin/tenants/:id/reload.
func (h *TenantsHandler) Reload(c *fiber.Ctx) error {
	cfg, err := h.admin.ReloadTenant(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTenantConfigResponse(cfg)})
}

// Delete DELETE /admin/tenants/:id.
func (h *TenantsHandler) Delete(c *fiber.Ctx) error {
	removed, err := h.admin.DecommissionTenant(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": fiber.Map{"tickets_removed": removed}})
}

// ListTickets GET /admin/tenants/:id/tickets?state=open|closed&limit=N.
func (h *TenantsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.admin.TenantTickets(c.UserContext(), c.Params("id"), query.State, query.Limit)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, dto.NewTicketSummary(t))
	}
	return c.JSON(fiber.Map{"data": items})
}

// History GET /admin/tenants/:id/history?limit=N.
func (h *TenantsHandler) History(c *fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	entries, err := h.history.History(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return err
	}
	items := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.NewTicketHistoryResponse(e))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseTicketQuery(c *fiber.Ctx) (dto.TicketListQuery, error) {
	var q dto.TicketListQuery
	switch strings.ToUpper(c.Query("state")) {
	case "":
	case string(domain.TicketStateOpen):
		q.State = domain.TicketStateOpen
	case string(domain.TicketStateClosed):
		q.State = domain.TicketStateClosed
	default:
		return q, apperrors.NewValidationError("state must be open or closed", nil)
	}
	limit, err := parseLimit(c)
	if err != nil {
		return q, err
	}
	q.Limit = limit
	return q, nil
}

// parseLimit reads ?limit, capped at maxTicketPage. Zero means unset.
func parseLimit(c *fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, apperrors.NewValidationError("limit must be a positive integer", nil)
	}
	return min(limit, maxTicketPage), nil
}
