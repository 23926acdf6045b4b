package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guild-ticket-bot/internal/api/dto"
	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/guild-ticket-bot/pkg/util/errorutil"
)

// TokenIssuer exchanges operator API keys for tokens.
type TokenIssuer interface {
	IssueToken(ctx context.Context, operatorID, apiKey string) (string, domain.OperatorRole, time.Time, error)
}

// AuthHandler exposes the token endpoint.
type AuthHandler struct {
	issuer TokenIssuer
}

// NewAuthHandler constructs handler.
func NewAuthHandler(issuer TokenIssuer) *AuthHandler {
	return &AuthHandler{issuer: issuer}
}

// IssueToken handles POST /auth/token.
func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	token, role, exp, err := h.issuer.IssueToken(c.UserContext(), req.Operator, req.APIKey)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{Token: token, Role: role, ExpiresAt: exp}})
}
