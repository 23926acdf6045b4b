package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/guild-ticket-bot/pkg/util/errorutil"
)

type principalKey struct{}

// Principal is the operator behind an admin API request.
type Principal struct {
	OperatorID string
	Role       domain.OperatorRole
}

// AuthMiddleware validates bearer tokens on admin routes.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle rejects requests without a valid operator token and stores the
// principal for RequireRole and handlers.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := bearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}

	claims, err := m.tokens.ParseToken(raw)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.NewUnauthorized("token expired")
	case err != nil:
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey{}, &Principal{OperatorID: claims.OperatorID, Role: claims.Role})
	return c.Next()
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return strings.TrimSpace(token), nil
}

// PrincipalFromContext retrieves the authenticated operator.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	principal, ok := c.Locals(principalKey{}).(*Principal)
	return principal, ok && principal != nil
}
