package auth

import (
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/guild-ticket-bot/pkg/util/errorutil"
)

// RequireRole admits an authenticated operator whose role is in allowed.
// With no roles listed any authenticated operator passes.
func RequireRole(allowed ...domain.OperatorRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		switch {
		case !ok:
			return apperrors.NewUnauthorized("authentication required")
		case len(allowed) > 0 && !slices.Contains(allowed, principal.Role):
			return apperrors.NewForbidden("operator role " + string(principal.Role) + " may not perform this action")
		}
		return c.Next()
	}
}
