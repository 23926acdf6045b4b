package dto

import (
	"time"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
)

// TokenRequest exchanges an operator API key for a bearer token.
type TokenRequest struct {
	Operator string `json:"operator"`
	APIKey   string `json:"api_key"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string              `json:"token"`
	Role      domain.OperatorRole `json:"role"`
	ExpiresAt time.Time           `json:"expires_at"`
}
