package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/guild-ticket-bot/internal/auth"
	"github.com/spec-kit/guild-ticket-bot/internal/config"
	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/guild-ticket-bot/pkg/util/errorutil"
)

// AuthService exchanges operator API keys for short-lived tokens.
type AuthService struct {
	tokenMgr *auth.TokenManager
	keys     map[domain.OperatorRole]string
}

// NewAuthService builds the service. A role with an empty key hash cannot log in.
func NewAuthService(cfg config.AuthConfig) *AuthService {
	return &AuthService{
		tokenMgr: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL()),
		keys: map[domain.OperatorRole]string{
			domain.OperatorRoleAdmin:  cfg.AdminAPIKeyHash,
			domain.OperatorRoleViewer: cfg.ViewerAPIKeyHash,
		},
	}
}

// IssueToken checks apiKey against the configured hashes, strongest role first.
func (s *AuthService) IssueToken(_ context.Context, operatorID, apiKey string) (string, domain.OperatorRole, time.Time, error) {
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" || apiKey == "" {
		return "", "", time.Time{}, apperrors.NewValidationError("operator and api_key are required", nil)
	}

	for _, role := range []domain.OperatorRole{domain.OperatorRoleAdmin, domain.OperatorRoleViewer} {
		hash := s.keys[role]
		if hash == "" {
			continue
		}
		if auth.CompareSecret(hash, apiKey) != nil {
			continue
		}
		token, exp, err := s.tokenMgr.GenerateToken(operatorID, role)
		if err != nil {
			return "", "", time.Time{}, apperrors.NewInternalError("failed to issue token", err)
		}
		return token, role, exp, nil
	}
	return "", "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
