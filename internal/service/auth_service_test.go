package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/guild-ticket-bot/internal/auth"
	"github.com/spec-kit/guild-ticket-bot/internal/config"
	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/guild-ticket-bot/pkg/util/errorutil"
)

func newAuthService(t *testing.T, adminKey, viewerKey string) *AuthService {
	t.Helper()
	cfg := config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 15}
	if adminKey != "" {
		hash, err := auth.HashSecret(adminKey, bcrypt.MinCost)
		require.NoError(t, err)
		cfg.AdminAPIKeyHash = hash
	}
	if viewerKey != "" {
		hash, err := auth.HashSecret(viewerKey, bcrypt.MinCost)
		require.NoError(t, err)
		cfg.ViewerAPIKeyHash = hash
	}
	return NewAuthService(cfg)
}

func TestIssueTokenPicksRoleByKey(t *testing.T) {
	svc := newAuthService(t, "admin-key", "viewer-key")
	ctx := context.Background()

	token, role, exp, err := svc.IssueToken(ctx, " ops ", "admin-key")
	require.NoError(t, err)
	assert.Equal(t, domain.OperatorRoleAdmin, role)
	assert.False(t, exp.IsZero())

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.OperatorID)
	assert.Equal(t, domain.OperatorRoleAdmin, claims.Role)

	_, role, _, err = svc.IssueToken(ctx, "ops", "viewer-key")
	require.NoError(t, err)
	assert.Equal(t, domain.OperatorRoleViewer, role)
}

func TestIssueTokenRejectsBadInput(t *testing.T) {
	svc := newAuthService(t, "admin-key", "")
	ctx := context.Background()

	_, _, _, err := svc.IssueToken(ctx, "", "admin-key")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, _, _, err = svc.IssueToken(ctx, "ops", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, _, _, err = svc.IssueToken(ctx, "ops", "viewer-key")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestIssueTokenWithNoKeysConfigured(t *testing.T) {
	svc := newAuthService(t, "", "")
	_, _, _, err := svc.IssueToken(context.Background(), "ops", "anything")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}
