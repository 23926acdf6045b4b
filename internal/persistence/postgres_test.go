package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-ticket-bot/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig(config.PostgresConfig{
		DSN:            "postgres://bot:pw@localhost:5432/tickets",
		MaxConns:       8,
		ConnMaxIdleSec: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(8), cfg.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.MaxConnIdleTime)
	assert.Equal(t, applicationName, cfg.ConnConfig.RuntimeParams["application_name"])

	cfg, err = poolConfig(config.PostgresConfig{DSN: "postgres://localhost/tickets?application_name=custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.ConnConfig.RuntimeParams["application_name"])

	_, err = poolConfig(config.PostgresConfig{DSN: "postgres://localhost:notaport/tickets"})
	assert.Error(t, err)
}

func TestDisabledPostgres(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, pg.Enabled())
	assert.Nil(t, pg.PoolHandle())
	assert.ErrorIs(t, pg.Ping(context.Background()), ErrPostgresDisabled)
	pg.Close()
}
