package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TICKET_ACTION_DELAY", "")
	t.Setenv("TICKET_INACTIVITY_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Lifecycle.ActionDelay)
	assert.Equal(t, 72*time.Hour, cfg.Lifecycle.InactivityTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Lifecycle.ClosedRetention)
	assert.Equal(t, 6*time.Hour, cfg.Lifecycle.PingCooldown)
	assert.Equal(t, time.Minute, cfg.Lifecycle.ConfigRefreshInterval)
	assert.Equal(t, 15*time.Minute, cfg.Lifecycle.OrphanSweepInterval)
	assert.Equal(t, time.Hour, cfg.Lifecycle.InactiveSweepInterval)
}

func TestLoad_DurationOverride(t *testing.T) {
	t.Setenv("TICKET_PING_COOLDOWN", "30m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Lifecycle.PingCooldown)
}

func TestLoad_RejectsInvalidDuration(t *testing.T) {
	t.Setenv("TICKET_CLOSED_RETENTION", "one day")

	_, err := Load()
	assert.ErrorContains(t, err, "TICKET_CLOSED_RETENTION")
}

func TestLoad_RejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")

	_, err := Load()
	assert.Error(t, err)
}
