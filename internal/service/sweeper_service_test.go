package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/guild-ticket-bot/pkg/util/errorutil"
)

func newSweeper(h *harness) *SweeperService {
	return NewSweeperService(h.tickets, h.svc, 0, nil, zap.NewNop())
}

func TestSweepInactiveSchedulesOnlyIdleTickets(t *testing.T) {
	h := newHarness(t)
	sweeper := newSweeper(h)
	h.open(t, ownerActor)
	h.clock.advance(80 * time.Hour)
	h.open(t, strangerActor)

	report, err := sweeper.RunOnce(context.Background(), SweepInactivity)
	require.NoError(t, err)
	assert.Equal(t, SweepInactivity, report.Name)
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Acted)
	assert.Zero(t, report.Failed)
	assert.True(t, h.svc.ClosePending("ch1"))
	assert.False(t, h.svc.ClosePending("ch2"))

	// a second pass does not double-schedule
	report, err = sweeper.RunOnce(context.Background(), SweepInactivity)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Examined)
	assert.Zero(t, report.Acted)
}

func TestSweepOrphansDropsRecordsWithoutChannel(t *testing.T) {
	h := newHarness(t)
	sweeper := newSweeper(h)
	h.open(t, ownerActor)
	h.open(t, strangerActor)
	h.platform.removeChannel("ch2")

	report, err := sweeper.RunOnce(context.Background(), SweepOrphans)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Examined)
	assert.Equal(t, 1, report.Acted)

	remaining, err := h.tickets.List(context.Background(), repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "ch1", remaining[0].ChannelID)
}

func TestSweepRetentionDeletesExpiredClosedTickets(t *testing.T) {
	h := newHarness(t)
	sweeper := newSweeper(h)
	ticket := h.open(t, ownerActor)
	require.NoError(t, h.svc.RequestClose(context.Background(), "g1", ownerActor, ticket.Handle()))
	h.sched.fire(t, "close:ch1")

	report, err := sweeper.RunOnce(context.Background(), SweepRetention)
	require.NoError(t, err)
	assert.Zero(t, report.Examined)

	h.clock.advance(25 * time.Hour)
	report, err = sweeper.RunOnce(context.Background(), SweepRetention)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Acted)
	_, exists := h.platform.channel("ch1")
	assert.False(t, exists)
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	h := newHarness(t)
	sweeper := newSweeper(h)
	h.open(t, ownerActor)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := sweeper.RunOnce(ctx, SweepOrphans)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Examined)
	assert.Zero(t, report.Acted)
}

func TestRunOnceRejectsUnknownSweep(t *testing.T) {
	h := newHarness(t)
	_, err := newSweeper(h).RunOnce(context.Background(), "everything")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
