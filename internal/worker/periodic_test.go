package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunPeriodicRepeatsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32

	done := make(chan error, 1)
	go func() {
		done <- RunPeriodic(ctx, zap.NewNop(), Job{
			Name:     "count",
			Interval: 5 * time.Millisecond,
			Run: func(context.Context) error {
				runs.Add(1)
				return errors.New("keeps going")
			},
		})
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not stop")
	}
}

func TestRunPeriodicRunAtStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ran := make(chan struct{}, 1)

	go func() {
		_ = RunPeriodic(ctx, zap.NewNop(), Job{
			Name:       "eager",
			Interval:   time.Hour,
			RunAtStart: true,
			Run: func(context.Context) error {
				ran <- struct{}{}
				return nil
			},
		})
	}()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run at start")
	}
}

func TestRunPeriodicSkipsDisabledJobs(t *testing.T) {
	err := RunPeriodic(context.Background(), zap.NewNop(), Job{Name: "off"})
	require.NoError(t, err)
}
