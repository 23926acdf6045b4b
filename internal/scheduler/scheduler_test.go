package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_RunsAfterDelay(t *testing.T) {
	s := New(zap.NewNop(), nil)
	defer s.Stop()

	done := make(chan struct{})
	s.Schedule("close:a", 10*time.Millisecond, func(context.Context) { close(done) })
	assert.True(t, s.Pending("close:a"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	assert.Eventually(t, func() bool { return !s.Pending("close:a") }, time.Second, 5*time.Millisecond)
}

func TestScheduler_CancelPreventsRun(t *testing.T) {
	s := New(zap.NewNop(), nil)
	defer s.Stop()

	var ran atomic.Bool
	s.Schedule("close:a", 20*time.Millisecond, func(context.Context) { ran.Store(true) })

	require.True(t, s.Cancel("close:a"))
	assert.False(t, s.Cancel("close:a"))

	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestScheduler_ReplaceKeepsOnlyLatest(t *testing.T) {
	s := New(zap.NewNop(), nil)
	defer s.Stop()

	var calls atomic.Int32
	var last atomic.Int32
	s.Schedule("k", 20*time.Millisecond, func(context.Context) { calls.Add(1); last.Store(1) })
	s.Schedule("k", 20*time.Millisecond, func(context.Context) { calls.Add(1); last.Store(2) })
	assert.Equal(t, 1, s.Len())

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(2), last.Load())
}

func TestScheduler_StopDropsPending(t *testing.T) {
	var observed atomic.Int32
	s := New(zap.NewNop(), func(n int) { observed.Store(int32(n)) })

	var ran atomic.Bool
	s.Schedule("k", 20*time.Millisecond, func(context.Context) { ran.Store(true) })
	assert.Equal(t, int32(1), observed.Load())

	s.Stop()
	assert.Equal(t, int32(0), observed.Load())
	time.Sleep(40 * time.Millisecond)
	assert.False(t, ran.Load())

	s.Schedule("k", time.Millisecond, func(context.Context) { ran.Store(true) })
	assert.False(t, s.Pending("k"))
}

func TestScheduler_RecoversPanics(t *testing.T) {
	s := New(zap.NewNop(), nil)
	defer s.Stop()

	done := make(chan struct{})
	s.Schedule("boom", time.Millisecond, func(context.Context) { panic("boom") })
	s.Schedule("after", 5*time.Millisecond, func(context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler stopped running tasks after a panic")
	}
}
