package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestScheduler_SkipsOverlappingTicks(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int32

	s := New(func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return nil
	}, time.Minute, arbor.NewLogger())

	done := make(chan struct{})
	go func() {
		s.tick()
		close(done)
	}()
	<-started

	s.tick() // overlaps the first run
	close(release)
	<-done

	stats := s.Stats()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, stats.Runs)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Failures)
}

func TestScheduler_CountsFailuresAndPanics(t *testing.T) {
	var n int32
	s := New(func(ctx context.Context) error {
		switch atomic.AddInt32(&n, 1) {
		case 1:
			return errors.New("welcome mismatch")
		case 2:
			panic("boom")
		}
		return nil
	}, time.Minute, arbor.NewLogger())

	s.tick()
	s.tick()
	s.tick()

	stats := s.Stats()
	assert.Equal(t, 3, stats.Runs)
	assert.Equal(t, 2, stats.Failures)
}

func TestScheduler_RunTimeout(t *testing.T) {
	var deadline time.Time
	s := New(func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}, 5*time.Second, arbor.NewLogger())

	s.tick()
	assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)
}

func TestScheduler_StartAndStop(t *testing.T) {
	var calls int32
	s := New(func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, time.Minute, arbor.NewLogger())

	require.Error(t, s.Start("not a schedule"))

	require.NoError(t, s.Start("* * * * * *"))
	assert.Error(t, s.Start("* * * * * *"), "second start must fail")
	assert.False(t, s.Stats().NextRun.IsZero())

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) > 0
	}, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx), "stopping twice is a no-op")
}
