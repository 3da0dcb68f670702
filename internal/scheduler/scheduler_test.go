package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNextRun(t *testing.T) {
	from := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	next, err := NextRun("0 3 * * *", "UTC", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 3, 0, 0, 0, time.UTC), next)

	// 03:00 в São Paulo (UTC-3) — 06:00 UTC
	next, err = NextRun("0 3 * * *", "America/Sao_Paulo", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 6, 0, 0, 0, time.UTC), next)

	next, err = NextRun("@hourly", "", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), next)

	_, err = NextRun("0 3 * * *", "Mars/Olympus", from)
	assert.Error(t, err)
}

func TestValidateCronExpr(t *testing.T) {
	assert.NoError(t, ValidateCronExpr("*/15 * * * *"))
	assert.NoError(t, ValidateCronExpr("@daily"))
	assert.Error(t, ValidateCronExpr("* * *"))
	assert.Error(t, ValidateCronExpr("61 * * * *"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{CronExpr: "@daily"})
	assert.Error(t, err)

	_, err = New(Config{CronExpr: "bad", Job: func(context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestTrigger_NoOverlap(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	s, err := New(Config{
		CronExpr: "@daily",
		Logger:   discard,
		Job: func(ctx context.Context) error {
			calls.Add(1)
			close(started)
			<-release
			return nil
		},
	})
	require.NoError(t, err)

	done := make(chan bool)
	go func() { done <- s.Trigger(context.Background()) }()
	<-started

	assert.False(t, s.Trigger(context.Background()))
	close(release)
	assert.True(t, <-done)

	runs, skipped := s.Stats()
	assert.EqualValues(t, 1, runs)
	assert.EqualValues(t, 1, skipped)
	assert.EqualValues(t, 1, calls.Load())
}

func TestTrigger_JobErrorDoesNotStopScheduler(t *testing.T) {
	var calls atomic.Int32
	s, err := New(Config{
		CronExpr: "@daily",
		Logger:   discard,
		Job: func(context.Context) error {
			calls.Add(1)
			return errors.New("load failed")
		},
	})
	require.NoError(t, err)

	assert.True(t, s.Trigger(context.Background()))
	assert.True(t, s.Trigger(context.Background()))
	assert.EqualValues(t, 2, calls.Load())
}

type fakeLocker struct {
	grant    bool
	tries    int
	unlocked bool
}

func (f *fakeLocker) TryLock(context.Context) (bool, error) {
	f.tries++
	return f.grant, nil
}

func (f *fakeLocker) Unlock(context.Context) error {
	f.unlocked = true
	return nil
}

func TestTrigger_RequiresLeadership(t *testing.T) {
	locker := &fakeLocker{}
	var calls atomic.Int32
	s, err := New(Config{
		CronExpr: "@daily",
		Logger:   discard,
		Locker:   locker,
		Job: func(context.Context) error {
			calls.Add(1)
			return nil
		},
	})
	require.NoError(t, err)

	assert.False(t, s.Trigger(context.Background()))
	assert.Zero(t, calls.Load())

	locker.grant = true
	assert.True(t, s.Trigger(context.Background()))
	assert.True(t, s.Trigger(context.Background()))
	assert.Equal(t, 2, locker.tries)
	assert.EqualValues(t, 2, calls.Load())
}

func TestRun_RunOnStartAndStop(t *testing.T) {
	ran := make(chan struct{}, 1)
	locker := &fakeLocker{grant: true}
	s, err := New(Config{
		CronExpr:   "@yearly",
		Timezone:   "UTC",
		RunOnStart: true,
		Locker:     locker,
		Logger:     discard,
		Job: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() { errCh <- s.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.True(t, locker.unlocked)
}
