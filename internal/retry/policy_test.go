package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_AlwaysFails_AttemptsExactlyMax(t *testing.T) {
	boom := errors.New("boom")
	calls := 0

	_, err := Do(context.Background(), Policy{MaxAttempts: 4, Delay: time.Millisecond}, "always",
		func(context.Context) (int, error) {
			calls++
			return 0, boom
		})

	if !errors.Is(err, boom) {
		t.Fatalf("expected last error to be returned, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 attempts, got %d", calls)
	}
}

func TestDo_SucceedsOnAttemptK(t *testing.T) {
	for k := 1; k <= 3; k++ {
		calls := 0
		got, err := Do(context.Background(), Policy{MaxAttempts: 3, Delay: time.Millisecond}, "eventually",
			func(context.Context) (string, error) {
				calls++
				if calls < k {
					return "", errors.New("not yet")
				}
				return "ok", nil
			})

		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		if got != "ok" {
			t.Errorf("k=%d: expected ok, got %q", k, got)
		}
		if calls != k {
			t.Errorf("k=%d: expected %d attempts, got %d", k, k, calls)
		}
	}
}

func TestDo_PermanentStopsEarly(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 5, Delay: time.Millisecond}, "permanent",
		func(context.Context) (int, error) {
			calls++
			return 0, Permanent(errors.New("not found"))
		})

	if err == nil || !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	start := time.Now()
	_, err := Do(ctx, Policy{MaxAttempts: 3, Delay: time.Hour}, "cancel",
		func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, errors.New("fail")
		})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation should interrupt the delay")
	}
}

func TestDo_OnRetryHook(t *testing.T) {
	var attempts []int
	p := Policy{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		OnRetry: func(attempt int, _ error, _ time.Duration) {
			attempts = append(attempts, attempt)
		},
	}

	_, _ = Do(context.Background(), p, "hook", func(context.Context) (int, error) {
		return 0, errors.New("fail")
	})

	// Хук вызывается перед каждым повтором, но не после последней попытки
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected retry attempts: %v", attempts)
	}
}

func TestBackoffFor_Fixed(t *testing.T) {
	p := Policy{Delay: 200 * time.Millisecond}
	for attempt := 1; attempt <= 5; attempt++ {
		if got := p.BackoffFor(attempt); got != 200*time.Millisecond {
			t.Errorf("attempt %d: expected 200ms, got %v", attempt, got)
		}
	}
}

func TestBackoffFor_Exponential(t *testing.T) {
	p := Policy{
		Backoff:  BackoffExponential,
		Delay:    100 * time.Millisecond,
		MaxDelay: time.Second,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{10, time.Second},
	}

	for _, tt := range tests {
		if got := p.BackoffFor(tt.attempt); got != tt.want {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}

func TestBackoffFor_JitterWithinBounds(t *testing.T) {
	p := Policy{Delay: 50 * time.Millisecond, Jitter: true}
	for i := 0; i < 100; i++ {
		got := p.BackoffFor(1)
		if got < 0 || got > 50*time.Millisecond {
			t.Fatalf("jittered delay out of bounds: %v", got)
		}
	}
}

func TestBackoffFor_ZeroDelay(t *testing.T) {
	var p Policy
	for attempt := 1; attempt <= 3; attempt++ {
		if got := p.BackoffFor(attempt); got != 0 {
			t.Errorf("attempt %d: expected no delay, got %v", attempt, got)
		}
	}
	p.Backoff = BackoffExponential
	p.Jitter = true
	if got := p.BackoffFor(4); got != 0 {
		t.Errorf("exponential with zero delay: expected no delay, got %v", got)
	}
	if p.Attempts() != 3 {
		t.Errorf("expected 3 default attempts, got %d", p.Attempts())
	}
}

func TestDo_ZeroDelayDoesNotSleep(t *testing.T) {
	calls := 0
	start := time.Now()

	_, err := Do(context.Background(), Policy{MaxAttempts: 3}, "no-delay",
		func(context.Context) (int, error) {
			calls++
			return 0, errors.New("boom")
		})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("zero delay should not sleep, took %v", elapsed)
	}
}
