// Package retry оборачивает одну единицу работы (один внешний вызов)
// ограниченным числом попыток с задержкой между ними.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Стратегии вычисления задержки.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Значения по умолчанию.
const (
	defaultMaxAttempts = 3
	defaultMaxDelay    = 30 * time.Second
)

// Policy — политика повторных попыток.
type Policy struct {
	// MaxAttempts — максимальное число попыток (включая первую). Default: 3.
	MaxAttempts int

	// Delay — задержка между попытками (для exponential — начальная).
	// Ноль означает повтор без ожидания.
	Delay time.Duration

	// Backoff — "fixed" (по умолчанию) или "exponential".
	Backoff string

	// MaxDelay — потолок задержки для exponential. Default: 30s.
	MaxDelay time.Duration

	// Jitter — случайная задержка в [0, delay] вместо delay (full jitter).
	Jitter bool

	// OnRetry вызывается перед ожиданием очередной попытки.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Attempts возвращает число попыток с учётом значения по умолчанию.
func (p Policy) Attempts() int {
	if p.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return p.MaxAttempts
}

// BackoffFor вычисляет задержку перед попыткой attempt+1.
// attempt — номер завершившейся неудачей попытки (начиная с 1).
func (p Policy) BackoffFor(attempt int) time.Duration {
	initialDelay := p.Delay
	if initialDelay <= 0 {
		return 0
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	var delay time.Duration
	switch p.Backoff {
	case BackoffExponential:
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
				break
			}
		}
		if delay > maxDelay {
			delay = maxDelay
		}
	default:
		// "fixed" или неизвестный — используем initialDelay без потолка
		delay = initialDelay
	}

	if p.Jitter && delay > 0 {
		delay = time.Duration(rand.Int64N(int64(delay) + 1))
	}

	return delay
}

// Do выполняет fn не более MaxAttempts раз.
//
// Любая ошибка fn приводит к повтору, кроме помеченных Permanent.
// После исчерпания попыток возвращается последняя ошибка fn.
// Отмена ctx прерывает ожидание между попытками.
func Do[T any](ctx context.Context, p Policy, label string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	maxAttempts := p.Attempts()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: %w", label, err)
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if IsPermanent(err) || attempt == maxAttempts {
			break
		}

		delay := p.BackoffFor(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s: %w", label, err)
		}
	}

	return zero, lastErr
}

// sleep ждёт d с учётом отмены ctx.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// permanentError — ошибка, после которой повторять попытку бессмысленно.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как неповторяемую.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent проверяет, помечена ли ошибка через Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
