package config

import (
	"net/url"
	"os"

	"github.com/shaiso/legisync/internal/domain"
	"github.com/shaiso/legisync/internal/retry"
	"github.com/shaiso/legisync/internal/store"
)

// Пороги предупреждений.
const (
	highConcurrency = 20
	maxLegislature  = 100
)

// Validate проверяет конфигурацию.
//
// Ошибки делают запуск невозможным; предупреждения только логируются.
// Проверка не выполняет I/O, кроме чтения окружения.
func (c RunConfig) Validate() domain.ValidationResult {
	v := domain.NewValidationResult()

	if c.Concurrency < 1 {
		v.AddError("concurrency must be >= 1, got %d", c.Concurrency)
	} else if c.Concurrency > highConcurrency {
		v.AddWarning("concurrency %d is high and may trigger rate limiting", c.Concurrency)
	}

	if c.MaxAttempts < 1 {
		v.AddError("max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.RetryDelay < 0 {
		v.AddError("retry_delay must be >= 0, got %s", c.RetryDelay)
	}
	if c.RetryBackoff != "" && c.RetryBackoff != retry.BackoffFixed && c.RetryBackoff != retry.BackoffExponential {
		v.AddError("retry_backoff must be %q or %q, got %q", retry.BackoffFixed, retry.BackoffExponential, c.RetryBackoff)
	}

	if c.PacingDelay < 0 {
		v.AddError("pacing_delay must be >= 0, got %s", c.PacingDelay)
	} else if c.PacingDelay == 0 && c.RequestsPerSecond <= 0 {
		v.AddWarning("pacing_delay is 0 and no request rate limit is set")
	}
	if c.RequestsPerSecond < 0 {
		v.AddError("requests_per_second must be >= 0, got %v", c.RequestsPerSecond)
	}

	if c.Limit < 0 {
		v.AddError("limit must be >= 0, got %d", c.Limit)
	}
	if c.BatchSize < 0 {
		v.AddError("batch_size must be >= 0, got %d", c.BatchSize)
	} else if c.BatchSize > store.MaxBatchSize {
		v.AddWarning("batch_size %d exceeds the store limit, %d will be used", c.BatchSize, store.MaxBatchSize)
	}

	if c.Legislature < 1 || c.Legislature > maxLegislature {
		v.AddError("legislature must be in 1..%d, got %d", maxLegislature, c.Legislature)
	}

	from, errFrom := c.FromDate()
	if errFrom != nil {
		v.AddError("from must be YYYY-MM-DD, got %q", c.From)
	}
	to, errTo := c.ToDate()
	if errTo != nil {
		v.AddError("to must be YYYY-MM-DD, got %q", c.To)
	}
	if errFrom == nil && errTo == nil && !from.IsZero() && !to.IsZero() && to.Before(from) {
		v.AddError("period is empty: to %s is before from %s", c.To, c.From)
	}

	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		v.AddError("api_base_url must be an absolute URL, got %q", c.APIBaseURL)
	}

	v.Merge(c.validateDestination())

	if c.DryRun {
		v.AddWarning("dry run: nothing will be written to %s", c.Destination)
	}

	return v
}

// validateDestination проверяет параметры выбранного хранилища.
func (c RunConfig) validateDestination() domain.ValidationResult {
	v := domain.NewValidationResult()

	dest, ok := c.DestinationKind()
	if !ok {
		v.AddError("destination must be one of local-file, emulator, live-store, got %q", c.Destination)
		return v
	}

	// dry-run не открывает хранилище
	if c.DryRun {
		return v
	}

	switch dest {
	case domain.DestinationLocalFile:
		if c.OutputDir == "" {
			v.AddError("output_dir is required for local-file destination")
		}
		if c.OutputFormat != "" && c.OutputFormat != store.FormatJSON && c.OutputFormat != store.FormatYAML {
			v.AddError("output_format must be json or yaml, got %q", c.OutputFormat)
		}
	case domain.DestinationEmulator:
		if os.Getenv(store.EmulatorHostEnv) == "" {
			v.AddError("%s must be set for emulator destination", store.EmulatorHostEnv)
		}
	case domain.DestinationLiveStore:
		if c.DBURL == "" {
			v.AddError("db_url (or DB_URL) is required for live-store destination")
		}
	}

	return v
}
