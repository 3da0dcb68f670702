// Package fetcher выполняет список внешних вызовов окнами фиксированной
// ширины, оборачивая каждый вызов в retry.Policy и выдерживая паузу
// между окнами.
//
// Ширина окна — единственный механизм backpressure против внешнего API:
// одновременно в полёте не больше Concurrency вызовов.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shaiso/legisync/internal/retry"
)

// Значения по умолчанию.
const (
	defaultConcurrency = 5
)

// WorkItem — единица планирования: непрозрачный ключ (например, код сущности).
type WorkItem[K comparable] struct {
	Key K
}

// Items создаёт WorkItem для каждого ключа.
func Items[K comparable](keys []K) []WorkItem[K] {
	items := make([]WorkItem[K], len(keys))
	for i, k := range keys {
		items[i] = WorkItem[K]{Key: k}
	}
	return items
}

// Result — результат обработки одного WorkItem: либо Value, либо Err.
type Result[K comparable, V any] struct {
	Item     WorkItem[K]
	Value    V
	Err      error
	Attempts int
}

// OK возвращает true, если вызов завершился успешно.
func (r Result[K, V]) OK() bool {
	return r.Err == nil
}

// ChunkInfo — сведения о завершённом окне для колбэка прогресса.
type ChunkInfo struct {
	Index    int
	Chunks   int
	Size     int
	Failed   int
	Done     int
	Total    int
	Duration time.Duration
}

// Fetcher — планировщик внешних вызовов.
type Fetcher struct {
	concurrency int
	pacing      time.Duration
	policy      retry.Policy
	limiter     *rate.Limiter
	onChunk     func(ChunkInfo)
	logger      *slog.Logger
}

// Config — конфигурация Fetcher.
type Config struct {
	// Concurrency — ширина окна (default: 5).
	Concurrency int

	// Pacing — пауза между окнами.
	Pacing time.Duration

	// Retry — политика повторов для каждого вызова.
	Retry retry.Policy

	// RequestsPerSecond — дополнительный лимит частоты вызовов (0 — без лимита).
	RequestsPerSecond float64

	// OnChunk вызывается после завершения каждого окна (в вызывающей горутине).
	OnChunk func(ChunkInfo)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Fetcher.
func New(cfg Config) *Fetcher {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		// burst = ширина окна: окно стартует целиком, если токены накоплены
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), concurrency)
	}

	return &Fetcher{
		concurrency: concurrency,
		pacing:      cfg.Pacing,
		policy:      cfg.Retry,
		limiter:     limiter,
		onChunk:     cfg.OnChunk,
		logger:      logger,
	}
}

// Concurrency возвращает ширину окна.
func (f *Fetcher) Concurrency() int {
	return f.concurrency
}

// Fetch выполняет fn для каждого item.
//
// Список делится на последовательные окна ширины Concurrency. Элементы
// одного окна выполняются параллельно, следующее окно стартует только
// после завершения всех вызовов текущего и паузы Pacing.
//
// Ошибки отдельных вызовов не прерывают обработку: они попадают в Result.Err.
// Возвращается по одному Result на каждый item в исходном порядке.
// Ошибка возвращается только при отмене ctx; results при этом содержат
// всё, что успело выполниться, а необработанные элементы помечены ошибкой ctx.
func Fetch[K comparable, V any](ctx context.Context, f *Fetcher, items []WorkItem[K], fn func(ctx context.Context, key K) (V, error)) ([]Result[K, V], error) {
	results := make([]Result[K, V], len(items))
	for i, item := range items {
		results[i].Item = item
	}

	chunks := Chunks(indexes(len(items)), f.concurrency)
	done := 0

	for ci, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			markRemaining(results, chunks[ci:], err)
			return results, fmt.Errorf("fetch chunk %d/%d: %w", ci+1, len(chunks), err)
		}

		start := time.Now()
		var group errgroup.Group

		for _, idx := range chunk {
			group.Go(func() error {
				res := &results[idx]
				policy := f.policy
				hook := policy.OnRetry
				policy.OnRetry = func(attempt int, err error, delay time.Duration) {
					f.logger.Debug("retrying call",
						"key", res.Item.Key,
						"attempt", attempt,
						"delay", delay,
						"error", err,
					)
					if hook != nil {
						hook(attempt, err, delay)
					}
				}

				label := fmt.Sprintf("fetch %v", res.Item.Key)
				res.Value, res.Err = retry.Do(ctx, policy, label, func(ctx context.Context) (V, error) {
					res.Attempts++
					if f.limiter != nil {
						if err := f.limiter.Wait(ctx); err != nil {
							var zero V
							return zero, retry.Permanent(err)
						}
					}
					return fn(ctx, res.Item.Key)
				})
				// Ошибка элемента не должна отменять соседей по окну
				return nil
			})
		}
		_ = group.Wait()

		failed := 0
		for _, idx := range chunk {
			if results[idx].Err != nil {
				failed++
			}
		}
		done += len(chunk)

		info := ChunkInfo{
			Index:    ci,
			Chunks:   len(chunks),
			Size:     len(chunk),
			Failed:   failed,
			Done:     done,
			Total:    len(items),
			Duration: time.Since(start),
		}
		f.logger.Debug("chunk completed",
			"chunk", ci+1,
			"chunks", len(chunks),
			"size", info.Size,
			"failed", failed,
			"duration", info.Duration,
		)
		if f.onChunk != nil {
			f.onChunk(info)
		}

		// Пауза между окнами, но не после последнего
		if ci < len(chunks)-1 && f.pacing > 0 {
			if err := pause(ctx, f.pacing); err != nil {
				markRemaining(results, chunks[ci+1:], err)
				return results, fmt.Errorf("pacing after chunk %d/%d: %w", ci+1, len(chunks), err)
			}
		}
	}

	return results, nil
}

// Chunks делит items на последовательные куски длиной не больше size.
// Последний кусок содержит остаток.
func Chunks[T any](items []T, size int) [][]T {
	if len(items) == 0 || size <= 0 {
		return nil
	}

	numChunks := (len(items) + size - 1) / size
	result := make([][]T, 0, numChunks)

	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		result = append(result, items[i:end])
	}

	return result
}

// indexes возвращает [0, 1, ..., n-1].
func indexes(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// markRemaining помечает необработанные элементы ошибкой отмены.
func markRemaining[K comparable, V any](results []Result[K, V], chunks [][]int, err error) {
	for _, chunk := range chunks {
		for _, idx := range chunk {
			if results[idx].Err == nil && results[idx].Attempts == 0 {
				results[idx].Err = err
			}
		}
	}
}

// pause ждёт d с учётом отмены ctx.
func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
