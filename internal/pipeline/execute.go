package pipeline

import (
	"context"
	"time"

	"github.com/shaiso/legisync/internal/domain"
)

// Processor — хуки стадий для одного типа сущности.
//
// E — результат выгрузки, T — результат преобразования. Каждая стадия
// получает результат предыдущей по значению.
type Processor[E, T any] interface {
	// Name — имя типа сущности.
	Name() string

	// Validate проверяет параметры, специфичные для сущности.
	// Конфигурация run проверяется отдельно, до вызова хука.
	Validate(ctx context.Context, run *Run) domain.ValidationResult

	// Extract выгружает записи. Ошибки отдельных записей учитываются
	// в run.Stats; ошибка возвращается, только если нечего обрабатывать.
	Extract(ctx context.Context, run *Run) (E, error)

	// Transform нормализует записи в памяти, без I/O.
	// Неудачные записи отбрасываются с предупреждением.
	Transform(run *Run, in E) (T, error)

	// Load пишет документы. Любая ошибка фатальна; частичный
	// BatchResult возвращается вместе с ней.
	Load(ctx context.Context, run *Run, in T) (*domain.BatchResult, error)
}

// Execute проводит run через все стадии.
//
// Ошибка валидации возвращается как ErrConfiguration без BatchResult.
// Ошибка load возвращается вместе с частичным BatchResult.
// Стадии целиком никогда не повторяются. По завершении Progress закрывается.
func Execute[E, T any](ctx context.Context, run *Run, p Processor[E, T]) (*domain.BatchResult, error) {
	if run.executed {
		return nil, ErrRunReused
	}
	run.executed = true
	run.startedAt = time.Now()
	defer run.Progress.Close()

	run.Logger.Info("run started",
		"processor", p.Name(),
		"destination", run.Config.Destination,
		"dry_run", run.Config.DryRun,
	)

	// VALIDATING
	if err := run.transition(domain.StatusValidating); err != nil {
		return nil, run.fail(err)
	}
	validation := run.Config.Validate()
	validation.Merge(p.Validate(ctx, run))
	run.validation = validation

	for _, w := range validation.Warnings {
		run.Stats.AddWarning()
		run.Logger.Warn("configuration warning", "warning", w)
	}
	if validation.HasErrors() {
		return nil, run.fail(ConfigurationError(validation))
	}
	run.ReportProgress(1, "configuration valid")

	// EXTRACTING
	if err := run.enter(ctx, domain.StatusExtracting); err != nil {
		return nil, err
	}
	extracted, err := p.Extract(ctx, run)
	if err != nil {
		return nil, run.fail(err)
	}
	run.Metrics.AddItems(run.Entity, string(domain.StageExtraction), run.Stats.Extraction.Succeeded, run.Stats.Extraction.Failed)
	run.Logger.Info("extraction completed",
		"total", run.Stats.Extraction.Total,
		"succeeded", run.Stats.Extraction.Succeeded,
		"failed", run.Stats.Extraction.Failed,
	)

	// TRANSFORMING
	if err := run.enter(ctx, domain.StatusTransforming); err != nil {
		return nil, err
	}
	transformed, err := p.Transform(run, extracted)
	if err != nil {
		return nil, run.fail(err)
	}
	run.ReportProgress(1, "transformation completed")
	run.Metrics.AddItems(run.Entity, string(domain.StageTransformation), run.Stats.Transformation.Succeeded, run.Stats.Transformation.Failed)
	run.Logger.Info("transformation completed",
		"total", run.Stats.Transformation.Total,
		"succeeded", run.Stats.Transformation.Succeeded,
		"failed", run.Stats.Transformation.Failed,
	)

	// LOADING
	if err := run.enter(ctx, domain.StatusLoading); err != nil {
		return nil, err
	}
	result, err := p.Load(ctx, run, transformed)
	run.result = result
	if err != nil {
		return result, run.fail(err)
	}
	if result == nil {
		result = domain.NewBatchResult(0)
		run.result = result
	}

	// DONE
	if err := run.transition(domain.StatusDone); err != nil {
		return result, run.fail(err)
	}
	run.finish()

	run.Logger.Info("run completed",
		"duration", run.finishedAt.Sub(run.startedAt),
		"documents", result.Succeeded,
		"warnings", run.Stats.Warnings,
		"errors", run.Stats.Errors,
	)
	return result, nil
}

// enter проверяет отмену ctx и переводит run в следующую стадию.
func (r *Run) enter(ctx context.Context, to domain.ProcessingStatus) error {
	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}
	if err := r.transition(to); err != nil {
		return r.fail(err)
	}
	return nil
}
