package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/legisync/internal/config"
	"github.com/shaiso/legisync/internal/domain"
	"github.com/shaiso/legisync/internal/entities"
	"github.com/shaiso/legisync/internal/mq"
	"github.com/shaiso/legisync/internal/pipeline"
	"github.com/shaiso/legisync/internal/source"
	"github.com/shaiso/legisync/internal/store"
	"github.com/shaiso/legisync/internal/telemetry"
)

// reportsCollection — коллекция отчётов о запусках.
const reportsCollection = "etl_runs"

// sideEffectTimeout — предел для записи отчёта и публикации итога.
const sideEffectTimeout = 5 * time.Second

// RunPublisher — часть mq.Publisher, нужная App.
type RunPublisher interface {
	mq.ProgressPublisher
	PublishRunFinished(ctx context.Context, report domain.RunReport) error
}

// OpenFunc открывает хранилище.
type OpenFunc func(ctx context.Context, opts store.Options, logger *slog.Logger) (store.Backend, error)

// App выполняет запуски сущностей с одной конфигурацией.
type App struct {
	Config   config.RunConfig
	Registry *entities.Registry
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics

	// Source — клиент API; nil — source.Client по Config.
	Source entities.Getter

	// Publisher — публикация прогресса; nil — не публиковать.
	Publisher RunPublisher

	// Open — выбор хранилища; nil — store.Open.
	Open OpenFunc
}

// RunEntities выполняет сущности последовательно, каждую в собственном Run.
//
// Ошибка одной сущности не прерывает остальные. Возвращаются отчёты всех
// выполненных run и объединённая ошибка упавших.
func (a *App) RunEntities(ctx context.Context, names []string) ([]domain.RunReport, error) {
	logger := a.logger()

	processors := make([]*entities.Adapter, 0, len(names))
	src := a.source()
	for _, name := range names {
		p, err := a.registry().Adapter(name, src)
		if err != nil {
			return nil, pipeline.MarkConfiguration(err)
		}
		processors = append(processors, p)
	}

	backend, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		defer func() {
			if err := backend.Close(); err != nil {
				logger.Warn("store close failed", "error", err)
			}
		}()
	}

	reports := make([]domain.RunReport, 0, len(processors))
	var errs []error
	for _, p := range processors {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		report, err := a.runOne(ctx, p, backend)
		reports = append(reports, report)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}

	return reports, errors.Join(errs...)
}

// runOne выполняет одну сущность.
func (a *App) runOne(ctx context.Context, p *entities.Adapter, backend store.Backend) (domain.RunReport, error) {
	var writer *store.BatchWriter
	if backend != nil {
		writer = store.NewBatchWriter(backend, a.Config.BatchSize)
	}

	run := pipeline.NewRun(p.Name(), a.Config, pipeline.Options{
		Writer:  writer,
		Logger:  a.logger(),
		Metrics: a.Metrics,
	})

	stops := []func(){run.Progress.Attach(pipeline.LogSink(run.Logger))}
	if a.Publisher != nil {
		stops = append(stops, run.Progress.Attach(mq.ProgressSink(a.Publisher, run.ID, run.Entity, run.Logger)))
	}

	_, err := pipeline.Execute[entities.Extracted, entities.Transformed](ctx, run, p)
	for _, stop := range stops {
		stop()
	}

	report := run.Report()
	if backend != nil && !a.Config.DryRun {
		a.persistReport(backend, report, run.Logger)
	}
	if a.Publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		if perr := a.Publisher.PublishRunFinished(pubCtx, report); perr != nil {
			run.Logger.Warn("run summary publish failed", "error", perr)
		}
		cancel()
	}
	return report, err
}

// persistReport пишет отчёт в etl_runs/{run_id}. Ошибка не влияет на run.
func (a *App) persistReport(backend store.Backend, report domain.RunReport, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	w := store.NewBatchWriter(backend, 1)
	if err := w.Set(reportsCollection, report.ID.String(), report.Document()); err != nil {
		logger.Warn("run report not saved", "error", err)
		return
	}
	if _, err := w.CommitAndReset(ctx); err != nil {
		logger.Warn("run report not saved", "error", err)
		return
	}
	logger.Debug("run report saved", "path", reportsCollection+"/"+report.ID.String())
}

// openBackend открывает хранилище. При ошибках базовой конфигурации
// возвращает nil: run упадёт на VALIDATING, не выполнив I/O.
func (a *App) openBackend(ctx context.Context) (store.Backend, error) {
	if a.Config.Validate().HasErrors() {
		return nil, nil
	}

	dest, _ := a.Config.DestinationKind()
	open := a.Open
	if open == nil {
		open = store.Open
	}

	backend, err := open(ctx, store.Options{
		Destination: dest,
		DryRun:      a.Config.DryRun,
		OutputDir:   a.Config.OutputDir,
		Format:      a.Config.OutputFormat,
		DBURL:       a.Config.DBURL,
	}, a.logger())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return backend, nil
}

func (a *App) source() entities.Getter {
	if a.Source != nil {
		return a.Source
	}
	return source.NewClient(source.Config{
		BaseURL:   a.Config.APIBaseURL,
		Timeout:   a.Config.HTTPTimeout,
		UserAgent: a.Config.UserAgent,
		OnRequest: a.Metrics.ObserveRequest,
		Logger:    a.logger(),
	})
}

func (a *App) registry() *entities.Registry {
	if a.Registry == nil {
		a.Registry = entities.DefaultRegistry()
	}
	return a.Registry
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
