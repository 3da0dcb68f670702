// Package pipeline проводит один ETL-запуск через стадии
// validate → extract → transform → load.
//
// Жизненный цикл Run:
//
//	INITIALIZING → VALIDATING → EXTRACTING → TRANSFORMING → LOADING → DONE
//	          ↘ FAILED (из любого нетерминального состояния)
//
// Run одноразовый и принадлежит одной горутине. Параллельные запуски
// создают собственные Run со своими StageStats и BatchWriter.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/legisync/internal/config"
	"github.com/shaiso/legisync/internal/domain"
	"github.com/shaiso/legisync/internal/store"
	"github.com/shaiso/legisync/internal/telemetry"
)

// Run — состояние одного запуска для одного типа сущности.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID

	// Entity — тип сущности.
	Entity string

	// Config — конфигурация; не меняется во время run.
	Config config.RunConfig

	// Stats — счётчики стадий, принадлежат только этому run.
	Stats domain.StageStats

	// Writer — буфер записи в хранилище.
	Writer *store.BatchWriter

	// Progress — рассылка событий прогресса.
	Progress *Progress

	// Logger — логгер с run_id и entity.
	Logger *slog.Logger

	// Metrics — метрики (может быть nil).
	Metrics *telemetry.Metrics

	status     domain.ProcessingStatus
	executed   bool
	validation domain.ValidationResult
	result     *domain.BatchResult
	err        error
	startedAt  time.Time
	finishedAt *time.Time
}

// Options — зависимости Run.
type Options struct {
	Writer   *store.BatchWriter
	Progress *Progress
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
}

// NewRun создаёт Run в состоянии INITIALIZING.
func NewRun(entity string, cfg config.RunConfig, opts Options) *Run {
	id := uuid.New()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = telemetry.WithEntity(telemetry.WithRunID(logger, id.String()), entity)

	progress := opts.Progress
	if progress == nil {
		progress = NewProgress(0)
	}

	return &Run{
		ID:       id,
		Entity:   entity,
		Config:   cfg,
		Writer:   opts.Writer,
		Progress: progress,
		Logger:   logger,
		Metrics:  opts.Metrics,
		status:   domain.StatusInitializing,
	}
}

// Status возвращает текущее состояние.
func (r *Run) Status() domain.ProcessingStatus {
	return r.status
}

// Err возвращает фатальную ошибку run (nil, если run не упал).
func (r *Run) Err() error {
	return r.err
}

// ReportProgress публикует долю fraction (0..1) внутри текущей стадии.
func (r *Run) ReportProgress(fraction float64, message string) {
	ev := r.Progress.Emit(r.status, fraction, message)
	r.Metrics.SetProgress(r.Entity, ev.Percent)
}

// Report возвращает отчёт run.
func (r *Run) Report() domain.RunReport {
	dest, _ := r.Config.DestinationKind()
	report := domain.RunReport{
		ID:          r.ID,
		Entity:      r.Entity,
		Status:      r.status,
		Destination: dest,
		DryRun:      r.Config.DryRun,
		Validation:  r.validation,
		Stats:       r.Stats,
		Result:      r.result,
		StartedAt:   r.startedAt,
		FinishedAt:  r.finishedAt,
	}
	if r.err != nil {
		report.Error = r.err.Error()
	}
	return report
}

// transition переводит run в состояние to и публикует событие входа.
func (r *Run) transition(to domain.ProcessingStatus) error {
	if !r.status.CanTransitionTo(to) {
		return fmt.Errorf("invalid transition %s → %s", r.status, to)
	}

	from := r.status
	r.status = to
	r.Logger.Debug("run state changed", "from", from, "to", to)
	r.ReportProgress(0, string(to))
	return nil
}

// fail переводит run в FAILED.
func (r *Run) fail(err error) error {
	r.err = err
	stage := r.status
	if !r.status.IsTerminal() {
		r.status = domain.StatusFailed
	}
	r.finish()

	telemetry.WithStage(r.Logger, string(stage)).Error("run failed", "error", err)
	r.Progress.Emit(domain.StatusFailed, 0, err.Error())
	return err
}

func (r *Run) finish() {
	now := time.Now()
	r.finishedAt = &now
	r.Metrics.ObserveRun(r.Entity, string(r.status), now.Sub(r.startedAt))
}
