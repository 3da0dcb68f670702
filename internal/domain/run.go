package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunReport — отчёт одного запуска pipeline для одного типа сущности.
//
// Единственный артефакт, переживающий run: сохраняется документом
// etl_runs/{id} и печатается CLI.
type RunReport struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Entity — тип сущности (senators, committees, ...).
	Entity string `json:"entity"`

	// Status — итоговый статус.
	Status ProcessingStatus `json:"status"`

	// Destination — куда писались документы.
	Destination Destination `json:"destination"`

	// DryRun — запись в хранилище не выполнялась.
	DryRun bool `json:"dry_run,omitempty"`

	// Validation — результат проверки конфигурации.
	Validation ValidationResult `json:"validation"`

	// Stats — счётчики стадий.
	Stats StageStats `json:"stats"`

	// Result — отчёт стадии load. Nil, если run не дошёл до load.
	Result *BatchResult `json:"result,omitempty"`

	// Error — текст фатальной ошибки.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала run.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения. Nil, пока run выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration возвращает продолжительность run.
// Возвращает 0, если run ещё не завершён.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Document возвращает отчёт в виде payload для хранилища документов.
func (r *RunReport) Document() map[string]any {
	doc := map[string]any{
		"id":          r.ID.String(),
		"entity":      r.Entity,
		"status":      string(r.Status),
		"destination": string(r.Destination),
		"dry_run":     r.DryRun,
		"stats": map[string]any{
			"extraction":     counterDoc(r.Stats.Extraction),
			"transformation": counterDoc(r.Stats.Transformation),
			"load":           counterDoc(r.Stats.Load),
			"warnings":       r.Stats.Warnings,
			"errors":         r.Stats.Errors,
		},
		"started_at": r.StartedAt.UTC().Format(time.RFC3339),
	}
	if r.FinishedAt != nil {
		doc["finished_at"] = r.FinishedAt.UTC().Format(time.RFC3339)
		doc["duration_ms"] = r.Duration().Milliseconds()
	}
	if r.Error != "" {
		doc["error"] = r.Error
	}
	if r.Result != nil {
		doc["result"] = map[string]any{
			"total":     r.Result.Total,
			"processed": r.Result.Processed,
			"succeeded": r.Result.Succeeded,
			"failed":    r.Result.Failed,
		}
	}
	return doc
}

func counterDoc(c StageCounter) map[string]any {
	return map[string]any{
		"total":     c.Total,
		"succeeded": c.Succeeded,
		"failed":    c.Failed,
	}
}
