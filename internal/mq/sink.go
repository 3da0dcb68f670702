package mq

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/legisync/internal/domain"
)

// publishTimeout — предел ожидания брокера на одно событие.
const publishTimeout = 5 * time.Second

// ProgressPublisher — часть Publisher, нужная sink.
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, ev ProgressPayload) error
}

// ProgressSink возвращает обработчик для pipeline.Progress.Attach, который
// публикует события run в брокер. Ошибки публикации не влияют на run:
// первая логируется на WARN, остальные на DEBUG.
func ProgressSink(pub ProgressPublisher, runID uuid.UUID, entity string, logger *slog.Logger) func(domain.ProgressEvent) {
	if logger == nil {
		logger = slog.Default()
	}
	warned := false

	return func(ev domain.ProgressEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		err := pub.PublishProgress(ctx, ProgressPayload{
			RunID:   runID,
			Entity:  entity,
			Stage:   ev.Stage,
			Percent: ev.Percent,
			Message: ev.Message,
			At:      ev.At,
		})
		if err == nil {
			return
		}
		if !warned {
			warned = true
			logger.Warn("progress publish failed", "error", err)
			return
		}
		logger.Debug("progress publish failed", "stage", ev.Stage, "error", err)
	}
}
