package pipeline

import (
	"log/slog"

	"github.com/shaiso/legisync/internal/domain"
)

// LogSink возвращает обработчик событий прогресса для Progress.Attach.
// Вход в стадию логируется на INFO, промежуточные события на DEBUG.
func LogSink(logger *slog.Logger) func(domain.ProgressEvent) {
	var stage domain.ProcessingStatus

	return func(ev domain.ProgressEvent) {
		if ev.Stage != stage {
			stage = ev.Stage
			logger.Info("stage entered", "stage", ev.Stage, "percent", ev.Percent)
			return
		}
		logger.Debug("progress", "stage", ev.Stage, "percent", ev.Percent, "message", ev.Message)
	}
}
