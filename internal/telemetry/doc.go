// Package telemetry обеспечивает наблюдаемость ETL-запусков.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// CLI пишет логи в stderr, демон планировщика дополнительно
// экспортирует метрики на /metrics endpoint.
package telemetry
