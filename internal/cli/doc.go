// Package cli реализует команды legisync.
//
// # Обзор
//
// CLI запускает ETL-выгрузки законодательных данных: каждая сущность
// проходит validate → extract → transform → load в собственном run.
//
// # Ключевые компоненты
//
// ## App
//
// Выполняет список сущностей с одной RunConfig: одно хранилище на вызов,
// свой Run, BatchWriter и StageStats на сущность. Отчёт каждого run
// сохраняется в etl_runs/{run_id} (кроме dry-run).
//
//	app := &cli.App{Config: cfg, Logger: logger}
//	reports, err := app.RunEntities(ctx, []string{"senators", "committees"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения и логи — в stderr.
// Это позволяет использовать pipe: legisync run committees --json | jq .
//
// ## Commands
//
//   - run ENTITY...       — выгрузка
//   - validate [ENTITY...] — проверка конфигурации
//   - entities            — список сущностей
//   - schedule ENTITY...  — выгрузка по cron (schedule next — ближайшие запуски)
//   - watch [ENTITY...]   — события прогресса из брокера
//
// Каждая команда создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей *Globals — persistent-флаги корневой команды.
package cli
