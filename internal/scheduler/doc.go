// Package scheduler запускает выгрузки по cron-расписанию.
//
// Структура:
//   - scheduler.go — Scheduler (Run, Trigger, лидерство через Locker)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    CronExpr: "0 3 * * *",
//	    Timezone: "America/Sao_Paulo",
//	    Job:      job,
//	    Locker:   repo.NewAdvisoryLock(pool, key), // опционально
//	    Logger:   logger,
//	})
//	err = sched.Run(ctx)
//
// Запуски одного Scheduler не пересекаются. Между экземплярами
// лидерство определяет Locker (pg_try_advisory_lock для live-store).
// Контекст Job несёт логгер тика (telemetry.FromContext).
package scheduler
