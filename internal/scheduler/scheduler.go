package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/legisync/internal/telemetry"
)

// Job — одна плановая выгрузка.
type Job func(ctx context.Context) error

// Locker — лидерство между несколькими экземплярами планировщика.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Config — конфигурация Scheduler.
type Config struct {
	// CronExpr — расписание ("0 3 * * *", "@daily").
	CronExpr string

	// Timezone — IANA timezone расписания. Default: UTC.
	Timezone string

	// Job — выгрузка, запускаемая по расписанию.
	Job Job

	// RunOnStart запускает Job сразу после старта.
	RunOnStart bool

	// Locker — опционально; без него экземпляр всегда лидер.
	Locker Locker

	Logger *slog.Logger
}

// Scheduler запускает Job по расписанию. Запуски не пересекаются:
// если предыдущий ещё идёт, очередной пропускается.
type Scheduler struct {
	schedule cron.Schedule
	loc      *time.Location
	job      Job
	locker   Locker
	logger   *slog.Logger
	onStart  bool

	running atomic.Bool
	leader  atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
}

// New создаёт Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Job == nil {
		return nil, errors.New("scheduler: job is required")
	}
	schedule, err := ParseCron(cfg.CronExpr)
	if err != nil {
		return nil, err
	}
	loc, err := LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedule: schedule,
		loc:      loc,
		job:      cfg.Job,
		locker:   cfg.Locker,
		logger:   logger.With("component", "scheduler", "cron", cfg.CronExpr),
		onStart:  cfg.RunOnStart,
	}, nil
}

// Next возвращает время следующего запуска после from.
func (s *Scheduler) Next(from time.Time) time.Time {
	return s.schedule.Next(from.In(s.loc))
}

// Run блокируется до отмены ctx. Идущий запуск получает отменённый ctx,
// Run дожидается его завершения.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger})),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() { s.Trigger(ctx) }))

	s.logger.Info("scheduler started", "next_run", s.Next(time.Now()))
	c.Start()

	var wg sync.WaitGroup
	if s.onStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Trigger(ctx)
		}()
	}

	<-ctx.Done()
	<-c.Stop().Done()
	wg.Wait()

	s.release()
	s.logger.Info("scheduler stopped", "runs", s.runs.Load(), "skipped", s.skipped.Load())
	return nil
}

// Trigger выполняет Job, если предыдущий запуск завершён и экземпляр
// является лидером. Возвращает true, если Job был запущен.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Warn("previous run still in progress, skipping")
		return false
	}
	defer s.running.Store(false)

	if !s.acquire(ctx) {
		return false
	}

	n := s.runs.Add(1)
	started := time.Now()
	logger := s.logger.With("tick", n)
	logger.Info("scheduled run started")

	// Job получает логгер тика через контекст
	if err := s.job(telemetry.WithLogger(ctx, logger)); err != nil {
		logger.Error("scheduled run failed", "error", err, "duration", time.Since(started))
	} else {
		logger.Info("scheduled run completed", "duration", time.Since(started))
	}
	s.logger.Debug("next run", "at", s.Next(time.Now()))
	return true
}

// Stats возвращает число выполненных и пропущенных запусков.
func (s *Scheduler) Stats() (runs, skipped int64) {
	return s.runs.Load(), s.skipped.Load()
}

// acquire проверяет лидерство.
func (s *Scheduler) acquire(ctx context.Context) bool {
	if s.locker == nil || s.leader.Load() {
		return true
	}
	ok, err := s.locker.TryLock(ctx)
	if err != nil {
		s.logger.Error("leader lock failed", "error", err)
		return false
	}
	if !ok {
		s.logger.Debug("not a leader, skipping run")
		return false
	}
	s.leader.Store(true)
	s.logger.Info("leadership acquired")
	return true
}

func (s *Scheduler) release() {
	if s.locker == nil || !s.leader.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.locker.Unlock(ctx); err != nil {
		s.logger.Warn("leader unlock failed", "error", err)
	}
	s.leader.Store(false)
}

// cronLogger адаптирует slog к cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(fmt.Sprintf("cron: %s", msg), append(keysAndValues, "error", err)...)
}
