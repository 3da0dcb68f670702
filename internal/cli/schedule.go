package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shaiso/legisync/internal/config"
	"github.com/shaiso/legisync/internal/domain"
	"github.com/shaiso/legisync/internal/pipeline"
	"github.com/shaiso/legisync/internal/repo"
	"github.com/shaiso/legisync/internal/scheduler"
	"github.com/shaiso/legisync/internal/telemetry"
)

// ScheduleOptions — параметры планового выполнения.
type ScheduleOptions struct {
	Config     config.RunConfig
	Entities   []string
	RunOnStart bool

	// MetricsAddr — адрес /metrics и /healthz (пусто — не поднимать).
	MetricsAddr string

	Logger *slog.Logger
}

// RunScheduled выполняет сущности по cron-расписанию до отмены ctx.
//
// Для live-store лидер между экземплярами определяется pg_advisory_lock.
func RunScheduled(ctx context.Context, opts ScheduleOptions) error {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Schedule == "" {
		return pipeline.MarkConfiguration(errors.New("schedule is required (--cron or LEGISYNC_SCHEDULE)"))
	}
	if len(opts.Entities) == 0 {
		return pipeline.MarkConfiguration(errors.New("at least one entity is required"))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(registry)

	publisher, closePublisher := dialPublisher(ctx, cfg.AMQPURL, logger)
	defer closePublisher()

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Publisher: publisher,
	}

	var locker scheduler.Locker
	if dest, _ := cfg.DestinationKind(); dest == domain.DestinationLiveStore && !cfg.DryRun {
		pool, err := repo.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return fmt.Errorf("connect leader lock db: %w", err)
		}
		defer pool.Close()
		locker = repo.NewAdvisoryLock(pool, repo.SchedulerLockKey)
	}

	sched, err := scheduler.New(scheduler.Config{
		CronExpr:   cfg.Schedule,
		Timezone:   cfg.Timezone,
		RunOnStart: opts.RunOnStart,
		Locker:     locker,
		Logger:     logger,
		Job: func(ctx context.Context) error {
			reports, err := app.RunEntities(ctx, opts.Entities)
			for _, r := range reports {
				telemetry.FromContext(ctx).Info("scheduled entity finished",
					"entity", r.Entity,
					"run_id", r.ID,
					"status", r.Status,
					"duration", r.Duration(),
				)
			}
			return err
		},
	})
	if err != nil {
		return pipeline.MarkConfiguration(err)
	}

	if opts.MetricsAddr != "" {
		srv := newMetricsServer(opts.MetricsAddr, registry)
		go func() {
			logger.Info("metrics server listening", "addr", opts.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return sched.Run(ctx)
}

// newMetricsServer — /healthz и /metrics.
func newMetricsServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// NewScheduleCmd создаёт команду планового выполнения.
func NewScheduleCmd(g *Globals) *cobra.Command {
	var (
		cronExpr    string
		runOnStart  bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "schedule ENTITY [ENTITY...]",
		Short: "Run entities on a cron schedule until interrupted",
		Example: `  legisync schedule senators committees --cron "0 3 * * *" --timezone America/Sao_Paulo
  legisync schedule next --cron "@daily" -n 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("cron") {
				cfg.Schedule = cronExpr
			}

			return RunScheduled(cmd.Context(), ScheduleOptions{
				Config:      cfg,
				Entities:    args,
				RunOnStart:  runOnStart,
				MetricsAddr: metricsAddr,
				Logger:      g.Logger(),
			})
		},
	}

	addRunFlags(cmd.Flags())
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (overrides the schedule config key)")
	cmd.Flags().String("timezone", "", "IANA timezone of the schedule")
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "Run once immediately after start")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address")

	cmd.AddCommand(newScheduleNextCmd(g))
	return cmd
}

func newScheduleNextCmd(g *Globals) *cobra.Command {
	var (
		cronExpr string
		count    int
	)

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next run times of a cron expression",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("cron") {
				cfg.Schedule = cronExpr
			}

			times, err := nextRuns(cfg.Schedule, cfg.Timezone, time.Now(), count)
			if err != nil {
				return pipeline.MarkConfiguration(err)
			}

			rows := make([][]string, len(times))
			for i, t := range times {
				rows[i] = []string{strconv.Itoa(i + 1), t.Format(time.RFC3339)}
			}
			g.Output().Print([]string{"#", "AT"}, rows, times)
			return nil
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression")
	cmd.Flags().String("timezone", "", "IANA timezone of the schedule")
	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of run times")
	return cmd
}

// nextRuns — n ближайших запусков в timezone расписания.
func nextRuns(expr, tz string, from time.Time, n int) ([]time.Time, error) {
	if expr == "" {
		return nil, errors.New("schedule is required (--cron)")
	}
	if n < 1 {
		return nil, fmt.Errorf("count must be >= 1, got %d", n)
	}
	loc, err := scheduler.LoadLocation(tz)
	if err != nil {
		return nil, err
	}

	out := make([]time.Time, 0, n)
	t := from
	for range n {
		next, err := scheduler.NextRun(expr, tz, t)
		if err != nil {
			return nil, err
		}
		out = append(out, next.In(loc))
		t = next
	}
	return out, nil
}
