package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shaiso/legisync/internal/cli"
	"github.com/shaiso/legisync/internal/config"
	"github.com/shaiso/legisync/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoadOptions{ConfigFile: os.Getenv("LEGISYNC_CONFIG")})
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(cli.ExitCode(err))
	}

	entities := os.Args[1:]
	if len(entities) == 0 {
		entities = splitList(os.Getenv("LEGISYNC_ENTITIES"))
	}

	port := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
		port = ":" + v
	}

	err = cli.RunScheduled(ctx, cli.ScheduleOptions{
		Config:      cfg,
		Entities:    entities,
		RunOnStart:  os.Getenv("LEGISYNC_RUN_ON_START") == "true",
		MetricsAddr: port,
		Logger:      logger.With("component", "scheduler"),
	})
	if err != nil {
		logger.Error("scheduler stopped", "error", err)
		os.Exit(cli.ExitCode(err))
	}
	logger.Info("scheduler stopped")
}

// splitList разбирает "senators, votes" в список.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
