package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/shaiso/legisync/internal/config"
	"github.com/shaiso/legisync/internal/mq"
	"github.com/shaiso/legisync/internal/pipeline"
	"github.com/shaiso/legisync/internal/telemetry"
)

// Globals — persistent-флаги корневой команды.
type Globals struct {
	ConfigFile string
	JSON       bool
	LogLevel   string
	LogFormat  string

	// Stdout и Stderr — nil означает os.Stdout и os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// Bind регистрирует persistent-флаги.
func (g *Globals) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&g.ConfigFile, "config", "", "Config file (yaml, toml or json)")
	fs.BoolVar(&g.JSON, "json", false, "Output in JSON format")
	fs.StringVar(&g.LogLevel, "log-level", os.Getenv("LOG_LEVEL"), "Log level: debug, info, warn, error")
	fs.StringVar(&g.LogFormat, "log-format", os.Getenv("LOG_FORMAT"), "Log format: json or text")
}

// Output создаёт Output по флагам.
func (g *Globals) Output() *Output {
	return NewOutputTo(g.JSON, writerOr(g.Stdout, os.Stdout), writerOr(g.Stderr, os.Stderr))
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}

// Logger создаёт логгер по флагам. Логи пишутся в stderr.
func (g *Globals) Logger() *slog.Logger {
	return telemetry.SetupLoggerTo(writerOr(g.Stderr, os.Stderr), telemetry.ParseLevel(g.LogLevel), g.LogFormat)
}

// LoadConfig собирает RunConfig с учётом флагов команды.
func (g *Globals) LoadConfig(cmd *cobra.Command) (config.RunConfig, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: g.ConfigFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return config.RunConfig{}, pipeline.MarkConfiguration(err)
	}
	return cfg, nil
}

// addRunFlags регистрирует флаги, перекрывающие ключи конфигурации.
// Значения по умолчанию живут в config.SetDefaults.
func addRunFlags(fs *pflag.FlagSet) {
	fs.Int("legislature", 0, "Legislature number (senators, votes)")
	fs.String("from", "", "Period start YYYY-MM-DD (votes)")
	fs.String("to", "", "Period end YYYY-MM-DD (votes)")
	fs.Int("year", 0, "Year (matters); current year if not set")
	fs.Int("limit", 0, "Maximum items per entity (0 = no limit)")

	fs.Int("concurrency", 0, "Parallel requests per window")
	fs.Duration("pacing-delay", 0, "Pause between request windows")
	fs.Float64("requests-per-second", 0, "Request rate limit (0 = none)")
	fs.Int("max-attempts", 0, "Attempts per request")
	fs.Duration("retry-delay", 0, "Delay between attempts")
	fs.String("retry-backoff", "", "Retry backoff: fixed or exponential")
	fs.Duration("retry-max-delay", 0, "Backoff ceiling")
	fs.Bool("retry-jitter", false, "Randomize retry delays")

	fs.String("destination", "", "Destination: local-file, emulator or live-store")
	fs.String("output-dir", "", "Directory for local-file")
	fs.String("output-format", "", "Format for local-file: json or yaml")
	fs.Int("batch-size", 0, "Documents per write batch (max 500)")
	fs.Bool("dry-run", false, "Extract and transform without writing")

	fs.String("api-base-url", "", "Legislative API base URL")
	fs.Duration("http-timeout", 0, "HTTP request timeout")
	fs.String("user-agent", "", "HTTP User-Agent")
	fs.String("db-url", "", "PostgreSQL URL for live-store")
	fs.String("amqp-url", "", "RabbitMQ URL for progress events")
}

// dialPublisher подключается к брокеру, если задан amqp_url.
// Брокер необязателен: ошибка подключения только логируется.
func dialPublisher(ctx context.Context, url string, logger *slog.Logger) (RunPublisher, func()) {
	if url == "" {
		return nil, func() {}
	}

	conn, err := mq.Dial(url, logger)
	if err != nil {
		logger.Warn("progress events disabled: broker unavailable", "error", err)
		return nil, func() {}
	}
	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Warn("progress events disabled: topology setup failed", "error", err)
		_ = conn.Close()
		return nil, func() {}
	}
	logger.Debug("progress events enabled" + mq.TopologyInfo())

	return mq.NewPublisher(conn, logger), func() {
		if err := conn.Close(); err != nil {
			logger.Warn("broker close failed", "error", err)
		}
	}
}

// ExitCode — код выхода для ошибки команды.
//
//	0 — успех, 2 — ошибка конфигурации, 1 — остальные.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case pipeline.IsConfiguration(err):
		return 2
	default:
		return 1
	}
}
