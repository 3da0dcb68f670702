// Package config собирает RunConfig одного ETL-запуска.
//
// Источники в порядке возрастания приоритета:
//
//	defaults → файл (--config, yaml/toml/json) → окружение LEGISYNC_* → флаги CLI
//
// RunConfig строится один раз на запуск и дальше передаётся по значению.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shaiso/legisync/internal/domain"
	"github.com/shaiso/legisync/internal/retry"
	"github.com/shaiso/legisync/internal/source"
)

// EnvPrefix — префикс переменных окружения.
const EnvPrefix = "LEGISYNC"

// RunConfig — параметры одного запуска.
type RunConfig struct {
	// Legislature — номер легислатуры (фильтр для senators/votes).
	Legislature int `mapstructure:"legislature"`

	// From, To — период (YYYY-MM-DD) для votes.
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`

	// Year — год для matters.
	Year int `mapstructure:"year"`

	// Limit — максимум элементов на сущность (0 — без ограничения).
	Limit int `mapstructure:"limit"`

	// Concurrency — ширина окна параллельных запросов.
	Concurrency int `mapstructure:"concurrency"`

	// PacingDelay — пауза между окнами.
	PacingDelay time.Duration `mapstructure:"pacing_delay"`

	// RequestsPerSecond — дополнительный лимит частоты (0 — без лимита).
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`

	// MaxAttempts, RetryDelay, RetryBackoff, RetryMaxDelay, RetryJitter — политика повторов.
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	RetryBackoff  string        `mapstructure:"retry_backoff"`
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay"`
	RetryJitter   bool          `mapstructure:"retry_jitter"`

	// Destination — local-file | emulator | live-store.
	Destination string `mapstructure:"destination"`

	// OutputDir и OutputFormat — для local-file.
	OutputDir    string `mapstructure:"output_dir"`
	OutputFormat string `mapstructure:"output_format"`

	// BatchSize — желаемый размер write-batch (ограничен лимитом хранилища).
	BatchSize int `mapstructure:"batch_size"`

	// DryRun — выгрузить и преобразовать, но не писать в хранилище.
	DryRun bool `mapstructure:"dry_run"`

	// APIBaseURL, HTTPTimeout, UserAgent — клиент источника.
	APIBaseURL  string        `mapstructure:"api_base_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	UserAgent   string        `mapstructure:"user_agent"`

	// DBURL — PostgreSQL для live-store.
	DBURL string `mapstructure:"db_url"`

	// AMQPURL — RabbitMQ для публикации прогресса (пусто — не публиковать).
	AMQPURL string `mapstructure:"amqp_url"`

	// Schedule и Timezone — cron-расписание для планировщика.
	Schedule string `mapstructure:"schedule"`
	Timezone string `mapstructure:"timezone"`
}

// SetDefaults задаёт значения по умолчанию.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("legislature", 57)
	v.SetDefault("from", "")
	v.SetDefault("to", "")
	v.SetDefault("year", 0)
	v.SetDefault("limit", 0)
	v.SetDefault("concurrency", 5)
	v.SetDefault("pacing_delay", time.Second)
	v.SetDefault("requests_per_second", 0.0)
	v.SetDefault("max_attempts", 3)
	v.SetDefault("retry_delay", 2*time.Second)
	v.SetDefault("retry_backoff", retry.BackoffFixed)
	v.SetDefault("retry_max_delay", 30*time.Second)
	v.SetDefault("retry_jitter", false)
	v.SetDefault("destination", string(domain.DestinationLocalFile))
	v.SetDefault("output_dir", "./data")
	v.SetDefault("output_format", "json")
	v.SetDefault("batch_size", 500)
	v.SetDefault("dry_run", false)
	v.SetDefault("api_base_url", source.DefaultBaseURL)
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("user_agent", source.DefaultUserAgent)
	v.SetDefault("db_url", "")
	v.SetDefault("amqp_url", "")
	v.SetDefault("schedule", "")
	v.SetDefault("timezone", "UTC")
}

// bindEnv привязывает окружение. Для db_url и amqp_url сохранены
// общие переменные DB_URL и RABBITMQ_URL.
func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("db_url", EnvPrefix+"_DB_URL", "DB_URL"); err != nil {
		return err
	}
	return v.BindEnv("amqp_url", EnvPrefix+"_AMQP_URL", "RABBITMQ_URL")
}

// LoadOptions — источники конфигурации.
type LoadOptions struct {
	// ConfigFile — путь к файлу конфигурации (пусто — без файла).
	ConfigFile string

	// Flags — флаги CLI. Флаг "pacing-delay" перекрывает ключ "pacing_delay",
	// но только если был задан явно.
	Flags *pflag.FlagSet
}

// New создаёт viper со всеми источниками.
func New(opts LoadOptions) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !isKnownKey(key) {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	return v, nil
}

// Load собирает RunConfig.
func Load(opts LoadOptions) (RunConfig, error) {
	v, err := New(opts)
	if err != nil {
		return RunConfig{}, err
	}
	return FromViper(v)
}

// FromViper декодирует RunConfig из готового viper.
func FromViper(v *viper.Viper) (RunConfig, error) {
	var cfg RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return RunConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Default возвращает RunConfig только со значениями по умолчанию.
func Default() RunConfig {
	v := viper.New()
	SetDefaults(v)
	cfg, _ := FromViper(v)
	return cfg
}

func isKnownKey(key string) bool {
	_, ok := knownKeys[key]
	return ok
}

var knownKeys = func() map[string]struct{} {
	v := viper.New()
	SetDefaults(v)
	keys := make(map[string]struct{})
	for _, k := range v.AllKeys() {
		keys[k] = struct{}{}
	}
	return keys
}()

// RetryPolicy возвращает политику повторов.
func (c RunConfig) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.MaxAttempts,
		Delay:       c.RetryDelay,
		Backoff:     c.RetryBackoff,
		MaxDelay:    c.RetryMaxDelay,
		Jitter:      c.RetryJitter,
	}
}

// DestinationKind возвращает разобранный Destination.
func (c RunConfig) DestinationKind() (domain.Destination, bool) {
	return domain.ParseDestination(c.Destination)
}

// FromDate и ToDate возвращают разобранный период (нулевое время, если не задан).
func (c RunConfig) FromDate() (time.Time, error) { return parseDate(c.From) }

func (c RunConfig) ToDate() (time.Time, error) { return parseDate(c.To) }

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}
