package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/legisync/internal/store"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, time.Second, cfg.PacingDelay)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, "local-file", cfg.Destination)
	assert.Equal(t, 500, cfg.BatchSize)

	res := cfg.Validate()
	assert.True(t, res.Valid, "defaults should validate: %v", res.Errors)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "legisync.yaml")
	require.NoError(t, os.WriteFile(file, []byte(strings.Join([]string{
		"concurrency: 7",
		"pacing_delay: 250ms",
		"destination: emulator",
		"limit: 40",
	}, "\n")), 0o644))

	t.Setenv("LEGISYNC_CONCURRENCY", "9")
	t.Setenv("DB_URL", "postgres://env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("limit", 0, "")
	flags.Bool("dry-run", false, "")
	flags.Bool("json", false, "")
	require.NoError(t, flags.Parse([]string{"--limit=10"}))

	cfg, err := Load(LoadOptions{ConfigFile: file, Flags: flags})
	require.NoError(t, err)

	// env перекрывает файл
	assert.Equal(t, 9, cfg.Concurrency)
	// файл перекрывает defaults
	assert.Equal(t, 250*time.Millisecond, cfg.PacingDelay)
	assert.Equal(t, "emulator", cfg.Destination)
	// явный флаг перекрывает файл
	assert.Equal(t, 10, cfg.Limit)
	// незаданный флаг не перекрывает defaults
	assert.False(t, cfg.DryRun)
	// общая переменная DB_URL
	assert.Equal(t, "postgres://env", cfg.DBURL)
}

func TestLoad_ExplicitZeroRetryDelay(t *testing.T) {
	t.Setenv("LEGISYNC_RETRY_DELAY", "0s")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Zero(t, cfg.RetryDelay)
	assert.True(t, cfg.Validate().Valid)

	// ноль означает повтор без ожидания, а не значение по умолчанию
	assert.Zero(t, cfg.RetryPolicy().BackoffFor(1))
	assert.Equal(t, 2*time.Second, Default().RetryPolicy().BackoffFor(1))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	t.Setenv(store.EmulatorHostEnv, "")

	tests := []struct {
		name   string
		mutate func(*RunConfig)
		want   string
	}{
		{"zero concurrency", func(c *RunConfig) { c.Concurrency = 0 }, "concurrency"},
		{"zero attempts", func(c *RunConfig) { c.MaxAttempts = 0 }, "max_attempts"},
		{"unknown destination", func(c *RunConfig) { c.Destination = "firestore" }, "destination"},
		{"emulator without host", func(c *RunConfig) { c.Destination = "emulator" }, store.EmulatorHostEnv},
		{"live store without db", func(c *RunConfig) { c.Destination = "live-store" }, "db_url"},
		{"file without dir", func(c *RunConfig) { c.OutputDir = "" }, "output_dir"},
		{"bad format", func(c *RunConfig) { c.OutputFormat = "xml" }, "output_format"},
		{"bad base url", func(c *RunConfig) { c.APIBaseURL = "not a url" }, "api_base_url"},
		{"bad backoff", func(c *RunConfig) { c.RetryBackoff = "linear" }, "retry_backoff"},
		{"bad from", func(c *RunConfig) { c.From = "01/02/2024" }, "from"},
		{"empty period", func(c *RunConfig) { c.From, c.To = "2024-05-01", "2024-04-01" }, "period"},
		{"bad legislature", func(c *RunConfig) { c.Legislature = 0 }, "legislature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			res := cfg.Validate()
			require.False(t, res.Valid)
			require.NotEmpty(t, res.Errors)
			assert.Contains(t, strings.Join(res.Errors, "; "), tt.want)
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	cfg := Default()
	cfg.Concurrency = 50
	cfg.PacingDelay = 0
	cfg.DryRun = true
	cfg.Destination = "live-store"

	res := cfg.Validate()
	assert.True(t, res.Valid, "warnings must not invalidate: %v", res.Errors)
	assert.Len(t, res.Warnings, 3)
}

func TestValidate_EmulatorHostSet(t *testing.T) {
	t.Setenv(store.EmulatorHostEnv, ":memory:")

	cfg := Default()
	cfg.Destination = "emulator"
	assert.True(t, cfg.Validate().Valid)
}

func TestRetryPolicy(t *testing.T) {
	cfg := Default()
	cfg.MaxAttempts = 4
	cfg.RetryBackoff = "exponential"

	p := cfg.RetryPolicy()
	assert.Equal(t, 4, p.Attempts())
	assert.Equal(t, 2*time.Second, p.BackoffFor(1))
	assert.Equal(t, 4*time.Second, p.BackoffFor(2))
}
