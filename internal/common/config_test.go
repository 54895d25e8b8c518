package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "seolens_jobs", cfg.Queue.Name)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, "5s", cfg.Queue.RetryBackoff)
	assert.Equal(t, 100, cfg.Queue.CompletedHistory)
	assert.Equal(t, 200, cfg.Queue.FailedHistory)
	assert.True(t, cfg.Scheduler.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seolens.toml")
	content := `
environment = "production"

[queue]
max_attempts = 5

[scheduler]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 5, cfg.Queue.MaxAttempts)
	assert.False(t, cfg.Scheduler.Enabled)
	// Untouched sections keep their defaults
	assert.Equal(t, "seolens_jobs", cfg.Queue.Name)
	assert.Equal(t, "5s", cfg.Queue.RetryBackoff)
}

func TestLoadFromFilesLaterOverridesEarlier(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	local := filepath.Join(dir, "local.toml")
	require.NoError(t, os.WriteFile(base, []byte("[queue]\nmax_attempts = 5\n"), 0644))
	require.NoError(t, os.WriteFile(local, []byte("[queue]\nmax_attempts = 7\n"), 0644))

	cfg, err := LoadFromFiles(base, local)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Queue.MaxAttempts)
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SEOLENS_ENVIRONMENT", "production")
	t.Setenv("SEOLENS_QUEUE_MAX_ATTEMPTS", "9")
	t.Setenv("SEOLENS_SCHEDULER_ENABLED", "false")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9, cfg.Queue.MaxAttempts)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty storage path", func(c *Config) { c.Storage.Badger.Path = "" }},
		{"zero max attempts", func(c *Config) { c.Queue.MaxAttempts = 0 }},
		{"bad retry backoff", func(c *Config) { c.Queue.RetryBackoff = "soon" }},
		{"bad visibility timeout", func(c *Config) { c.Queue.VisibilityTimeout = "5 minutes" }},
		{"bad stale after", func(c *Config) { c.Scheduler.StaleAfter = "later" }},
		{"bad check schedule", func(c *Config) { c.Scheduler.CheckSchedule = "every minute" }},
		{"empty sweep schedule", func(c *Config) { c.Scheduler.SweepSchedule = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateCronSchedule(t *testing.T) {
	assert.NoError(t, ValidateCronSchedule("*/5 * * * *"))
	assert.NoError(t, ValidateCronSchedule("0 3 * * 1"))
	assert.Error(t, ValidateCronSchedule(""))
	assert.Error(t, ValidateCronSchedule("61 * * * *"))
	assert.Error(t, ValidateCronSchedule("* * * *"))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("5s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("garbage", time.Minute))
}
