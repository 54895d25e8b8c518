package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Queue       QueueConfig     `toml:"queue"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Crawler     CrawlerConfig   `toml:"crawler"`
	Reports     ReportsConfig   `toml:"reports"`
	Insights    InsightsConfig  `toml:"insights"`
	Logging     LoggingConfig   `toml:"logging"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type QueueConfig struct {
	Name              string `toml:"name"`               // Queue name prefix in Badger
	PollInterval      string `toml:"poll_interval"`      // e.g., "1s" - how often the worker polls for messages
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "5m" - message visibility timeout for redelivery
	MaxAttempts       int    `toml:"max_attempts"`       // Attempt budget per job before it is recorded as failed
	RetryBackoff      string `toml:"retry_backoff"`      // Initial backoff, doubled per attempt (e.g., "5s")
	CompletedHistory  int    `toml:"completed_history"`  // Most-recent completed jobs retained
	FailedHistory     int    `toml:"failed_history"`     // Most-recent failed jobs retained
}

type SchedulerConfig struct {
	Enabled        bool   `toml:"enabled"`
	CheckSchedule  string `toml:"check_schedule"`  // Cron expression for the schedule-check job
	SweepSchedule  string `toml:"sweep_schedule"`  // Cron expression for the reconciliation sweep
	StaleAfter     string `toml:"stale_after"`     // In-progress audits with no heartbeat past this are failed
	PendingTimeout string `toml:"pending_timeout"` // Pending audits older than this are re-enqueued
}

type CrawlerConfig struct {
	RequestTimeout     string `toml:"request_timeout"`      // Per-page HTTP timeout
	CrawlTimeout       string `toml:"crawl_timeout"`        // Hard ceiling for a whole audit crawl
	RequestsPerSecond  int    `toml:"requests_per_second"`  // Per-domain rate limit
	MaxBodySize        int    `toml:"max_body_size"`        // Maximum response body size in bytes
	JavaScriptWaitTime string `toml:"javascript_wait_time"` // Render settle time when JS rendering is enabled
}

type ReportsConfig struct {
	OutputDir string `toml:"output_dir"` // Directory where generated reports are written
}

type InsightsConfig struct {
	APIKey  string `toml:"api_key"` // Anthropic API key; insights are skipped when empty
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings belong in seolens.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/seolens",
				ResetOnStartup: false,
			},
		},
		Queue: QueueConfig{
			Name:              "seolens_jobs",
			PollInterval:      "1s",
			VisibilityTimeout: "5m",
			MaxAttempts:       3,
			RetryBackoff:      "5s",
			CompletedHistory:  100,
			FailedHistory:     200,
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			CheckSchedule:  "*/1 * * * *",
			SweepSchedule:  "*/5 * * * *",
			StaleAfter:     "10m",
			PendingTimeout: "10m",
		},
		Crawler: CrawlerConfig{
			RequestTimeout:     "30s",
			CrawlTimeout:       "30m",
			RequestsPerSecond:  4,
			MaxBodySize:        10 * 1024 * 1024,
			JavaScriptWaitTime: "3s",
		},
		Reports: ReportsConfig{
			OutputDir: "./data/reports",
		},
		Insights: InsightsConfig{
			Model:   "claude-haiku-3-5-20241022",
			Timeout: "2m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration in priority order:
// defaults -> file1 -> file2 -> ... -> environment variables.
// Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies SEOLENS_* environment variables over file values
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SEOLENS_ENVIRONMENT"); v != "" {
		config.Environment = v
	}
	if v := os.Getenv("SEOLENS_STORAGE_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("SEOLENS_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("SEOLENS_QUEUE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Queue.MaxAttempts = n
		}
	}
	if v := os.Getenv("SEOLENS_ANTHROPIC_API_KEY"); v != "" {
		config.Insights.APIKey = v
	}
	if v := os.Getenv("SEOLENS_SCHEDULER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Scheduler.Enabled = b
		}
	}
}

// Validate checks cross-field configuration consistency
func (c *Config) Validate() error {
	if c.Storage.Badger.Path == "" {
		return fmt.Errorf("storage.badger.path is required")
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue.max_attempts must be at least 1")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"queue.poll_interval", c.Queue.PollInterval},
		{"queue.visibility_timeout", c.Queue.VisibilityTimeout},
		{"queue.retry_backoff", c.Queue.RetryBackoff},
		{"crawler.request_timeout", c.Crawler.RequestTimeout},
		{"crawler.crawl_timeout", c.Crawler.CrawlTimeout},
		{"scheduler.stale_after", c.Scheduler.StaleAfter},
		{"scheduler.pending_timeout", c.Scheduler.PendingTimeout},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", field.name, err)
		}
	}
	if err := ValidateCronSchedule(c.Scheduler.CheckSchedule); err != nil {
		return fmt.Errorf("invalid scheduler.check_schedule: %w", err)
	}
	if err := ValidateCronSchedule(c.Scheduler.SweepSchedule); err != nil {
		return fmt.Errorf("invalid scheduler.sweep_schedule: %w", err)
	}
	return nil
}

// ValidateCronSchedule validates a standard 5-field cron expression
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("schedule is empty")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	return nil
}

// Duration parses a duration config value with a fallback for empty strings
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
