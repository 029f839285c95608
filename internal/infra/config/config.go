package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	NatsURL       string

	NotifierURL     string
	NotifierTimeout time.Duration

	HTTPPort    string
	LogLevel    string
	Environment string

	CronSpecScan      string // Trigger scan, fires every minute
	CronSpecReconcile string // Reconciliation sweep

	NotifyHour   int // Local wall-clock hour that triggers a greeting
	NotifyMinute int

	ScanLockTTL      time.Duration
	ReconcileLockTTL time.Duration
	RecordLockTTL    time.Duration
	CreateLockTTL    time.Duration

	MaxAttempts     int
	BackoffSchedule []time.Duration
	WorkerCount     int
	FetchBatch      int
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is not set")
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD") // Empty means no auth

	cfg.NatsURL = os.Getenv("NATS_URL")
	if cfg.NatsURL == "" {
		return nil, fmt.Errorf("NATS_URL is not set")
	}

	cfg.NotifierURL = os.Getenv("NOTIFIER_URL")
	if cfg.NotifierURL == "" {
		return nil, fmt.Errorf("NOTIFIER_URL is not set")
	}
	if cfg.NotifierTimeout, err = envDuration("NOTIFIER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.HTTPPort = envString("HTTP_PORT", "8080")

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.CronSpecScan = envString("CRON_SPEC_SCAN", "* * * * *")             // Default: every minute
	cfg.CronSpecReconcile = envString("CRON_SPEC_RECONCILE", "*/5 * * * *") // Default: every 5 minutes

	if cfg.NotifyHour, err = envInt("NOTIFY_HOUR", 9); err != nil {
		return nil, err
	}
	if cfg.NotifyHour < 0 || cfg.NotifyHour > 23 {
		return nil, fmt.Errorf("NOTIFY_HOUR out of range: %d", cfg.NotifyHour)
	}
	if cfg.NotifyMinute, err = envInt("NOTIFY_MINUTE", 0); err != nil {
		return nil, err
	}
	if cfg.NotifyMinute < 0 || cfg.NotifyMinute > 59 {
		return nil, fmt.Errorf("NOTIFY_MINUTE out of range: %d", cfg.NotifyMinute)
	}

	// Lock TTLs. The scan lock must expire before the next minute tick and
	// the record lock must outlive one notifier attempt.
	if cfg.ScanLockTTL, err = envDuration("SCAN_LOCK_TTL", 50*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconcileLockTTL, err = envDuration("RECONCILE_LOCK_TTL", 4*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RecordLockTTL, err = envDuration("RECORD_LOCK_TTL", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.CreateLockTTL, err = envDuration("CREATE_LOCK_TTL", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.MaxAttempts, err = envInt("MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", cfg.MaxAttempts)
	}

	if cfg.BackoffSchedule, err = envDurationList("BACKOFF_SCHEDULE", []time.Duration{
		1 * time.Second, 5 * time.Second, 15 * time.Second, 60 * time.Second, 300 * time.Second,
	}); err != nil {
		return nil, err
	}

	if cfg.WorkerCount, err = envInt("WORKER_COUNT", 1); err != nil {
		return nil, err
	}
	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("WORKER_COUNT must be at least 1, got %d", cfg.WorkerCount)
	}

	if cfg.FetchBatch, err = envInt("FETCH_BATCH", 16); err != nil {
		return nil, err
	}
	if cfg.FetchBatch < 1 {
		return nil, fmt.Errorf("FETCH_BATCH must be at least 1, got %d", cfg.FetchBatch)
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// envDurationList parses a comma-separated duration list, e.g. "1s,5s,15s".
func envDurationList(key string, def []time.Duration) ([]time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parts := strings.Split(v, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", key, p, err)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s must contain at least one duration", key)
	}
	return out, nil
}
