package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageBackend selects the persistence adapters wired at startup.
type StorageBackend string

const (
	BackendMemory   StorageBackend = "memory"
	BackendPostgres StorageBackend = "postgres"
)

// SinkKind selects the event sink adapter.
type SinkKind string

const (
	SinkLog   SinkKind = "log"
	SinkKafka SinkKind = "kafka"
)

// OutboxConfig drives the polling publisher. All knobs are deployment
// provided; the defaults match the reference configuration.
type OutboxConfig struct {
	Enabled      bool
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration

	// StuckAfter requeues PROCESSING records older than this back to NEW.
	// Zero disables the recovery sweep.
	StuckAfter time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type Config struct {
	Port string

	StorageBackend StorageBackend
	DatabaseURL    string
	MigrationsURL  string
	MigrateOnStart bool

	Sink  SinkKind
	Kafka KafkaConfig

	Outbox         OutboxConfig
	IdempotencyTTL time.Duration
}

// LoadFromEnv reads the full configuration surface from the environment.
// Optional values fall back to defaults; malformed values are errors rather
// than silent fallbacks.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Port:           getenv("PORT", "8080"),
		StorageBackend: StorageBackend(getenv("STORAGE_BACKEND", string(BackendMemory))),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsURL:  getenv("MIGRATIONS_URL", "file://db/migrations"),
		Sink:           SinkKind(getenv("SINK", string(SinkLog))),
		Kafka: KafkaConfig{
			Topic: getenv("KAFKA_TOPIC", "quotes"),
		},
		Outbox: OutboxConfig{
			Enabled:      true,
			PollInterval: time.Second,
			BatchSize:    50,
			MaxAttempts:  10,
			BaseBackoff:  500 * time.Millisecond,
			MaxBackoff:   30 * time.Second,
			StuckAfter:   5 * time.Minute,
		},
		IdempotencyTTL: 24 * time.Hour,
		MigrateOnStart: true,
	}

	switch cfg.StorageBackend {
	case BackendMemory, BackendPostgres:
	default:
		return Config{}, fmt.Errorf("STORAGE_BACKEND must be memory or postgres, got %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == BackendPostgres && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
	}

	switch cfg.Sink {
	case SinkLog, SinkKafka:
	default:
		return Config{}, fmt.Errorf("SINK must be log or kafka, got %q", cfg.Sink)
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	if cfg.Sink == SinkKafka && len(cfg.Kafka.Brokers) == 0 {
		return Config{}, fmt.Errorf("KAFKA_BROKERS is required when SINK=kafka")
	}

	var err error
	if cfg.Outbox.Enabled, err = boolEnv("OUTBOX_ENABLED", cfg.Outbox.Enabled); err != nil {
		return Config{}, err
	}
	if cfg.MigrateOnStart, err = boolEnv("MIGRATE_ON_START", cfg.MigrateOnStart); err != nil {
		return Config{}, err
	}
	if cfg.Outbox.PollInterval, err = millisEnv("OUTBOX_POLL_INTERVAL_MS", cfg.Outbox.PollInterval); err != nil {
		return Config{}, err
	}
	if cfg.Outbox.BatchSize, err = intEnv("OUTBOX_BATCH_SIZE", cfg.Outbox.BatchSize); err != nil {
		return Config{}, err
	}
	if cfg.Outbox.MaxAttempts, err = intEnv("OUTBOX_MAX_ATTEMPTS", cfg.Outbox.MaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.Outbox.BaseBackoff, err = millisEnv("OUTBOX_BASE_BACKOFF_MS", cfg.Outbox.BaseBackoff); err != nil {
		return Config{}, err
	}
	if cfg.Outbox.MaxBackoff, err = millisEnv("OUTBOX_MAX_BACKOFF_MS", cfg.Outbox.MaxBackoff); err != nil {
		return Config{}, err
	}
	if cfg.Outbox.StuckAfter, err = millisEnv("OUTBOX_STUCK_AFTER_MS", cfg.Outbox.StuckAfter); err != nil {
		return Config{}, err
	}
	if cfg.Outbox.BatchSize < 1 {
		return Config{}, fmt.Errorf("OUTBOX_BATCH_SIZE must be >= 1")
	}
	if cfg.Outbox.MaxAttempts < 1 {
		return Config{}, fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be >= 1")
	}

	ttlSeconds, err := intEnv("IDEMPOTENCY_TTL_SECONDS", int(cfg.IdempotencyTTL/time.Second))
	if err != nil {
		return Config{}, err
	}
	if ttlSeconds < 1 {
		return Config{}, fmt.Errorf("IDEMPOTENCY_TTL_SECONDS must be >= 1")
	}
	cfg.IdempotencyTTL = time.Duration(ttlSeconds) * time.Second

	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", k, err)
	}
	return n, nil
}

func millisEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer millisecond count: %w", k, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must be >= 0", k)
	}
	return time.Duration(n) * time.Millisecond, nil
}

func boolEnv(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", k, err)
	}
	return b, nil
}
