package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/internal/cache"
	"github.com/MarkoPoloResearchLab/staybook/internal/events"
	"github.com/MarkoPoloResearchLab/staybook/internal/horizon"
	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
)

const (
	StoreDriverGorm = "gorm"
	StoreDriverPgx  = "pgx"

	defaultDatabaseURL = "sqlite:///tmp/staybook.db"
	defaultListenAddr  = ":8080"
	defaultMetricsAddr = ":9102"
)

// ErrInvalidConfig reports a setting that cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

// Config aggregates runtime settings for staybookd.
type Config struct {
	DatabaseURL        string
	StoreDriver        string
	ListenAddr         string
	MetricsAddr        string
	AllowedOrigins     []string
	TransactionTimeout time.Duration
	CoveragePolicy     string
	HorizonDays        int

	KeeperEnabled    bool
	KeeperInterval   time.Duration
	KeeperMinDays    int
	KeeperTargetDays int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	AMQPURL        string
	ConfirmedQueue string
	UpdatedQueue   string
	CanceledQueue  string
}

// Validate fills defaults and ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.StoreDriver = strings.ToLower(defaultIfEmpty(cfg.StoreDriver, StoreDriverGorm))
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.MetricsAddr = defaultIfEmpty(cfg.MetricsAddr, defaultMetricsAddr)
	if cfg.TransactionTimeout <= 0 {
		cfg.TransactionTimeout = booking.DefaultTransactionTimeout
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = booking.DefaultHorizonDays
	}
	if cfg.KeeperInterval <= 0 {
		cfg.KeeperInterval = horizon.DefaultInterval
	}
	if cfg.KeeperMinDays <= 0 {
		cfg.KeeperMinDays = horizon.DefaultMinDays
	}
	if cfg.KeeperTargetDays <= 0 {
		cfg.KeeperTargetDays = horizon.DefaultTargetDays
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultRangeTTL
	}
	defaults := events.DefaultQueues()
	cfg.ConfirmedQueue = defaultIfEmpty(cfg.ConfirmedQueue, defaults.Confirmed)
	cfg.UpdatedQueue = defaultIfEmpty(cfg.UpdatedQueue, defaults.Updated)
	cfg.CanceledQueue = defaultIfEmpty(cfg.CanceledQueue, defaults.Canceled)

	switch cfg.StoreDriver {
	case StoreDriverGorm:
	case StoreDriverPgx:
		if !IsPostgresURL(cfg.DatabaseURL) {
			return fmt.Errorf("%w: store driver %s requires a postgres database url", ErrInvalidConfig, StoreDriverPgx)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, cfg.StoreDriver)
	}
	if _, err := booking.ParseCoveragePolicy(cfg.CoveragePolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.HorizonDays > booking.MaxHorizonDays {
		return fmt.Errorf("%w: horizon days %d exceeds %d", ErrInvalidConfig, cfg.HorizonDays, booking.MaxHorizonDays)
	}
	if cfg.KeeperTargetDays < cfg.KeeperMinDays {
		return fmt.Errorf("%w: keeper target %d is below minimum %d", ErrInvalidConfig, cfg.KeeperTargetDays, cfg.KeeperMinDays)
	}
	if cfg.RedisDB < 0 {
		return fmt.Errorf("%w: redis db must be non-negative", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.ListenAddr) == cfg.MetricsAddr {
		return fmt.Errorf("%w: listen and metrics addresses must differ", ErrInvalidConfig)
	}
	return nil
}

// CacheEnabled reports whether a Redis address was configured.
func (cfg Config) CacheEnabled() bool {
	return strings.TrimSpace(cfg.RedisAddr) != ""
}

// EventsEnabled reports whether an AMQP broker was configured.
func (cfg Config) EventsEnabled() bool {
	return strings.TrimSpace(cfg.AMQPURL) != ""
}

// Queues returns the configured event queue names.
func (cfg Config) Queues() events.Queues {
	return events.Queues{
		Confirmed: cfg.ConfirmedQueue,
		Updated:   cfg.UpdatedQueue,
		Canceled:  cfg.CanceledQueue,
	}
}

// Keeper returns the horizon keeper settings.
func (cfg Config) Keeper() horizon.Config {
	return horizon.Config{
		Interval:   cfg.KeeperInterval,
		MinDays:    cfg.KeeperMinDays,
		TargetDays: cfg.KeeperTargetDays,
	}
}

// IsPostgresURL reports whether dsn names a PostgreSQL database.
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
