package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MarkoPoloResearchLab/staybook/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagDatabaseURL        = "database-url"
	flagStoreDriver        = "store-driver"
	flagListenAddr         = "listen-addr"
	flagMetricsAddr        = "metrics-addr"
	flagAllowedOrigins     = "allowed-origins"
	flagTransactionTimeout = "transaction-timeout"
	flagCoveragePolicy     = "coverage-policy"
	flagHorizonDays        = "horizon-days"
	flagKeeperEnabled      = "keeper-enabled"
	flagKeeperInterval     = "keeper-interval"
	flagKeeperMinDays      = "keeper-min-days"
	flagKeeperTargetDays   = "keeper-target-days"
	flagRedisAddr          = "redis-addr"
	flagRedisPassword      = "redis-password"
	flagRedisDB            = "redis-db"
	flagCacheTTL           = "cache-ttl"
	flagAMQPURL            = "amqp-url"
	flagConfirmedQueue     = "queue-confirmed"
	flagUpdatedQueue       = "queue-updated"
	flagCanceledQueue      = "queue-canceled"
	envFile                = ".env"
)

// envNames maps every flag to the unprefixed environment variable that can set it.
var envNames = map[string]string{
	flagDatabaseURL:        "DATABASE_URL",
	flagStoreDriver:        "STORE_DRIVER",
	flagListenAddr:         "HTTP_LISTEN_ADDR",
	flagMetricsAddr:        "METRICS_LISTEN_ADDR",
	flagAllowedOrigins:     "ALLOWED_ORIGINS",
	flagTransactionTimeout: "TRANSACTION_TIMEOUT",
	flagCoveragePolicy:     "COVERAGE_POLICY",
	flagHorizonDays:        "HORIZON_DAYS",
	flagKeeperEnabled:      "HORIZON_KEEPER_ENABLED",
	flagKeeperInterval:     "HORIZON_KEEPER_INTERVAL",
	flagKeeperMinDays:      "HORIZON_KEEPER_MIN_DAYS",
	flagKeeperTargetDays:   "HORIZON_KEEPER_TARGET_DAYS",
	flagRedisAddr:          "REDIS_ADDR",
	flagRedisPassword:      "REDIS_PASSWORD",
	flagRedisDB:            "REDIS_DB",
	flagCacheTTL:           "CACHE_TTL",
	flagAMQPURL:            "AMQP_URL",
	flagConfirmedQueue:     "QUEUE_BOOKING_CONFIRMED",
	flagUpdatedQueue:       "QUEUE_BOOKING_UPDATED",
	flagCanceledQueue:      "QUEUE_BOOKING_CANCELED",
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "staybookd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &config.Config{}
	cmd := &cobra.Command{
		Use:           "staybookd",
		Short:         "Hotel room inventory and booking server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagDatabaseURL, "", "database url: sqlite://, postgres:// or mysql://")
	flags.String(flagStoreDriver, config.StoreDriverGorm, "store implementation: gorm or pgx")
	flags.String(flagListenAddr, "", "HTTP listen address")
	flags.String(flagMetricsAddr, "", "Prometheus metrics listen address")
	flags.String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	flags.Duration(flagTransactionTimeout, 0, "deadline of one booking transaction (e.g. 5s)")
	flags.String(flagCoveragePolicy, "", "meaning of nights without a ledger entry: require_full or treat_missing_as_free")
	flags.Int(flagHorizonDays, 0, "ledger days created for a newly registered room")
	flags.Bool(flagKeeperEnabled, true, "extend room horizons in the background")
	flags.Duration(flagKeeperInterval, 0, "horizon keeper pass interval")
	flags.Int(flagKeeperMinDays, 0, "days ahead below which a room is topped up")
	flags.Int(flagKeeperTargetDays, 0, "days ahead a topped-up room reaches")
	flags.String(flagRedisAddr, "", "Redis address of the calendar cache; empty disables it")
	flags.String(flagRedisPassword, "", "Redis password")
	flags.Int(flagRedisDB, 0, "Redis database number")
	flags.Duration(flagCacheTTL, 0, "lifetime of a cached calendar range")
	flags.String(flagAMQPURL, "", "AMQP broker url for booking events; empty disables them")
	flags.String(flagConfirmedQueue, "", "queue of booking.confirmed events")
	flags.String(flagUpdatedQueue, "", "queue of booking.updated events")
	flags.String(flagCanceledQueue, "", "queue of booking.canceled events")

	cmd.AddCommand(newServeCommand(cfg), newMigrateCommand(cfg), newNotifyCommand(cfg))
	return cmd
}

func newServeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, metrics endpoint and horizon keeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
}

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), cfg)
		},
	}
}

func newNotifyCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Consume booking events and log a notification for each",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runNotifier(ctx, cfg)
		},
	}
}

func loadConfig(cmd *cobra.Command, cfg *config.Config) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for flagName, envName := range envNames {
		if err := v.BindEnv(flagName, envName); err != nil {
			return err
		}
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	cfg.StoreDriver = strings.TrimSpace(v.GetString(flagStoreDriver))
	cfg.ListenAddr = strings.TrimSpace(v.GetString(flagListenAddr))
	cfg.MetricsAddr = strings.TrimSpace(v.GetString(flagMetricsAddr))
	cfg.AllowedOrigins = config.ParseAllowedOrigins(v.GetString(flagAllowedOrigins))
	cfg.TransactionTimeout = v.GetDuration(flagTransactionTimeout)
	cfg.CoveragePolicy = strings.TrimSpace(v.GetString(flagCoveragePolicy))
	cfg.HorizonDays = v.GetInt(flagHorizonDays)
	cfg.KeeperEnabled = v.GetBool(flagKeeperEnabled)
	cfg.KeeperInterval = v.GetDuration(flagKeeperInterval)
	cfg.KeeperMinDays = v.GetInt(flagKeeperMinDays)
	cfg.KeeperTargetDays = v.GetInt(flagKeeperTargetDays)
	cfg.RedisAddr = strings.TrimSpace(v.GetString(flagRedisAddr))
	cfg.RedisPassword = v.GetString(flagRedisPassword)
	cfg.RedisDB = v.GetInt(flagRedisDB)
	cfg.CacheTTL = v.GetDuration(flagCacheTTL)
	cfg.AMQPURL = strings.TrimSpace(v.GetString(flagAMQPURL))
	cfg.ConfirmedQueue = strings.TrimSpace(v.GetString(flagConfirmedQueue))
	cfg.UpdatedQueue = strings.TrimSpace(v.GetString(flagUpdatedQueue))
	cfg.CanceledQueue = strings.TrimSpace(v.GetString(flagCanceledQueue))

	return cfg.Validate()
}
