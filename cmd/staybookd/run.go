package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/internal/cache"
	"github.com/MarkoPoloResearchLab/staybook/internal/config"
	"github.com/MarkoPoloResearchLab/staybook/internal/events"
	"github.com/MarkoPoloResearchLab/staybook/internal/horizon"
	"github.com/MarkoPoloResearchLab/staybook/internal/httpapi"
	"github.com/MarkoPoloResearchLab/staybook/internal/telemetry"
	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func runServer(ctx context.Context, cfg *config.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, cleanup, err := openStore(ctx, cfg, false)
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer cleanup()

	policy, err := booking.ParseCoveragePolicy(cfg.CoveragePolicy)
	if err != nil {
		return err
	}
	metrics := telemetry.NewMetrics()
	options := []booking.ServiceOption{
		booking.WithOperationLogger(telemetry.FanOut{telemetry.NewZapOperationLogger(logger), metrics}),
		booking.WithTransactionTimeout(cfg.TransactionTimeout),
		booking.WithCoveragePolicy(policy),
	}

	if cfg.CacheEnabled() {
		redisClient, err := cache.Connect(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()
		calendar := cache.NewCalendar(redisClient, cfg.CacheTTL, logger.Named("cache"), cache.WithLookupObserver(metrics.ObserveCacheLookup))
		options = append(options, booking.WithCalendarCache(calendar))
	}

	if cfg.EventsEnabled() {
		publisher := events.NewPublisher(cfg.AMQPURL, logger.Named("events"), events.WithQueues(cfg.Queues()))
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				logger.Warn("event publisher close failed", zap.Error(closeErr))
			}
		}()
		options = append(options, booking.WithEventPublisher(publisher))
	}

	service, err := booking.NewService(store, time.Now, options...)
	if err != nil {
		return fmt.Errorf("booking service init: %w", err)
	}

	router := httpapi.NewRouter(service, httpapi.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		Observer:       metrics.ObserveHTTPRequest,
		HorizonDays:    cfg.HorizonDays,
	}, logger.Named("http"))
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return httpapi.Serve(groupCtx, cfg.ListenAddr, router, logger.Named("http"))
	})
	group.Go(func() error {
		return httpapi.Serve(groupCtx, cfg.MetricsAddr, metricsMux, logger.Named("metrics"))
	})
	if cfg.KeeperEnabled {
		keeper, err := horizon.NewKeeper(service, cfg.Keeper(), logger.Named("horizon"))
		if err != nil {
			return err
		}
		group.Go(func() error {
			return keeper.Run(groupCtx)
		})
	}

	logger.Info("staybookd started",
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("coverage_policy", string(policy)),
		zap.Bool("cache", cfg.CacheEnabled()),
		zap.Bool("events", cfg.EventsEnabled()),
	)
	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	_, cleanup, err := openStore(ctx, cfg, true)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	cleanup()
	logger.Info("schema up to date", zap.String("store_driver", cfg.StoreDriver))
	return nil
}

func runNotifier(ctx context.Context, cfg *config.Config) error {
	if !cfg.EventsEnabled() {
		return errors.New("notify requires an AMQP url")
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	consumer, err := events.NewConsumer(cfg.AMQPURL, cfg.Queues(), events.LogHandler(logger.Named("notify")), logger.Named("events"), nil)
	if err != nil {
		return err
	}
	return consumer.Run(ctx)
}
