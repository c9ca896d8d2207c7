package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/trip-link-parser/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/trip-link-parser/internal/adapter/kafka"
	"github.com/couchcryptid/trip-link-parser/internal/adapter/locationiq"
	"github.com/couchcryptid/trip-link-parser/internal/config"
	"github.com/couchcryptid/trip-link-parser/internal/domain"
	"github.com/couchcryptid/trip-link-parser/internal/observability"
	"github.com/couchcryptid/trip-link-parser/internal/service"
)

const outboxSize = 256

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []service.Option

	// Geocoder stack: LocationIQ behind an optional Redis layer behind an in-memory LRU.
	var geocoder domain.Geocoder
	var redisCache *locationiq.RedisGeocoder
	if cfg.LocationIQEnabled {
		client := locationiq.NewClient(locationiq.Options{
			Token:             cfg.LocationIQToken,
			BaseURL:           cfg.LocationIQBaseURL,
			Timeout:           cfg.LocationIQTimeout,
			RequestsPerSecond: cfg.LocationIQRateLimit,
			Burst:             cfg.LocationIQBurst,
		}, metrics, logger)

		var inner domain.Geocoder = client
		if cfg.GeocodeRedisAddr != "" {
			redisCache, err = locationiq.NewRedisGeocoder(ctx, client, cfg.GeocodeRedisAddr, cfg.GeocodeRedisTTL, metrics, logger)
			if err != nil {
				logger.Error("failed to connect to geocode redis", "addr", cfg.GeocodeRedisAddr, "error", err)
				os.Exit(1)
			}
			inner = redisCache
			opts = append(opts, service.WithReadinessCheck("redis", redisCache))
		}

		geocoder = locationiq.NewCachedGeocoder(inner, cfg.GeocodeCacheSize, cfg.GeocodeCacheTTL, clockwork.NewRealClock(), metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("locationiq geocoding enabled",
			"cache_size", cfg.GeocodeCacheSize,
			"cache_ttl", cfg.GeocodeCacheTTL,
			"redis", cfg.GeocodeRedisAddr != "",
			"rate_limit", cfg.LocationIQRateLimit,
		)
	} else {
		logger.Info("locationiq geocoding disabled")
	}

	var writer *kafkaadapter.Writer
	var outbox *service.Outbox
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		outbox = service.NewOutbox(writer, outboxSize, logger, metrics)
		opts = append(opts,
			service.WithOutbox(outbox),
			service.WithReadinessCheck("kafka", writer),
		)
		logger.Info("suggestion publishing enabled", "topic", cfg.KafkaSuggestionTopic, "brokers", cfg.KafkaBrokers)
	}

	svc := service.New(
		domain.NewBookingParser(geocoder, logger),
		domain.NewFlightsParser(geocoder, logger),
		geocoder,
		logger,
		metrics,
		opts...,
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, svc, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	outboxDone := make(chan struct{})
	if outbox != nil {
		go func() {
			defer close(outboxDone)
			if err := outbox.Run(ctx); err != nil {
				logger.Error("outbox error", "error", err)
			}
		}()
	} else {
		close(outboxDone)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	select {
	case <-outboxDone:
	case <-shutdownCtx.Done():
		logger.Warn("outbox did not stop before shutdown timeout")
	}

	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			logger.Error("geocode redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
