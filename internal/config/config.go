package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// LocationIQ geocoding configuration.
	LocationIQToken     string
	LocationIQEnabled   bool
	LocationIQBaseURL   string
	LocationIQTimeout   time.Duration
	LocationIQRateLimit float64 // requests per second, 0 disables throttling
	LocationIQBurst     int

	// Geocode caching. An empty GeocodeRedisAddr disables the Redis layer.
	GeocodeCacheSize int
	GeocodeCacheTTL  time.Duration
	GeocodeRedisAddr string
	GeocodeRedisTTL  time.Duration

	// Suggestion publishing.
	KafkaEnabled         bool
	KafkaBrokers         []string
	KafkaSuggestionTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	locationIQTimeout, err := parsePositiveDuration("LOCATIONIQ_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("GEOCODE_CACHE_TTL", "24h")
	if err != nil {
		return nil, err
	}
	redisTTL, err := parsePositiveDuration("GEOCODE_REDIS_TTL", "168h")
	if err != nil {
		return nil, err
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("LOCATIONIQ_RATE_LIMIT", "2"), 64)
	if err != nil || rateLimit < 0 {
		return nil, errors.New("invalid LOCATIONIQ_RATE_LIMIT")
	}
	burst, err := strconv.Atoi(sharedcfg.EnvOrDefault("LOCATIONIQ_BURST", "1"))
	if err != nil || burst < 1 {
		return nil, errors.New("invalid LOCATIONIQ_BURST")
	}

	locationIQToken := os.Getenv("LOCATIONIQ_TOKEN")
	locationIQEnabled := locationIQToken != ""
	if v := os.Getenv("LOCATIONIQ_ENABLED"); v != "" {
		locationIQEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		LocationIQToken:     locationIQToken,
		LocationIQEnabled:   locationIQEnabled,
		LocationIQBaseURL:   sharedcfg.EnvOrDefault("LOCATIONIQ_BASE_URL", "https://us1.locationiq.com/v1/search"),
		LocationIQTimeout:   locationIQTimeout,
		LocationIQRateLimit: rateLimit,
		LocationIQBurst:     burst,

		GeocodeCacheSize: parseGeocodeCacheSize(),
		GeocodeCacheTTL:  cacheTTL,
		GeocodeRedisAddr: os.Getenv("GEOCODE_REDIS_ADDR"),
		GeocodeRedisTTL:  redisTTL,

		KafkaEnabled:         os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:         sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSuggestionTopic: sharedcfg.EnvOrDefault("KAFKA_SUGGESTION_TOPIC", "segment-suggestions"),
	}

	if cfg.LocationIQEnabled && cfg.LocationIQToken == "" {
		return nil, errors.New("LOCATIONIQ_ENABLED is true but LOCATIONIQ_TOKEN is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaSuggestionTopic == "" {
		return nil, errors.New("KAFKA_SUGGESTION_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseGeocodeCacheSize() int {
	if s := os.Getenv("GEOCODE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
