package locationiq

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/trip-link-parser/internal/domain"
	"github.com/couchcryptid/trip-link-parser/internal/observability"
)

// RedisGeocoder shares search results across instances through Redis. Redis
// failures are logged and fall through to the wrapped geocoder.
type RedisGeocoder struct {
	inner   domain.Geocoder
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRedisGeocoder connects to addr and verifies the connection with PING.
func NewRedisGeocoder(ctx context.Context, inner domain.Geocoder, addr string, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) (*RedisGeocoder, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisGeocoder{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Search serves a shared cache hit, otherwise asks the wrapped geocoder and
// stores non-empty results for the configured TTL.
func (g *RedisGeocoder) Search(ctx context.Context, q domain.GeocodeQuery) ([]domain.GeocodeCandidate, error) {
	key := redisKey(q)

	data, err := g.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []domain.GeocodeCandidate
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			g.metrics.GeocodeCache.WithLabelValues("redis", "hit").Inc()
			return cached, nil
		}
		g.logger.Warn("discarding malformed geocode cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		g.logger.Warn("geocode cache read failed", "error", err)
	}
	g.metrics.GeocodeCache.WithLabelValues("redis", "miss").Inc()

	result, err := g.inner.Search(ctx, q)
	if err != nil || len(result) == 0 {
		return result, err
	}

	if payload, err := json.Marshal(result); err == nil {
		if err := g.client.Set(ctx, key, payload, g.ttl).Err(); err != nil {
			g.logger.Warn("geocode cache write failed", "error", err)
		}
	}
	return result, nil
}

// CheckReadiness pings Redis.
func (g *RedisGeocoder) CheckReadiness(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (g *RedisGeocoder) Close() error {
	return g.client.Close()
}

func redisKey(q domain.GeocodeQuery) string {
	hash := sha256.Sum256([]byte(cacheKey(q)))
	return "geocode:" + hex.EncodeToString(hash[:])
}
