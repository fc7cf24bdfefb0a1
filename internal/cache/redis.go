package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/reflexhq/reflex/internal/config"
	"github.com/reflexhq/reflex/internal/logger"
)

// NewClient builds a Redis client from configuration. The client is
// shared by the decision cache and the rate limiter.
func NewClient(cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.ConnectTimeout
	opts.ReadTimeout = cfg.CommandTimeout
	opts.WriteTimeout = cfg.CommandTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	// Connection failure is not fatal: the pipeline degrades to
	// cache-miss behavior and the limiter falls back per its policy.
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unreachable at startup, continuing degraded",
			zap.String("redis_url", maskRedisURL(cfg.URL)),
			zap.Error(err))
	} else {
		log.Info("Redis connection established",
			zap.String("redis_url", maskRedisURL(cfg.URL)),
			zap.Int("pool_size", cfg.PoolSize))
	}

	return client, nil
}

// Manager is a Redis-backed decision cache. All failures are reported
// to the caller but never block request processing.
type Manager struct {
	client *redis.Client
	config Config
	logger *logger.Logger
	stats  *Stats
}

// NewManager creates a decision cache on top of an existing client
func NewManager(client *redis.Client, cfg Config, log *logger.Logger) *Manager {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}

	log.Info("Decision cache initialized",
		zap.String("namespace", cfg.Namespace),
		zap.Duration("forwarded_ttl", cfg.ForwardedTTL),
		zap.Duration("blocked_ttl", cfg.BlockedTTL))

	return &Manager{
		client: client,
		config: cfg,
		logger: log,
		stats:  &Stats{},
	}
}

// Namespace returns the configured key namespace
func (m *Manager) Namespace() string {
	return m.config.Namespace
}

// Get looks up a cached payload. A missing key is not an error; the
// second return value reports whether the key was found.
func (m *Manager) Get(ctx context.Context, key string) (string, bool, error) {
	if !m.config.Enabled {
		return "", false, nil
	}

	payload, err := m.client.Get(ctx, key).Result()
	if err == redis.Nil {
		m.stats.misses.Add(1)
		return "", false, nil
	}
	if err != nil {
		m.stats.errors.Add(1)
		m.logger.Warn("Cache lookup failed", zap.Error(err))
		return "", false, fmt.Errorf("cache lookup: %w", err)
	}

	m.stats.hits.Add(1)
	return payload, true, nil
}

// Set stores a payload with the given TTL
func (m *Manager) Set(ctx context.Context, key, payload string, ttl time.Duration) error {
	if !m.config.Enabled {
		return nil
	}

	if err := m.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		m.stats.errors.Add(1)
		m.logger.Warn("Cache store failed", zap.Error(err))
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

// Delete removes a cached entry
func (m *Manager) Delete(ctx context.Context, key string) error {
	if err := m.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Ping checks Redis liveness
func (m *Manager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Stats returns a snapshot of the counters
func (m *Manager) Stats() Snapshot {
	return m.stats.Snapshot()
}

// Close closes the underlying Redis client
func (m *Manager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// maskRedisURL hides credentials in a Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
