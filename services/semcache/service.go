// Package semcache implements the tenant- and role-aware semantic cache.
//
// Keys are namespaced cache:query:{tenant}:{role}:{query_hash}, so two
// distinct (tenant, role) principals can never observe each other's entries,
// even for identical question text. The backend is shared across sessions;
// key namespacing makes concurrent access safe by construction.
package semcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/services"
)

// RedisClient is the slice of the go-redis API the cache needs.
// Narrowed for testability.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Config holds cache behavior knobs
type Config struct {
	TTL         time.Duration
	MaxRetries  int
	CallTimeout time.Duration
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	return Config{
		TTL:         360 * time.Second,
		MaxRetries:  3,
		CallTimeout: 2 * time.Second,
	}
}

// Service is the semantic cache. Both operations fail soft: an unreachable
// backend turns Get into a miss and Set into a no-op; caching is never fatal
// to the pipeline.
type Service struct {
	client RedisClient
	config Config
	logger *zap.Logger
}

// NewService creates a new cache service
func NewService(client RedisClient, config Config, logger *zap.Logger) *Service {
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultConfig().CallTimeout
	}
	return &Service{client: client, config: config, logger: logger}
}

// Key builds the namespaced cache key. Tenant and role are part of the key;
// omitting either would be a data-isolation bug.
func Key(tenant string, role models.Role, queryHash string) string {
	t := strings.ToLower(strings.TrimSpace(tenant))
	r := strings.ToLower(strings.TrimSpace(string(role)))
	return fmt.Sprintf("cache:query:%s:%s:%s", t, r, queryHash)
}

// Get retrieves the cached entry for this (tenant, role, query hash).
// Returns (nil, nil) on a miss and (nil, err) when the backend is
// unreachable; callers treat both as a miss.
func (s *Service) Get(ctx context.Context, tenant string, role models.Role, queryHash string) (*models.CacheEntry, error) {
	key := Key(tenant, role, queryHash)

	var raw string
	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
			defer cancel()
			var err error
			raw, err = s.client.Get(callCtx, key).Result()
			return err
		},
		retry.Attempts(uint(s.config.MaxRetries)),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !errors.Is(err, redis.Nil) }),
	)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("cache get failed, treating as miss",
			zap.String("key", key),
			zap.Error(err))
		return nil, services.WrapError(services.ErrorTypeCache, "cache get failed", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.logger.Warn("corrupt cache entry, treating as miss",
			zap.String("key", key),
			zap.Error(err))
		return nil, nil
	}
	return &entry, nil
}

// Set stores the computed answer under this (tenant, role, query hash).
// The entry expires after the configured TTL. A backend failure is logged
// and reported but never propagated as fatal.
func (s *Service) Set(ctx context.Context, tenant string, role models.Role, queryHash string, answer string, sources []string) error {
	key := Key(tenant, role, queryHash)

	entry := models.CacheEntry{
		AnswerText: answer,
		SourceList: sources,
		CreatedAt:  time.Now().UTC(),
		TTLSeconds: int(s.config.TTL.Seconds()),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return services.WrapInternal("cache entry marshal failed", err)
	}

	err = retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
			defer cancel()
			return s.client.Set(callCtx, key, raw, s.config.TTL).Err()
		},
		retry.Attempts(uint(s.config.MaxRetries)),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		s.logger.Warn("cache set failed, continuing without caching",
			zap.String("key", key),
			zap.Error(err))
		return services.WrapError(services.ErrorTypeCache, "cache set failed", err)
	}

	s.logger.Debug("cache entry stored",
		zap.String("key", key),
		zap.Int("ttl_seconds", entry.TTLSeconds))
	return nil
}

// Purge deletes cached entries scoped by tenant and/or role. Empty arguments
// widen the scope. Returns the number of deleted keys.
func (s *Service) Purge(ctx context.Context, tenant string, role models.Role) (int, error) {
	pattern := purgePattern(tenant, role)

	var deleted int
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, services.WrapError(services.ErrorTypeCache, "cache scan failed", err)
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, services.WrapError(services.ErrorTypeCache, "cache delete failed", err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	s.logger.Info("cache purged",
		zap.String("pattern", pattern),
		zap.Int("deleted", deleted))
	return deleted, nil
}

func purgePattern(tenant string, role models.Role) string {
	switch {
	case tenant != "" && role != "":
		return fmt.Sprintf("cache:query:%s:%s:*", strings.ToLower(tenant), strings.ToLower(string(role)))
	case tenant != "":
		return fmt.Sprintf("cache:query:%s:*", strings.ToLower(tenant))
	case role != "":
		return fmt.Sprintf("cache:query:*:%s:*", strings.ToLower(string(role)))
	default:
		return "cache:query:*"
	}
}
