package database

import (
	"context"
	"fmt"
	"time"

	"nexttale/shared/interfaces"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ interfaces.InFlightSet = (*redisInFlightSet)(nil)

type redisInFlightSet struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisInFlightSet creates an in-flight set shared by every process using the same
// Redis. A claim expires after ttl so a crashed holder cannot block the key forever.
func NewRedisInFlightSet(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) interfaces.InFlightSet {
	return &redisInFlightSet{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.Named("RedisInFlightSet"),
	}
}

func (s *redisInFlightSet) key(k string) string {
	return fmt.Sprintf("%s:%s", s.prefix, k)
}

func (s *redisInFlightSet) TryClaim(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		s.logger.Error("Failed to claim key", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	if !ok {
		s.logger.Debug("Key already claimed", zap.String("key", key))
	}
	return ok, nil
}

func (s *redisInFlightSet) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		s.logger.Error("Failed to release key", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
