package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

const (
	revokedKeyPrefix = "session:revoked:"
	roleKeyPrefix    = "session:role:"
)

// RedisClient is the subset of *redis.Client the session store uses.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisSessionStore keeps revoked token ids and cached roles in Redis. Every command runs through
// the circuit breaker so an unreachable Redis fails fast.
type RedisSessionStore struct {
	client RedisClient
	cb     *gobreaker.CircuitBreaker
}

var _ ports.SessionStore = (*RedisSessionStore)(nil)

func NewRedisSessionStore(client RedisClient, cb *gobreaker.CircuitBreaker) *RedisSessionStore {
	return &RedisSessionStore{client: client, cb: cb}
}

func (s *RedisSessionStore) Ping(ctx context.Context) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}

func (s *RedisSessionStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err()
	})
	return err
}

func (s *RedisSessionStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	})
	if err != nil {
		return false, err
	}
	return res.(int64) > 0, nil
}

// CachedRole returns ok=false on a cache miss.
func (s *RedisSessionStore) CachedRole(ctx context.Context, subjectID string) (domain.Role, bool, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		v, err := s.client.Get(ctx, roleKeyPrefix+subjectID).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return v, err
	})
	if err != nil {
		return "", false, err
	}
	role, ok := domain.ParseRole(res.(string))
	return role, ok, nil
}

func (s *RedisSessionStore) CacheRole(ctx context.Context, subjectID string, role domain.Role, ttl time.Duration) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, roleKeyPrefix+subjectID, string(role), ttl).Err()
	})
	return err
}

func (s *RedisSessionStore) ClearRole(ctx context.Context, subjectID string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, roleKeyPrefix+subjectID).Err()
	})
	return err
}
