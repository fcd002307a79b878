package snapstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hazyhaar/entitlemate/snapshot"
)

// redisClient is the subset of *redis.Client the store uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisStore keeps the snapshot under one string key.
type RedisStore struct {
	rdb    redisClient
	key    string
	logger *slog.Logger
}

// OpenRedis connects to cfg.Addr and pings it.
func OpenRedis(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("snapstore: redis ping %s: %w", cfg.Addr, err)
	}
	return newRedis(rdb, cfg.Key, logger), nil
}

func newRedis(rdb redisClient, key string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{rdb: rdb, key: key, logger: logger}
}

func (s *RedisStore) Load(ctx context.Context) (snapshot.Snapshot, error) {
	return loadRaw(ctx, s.Raw)
}

func (s *RedisStore) Raw(ctx context.Context) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("snapstore: redis get %s: %w", s.key, err)
	}
	return data, nil
}

func (s *RedisStore) Save(ctx context.Context, snap snapshot.Snapshot) error {
	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("snapstore: redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
