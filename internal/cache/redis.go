package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "personafeed:"

// RedisStore delegates TTL enforcement to redis key expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr, password string, db int, ttl time.Duration) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: rdb, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, entry Entry) error {
	entry.StoredAt = time.Now()
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+entry.Key, data, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// Redis drops expired keys itself, so absent covers expired too.
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Sweep is a no-op: redis expires keys on its own.
func (s *RedisStore) Sweep(context.Context) int { return 0 }
