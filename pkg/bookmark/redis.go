package bookmark

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// timeFormat is the stored wire format for bookmark instants.
const timeFormat = time.RFC3339Nano

// maxTxRetries bounds optimistic-lock retries in SetIfLater.
const maxTxRetries = 5

// RedisStore persists bookmarks in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a bookmark store backed by the Redis instance at url
// and verifies connectivity.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing Redis client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the bookmark for key, or false if none is stored.
func (s *RedisStore) Get(ctx context.Context, key string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	} else if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	ts, err := time.Parse(timeFormat, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt bookmark %q: %w", val, err)
	}
	return ts, true, nil
}

// Set unconditionally writes the bookmark for key with no expiry.
func (s *RedisStore) Set(ctx context.Context, key string, ts time.Time) error {
	if err := s.client.Set(ctx, key, ts.UTC().Format(timeFormat), 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// SetIfLater atomically advances the bookmark for key to ts, but only if ts
// is strictly later than the stored value. The WATCH/MULTI transaction closes
// the gap between the read and the write that a plain get-then-set leaves
// open when two runs of the same pipeline overlap.
func (s *RedisStore) SetIfLater(ctx context.Context, key string, ts time.Time) (bool, error) {
	advanced := false

	txn := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			existing, perr := time.Parse(timeFormat, val)
			if perr != nil {
				return fmt.Errorf("corrupt bookmark %q: %w", val, perr)
			}
			if !ts.After(existing) {
				advanced = false
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, ts.UTC().Format(timeFormat), 0)
			return nil
		})
		if err == nil {
			advanced = true
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return advanced, nil
		}
		if err == redis.TxFailedErr {
			// Key changed under us; retry with the fresh value.
			continue
		}
		return false, fmt.Errorf("bookmark advance failed: %w", err)
	}
	return false, fmt.Errorf("bookmark advance for %q did not settle after %d attempts", key, maxTxRetries)
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
