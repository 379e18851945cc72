// Package redis implements kvstore.Store on Redis, for cloud deployments
// that want a shared, table-like store without running their own server.
// Adapted from the teacher's queue/redis.Queue connection setup, repurposed
// from job-queue semantics to plain key-value get/set and a SETNX-based
// lock.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sumologic/mongodbatlas-collector/kvstore"
)

// Store is a kvstore.Store backed by a Redis server.
type Store struct {
	client *goredis.Client
	prefix string
}

// Config configures the Redis-backed store.
type Config struct {
	URL       string // e.g. redis://localhost:6379/0
	KeyPrefix string // defaults to "mongodbatlascollector:"
}

// Open parses config.URL, connects and verifies connectivity with a ping.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	url := cfg.URL
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("kvstore/redis: parsing url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("kvstore/redis: connecting: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "mongodbatlascollector:"
	}
	return &Store{client: client, prefix: prefix}, nil
}

// NewFromClient wraps an already-constructed client, used by tests against
// an in-memory Redis server.
func NewFromClient(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "mongodbatlascollector:"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) fullKey(key string) string {
	return s.prefix + key
}

func (s *Store) Get(ctx context.Context, key string, out any) (bool, error) {
	data, err := s.client.Get(ctx, s.fullKey(key)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("kvstore/redis: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("kvstore/redis: unmarshalling %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore/redis: marshalling %s: %w", key, err)
	}
	return s.client.Set(ctx, s.fullKey(key), data, 0).Err()
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.fullKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("kvstore/redis: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.fullKey(key)).Err()
}

// AcquireLock uses Redis SETNX semantics (SET ... NX) to take an exclusive
// lock in a single round trip.
func (s *Store) AcquireLock(ctx context.Context, key string) (bool, error) {
	rec := kvstore.LockRecord{LastLockedDate: float64(time.Now().Unix())}
	data, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	ok, err := s.client.SetNX(ctx, s.fullKey(kvstore.LockKey(key)), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("kvstore/redis: acquiring lock %s: %w", key, err)
	}
	return ok, nil
}

func (s *Store) ReleaseLock(ctx context.Context, key string) error {
	return s.Delete(ctx, kvstore.LockKey(key))
}

func (s *Store) ReleaseLockIfExpired(ctx context.Context, key string, expiry time.Duration) error {
	lk := kvstore.LockKey(key)
	var rec kvstore.LockRecord
	found, err := s.Get(ctx, lk, &rec)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	age := time.Since(time.Unix(int64(rec.LastLockedDate), 0))
	if age > expiry {
		return s.Delete(ctx, lk)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
