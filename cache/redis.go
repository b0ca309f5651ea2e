package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"cacao-server/confs"
	"cacao-server/entities"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix        = "cacao:snapshot:"
	generationPrefix = "cacao:generation:"
)

// RedisCache stores snapshots as JSON strings with a TTL, shared by every
// server instance.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(ctx context.Context, cfg confs.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func key(deviceID string) string { return keyPrefix + deviceID }

func generationKey(deviceID string) string { return generationPrefix + deviceID }

func (rc *RedisCache) Get(ctx context.Context, deviceID string) (*entities.Snapshot, bool, error) {
	raw, err := rc.client.Get(ctx, key(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		rc.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var snap entities.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// a corrupt entry is treated as a miss and removed
		rc.misses.Add(1)
		_ = rc.client.Del(ctx, key(deviceID)).Err()
		return nil, false, nil
	}
	rc.hits.Add(1)
	return &snap, true, nil
}

func (rc *RedisCache) Generation(ctx context.Context, deviceID string) (int64, error) {
	return readGeneration(ctx, rc.client, deviceID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, c getter, deviceID string) (int64, error) {
	gen, err := c.Get(ctx, generationKey(deviceID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set writes the snapshot only while the device generation still equals
// generation. The generation key is watched so a concurrent Invalidate
// aborts the write.
func (rc *RedisCache) Set(ctx context.Context, deviceID string, generation int64, snapshot entities.Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	err = rc.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, deviceID)
		if err != nil {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(deviceID), raw, rc.ttl)
			return nil
		})
		return err
	}, generationKey(deviceID))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate drops the cached snapshot and bumps the device generation.
func (rc *RedisCache) Invalidate(ctx context.Context, deviceID string) error {
	_, err := rc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key(deviceID))
		pipe.Incr(ctx, generationKey(deviceID))
		return nil
	})
	return err
}

// Flush deletes every snapshot key, leaving other keys of the database alone.
func (rc *RedisCache) Flush(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rc.client.Del(ctx, keys...).Err()
}

func (rc *RedisCache) Stats(ctx context.Context) (Stats, error) {
	var entries int64
	iter := rc.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		entries++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, err
	}
	return Stats{
		Backend:    "redis",
		Entries:    entries,
		Hits:       rc.hits.Load(),
		Misses:     rc.misses.Load(),
		TTLSeconds: int64(rc.ttl / time.Second),
	}, nil
}
