package cacher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisLockTTL     = 10 * time.Second
	redisWaitTimeout = 10 * time.Second
	redisMinBackoff  = 10 * time.Millisecond
	redisMaxBackoff  = 250 * time.Millisecond
)

// releaseLockScript deletes the lock only while it still holds our token.
var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisCacher is a Cacher shared between processes through Redis. Values are
// stored as JSON under prefix+key. A miss takes a short-lived lock so that only
// one process runs the fetch; the others poll until the value appears.
type RedisCacher[T any] struct {
	client *redis.Client
	prefix string
}

// NewRedisCacher creates a Redis-backed cacher whose keys all start with prefix.
// Clear and ItemCount only touch keys under that prefix.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	addrs := NewRedisCacher[string](client, "asyncstream:resolve:")
func NewRedisCacher[T any](client *redis.Client, prefix string) Cacher[T] {
	return &RedisCacher[T]{
		client: client,
		prefix: prefix,
	}
}

// GetOrFetch implements Cacher.
func (c *RedisCacher[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error) {
	var zero T
	fullKey := c.prefix + key

	v, found, err := c.get(ctx, fullKey)
	if err != nil {
		return zero, err
	}
	if found {
		return v, nil
	}

	lockKey := fullKey + ":lock"
	token := strconv.FormatInt(time.Now().UnixNano(), 10)

	acquired, err := c.client.SetNX(ctx, lockKey, token, redisLockTTL).Result()
	if err != nil {
		return zero, fmt.Errorf("redis lock %s: %w", lockKey, err)
	}

	if !acquired {
		return c.waitFor(ctx, fullKey, lockKey)
	}

	defer releaseLockScript.Run(context.Background(), c.client, []string{lockKey}, token)

	fetched, err := fetchFn(ctx)
	if err != nil {
		return zero, err
	}

	data, err := json.Marshal(fetched)
	if err != nil {
		return zero, fmt.Errorf("marshal value for %s: %w", fullKey, err)
	}

	if err := c.client.Set(ctx, fullKey, data, ttl).Err(); err != nil {
		return zero, fmt.Errorf("redis set %s: %w", fullKey, err)
	}

	return fetched, nil
}

// get returns the decoded value for fullKey and whether it was present.
func (c *RedisCacher[T]) get(ctx context.Context, fullKey string) (T, bool, error) {
	var zero T

	raw, err := c.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get %s: %w", fullKey, err)
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("unmarshal cached value for %s: %w", fullKey, err)
	}

	return v, true, nil
}

// waitFor polls with exponential backoff while another process holds the
// lock. It gives up when the lock disappears without a value being stored.
func (c *RedisCacher[T]) waitFor(ctx context.Context, fullKey, lockKey string) (T, error) {
	var zero T

	backoff := redisMinBackoff
	deadline := time.Now().Add(redisWaitTimeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}

		v, found, err := c.get(ctx, fullKey)
		if err != nil {
			return zero, err
		}
		if found {
			return v, nil
		}

		locked, err := c.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return zero, fmt.Errorf("redis exists %s: %w", lockKey, err)
		}

		if locked == 0 {
			return zero, fmt.Errorf("concurrent fetch for %s did not store a value", fullKey)
		}

		backoff = min(backoff*2, redisMaxBackoff)
	}

	return zero, fmt.Errorf("timed out waiting for %s", fullKey)
}

// Delete implements Cacher.
func (c *RedisCacher[T]) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", c.prefix+key, err)
	}

	return nil
}

// Clear implements Cacher.
func (c *RedisCacher[T]) Clear(ctx context.Context) error {
	keys, err := c.keys(ctx)
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// ItemCount implements Cacher.
func (c *RedisCacher[T]) ItemCount(ctx context.Context) (int, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, k := range keys {
		if !strings.HasSuffix(k, ":lock") {
			n++
		}
	}

	return n, nil
}

// keys lists every key under the prefix using SCAN.
func (c *RedisCacher[T]) keys(ctx context.Context) ([]string, error) {
	var keys []string

	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s*: %w", c.prefix, err)
	}

	return keys, nil
}
