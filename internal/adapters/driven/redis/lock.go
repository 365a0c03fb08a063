package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// DefaultKeyPrefix namespaces every key this service writes.
const DefaultKeyPrefix = "sercha-ingest:"

// Lock implements DistributedLock using SET NX with a TTL.
// Each Lock has an owner ID, so an instance can only release or extend
// locks it acquired itself. Locks are not re-entrant.
type Lock struct {
	client  *redis.Client
	prefix  string
	ownerID string
}

// NewLock creates a Redis-backed distributed lock. An empty keyPrefix
// uses DefaultKeyPrefix.
func NewLock(client *redis.Client, keyPrefix string) *Lock {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	hostname, _ := os.Hostname()
	return &Lock{
		client:  client,
		prefix:  keyPrefix + "lock:",
		ownerID: fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString()),
	}
}

// Acquire takes the lock if nobody holds it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+name, l.ownerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// Scripts act on KEYS[1] only while ARGV[1] owns it.
var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)

	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// Release frees the lock if this instance holds it. Releasing an expired
// or foreign lock is a no-op.
func (l *Lock) Release(ctx context.Context, name string) error {
	err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, l.ownerID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Extend resets the TTL of a lock held by this instance.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{l.prefix + name}, l.ownerID, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("lock %s not held by this instance", name)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// OwnerID identifies this lock holder in Redis.
func (l *Lock) OwnerID() string {
	return l.ownerID
}
