package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNewLock(t *testing.T) {
	_, client := setupTestRedis(t)

	lock := NewLock(client, "")
	if lock.prefix != DefaultKeyPrefix+"lock:" {
		t.Errorf("expected default prefix, got %q", lock.prefix)
	}
	if lock.OwnerID() == NewLock(client, "").OwnerID() {
		t.Error("expected unique owner IDs")
	}
}

func TestLock_AcquireRelease(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	lock := NewLock(client, "test:")
	acquired, err := lock.Acquire(ctx, "ingest:p1", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected to acquire lock")
	}

	owner, err := mr.Get("test:lock:ingest:p1")
	if err != nil {
		t.Fatalf("lock key missing: %v", err)
	}
	if owner != lock.OwnerID() {
		t.Errorf("expected owner %s, got %s", lock.OwnerID(), owner)
	}

	// Not re-entrant
	acquired, err = lock.Acquire(ctx, "ingest:p1", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected second acquire to fail")
	}

	if err := lock.Release(ctx, "ingest:p1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if mr.Exists("test:lock:ingest:p1") {
		t.Error("expected lock key to be deleted")
	}
}

func TestLock_ReleaseByDifferentOwner(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	lock1 := NewLock(client, "")
	lock2 := NewLock(client, "")

	if ok, _ := lock1.Acquire(ctx, "scheduler", 10*time.Second); !ok {
		t.Fatal("expected lock1 to acquire")
	}
	if ok, _ := lock2.Acquire(ctx, "scheduler", 10*time.Second); ok {
		t.Fatal("expected lock2 to be refused")
	}

	if err := lock2.Release(ctx, "scheduler"); err != nil {
		t.Fatalf("release by non-owner should not error: %v", err)
	}
	if !mr.Exists(DefaultKeyPrefix + "lock:scheduler") {
		t.Error("non-owner release must not delete the lock")
	}
}

func TestLock_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	lock1 := NewLock(client, "")
	lock2 := NewLock(client, "")

	if ok, _ := lock1.Acquire(ctx, "ingest:p1", time.Second); !ok {
		t.Fatal("expected lock1 to acquire")
	}
	mr.FastForward(2 * time.Second)

	if ok, _ := lock2.Acquire(ctx, "ingest:p1", time.Second); !ok {
		t.Error("expected expired lock to be acquirable")
	}
}

func TestLock_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	lock := NewLock(client, "")
	other := NewLock(client, "")

	if err := lock.Extend(ctx, "ingest:p1", time.Minute); err == nil {
		t.Error("expected error extending a lock that is not held")
	}

	if ok, _ := lock.Acquire(ctx, "ingest:p1", time.Second); !ok {
		t.Fatal("expected to acquire")
	}
	if err := lock.Extend(ctx, "ingest:p1", time.Minute); err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if ttl := mr.TTL(DefaultKeyPrefix + "lock:ingest:p1"); ttl < 30*time.Second {
		t.Errorf("expected extended TTL, got %v", ttl)
	}

	err := other.Extend(ctx, "ingest:p1", time.Minute)
	if err == nil || !strings.Contains(err.Error(), "not held") {
		t.Errorf("expected not held error, got %v", err)
	}
}

func TestLock_Ping(t *testing.T) {
	mr, client := setupTestRedis(t)

	lock := NewLock(client, "")
	if err := lock.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}

	mr.Close()
	if err := lock.Ping(context.Background()); err == nil {
		t.Error("expected ping error after server shutdown")
	}
}
