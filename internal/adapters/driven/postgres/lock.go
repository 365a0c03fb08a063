package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*AdvisoryLock)(nil)

// AdvisoryLock implements DistributedLock with session-level PostgreSQL
// advisory locks. It is the fallback when Redis is not configured.
//
// Advisory locks belong to a connection, not a TTL: the ttl arguments are
// ignored and a lock is only freed by Release or by its connection closing.
// Each held lock pins one connection from the pool until it is released.
type AdvisoryLock struct {
	db *DB

	mu    sync.Mutex
	conns map[string]*sql.Conn
}

// NewAdvisoryLock creates a new PostgreSQL advisory lock adapter.
func NewAdvisoryLock(db *DB) *AdvisoryLock {
	return &AdvisoryLock{db: db, conns: make(map[string]*sql.Conn)}
}

// lockKey maps a lock name onto the bigint key space with FNV-1a.
func lockKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("sercha-ingest:lock:" + name))
	return int64(h.Sum64())
}

// Acquire tries pg_try_advisory_lock without blocking.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.conns[name]; held {
		return false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("get connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockKey(name)).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	l.conns[name] = conn
	return true, nil
}

// Release frees the lock. Releasing a lock that is not held is not an error.
func (l *AdvisoryLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	conn, held := l.conns[name]
	delete(l.conns, name)
	l.mu.Unlock()

	if !held {
		return nil
	}
	defer conn.Close()

	var released bool
	return conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", lockKey(name)).Scan(&released)
}

// Extend only checks the lock is held; advisory locks do not expire.
func (l *AdvisoryLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.conns[name]; !held {
		return fmt.Errorf("lock %s not held", name)
	}
	return nil
}

// Ping checks if the PostgreSQL backend is healthy.
func (l *AdvisoryLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
