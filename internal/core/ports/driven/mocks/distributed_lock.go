package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock is an in-memory DistributedLock with TTL expiry.
type MockDistributedLock struct {
	mu    sync.Mutex
	locks map[string]time.Time // name -> expiry

	// Custom behavior hooks (optional)
	AcquireFn func(name string, ttl time.Duration) (bool, error)

	// Released records lock names in release order
	Released []string
}

// NewMockDistributedLock creates a new mock distributed lock.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{locks: make(map[string]time.Time)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, held := m.locks[name]; held && time.Now().Before(expiry) {
		return false, nil
	}
	m.locks[name] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, name)
	m.Released = append(m.Released, name)
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, held := m.locks[name]
	if !held || time.Now().After(expiry) {
		return fmt.Errorf("lock %s not held", name)
	}
	m.locks[name] = time.Now().Add(ttl)
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return nil
}

// IsHeld reports whether a lock is currently held (for test assertions).
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, held := m.locks[name]
	return held && time.Now().Before(expiry)
}

// SetLockHeld forces a lock to be held by someone else (for test setup).
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[name] = time.Now().Add(ttl)
}

// ReleasedNames returns a copy of the released lock names.
func (m *MockDistributedLock) ReleasedNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Released...)
}
