package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// MockTaskQueue is an in-memory TaskQueue for testing.
// Enqueued tasks are kept in FIFO order.
type MockTaskQueue struct {
	mu    sync.Mutex
	tasks []*domain.Task

	// Custom behavior hooks (optional)
	EnqueueFn func(task *domain.Task) error
	DequeueFn func() (*domain.Task, error)
	AckFn     func(taskID string) error
	NackFn    func(taskID, reason string) error
	PingFn    func() error

	// Call tracking
	Acked  []string
	Nacked map[string]string
}

// NewMockTaskQueue creates a new MockTaskQueue
func NewMockTaskQueue() *MockTaskQueue {
	return &MockTaskQueue{Nacked: make(map[string]string)}
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	if m.EnqueueFn != nil {
		if err := m.EnqueueFn(task); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *MockTaskQueue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	for _, t := range tasks {
		if err := m.Enqueue(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if m.DequeueFn != nil {
		return m.DequeueFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		return nil, nil
	}
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	task.MarkProcessing()
	return task, nil
}

func (m *MockTaskQueue) Ack(ctx context.Context, taskID string) error {
	m.mu.Lock()
	m.Acked = append(m.Acked, taskID)
	m.mu.Unlock()
	if m.AckFn != nil {
		return m.AckFn(taskID)
	}
	return nil
}

func (m *MockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	m.Nacked[taskID] = reason
	m.mu.Unlock()
	if m.NackFn != nil {
		return m.NackFn(taskID, reason)
	}
	return nil
}

func (m *MockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == taskID {
			return t, nil
		}
	}
	return nil, nil
}

func (m *MockTaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &driven.QueueStats{PendingCount: int64(len(m.tasks))}, nil
}

func (m *MockTaskQueue) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

func (m *MockTaskQueue) Close() error {
	return nil
}

// Tasks returns a copy of the pending tasks.
func (m *MockTaskQueue) Tasks() []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Task(nil), m.tasks...)
}

// AckedIDs returns a copy of the acknowledged task IDs.
func (m *MockTaskQueue) AckedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Acked...)
}

// NackReason returns the reason recorded for a nacked task.
func (m *MockTaskQueue) NackReason(taskID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Nacked[taskID]
	return r, ok
}
