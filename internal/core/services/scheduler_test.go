package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven/mocks"
)

func schedulerProjects() *mocks.MockProjectStore {
	return mocks.NewMockProjectStore(
		&domain.Project{ID: "p1", ArchiveURL: "https://example.test/1.zip"},
		&domain.Project{ID: "p2", ArchiveURL: "https://example.test/2.zip"},
		&domain.Project{ID: "p3", ArchiveURL: "https://example.test/3.zip"},
	)
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		ProjectStore: schedulerProjects(),
		TaskQueue:    mocks.NewMockTaskQueue(),
	})

	if s.interval != time.Hour {
		t.Errorf("expected default interval 1h, got %v", s.interval)
	}
	if s.lockTTL != 60*time.Second {
		t.Errorf("expected default lock TTL 60s, got %v", s.lockTTL)
	}
	if s.logger == nil {
		t.Error("expected default logger")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		ProjectStore: schedulerProjects(),
		TaskQueue:    mocks.NewMockTaskQueue(),
		Interval:     100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		t.Error("expected scheduler to be running")
	}

	// Start again should be no-op
	if err := s.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	s.Stop()

	s.mu.RLock()
	running = s.running
	s.mu.RUnlock()
	if running {
		t.Error("expected scheduler to be stopped")
	}

	// Stop again should be no-op
	s.Stop()
}

func TestScheduler_EnqueueAll(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()

	s := NewScheduler(SchedulerConfig{
		ProjectStore: schedulerProjects(),
		TaskQueue:    queue,
		Lock:         lock,
	})

	n, err := s.EnqueueAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 tasks enqueued, got %d", n)
	}

	tasks := queue.Tasks()
	if len(tasks) != 3 {
		t.Fatalf("expected 3 queued tasks, got %d", len(tasks))
	}
	for i, want := range []string{"p1", "p2", "p3"} {
		if tasks[i].Type != domain.TaskTypeIngestProject {
			t.Errorf("task %d: expected type %s, got %s", i, domain.TaskTypeIngestProject, tasks[i].Type)
		}
		if tasks[i].ProjectID != want {
			t.Errorf("task %d: expected project %s, got %s", i, want, tasks[i].ProjectID)
		}
	}

	if lock.IsHeld(schedulerLockName) {
		t.Error("expected scheduler lock to be released")
	}
	if released := lock.ReleasedNames(); len(released) != 1 || released[0] != schedulerLockName {
		t.Errorf("expected scheduler lock release, got %v", released)
	}
}

func TestScheduler_EnqueueAll_LockHeld(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()
	lock.SetLockHeld(schedulerLockName, time.Minute)

	s := NewScheduler(SchedulerConfig{
		ProjectStore: schedulerProjects(),
		TaskQueue:    queue,
		Lock:         lock,
	})

	n, err := s.EnqueueAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected cycle to be skipped, got %d tasks", n)
	}
	if len(queue.Tasks()) != 0 {
		t.Error("expected no tasks while another instance holds the lock")
	}
}

func TestScheduler_EnqueueAll_LockError(t *testing.T) {
	lockErr := func(string, time.Duration) (bool, error) { return false, errors.New("redis unavailable") }

	t.Run("lock optional", func(t *testing.T) {
		queue := mocks.NewMockTaskQueue()
		lock := mocks.NewMockDistributedLock()
		lock.AcquireFn = lockErr

		s := NewScheduler(SchedulerConfig{ProjectStore: schedulerProjects(), TaskQueue: queue, Lock: lock})
		n, err := s.EnqueueAll(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 3 {
			t.Errorf("expected enqueue to proceed without lock, got %d", n)
		}
	})

	t.Run("lock required", func(t *testing.T) {
		queue := mocks.NewMockTaskQueue()
		lock := mocks.NewMockDistributedLock()
		lock.AcquireFn = lockErr

		s := NewScheduler(SchedulerConfig{ProjectStore: schedulerProjects(), TaskQueue: queue, Lock: lock, LockRequired: true})
		n, err := s.EnqueueAll(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 0 || len(queue.Tasks()) != 0 {
			t.Errorf("expected cycle to be skipped, got %d", n)
		}
	})
}

func TestScheduler_EnqueueAll_Errors(t *testing.T) {
	t.Run("list fails", func(t *testing.T) {
		projects := schedulerProjects()
		projects.ListFn = func() ([]*domain.Project, error) { return nil, errors.New("db down") }

		s := NewScheduler(SchedulerConfig{ProjectStore: projects, TaskQueue: mocks.NewMockTaskQueue()})
		if _, err := s.EnqueueAll(context.Background()); err == nil {
			t.Error("expected list error")
		}
	})

	t.Run("enqueue fails", func(t *testing.T) {
		queue := mocks.NewMockTaskQueue()
		queue.EnqueueFn = func(*domain.Task) error { return errors.New("queue full") }

		s := NewScheduler(SchedulerConfig{ProjectStore: schedulerProjects(), TaskQueue: queue})
		n, err := s.EnqueueAll(context.Background())
		if err == nil {
			t.Error("expected enqueue error")
		}
		if n != 0 {
			t.Errorf("expected 0, got %d", n)
		}
	})

	t.Run("no projects", func(t *testing.T) {
		queue := mocks.NewMockTaskQueue()
		s := NewScheduler(SchedulerConfig{ProjectStore: mocks.NewMockProjectStore(), TaskQueue: queue})
		n, err := s.EnqueueAll(context.Background())
		if err != nil || n != 0 {
			t.Errorf("expected 0, nil; got %d, %v", n, err)
		}
	})
}

func TestScheduler_TicksEnqueue(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	s := NewScheduler(SchedulerConfig{
		ProjectStore: schedulerProjects(),
		TaskQueue:    queue,
		Interval:     20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(queue.Tasks()) < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	s.Stop()

	if got := len(queue.Tasks()); got < 3 {
		t.Errorf("expected at least one cycle of 3 tasks, got %d", got)
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		ProjectStore: schedulerProjects(),
		TaskQueue:    mocks.NewMockTaskQueue(),
		Interval:     time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}
	cancel()

	select {
	case <-s.doneCh:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not exit after context cancellation")
	}
}
