package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

const schedulerLockName = "scheduler"

// Scheduler periodically enqueues re-ingestion of every project.
//
// For multi-worker deployments, configure a DistributedLock to prevent
// duplicate enqueuing across instances.
type Scheduler struct {
	projects  driven.ProjectStore
	taskQueue driven.TaskQueue
	lock      driven.DistributedLock
	logger    *slog.Logger

	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration

	lockTTL      time.Duration
	lockRequired bool
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	ProjectStore driven.ProjectStore
	TaskQueue    driven.TaskQueue
	Lock         driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Logger       *slog.Logger
	Interval     time.Duration // How often to re-ingest all projects (default: 1h)
	LockTTL      time.Duration // TTL for the distributed lock (default: 60s)
	LockRequired bool          // If true, skip a cycle when the lock backend errors
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 60 * time.Second
	}

	return &Scheduler{
		projects:     cfg.ProjectStore,
		taskQueue:    cfg.TaskQueue,
		lock:         cfg.Lock,
		logger:       logger,
		interval:     interval,
		lockTTL:      lockTTL,
		lockRequired: cfg.LockRequired,
	}
}

// Start begins the scheduler loop.
// It runs until Stop is called or context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("scheduler starting", "interval", s.interval)

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.EnqueueAll(ctx); err != nil {
				s.logger.Error("failed to enqueue ingestion tasks", "error", err)
			}
		}
	}
}

// EnqueueAll enqueues one ingest_project task per project and returns the
// number enqueued. If a distributed lock is configured and held elsewhere,
// the cycle is skipped and 0 is returned.
func (s *Scheduler) EnqueueAll(ctx context.Context) (int, error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, schedulerLockName, s.lockTTL)
		switch {
		case err != nil:
			s.logger.Warn("failed to acquire scheduler lock", "error", err)
			if s.lockRequired {
				return 0, nil
			}
		case !acquired:
			s.logger.Debug("scheduler lock held by another instance, skipping cycle")
			return 0, nil
		default:
			defer func() {
				if err := s.lock.Release(ctx, schedulerLockName); err != nil {
					s.logger.Warn("failed to release scheduler lock", "error", err)
				}
			}()
		}
	}

	projects, err := s.projects.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(projects) == 0 {
		return 0, nil
	}

	tasks := make([]*domain.Task, 0, len(projects))
	for _, p := range projects {
		tasks = append(tasks, domain.NewIngestProjectTask(p.ID))
	}

	if err := s.taskQueue.EnqueueBatch(ctx, tasks); err != nil {
		return 0, err
	}

	s.logger.Info("enqueued project ingestions", "count", len(tasks))
	return len(tasks), nil
}
