package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/core/services"
)

const defaultIngestLockTTL = 10 * time.Minute

// Worker processes tasks from the task queue.
// ingest_project tasks run the ingestion pipeline, analyse_file tasks run
// the file analyser.
type Worker struct {
	taskQueue driven.TaskQueue
	ingestion driving.IngestionService
	analyser  driven.FileAnalyser
	lock      driven.DistributedLock
	scheduler *services.Scheduler
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds
	ingestLockTTL  time.Duration

	// Projects being ingested by this process
	activeMu sync.Mutex
	active   map[string]struct{}

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Ingestion      driving.IngestionService
	Analyser       driven.FileAnalyser    // Optional: analyse_file tasks fail without it
	Lock           driven.DistributedLock // Optional: serialises ingestion of a project across instances
	Scheduler      *services.Scheduler    // Optional: started and stopped with the worker
	Logger         *slog.Logger
	Concurrency    int           // Number of concurrent task processors
	DequeueTimeout int           // Seconds to wait for a task before checking again
	IngestLockTTL  time.Duration // TTL of the per-project lock, renewed while ingesting (default: 10m)
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	lockTTL := cfg.IngestLockTTL
	if lockTTL <= 0 {
		lockTTL = defaultIngestLockTTL
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		ingestion:      cfg.Ingestion,
		analyser:       cfg.Analyser,
		lock:           cfg.Lock,
		scheduler:      cfg.Scheduler,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		ingestLockTTL:  lockTTL,
		active:         make(map[string]struct{}),
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	if w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			w.logger.Error("failed to start scheduler", "error", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker. In-flight tasks are finished first.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	if w.scheduler != nil {
		w.scheduler.Stop()
	}

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-time.After(time.Second):
			case <-w.stopCh:
			case <-ctx.Done():
			}
			continue
		}

		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask runs one task and settles it. Failures that cannot succeed
// on retry are acknowledged instead of nacked.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "project_id", task.ProjectID)
	logger.Info("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeIngestProject:
		err = w.handleIngestProject(ctx, task, logger)
	case domain.TaskTypeAnalyseFile:
		err = w.handleAnalyseFile(ctx, task)
	default:
		err = fmt.Errorf("%w: unknown task type: %s", domain.ErrInvalidInput, task.Type)
	}

	duration := time.Since(startTime)

	switch {
	case err == nil:
		logger.Info("task completed", "duration", duration)
	case isPermanent(err):
		logger.Error("task failed permanently", "duration", duration, "error", err)
	default:
		logger.Error("task failed", "duration", duration, "error", err)
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// isPermanent reports errors that a retry cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrUnsafePath) ||
		errors.Is(err, domain.ErrCorruptArchive)
}

// handleIngestProject runs the pipeline while holding the project's lock.
// A project that is already being ingested yields ErrIngestionInProgress,
// so the task is retried later.
func (w *Worker) handleIngestProject(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	projectID := task.ProjectID
	if projectID == "" {
		return fmt.Errorf("%w: project_id missing from task", domain.ErrInvalidInput)
	}
	if w.ingestion == nil {
		return errors.New("no ingestion service configured")
	}

	release, err := w.lockProject(ctx, projectID, logger)
	if err != nil {
		return err
	}
	defer release()

	result, err := w.ingestion.IngestProject(ctx, projectID)
	if err != nil {
		return err
	}

	logger.Info("project ingested",
		"files", len(result.Files),
		"dispatch_failures", result.DispatchFailures,
	)
	return nil
}

// lockProject takes the in-process guard and, if configured, the
// distributed lock "ingest:<projectID>". The distributed lock is renewed
// until release is called.
func (w *Worker) lockProject(ctx context.Context, projectID string, logger *slog.Logger) (func(), error) {
	w.activeMu.Lock()
	if _, busy := w.active[projectID]; busy {
		w.activeMu.Unlock()
		return nil, domain.ErrIngestionInProgress
	}
	w.active[projectID] = struct{}{}
	w.activeMu.Unlock()

	unguard := func() {
		w.activeMu.Lock()
		delete(w.active, projectID)
		w.activeMu.Unlock()
	}

	if w.lock == nil {
		return unguard, nil
	}

	name := "ingest:" + projectID
	acquired, err := w.lock.Acquire(ctx, name, w.ingestLockTTL)
	if err != nil {
		unguard()
		return nil, fmt.Errorf("acquire %s: %w", name, err)
	}
	if !acquired {
		unguard()
		return nil, domain.ErrIngestionInProgress
	}

	stop := make(chan struct{})
	var renewWG sync.WaitGroup
	renewWG.Add(1)
	go func() {
		defer renewWG.Done()
		ticker := time.NewTicker(w.ingestLockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.lock.Extend(ctx, name, w.ingestLockTTL); err != nil {
					logger.Warn("failed to extend ingestion lock", "lock", name, "error", err)
				}
			}
		}
	}()

	return func() {
		close(stop)
		renewWG.Wait()
		// Release even when the task context is already cancelled.
		if err := w.lock.Release(context.WithoutCancel(ctx), name); err != nil {
			logger.Warn("failed to release ingestion lock", "lock", name, "error", err)
		}
		unguard()
	}, nil
}

// handleAnalyseFile handles an analyse_file task.
func (w *Worker) handleAnalyseFile(ctx context.Context, task *domain.Task) error {
	fileID := task.FileID()
	if fileID == "" {
		return fmt.Errorf("%w: file_id not found in task payload", domain.ErrInvalidInput)
	}
	if w.analyser == nil {
		return errors.New("no file analyser configured")
	}
	return w.analyser.Analyse(ctx, fileID)
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	LockHealth  bool   `json:"lock_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{Running: running, QueueHealth: true, LockHealth: true}

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	}

	if w.lock != nil {
		if err := w.lock.Ping(ctx); err != nil {
			health.LockHealth = false
			if health.Error == "" {
				health.Error = err.Error()
			}
		}
	}

	return health
}
