package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure Queue implements TaskQueue
var _ driven.TaskQueue = (*Queue)(nil)

// pollInterval is how often an empty queue is re-checked while waiting.
const pollInterval = 500 * time.Millisecond

const taskColumns = `
	id, type, project_id, payload, status, priority,
	attempts, max_attempts, error, created_at, updated_at,
	started_at, completed_at, scheduled_for`

const insertTaskSQL = `
	INSERT INTO tasks (
		id, type, project_id, payload, status, priority,
		attempts, max_attempts, error, created_at, updated_at, scheduled_for
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// Queue implements TaskQueue using PostgreSQL with SKIP LOCKED for reliable task processing.
// This is the fallback queue when Redis is not available.
type Queue struct {
	db *sql.DB
}

// NewQueue creates a new PostgreSQL-backed task queue.
// Assumes the tasks table exists (see postgres.DB.InitSchema).
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTask(ctx context.Context, db execer, task *domain.Task) error {
	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload for task %s: %w", task.ID, err)
	}

	_, err = db.ExecContext(ctx, insertTaskSQL,
		task.ID,
		task.Type,
		task.ProjectID,
		payload,
		task.Status,
		task.Priority,
		task.Attempts,
		task.MaxAttempts,
		task.Error,
		task.CreatedAt,
		task.UpdatedAt,
		task.ScheduledFor,
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", task.ID, err)
	}
	return nil
}

// Enqueue adds a task to the queue
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	return insertTask(ctx, q.db, task)
}

// EnqueueBatch adds multiple tasks atomically
func (q *Queue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, task := range tasks {
		if err := insertTask(ctx, tx, task); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DequeueWithTimeout claims the next ready task, polling for up to timeout
// seconds. It returns nil, nil when nothing became ready in time.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)

	for {
		task, err := q.claim(ctx)
		if err != nil || task != nil {
			return task, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// claim selects one pending task with FOR UPDATE SKIP LOCKED and marks it
// processing in the same transaction.
func (q *Queue) claim(ctx context.Context) (*domain.Task, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT` + taskColumns + `
		FROM tasks
		WHERE status = $1
		  AND scheduled_for <= NOW()
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	task, err := scanTask(tx.QueryRowContext(ctx, query, domain.TaskStatusPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select task: %w", err)
	}

	task.MarkProcessing()

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, started_at = $2, updated_at = $3, attempts = $4
		WHERE id = $5
	`, task.Status, task.StartedAt, task.UpdatedAt, task.Attempts, task.ID)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return task, nil
}

// Ack marks a task as completed
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	now := time.Now()
	result, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, completed_at = $2, updated_at = $3, error = ''
		WHERE id = $4
	`, domain.TaskStatusCompleted, now, now, taskID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Nack records the failure and either reschedules the task with backoff or,
// once its attempts are exhausted, marks it failed.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return domain.ErrNotFound
	}

	if task.CanRetry() {
		task.Retry(reason)
	} else {
		task.MarkFailed(reason)
	}

	_, err = q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, error = $2, updated_at = $3, scheduled_for = $4
		WHERE id = $5
	`, task.Status, task.Error, task.UpdatedAt, task.ScheduledFor, taskID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID, or nil if it does not exist
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	query := `SELECT` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(q.db.QueryRowContext(ctx, query, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// Stats returns queue statistics
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := &driven.QueueStats{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}

		switch domain.TaskStatus(status) {
		case domain.TaskStatusPending:
			stats.PendingCount = count
		case domain.TaskStatusProcessing:
			stats.ProcessingCount = count
		case domain.TaskStatusCompleted:
			stats.CompletedCount = count
		case domain.TaskStatusFailed:
			stats.FailedCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}

// Ping checks database connectivity
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close is a no-op; the connection pool is managed by the caller
func (q *Queue) Close() error {
	return nil
}

func scanTask(row *sql.Row) (*domain.Task, error) {
	var task domain.Task
	var payload []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.Type,
		&task.ProjectID,
		&payload,
		&task.Status,
		&task.Priority,
		&task.Attempts,
		&task.MaxAttempts,
		&task.Error,
		&task.CreatedAt,
		&task.UpdatedAt,
		&startedAt,
		&completedAt,
		&task.ScheduledFor,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}
