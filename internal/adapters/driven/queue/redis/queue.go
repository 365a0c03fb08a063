package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

const (
	// DefaultKeyPrefix namespaces every key this queue writes
	DefaultKeyPrefix = "sercha-ingest:"

	// Default consumer name prefix
	consumerPrefix = "worker-"

	// How long a delivered task may stay unacknowledged before another
	// worker claims it
	defaultClaimTimeout = 5 * time.Minute

	// How long task records are kept
	taskTTL = 24 * time.Hour
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue using Redis Streams with a consumer group.
//
// Task records live in plain keys; the stream only carries task IDs.
// Delayed and retried tasks wait in a sorted set until they are due and
// are moved to the stream by the next dequeue.
type Queue struct {
	client       *redis.Client
	consumerName string
	claimTimeout time.Duration

	stream    string
	group     string
	scheduled string
	taskKey   string
}

// Options configures a Queue.
type Options struct {
	// KeyPrefix namespaces the queue's keys (default: DefaultKeyPrefix)
	KeyPrefix string

	// ConsumerName should be unique per worker instance (e.g., hostname + PID)
	ConsumerName string

	// ClaimTimeout before an unacknowledged task is reclaimed (default: 5m)
	ClaimTimeout time.Duration
}

// NewQueue creates a new Redis-backed task queue and its consumer group.
func NewQueue(ctx context.Context, client *redis.Client, opts Options) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	consumer := opts.ConsumerName
	if consumer == "" {
		consumer = consumerPrefix + strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	claimTimeout := opts.ClaimTimeout
	if claimTimeout <= 0 {
		claimTimeout = defaultClaimTimeout
	}

	q := &Queue{
		client:       client,
		consumerName: consumer,
		claimTimeout: claimTimeout,
		stream:       prefix + "tasks",
		group:        prefix + "workers",
		scheduled:    prefix + "scheduled",
		taskKey:      prefix + "task:",
	}

	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

func (q *Queue) keyOf(taskID string) string    { return q.taskKey + taskID }
func (q *Queue) msgKeyOf(taskID string) string { return q.taskKey + taskID + ":msg" }

// save stores the task record in pipe.
func (q *Queue) save(ctx context.Context, pipe redis.Pipeliner, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}
	pipe.Set(ctx, q.keyOf(task.ID), data, taskTTL)
	return nil
}

// publish makes the task visible to workers, now or when it is due.
func (q *Queue) publish(ctx context.Context, pipe redis.Pipeliner, task *domain.Task, now time.Time) {
	if task.ScheduledFor.After(now) {
		pipe.ZAdd(ctx, q.scheduled, redis.Z{
			Score:  float64(task.ScheduledFor.Unix()),
			Member: task.ID,
		})
		return
	}
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"task_id":    task.ID,
			"type":       string(task.Type),
			"project_id": task.ProjectID,
		},
	})
}

// Enqueue adds a task to the queue for processing.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	return q.EnqueueBatch(ctx, []*domain.Task{task})
}

// EnqueueBatch adds multiple tasks in one MULTI/EXEC.
func (q *Queue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	pipe := q.client.TxPipeline()
	now := time.Now()
	for _, task := range tasks {
		if task == nil {
			continue
		}
		if err := q.save(ctx, pipe, task); err != nil {
			return err
		}
		q.publish(ctx, pipe, task, now)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue tasks: %w", err)
	}
	return nil
}

// DequeueWithTimeout retrieves the next available task, blocking up to
// timeout seconds. A timeout <= 0 does not block.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	// Best effort: a failure only delays retries until the next call
	_ = q.promoteScheduledTasks(ctx)

	if task, err := q.claimAbandonedTask(ctx); err == nil && task != nil {
		return task, nil
	}

	block := time.Duration(-1)
	if timeout > 0 {
		block = time.Duration(timeout) * time.Second
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumerName,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}
	return q.deliver(ctx, streams[0].Messages[0])
}

// deliver loads the task behind a stream message and marks it processing.
// Messages without a usable task are dropped.
func (q *Queue) deliver(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	taskID, _ := msg.Values["task_id"].(string)

	var task *domain.Task
	if taskID != "" {
		var err error
		if task, err = q.GetTask(ctx, taskID); err != nil {
			return nil, fmt.Errorf("failed to get task data: %w", err)
		}
	}
	if task == nil {
		q.client.XAck(ctx, q.stream, q.group, msg.ID)
		q.client.XDel(ctx, q.stream, msg.ID)
		return nil, nil
	}

	task.MarkProcessing()

	pipe := q.client.TxPipeline()
	if err := q.save(ctx, pipe, task); err != nil {
		return nil, err
	}
	pipe.Set(ctx, q.msgKeyOf(task.ID), msg.ID, taskTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark task processing: %w", err)
	}

	return task, nil
}

// Ack acknowledges successful completion of a task.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return domain.ErrNotFound
	}
	task.MarkCompleted()
	return q.settle(ctx, task, nil)
}

// Nack records the failure and either schedules a retry with backoff or,
// once attempts are exhausted, marks the task failed.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return domain.ErrNotFound
	}

	if !task.CanRetry() {
		task.MarkFailed(reason)
		return q.settle(ctx, task, nil)
	}

	task.Retry(reason)
	return q.settle(ctx, task, func(pipe redis.Pipeliner) {
		q.publish(ctx, pipe, task, time.Now())
	})
}

// settle removes the task's stream message and stores its final state.
func (q *Queue) settle(ctx context.Context, task *domain.Task, then func(redis.Pipeliner)) error {
	msgID, err := q.client.Get(ctx, q.msgKeyOf(task.ID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get message ID: %w", err)
	}

	pipe := q.client.TxPipeline()
	if msgID != "" {
		pipe.XAck(ctx, q.stream, q.group, msgID)
		pipe.XDel(ctx, q.stream, msgID)
	}
	if err := q.save(ctx, pipe, task); err != nil {
		return err
	}
	pipe.Del(ctx, q.msgKeyOf(task.ID))
	if then != nil {
		then(pipe)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to settle task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask retrieves a task by ID, or nil if it does not exist.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, q.keyOf(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// Stats returns queue statistics. Completed and failed counts require a
// key scan and are only as accurate as the task TTL allows.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	length, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get stream length: %w", err)
	}

	groups, err := q.client.XInfoGroups(ctx, q.stream).Result()
	if err == nil {
		for _, g := range groups {
			if g.Name == q.group {
				stats.ProcessingCount = g.Pending
				break
			}
		}
	}
	stats.PendingCount = length - stats.ProcessingCount

	scheduled, err := q.client.ZCard(ctx, q.scheduled).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get scheduled count: %w", err)
	}
	stats.PendingCount += scheduled

	iter := q.client.Scan(ctx, 0, q.taskKey+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, ":msg") {
			continue
		}
		data, err := q.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var task domain.Task
		if json.Unmarshal(data, &task) != nil {
			continue
		}
		switch task.Status {
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan tasks: %w", err)
	}

	return stats, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close is a no-op; the Redis client is shared.
func (q *Queue) Close() error {
	return nil
}

// promoteScheduledTasks moves due scheduled tasks to the stream.
func (q *Queue) promoteScheduledTasks(ctx context.Context) error {
	now := time.Now()
	ids, err := q.client.ZRangeByScore(ctx, q.scheduled, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil || len(ids) == 0 {
		return err
	}

	pipe := q.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, q.scheduled, id)

		task, err := q.GetTask(ctx, id)
		if err != nil || task == nil {
			continue
		}
		// Due by score; publish straight to the stream.
		task.ScheduledFor = now
		q.publish(ctx, pipe, task, now)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// claimAbandonedTask claims a message another consumer left unacknowledged
// for longer than the claim timeout.
func (q *Queue) claimAbandonedTask(ctx context.Context) (*domain.Task, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   q.claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: q.consumerName,
			MinIdle:  q.claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}

		task, err := q.deliver(ctx, claimed[0])
		if err != nil {
			return nil, err
		}
		if task != nil {
			return task, nil
		}
	}

	return nil, nil
}

func isGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
