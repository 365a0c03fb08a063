package services

import (
	"context"
	"log/slog"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// DispatchNotifier schedules downstream analysis of persisted files.
// Delivery is best-effort: an enqueue failure is logged and skipped.
type DispatchNotifier struct {
	queue  driven.TaskQueue
	logger *slog.Logger
}

// NewDispatchNotifier creates a new DispatchNotifier. A nil queue disables dispatch.
func NewDispatchNotifier(queue driven.TaskQueue, logger *slog.Logger) *DispatchNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchNotifier{queue: queue, logger: logger}
}

// Notify enqueues one analyse_file task per file and returns the number of
// files that could not be enqueued.
func (d *DispatchNotifier) Notify(ctx context.Context, files []*domain.SourceFile) int {
	if d.queue == nil {
		d.logger.Debug("no task queue configured, skipping analysis dispatch", "files", len(files))
		return 0
	}

	failures := 0
	for _, f := range files {
		task := domain.NewAnalyseFileTask(f.ProjectID, f.ID)
		if err := d.queue.Enqueue(ctx, task); err != nil {
			failures++
			d.logger.Warn("failed to dispatch analysis",
				"project_id", f.ProjectID,
				"path", f.Path,
				"error", &domain.DispatchError{FileID: f.ID, Err: err},
			)
		}
	}
	return failures
}
