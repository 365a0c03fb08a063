package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// SnapshotReplacer swaps a project's source files for a new snapshot.
//
// When the store implements driven.TransactionalSourceFileStore the swap is
// all-or-nothing. Otherwise files are destroyed first and created one by
// one; a failure part-way leaves the project with the files created so far.
type SnapshotReplacer struct {
	store  driven.SourceFileStore
	logger *slog.Logger
}

// NewSnapshotReplacer creates a new SnapshotReplacer.
func NewSnapshotReplacer(store driven.SourceFileStore, logger *slog.Logger) *SnapshotReplacer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotReplacer{store: store, logger: logger}
}

// Replace persists snap as the project's complete file set. It returns the
// created files in snapshot order and whether the swap was transactional.
// Errors are *domain.PersistError.
func (r *SnapshotReplacer) Replace(ctx context.Context, projectID string, snap *domain.Snapshot) ([]*domain.SourceFile, bool, error) {
	files := make([]*domain.SourceFile, 0, snap.Len())
	for _, f := range snap.Files() {
		files = append(files, domain.NewSourceFile(projectID, f.Path, f.Content))
	}

	if tx, ok := r.store.(driven.TransactionalSourceFileStore); ok {
		if err := tx.ReplaceSnapshot(ctx, projectID, files); err != nil {
			var persistErr *domain.PersistError
			if errors.As(err, &persistErr) {
				return nil, true, persistErr
			}
			return nil, true, &domain.PersistError{Err: err}
		}
		return files, true, nil
	}

	r.logger.Debug("store is not transactional, replacing snapshot file by file", "project_id", projectID)

	if err := r.store.DestroyAll(ctx, projectID); err != nil {
		return nil, false, &domain.PersistError{Err: fmt.Errorf("destroy existing files: %w", err)}
	}

	for i, f := range files {
		if err := r.store.Create(ctx, f); err != nil {
			r.logger.Error("snapshot partially applied",
				"project_id", projectID,
				"created", i,
				"total", len(files),
				"path", f.Path,
			)
			return nil, false, &domain.PersistError{Path: f.Path, Err: err}
		}
	}

	return files, false, nil
}
