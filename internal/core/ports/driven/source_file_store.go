package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// SourceFileStore persists the files of project snapshots.
type SourceFileStore interface {
	// DestroyAll deletes every source file owned by the project
	DestroyAll(ctx context.Context, projectID string) error

	// Create stores a new source file and assigns its ID
	Create(ctx context.Context, file *domain.SourceFile) error

	// Get retrieves a source file by ID
	Get(ctx context.Context, id string) (*domain.SourceFile, error)

	// ListByProject retrieves a project's source files ordered by path
	ListByProject(ctx context.Context, projectID string) ([]*domain.SourceFile, error)

	// CountByProject returns the number of source files owned by the project
	CountByProject(ctx context.Context, projectID string) (int, error)
}

// TransactionalSourceFileStore is implemented by stores that can swap a
// whole snapshot atomically.
type TransactionalSourceFileStore interface {
	SourceFileStore

	// ReplaceSnapshot deletes the project's files and creates files in one
	// transaction, assigning IDs. On error nothing is changed; the error is a
	// *domain.PersistError when a single file was rejected.
	ReplaceSnapshot(ctx context.Context, projectID string, files []*domain.SourceFile) error
}
