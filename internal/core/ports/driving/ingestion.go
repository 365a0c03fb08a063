package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// IngestionService replaces project snapshots from remote archives
type IngestionService interface {
	// Ingest fetches the project's archive and replaces its source files.
	// It returns either the full new snapshot or an error, never both.
	Ingest(ctx context.Context, project *domain.Project) (*domain.IngestionResult, error)

	// IngestProject loads the project by ID and ingests it
	IngestProject(ctx context.Context, projectID string) (*domain.IngestionResult, error)
}
