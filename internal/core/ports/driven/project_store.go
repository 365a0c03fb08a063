package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ProjectStore reads tracked projects.
type ProjectStore interface {
	// Get retrieves a project by ID
	Get(ctx context.Context, id string) (*domain.Project, error)

	// List retrieves all projects
	List(ctx context.Context) ([]*domain.Project, error)
}
