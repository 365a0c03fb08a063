package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ProjectStore = (*ProjectStore)(nil)

// ProjectStore reads projects from PostgreSQL
type ProjectStore struct {
	db *DB
}

// NewProjectStore creates a new ProjectStore
func NewProjectStore(db *DB) *ProjectStore {
	return &ProjectStore{db: db}
}

const projectColumns = `id, username, name, archive_url, created_at, updated_at`

// Get retrieves a project by ID
func (s *ProjectStore) Get(ctx context.Context, id string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	var p domain.Project
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Username, &p.Name, &p.ArchiveURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	return &p, nil
}

// List returns all projects ordered by ID
func (s *ProjectStore) List(ctx context.Context) ([]*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Username, &p.Name, &p.ArchiveURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}
