package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TransactionalSourceFileStore = (*SourceFileStore)(nil)

// SourceFileStore implements driven.TransactionalSourceFileStore using PostgreSQL
type SourceFileStore struct {
	db *DB
}

// NewSourceFileStore creates a new SourceFileStore
func NewSourceFileStore(db *DB) *SourceFileStore {
	return &SourceFileStore{db: db}
}

const (
	insertSourceFileSQL = `
		INSERT INTO source_files (id, project_id, path, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	deleteSourceFilesSQL = `DELETE FROM source_files WHERE project_id = $1`
)

// DestroyAll removes every source file of a project
func (s *SourceFileStore) DestroyAll(ctx context.Context, projectID string) error {
	if _, err := s.db.ExecContext(ctx, deleteSourceFilesSQL, projectID); err != nil {
		return fmt.Errorf("delete source files: %w", err)
	}
	return nil
}

// Create inserts a source file, assigning its ID
func (s *SourceFileStore) Create(ctx context.Context, file *domain.SourceFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, insertSourceFileSQL,
		file.ID, file.ProjectID, file.Path, file.Content, file.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: duplicate path %q", domain.ErrInvalidInput, file.Path)
	}
	if err != nil {
		return fmt.Errorf("insert source file: %w", err)
	}
	return nil
}

// ReplaceSnapshot deletes the project's files and inserts files in one
// transaction. On failure the previous files remain and no IDs are assigned.
func (s *SourceFileStore) ReplaceSnapshot(ctx context.Context, projectID string, files []*domain.SourceFile) error {
	for _, f := range files {
		f.ID = uuid.NewString()
	}

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteSourceFilesSQL, projectID); err != nil {
			return &domain.PersistError{Err: fmt.Errorf("delete source files: %w", err)}
		}

		stmt, err := tx.PrepareContext(ctx, insertSourceFileSQL)
		if err != nil {
			return &domain.PersistError{Err: fmt.Errorf("prepare statement: %w", err)}
		}
		defer stmt.Close()

		for _, f := range files {
			if _, err := stmt.ExecContext(ctx, f.ID, projectID, f.Path, f.Content, f.CreatedAt); err != nil {
				return &domain.PersistError{Path: f.Path, Err: err}
			}
		}
		return nil
	})
	if err != nil {
		for _, f := range files {
			f.ID = ""
		}
		return err
	}
	return nil
}

// Get retrieves a source file by ID
func (s *SourceFileStore) Get(ctx context.Context, id string) (*domain.SourceFile, error) {
	query := `
		SELECT id, project_id, path, content, created_at
		FROM source_files
		WHERE id = $1
	`

	var f domain.SourceFile
	err := s.db.QueryRowContext(ctx, query, id).Scan(&f.ID, &f.ProjectID, &f.Path, &f.Content, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query source file: %w", err)
	}
	return &f, nil
}

// ListByProject returns a project's source files ordered by path
func (s *SourceFileStore) ListByProject(ctx context.Context, projectID string) ([]*domain.SourceFile, error) {
	query := `
		SELECT id, project_id, path, content, created_at
		FROM source_files
		WHERE project_id = $1
		ORDER BY path
	`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query source files: %w", err)
	}
	defer rows.Close()

	var files []*domain.SourceFile
	for rows.Next() {
		var f domain.SourceFile
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Path, &f.Content, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan source file: %w", err)
		}
		files = append(files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source files: %w", err)
	}
	return files, nil
}

// CountByProject returns the number of source files of a project
func (s *SourceFileStore) CountByProject(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM source_files WHERE project_id = $1`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count source files: %w", err)
	}
	return count, nil
}
