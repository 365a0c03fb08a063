package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var (
	_ driven.SourceFileStore              = (*MockSourceFileStore)(nil)
	_ driven.TransactionalSourceFileStore = (*MockTransactionalSourceFileStore)(nil)
)

// MockSourceFileStore is an in-memory SourceFileStore for testing.
// It does not implement ReplaceSnapshot; wrap it with
// NewMockTransactionalSourceFileStore for the transactional path.
type MockSourceFileStore struct {
	mu    sync.RWMutex
	files map[string]*domain.SourceFile

	// Custom behavior hooks (optional)
	CreateFn     func(file *domain.SourceFile) error
	DestroyAllFn func(projectID string) error

	// Call tracking
	DestroyAllCalls int
	CreateCalls     int
}

// NewMockSourceFileStore creates a new MockSourceFileStore
func NewMockSourceFileStore() *MockSourceFileStore {
	return &MockSourceFileStore{
		files: make(map[string]*domain.SourceFile),
	}
}

func (m *MockSourceFileStore) DestroyAll(ctx context.Context, projectID string) error {
	m.mu.Lock()
	m.DestroyAllCalls++
	m.mu.Unlock()

	if m.DestroyAllFn != nil {
		if err := m.DestroyAllFn(projectID); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, f := range m.files {
		if f.ProjectID == projectID {
			delete(m.files, id)
		}
	}
	return nil
}

func (m *MockSourceFileStore) Create(ctx context.Context, file *domain.SourceFile) error {
	m.mu.Lock()
	m.CreateCalls++
	m.mu.Unlock()

	if m.CreateFn != nil {
		if err := m.CreateFn(file); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(file)
}

func (m *MockSourceFileStore) insertLocked(file *domain.SourceFile) error {
	for _, f := range m.files {
		if f.ProjectID == file.ProjectID && f.Path == file.Path {
			return domain.ErrInvalidInput
		}
	}
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	m.files[file.ID] = file
	return nil
}

func (m *MockSourceFileStore) Get(ctx context.Context, id string) (*domain.SourceFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return f, nil
}

func (m *MockSourceFileStore) ListByProject(ctx context.Context, projectID string) ([]*domain.SourceFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.SourceFile
	for _, f := range m.files {
		if f.ProjectID == projectID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MockSourceFileStore) CountByProject(ctx context.Context, projectID string) (int, error) {
	files, _ := m.ListByProject(ctx, projectID)
	return len(files), nil
}

// Seed stores files directly, bypassing hooks (for test setup).
func (m *MockSourceFileStore) Seed(files ...*domain.SourceFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range files {
		_ = m.insertLocked(f)
	}
}

// MockTransactionalSourceFileStore adds an all-or-nothing ReplaceSnapshot.
type MockTransactionalSourceFileStore struct {
	*MockSourceFileStore

	ReplaceCalls int
}

// NewMockTransactionalSourceFileStore creates a new transactional mock store
func NewMockTransactionalSourceFileStore() *MockTransactionalSourceFileStore {
	return &MockTransactionalSourceFileStore{MockSourceFileStore: NewMockSourceFileStore()}
}

func (m *MockTransactionalSourceFileStore) ReplaceSnapshot(ctx context.Context, projectID string, files []*domain.SourceFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplaceCalls++

	staged := make(map[string]*domain.SourceFile, len(m.files))
	for id, f := range m.files {
		if f.ProjectID != projectID {
			staged[id] = f
		}
	}

	for _, f := range files {
		if m.CreateFn != nil {
			if err := m.CreateFn(f); err != nil {
				for _, g := range files {
					g.ID = ""
				}
				return &domain.PersistError{Path: f.Path, Err: err}
			}
		}
		f.ID = uuid.NewString()
		staged[f.ID] = f
	}

	m.files = staged
	return nil
}
