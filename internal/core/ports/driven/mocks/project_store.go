package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// MockProjectStore is an in-memory ProjectStore for testing
type MockProjectStore struct {
	mu       sync.RWMutex
	projects map[string]*domain.Project

	ListFn func() ([]*domain.Project, error)
}

// NewMockProjectStore creates a new MockProjectStore
func NewMockProjectStore(projects ...*domain.Project) *MockProjectStore {
	m := &MockProjectStore{projects: make(map[string]*domain.Project)}
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	return m
}

func (m *MockProjectStore) Get(ctx context.Context, id string) (*domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockProjectStore) List(ctx context.Context) ([]*domain.Project, error) {
	if m.ListFn != nil {
		return m.ListFn()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
