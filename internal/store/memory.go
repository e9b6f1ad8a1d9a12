package store

import (
	"context"
	"sync"

	"github.com/masaic-ai/open-responses-go/internal/domain"
)

// MemoryEngine is the default "ephemeral" Engine (spec §6): an in-process
// map guarded by a mutex. Data does not survive a restart.
type MemoryEngine struct {
	mu   sync.RWMutex
	data map[string]*domain.StoredResponse
}

// NewMemoryEngine returns an empty MemoryEngine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{data: make(map[string]*domain.StoredResponse)}
}

func (m *MemoryEngine) Put(_ context.Context, stored *domain.StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *stored
	m.data[stored.Response.ID] = &cp
	return nil
}

func (m *MemoryEngine) Get(_ context.Context, id string) (*domain.StoredResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (m *MemoryEngine) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		return ErrNotFound
	}
	delete(m.data, id)
	return nil
}
