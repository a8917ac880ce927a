package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"custos/pkg/contracts/domain"
)

// MemoryStore is an in-memory implementation of AnalysisStore
type MemoryStore struct {
	mu       sync.RWMutex
	analyses map[string]*domain.Analysis
}

// NewMemoryStore creates a new in-memory analysis store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		analyses: make(map[string]*domain.Analysis),
	}
}

// Create stores a new analysis
func (s *MemoryStore) Create(_ context.Context, a *domain.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.analyses[a.ID]; exists {
		return fmt.Errorf("analysis %s: %w", a.ID, ErrAlreadyExists)
	}

	s.analyses[a.ID] = a.Clone()
	return nil
}

// Get retrieves an analysis by ID
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.analyses[id]
	if !exists {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}

	// Return a copy to prevent external modification
	return a.Clone(), nil
}

// List returns analysis summaries, newest upload first
func (s *MemoryStore) List(_ context.Context, limit int) ([]domain.AnalysisSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AnalysisSummary, 0, len(s.analyses))
	for _, a := range s.analyses {
		result = append(result, a.Summary())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].UploadedAt.Equal(result[j].UploadedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Update replaces an existing analysis
func (s *MemoryStore) Update(_ context.Context, a *domain.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.analyses[a.ID]
	if !exists {
		return fmt.Errorf("analysis %s: %w", a.ID, ErrNotFound)
	}

	updated := a.Clone()
	updated.UploadedAt = existing.UploadedAt
	s.analyses[a.ID] = updated
	return nil
}

// Delete removes an analysis and its dataset
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.analyses[id]; !exists {
		return fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}

	delete(s.analyses, id)
	return nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() {}
