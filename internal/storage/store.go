// Package storage persists analyses and their datasets.
package storage

import (
	"context"
	"errors"

	"custos/pkg/contracts/domain"
)

var (
	ErrNotFound      = errors.New("analysis not found")
	ErrAlreadyExists = errors.New("analysis already exists")
)

// AnalysisStore keeps analyses keyed by id. Implementations return copies, so
// callers may mutate results freely. Writes replace whole datasets.
type AnalysisStore interface {
	Create(ctx context.Context, a *domain.Analysis) error
	Get(ctx context.Context, id string) (*domain.Analysis, error)
	// List returns summaries newest first. A limit of zero or less means no limit.
	List(ctx context.Context, limit int) ([]domain.AnalysisSummary, error)
	// Update stores the name, updated time and dataset of a.
	Update(ctx context.Context, a *domain.Analysis) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close()
}
