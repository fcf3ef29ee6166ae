package storage

import (
	"context"
	"sync"

	"patron/internal/models"
)

// MemoryRepository keeps the audit trail for the lifetime of the process
type MemoryRepository struct {
	mu          sync.RWMutex
	evaluations []*models.Evaluation
	grants      []*models.Grant
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) SaveEvaluation(ctx context.Context, evaluation *models.Evaluation) error {
	e := *evaluation
	if evaluation.Score != nil {
		s := *evaluation.Score
		e.Score = &s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluations = append(r.evaluations, &e)
	return nil
}

// ListEvaluations returns evaluations newest first
func (r *MemoryRepository) ListEvaluations(ctx context.Context, limit, offset int) ([]*models.Evaluation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return page(r.evaluations, limit, offset), nil
}

func (r *MemoryRepository) SaveGrant(ctx context.Context, grant *models.Grant) error {
	g := *grant

	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants = append(r.grants, &g)
	return nil
}

// ListGrants returns grants newest first
func (r *MemoryRepository) ListGrants(ctx context.Context, limit, offset int) ([]*models.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return page(r.grants, limit, offset), nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

// page walks items from the newest end
func page[T any](items []*T, limit, offset int) []*T {
	out := []*T{}
	for i := len(items) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		v := *items[i]
		out = append(out, &v)
	}
	return out
}
