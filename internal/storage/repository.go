package storage

import (
	"context"

	"patron/internal/models"
)

// Repository is the write-mostly audit trail of evaluations and grants.
// Decision state is never loaded back from it.
type Repository interface {
	// Evaluations
	SaveEvaluation(ctx context.Context, evaluation *models.Evaluation) error
	ListEvaluations(ctx context.Context, limit, offset int) ([]*models.Evaluation, error)

	// Grants
	SaveGrant(ctx context.Context, grant *models.Grant) error
	ListGrants(ctx context.Context, limit, offset int) ([]*models.Grant, error)

	// Health & Maintenance
	Ping(ctx context.Context) error
	Close() error
}
