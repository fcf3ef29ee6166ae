package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"patron/internal/metrics"
	"patron/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects and applies the schema
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	slog.Info("Audit storage ready", "backend", "postgres")

	return &PostgresRepository{
		pool: pool,
	}, nil
}

// SaveEvaluation appends an evaluation to the audit trail
func (r *PostgresRepository) SaveEvaluation(ctx context.Context, evaluation *models.Evaluation) error {
	var scoreJSON []byte
	if evaluation.Score != nil {
		var err error
		scoreJSON, err = json.Marshal(evaluation.Score)
		if err != nil {
			return fmt.Errorf("failed to marshal score: %w", err)
		}
	}

	query := `
		INSERT INTO evaluations (
			round_id, address, decision, tx_count, programs,
			interactors, score, detail, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	start := time.Now()
	_, err := r.pool.Exec(ctx, query,
		int64(evaluation.RoundID),
		evaluation.Address.Hex(),
		string(evaluation.Decision),
		int64(evaluation.TxCount),
		evaluation.Programs,
		evaluation.Interactors,
		scoreJSON,
		evaluation.Detail,
		evaluation.Timestamp,
	)
	metrics.DatabaseInsertDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}

	return nil
}

// ListEvaluations lists evaluations newest first with pagination
func (r *PostgresRepository) ListEvaluations(ctx context.Context, limit, offset int) ([]*models.Evaluation, error) {
	query := `
		SELECT
			round_id, address, decision, tx_count, programs,
			interactors, score, detail, evaluated_at
		FROM evaluations
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	evaluations := []*models.Evaluation{}

	for rows.Next() {
		var (
			e         models.Evaluation
			roundID   int64
			address   string
			decision  string
			txCount   int64
			scoreJSON []byte
		)

		err := rows.Scan(
			&roundID,
			&address,
			&decision,
			&txCount,
			&e.Programs,
			&e.Interactors,
			&scoreJSON,
			&e.Detail,
			&e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}

		e.RoundID = uint64(roundID)
		e.Address = common.HexToAddress(address)
		e.Decision = models.Decision(decision)
		e.TxCount = uint64(txCount)
		if len(scoreJSON) > 0 {
			var s models.Score
			if err := json.Unmarshal(scoreJSON, &s); err != nil {
				return nil, fmt.Errorf("failed to unmarshal score: %w", err)
			}
			e.Score = &s
		}

		evaluations = append(evaluations, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evaluations: %w", err)
	}

	return evaluations, nil
}

// SaveGrant appends a confirmed grant. Grants are keyed by transaction hash
// and never updated.
func (r *PostgresRepository) SaveGrant(ctx context.Context, grant *models.Grant) error {
	scoreJSON, err := json.Marshal(grant.Score)
	if err != nil {
		return fmt.Errorf("failed to marshal score: %w", err)
	}

	amountWei := "0"
	if grant.AmountWei != nil {
		amountWei = grant.AmountWei.String()
	}

	query := `
		INSERT INTO grants (
			tx_hash, grant_id, round_id, recipient, amount, amount_wei,
			reason_hash, block, score, resolved, created_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10, $11)
		ON CONFLICT (tx_hash) DO NOTHING
	`

	start := time.Now()
	_, err = r.pool.Exec(ctx, query,
		grant.TxHash.Hex(),
		int64(grant.ID),
		int64(grant.RoundID),
		grant.Recipient.Hex(),
		grant.Amount.String(),
		amountWei,
		grant.ReasonHash.Hex(),
		int64(grant.Block),
		scoreJSON,
		grant.Resolved,
		grant.CreatedAt,
	)
	metrics.DatabaseInsertDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		return fmt.Errorf("failed to save grant: %w", err)
	}

	return nil
}

// ListGrants lists grants newest first with pagination
func (r *PostgresRepository) ListGrants(ctx context.Context, limit, offset int) ([]*models.Grant, error) {
	query := `
		SELECT
			tx_hash, grant_id, round_id, recipient, amount::text, amount_wei::text,
			reason_hash, block, score, resolved, created_at
		FROM grants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	grants := []*models.Grant{}

	for rows.Next() {
		var (
			g                 models.Grant
			txHash, recipient string
			amount, amountWei string
			reasonHash        string
			grantID, roundID  int64
			block             int64
			scoreJSON         []byte
		)

		err := rows.Scan(
			&txHash,
			&grantID,
			&roundID,
			&recipient,
			&amount,
			&amountWei,
			&reasonHash,
			&block,
			&scoreJSON,
			&g.Resolved,
			&g.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}

		g.TxHash = common.HexToHash(txHash)
		g.ID = uint64(grantID)
		g.RoundID = uint64(roundID)
		g.Recipient = common.HexToAddress(recipient)
		g.ReasonHash = common.HexToHash(reasonHash)
		g.Block = uint64(block)

		if g.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		wei, ok := new(big.Int).SetString(amountWei, 10)
		if !ok {
			return nil, fmt.Errorf("failed to parse amount_wei %q", amountWei)
		}
		g.AmountWei = wei

		if err := json.Unmarshal(scoreJSON, &g.Score); err != nil {
			return nil, fmt.Errorf("failed to unmarshal score: %w", err)
		}

		grants = append(grants, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}

	return grants, nil
}

// Ping checks if the database connection is alive
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
