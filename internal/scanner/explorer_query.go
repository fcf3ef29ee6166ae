package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"patron/internal/metrics"
	"patron/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

// ExplorerQueryConfig configures the indexer-based heuristic
type ExplorerQueryConfig struct {
	Seed    common.Address // High-traffic contract whose senders are inspected
	Lookups int            // Maximum sender histories fetched
	Pause   time.Duration  // Pause between sender lookups
}

// ExplorerQuery finds deployers among the recent senders of a busy contract:
// a sender becomes a candidate when its own history holds a successful
// contract-creation entry
type ExplorerQuery struct {
	explorer Explorer
	cfg      ExplorerQueryConfig
	opts     Options
}

func NewExplorerQuery(exp Explorer, cfg ExplorerQueryConfig, opts Options) *ExplorerQuery {
	return &ExplorerQuery{explorer: exp, cfg: cfg, opts: opts.withDefaults()}
}

func (s *ExplorerQuery) Name() string {
	return string(models.SourceExplorer)
}

func (s *ExplorerQuery) Scan(ctx context.Context, exclude Exclusion, max int) ([]models.Candidate, error) {
	col := newCollector()

	seedTxs, err := s.explorer.Transactions(ctx, s.cfg.Seed)
	if err != nil {
		slog.Error("Scanner: failed to read seed contract history", "seed", s.cfg.Seed.Hex(), "error", err)
		return []models.Candidate{}, fmt.Errorf("read seed history: %w", err)
	}

	lookups := 0
	seen := map[common.Address]bool{}
	for _, tx := range seedTxs {
		if col.size() >= max || (s.cfg.Lookups > 0 && lookups >= s.cfg.Lookups) || ctx.Err() != nil {
			break
		}
		sender, ok := tx.Sender()
		if !ok || seen[sender] {
			continue
		}
		seen[sender] = true
		if exclude.HasGranted(sender) || s.opts.ignored(sender) {
			continue
		}

		lookups++
		s.inspectSender(ctx, sender, col)

		if err := s.opts.Sleep(ctx, s.cfg.Pause); err != nil {
			break
		}
	}

	candidates := col.candidates(models.SourceExplorer, s.opts.Now(), max)
	metrics.CandidatesDiscovered.WithLabelValues(s.Name()).Add(float64(len(candidates)))
	slog.Info("Scanner: explorer query complete",
		"seed", s.cfg.Seed.Hex(),
		"senders_inspected", lookups,
		"deployers", len(candidates),
	)
	return candidates, nil
}

func (s *ExplorerQuery) inspectSender(ctx context.Context, sender common.Address, col *collector) {
	history, err := s.explorer.Transactions(ctx, sender)
	if err != nil {
		slog.Debug("Scanner: skipping sender", "address", sender.Hex(), "error", err)
		metrics.ReadFailures.WithLabelValues("explorer_txlist").Inc()
		return
	}
	for _, h := range history {
		program, ok := h.CreatedContract()
		if !ok || !strings.EqualFold(h.From, sender.Hex()) {
			continue
		}
		col.add(sender, &program, h.TxHash())
	}
}
