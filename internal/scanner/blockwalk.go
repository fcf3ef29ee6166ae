package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"patron/internal/metrics"
	"patron/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

// BlockWalkConfig bounds the backward walk from the chain head
type BlockWalkConfig struct {
	Blocks     int    // Maximum blocks fetched
	Stride     uint64 // Distance between sampled blocks
	PauseEvery int    // Blocks fetched between pauses
	Pause      time.Duration
}

// BlockWalk finds deployers by walking recent blocks for transactions with an
// empty destination and resolving the created program from their receipts
type BlockWalk struct {
	node Node
	cfg  BlockWalkConfig
	opts Options
}

func NewBlockWalk(node Node, cfg BlockWalkConfig, opts Options) *BlockWalk {
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	return &BlockWalk{node: node, cfg: cfg, opts: opts.withDefaults()}
}

func (s *BlockWalk) Name() string {
	return string(models.SourceBlockWalk)
}

// Scan walks back from the head until max deployers are found or the block
// budget is spent. Failed block or receipt fetches are skipped.
func (s *BlockWalk) Scan(ctx context.Context, exclude Exclusion, max int) ([]models.Candidate, error) {
	col := newCollector()

	head, err := s.node.HeadHeight(ctx)
	if err != nil {
		slog.Error("Scanner: failed to resolve chain head", "error", err)
		return []models.Candidate{}, fmt.Errorf("resolve chain head: %w", err)
	}
	slog.Info("Scanner: walking recent blocks", "head", head, "budget", s.cfg.Blocks, "stride", s.cfg.Stride)

	scanned := 0
	for i := 0; i < s.cfg.Blocks && col.size() < max; i++ {
		offset := uint64(i) * s.cfg.Stride
		if offset > head {
			break
		}
		if ctx.Err() != nil {
			break
		}

		s.scanBlock(ctx, head-offset, exclude, col)
		scanned++

		if s.cfg.PauseEvery > 0 && i%s.cfg.PauseEvery == s.cfg.PauseEvery-1 {
			if err := s.opts.Sleep(ctx, s.cfg.Pause); err != nil {
				break
			}
		}
	}

	candidates := col.candidates(models.SourceBlockWalk, s.opts.Now(), max)
	metrics.CandidatesDiscovered.WithLabelValues(s.Name()).Add(float64(len(candidates)))
	slog.Info("Scanner: block walk complete",
		"blocks_scanned", scanned,
		"deployers", len(candidates),
		"programs", col.programCount(),
	)
	return candidates, nil
}

func (s *BlockWalk) scanBlock(ctx context.Context, number uint64, exclude Exclusion, col *collector) {
	block, err := s.node.BlockByNumber(ctx, number)
	if err != nil {
		slog.Debug("Scanner: skipping block", "block", number, "error", err)
		metrics.ReadFailures.WithLabelValues("block").Inc()
		return
	}

	for _, tx := range block.Transactions {
		if !tx.IsCreation() {
			continue
		}
		if exclude.HasGranted(tx.From) || s.opts.ignored(tx.From) {
			continue
		}
		col.add(tx.From, s.resolveProgram(ctx, tx.Hash), tx.Hash)
	}
}

// resolveProgram returns the program created by a successful creation tx
func (s *BlockWalk) resolveProgram(ctx context.Context, hash common.Hash) *common.Address {
	receipt, err := s.node.Receipt(ctx, hash)
	if err != nil {
		slog.Debug("Scanner: skipping receipt", "tx_hash", hash.Hex(), "error", err)
		metrics.ReadFailures.WithLabelValues("receipt").Inc()
		return nil
	}
	program, ok := receipt.CreatedProgram()
	if !ok {
		return nil
	}
	return &program
}
