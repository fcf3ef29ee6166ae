// Package scanner discovers addresses that recently created on-chain programs.
package scanner

import (
	"context"
	"fmt"
	"time"

	"patron/internal/config"
	"patron/internal/explorer"
	"patron/internal/ledger"
	"patron/internal/models"
	"patron/internal/pacing"

	"github.com/ethereum/go-ethereum/common"
)

// Exclusion reports addresses that must never be returned as candidates
type Exclusion interface {
	HasGranted(addr common.Address) bool
}

// Scanner produces deduplicated candidates, in discovery order, whose address
// is not excluded. On a fatal discovery error it still returns whatever it
// accumulated before the failure.
type Scanner interface {
	Scan(ctx context.Context, exclude Exclusion, max int) ([]models.Candidate, error)
	Name() string
}

// Node is the subset of the RPC node the block walk needs
type Node interface {
	HeadHeight(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*ledger.Block, error)
	Receipt(ctx context.Context, hash common.Hash) (*ledger.Receipt, error)
}

// Explorer is the subset of the explorer API the indexer strategy needs
type Explorer interface {
	Transactions(ctx context.Context, address common.Address) ([]explorer.Tx, error)
}

// Options are shared by every strategy
type Options struct {
	Ignore []common.Address // Never candidates (own wallet, treasury)
	Sleep  pacing.Sleeper
	Now    func() time.Time
}

// New selects the strategy named in cfg.Strategy
func New(cfg config.ScanConfig, node Node, exp Explorer, opts Options) (Scanner, error) {
	switch cfg.Strategy {
	case "", "blockwalk":
		return NewBlockWalk(node, BlockWalkConfig{
			Blocks:     cfg.Blocks,
			Stride:     cfg.Stride,
			PauseEvery: cfg.PauseEvery,
			Pause:      cfg.Pause,
		}, opts), nil
	case "explorer":
		if !common.IsHexAddress(cfg.SeedAddress) {
			return nil, fmt.Errorf("explorer strategy needs a seed address")
		}
		return NewExplorerQuery(exp, ExplorerQueryConfig{
			Seed:    common.HexToAddress(cfg.SeedAddress),
			Lookups: cfg.SeedLookups,
			Pause:   cfg.Pause,
		}, opts), nil
	default:
		return nil, fmt.Errorf("unknown scan strategy %q", cfg.Strategy)
	}
}

func (o Options) withDefaults() Options {
	if o.Sleep == nil {
		o.Sleep = pacing.Sleep
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) ignored(addr common.Address) bool {
	for _, a := range o.Ignore {
		if a == addr {
			return true
		}
	}
	return false
}

// collector accumulates per-address discoveries in first-seen order
type collector struct {
	order   []common.Address
	entries map[common.Address]*discovery
}

type discovery struct {
	programs []common.Address
	txs      []common.Hash
}

func newCollector() *collector {
	return &collector{entries: map[common.Address]*discovery{}}
}

func (c *collector) add(deployer common.Address, program *common.Address, tx common.Hash) {
	d, ok := c.entries[deployer]
	if !ok {
		d = &discovery{}
		c.entries[deployer] = d
		c.order = append(c.order, deployer)
	}
	if tx != (common.Hash{}) {
		d.txs = append(d.txs, tx)
	}
	if program != nil {
		for _, p := range d.programs {
			if p == *program {
				return
			}
		}
		d.programs = append(d.programs, *program)
	}
}

func (c *collector) size() int {
	return len(c.order)
}

func (c *collector) programCount() int {
	n := 0
	for _, d := range c.entries {
		n += len(d.programs)
	}
	return n
}

func (c *collector) candidates(source models.Source, at time.Time, max int) []models.Candidate {
	out := make([]models.Candidate, 0, len(c.order))
	for _, addr := range c.order {
		if len(out) >= max {
			break
		}
		d := c.entries[addr]
		out = append(out, models.Candidate{
			Address:       addr,
			Source:        source,
			DiscoveredAt:  at,
			KnownPrograms: append([]common.Address(nil), d.programs...),
			OriginTxs:     append([]common.Hash(nil), d.txs...),
		})
	}
	return out
}
