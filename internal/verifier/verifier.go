// Package verifier builds an on-chain activity profile for a candidate.
// Verification never fails: a sub-query that errors is defaulted and noted on
// the profile.
package verifier

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"patron/internal/config"
	"patron/internal/explorer"
	"patron/internal/metrics"
	"patron/internal/models"
	"patron/internal/pacing"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// Node is the subset of the RPC node the verifier reads
type Node interface {
	TxCount(ctx context.Context, addr common.Address) (uint64, error)
	CodeSize(ctx context.Context, addr common.Address) (int, error)
}

// Explorer is the subset of the explorer API the verifier reads
type Explorer interface {
	Transactions(ctx context.Context, addr common.Address) ([]explorer.Tx, error)
	IsVerified(ctx context.Context, contract common.Address) (bool, error)
}

type Verifier struct {
	node     Node
	explorer Explorer
	cfg      config.VerifyConfig
	sleep    pacing.Sleeper
	now      func() time.Time
}

// Option customizes a Verifier
type Option func(*Verifier)

// WithSleeper replaces the pause used between paced calls
func WithSleeper(s pacing.Sleeper) Option {
	return func(v *Verifier) { v.sleep = s }
}

// WithClock replaces the clock that stamps ObservedAt
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func New(node Node, exp Explorer, cfg config.VerifyConfig, opts ...Option) *Verifier {
	v := &Verifier{
		node:     node,
		explorer: exp,
		cfg:      cfg,
		sleep:    pacing.Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify aggregates the candidate's transaction count, deployed programs and
// distinct interactors into a Profile
func (v *Verifier) Verify(ctx context.Context, candidate models.Candidate) models.Profile {
	profile := models.Profile{
		Address:    candidate.Address,
		ObservedAt: v.now().UTC(),
	}

	var (
		txCount models.Reading[uint64]
		history models.Reading[[]explorer.Tx]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := v.node.TxCount(gctx, candidate.Address)
		if err != nil {
			txCount = models.Unknown[uint64](err)
			return nil
		}
		txCount = models.Known(n)
		return nil
	})
	g.Go(func() error {
		txs, err := v.explorer.Transactions(gctx, candidate.Address)
		if err != nil {
			history = models.Unknown[[]explorer.Tx](err)
			return nil
		}
		history = models.Known(txs)
		return nil
	})
	_ = g.Wait()

	if !txCount.OK() {
		v.unavailable(&profile, "tx_count", txCount.Err)
	}
	profile.TxCount = txCount.Or(0)

	if !history.OK() {
		v.unavailable(&profile, "programs", history.Err)
	}
	profile.Programs = v.programs(ctx, candidate, history.Or(nil), &profile)
	profile.RecentActivity = v.recentActivity(profile)
	profile.Interactors = v.interactors(ctx, &profile)

	slog.Info("Verifier: profile built",
		"address", candidate.Address.Hex(),
		"tx_count", profile.TxCount,
		"programs", profile.ProgramCount(),
		"interactors", profile.Interactors,
		"recent", profile.RecentActivity,
		"degraded", profile.Degraded(),
	)
	return profile
}

// programs resolves deployed programs from the explorer history, falling back
// to the programs the scanner saw when the history holds none
func (v *Verifier) programs(ctx context.Context, candidate models.Candidate, history []explorer.Tx, profile *models.Profile) []models.ProgramInfo {
	programs := []models.ProgramInfo{}

	for _, tx := range history {
		addr, ok := tx.CreatedContract()
		if !ok || !strings.EqualFold(tx.From, candidate.Address.Hex()) {
			continue
		}
		if len(programs) > 0 {
			if err := v.sleep(ctx, v.cfg.Pause); err != nil {
				break
			}
		}
		programs = append(programs, v.describe(ctx, addr, tx.Time(), tx.TxHash(), profile))
	}
	if len(programs) > 0 || len(candidate.KnownPrograms) == 0 {
		return programs
	}

	slog.Debug("Verifier: using programs from scan", "address", candidate.Address.Hex(), "count", len(candidate.KnownPrograms))
	for i, addr := range candidate.KnownPrograms {
		if i > 0 {
			if err := v.sleep(ctx, v.cfg.Pause); err != nil {
				break
			}
		}
		programs = append(programs, v.describe(ctx, addr, candidate.DiscoveredAt, common.Hash{}, profile))
	}
	return programs
}

func (v *Verifier) describe(ctx context.Context, addr common.Address, createdAt time.Time, txHash common.Hash, profile *models.Profile) models.ProgramInfo {
	info := models.ProgramInfo{
		Address:   addr,
		CreatedAt: createdAt,
		TxHash:    txHash,
	}

	if size, err := v.node.CodeSize(ctx, addr); err != nil {
		v.unavailable(profile, "code_size:"+addr.Hex(), err)
	} else {
		info.CodeSize = size
	}

	if verified, err := v.explorer.IsVerified(ctx, addr); err != nil {
		v.unavailable(profile, "verified:"+addr.Hex(), err)
	} else {
		info.Verified = verified
	}

	return info
}

func (v *Verifier) recentActivity(profile models.Profile) bool {
	return profile.CreatedWithin(v.cfg.RecentWindow) > 0 || profile.TxCount > v.cfg.RecentTxThreshold
}

// interactors counts the distinct senders across the first programs in the
// list, the candidate itself excluded
func (v *Verifier) interactors(ctx context.Context, profile *models.Profile) int {
	seen := map[string]struct{}{}
	self := strings.ToLower(profile.Address.Hex())

	for i, program := range profile.Programs {
		if i >= v.cfg.InteractorPrograms {
			break
		}
		txs, err := v.explorer.Transactions(ctx, program.Address)
		if err != nil {
			v.unavailable(profile, "interactors:"+program.Address.Hex(), err)
		}
		for _, tx := range txs {
			from := strings.ToLower(tx.From)
			if from == "" || from == self {
				continue
			}
			seen[from] = struct{}{}
		}
		if err := v.sleep(ctx, v.cfg.Pause); err != nil {
			break
		}
	}
	return len(seen)
}

func (v *Verifier) unavailable(profile *models.Profile, what string, err error) {
	slog.Warn("Verifier: sub-query unavailable, using default",
		"address", profile.Address.Hex(),
		"query", what,
		"error", err,
	)
	metrics.ReadFailures.WithLabelValues(strings.SplitN(what, ":", 2)[0]).Inc()
	profile.Unavailable = append(profile.Unavailable, what)
}
