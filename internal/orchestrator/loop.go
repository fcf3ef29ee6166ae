package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"patron/internal/ledger"
	"patron/internal/metrics"
	"patron/internal/notifier"

	"github.com/ethereum/go-ethereum/common"
)

// Announce sends the one-time launch announcement
func (o *Orchestrator) Announce(ctx context.Context, treasury common.Address) {
	o.notify(ctx, "launch", func(ctx context.Context, n notifier.Notifier) error {
		return n.AgentLive(ctx, treasury)
	})
}

// Run loops ROUND_START → ... → SLEEP until the agent stops or ctx is done.
// Reaching STOPPED is a normal end and returns nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	slog.Info("Orchestrator: autonomous loop starting",
		"interval", o.cfg.Interval,
		"max_per_round", o.cfg.MaxPerRound,
		"min_score", o.cfg.MinScore,
	)

	for {
		theme := o.Theme(o.State().Round)
		_, err := o.RunRound(ctx, theme)
		switch {
		case errors.Is(err, ErrInsufficientFunds):
			o.stop("insufficient funds for the next grant")
			return nil
		case errors.Is(err, ErrStopped):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		}

		// SLEEP
		o.setPhase(PhaseSleep)
		if o.belowFloor(ctx) {
			o.stop("wallet balance below operating floor")
			return nil
		}
		slog.Info("Orchestrator: sleeping until next round", "interval", o.cfg.Interval)
		if err := o.sleep(ctx, o.cfg.Interval); err != nil {
			return err
		}
	}
}

// belowFloor reports whether the wallet fell under the operating floor. An
// unreadable balance does not stop the agent.
func (o *Orchestrator) belowFloor(ctx context.Context) bool {
	wei, err := o.deps.Treasury.WalletBalance(ctx)
	if err != nil {
		slog.Warn("Orchestrator: wallet balance unavailable", "error", err)
		return false
	}
	balance := ledger.WeiToEther(wei)
	metrics.WalletBalance.Set(balance.InexactFloat64())
	return balance.LessThan(o.cfg.Floor)
}

func (o *Orchestrator) stop(reason string) {
	o.setPhase(PhaseStopped)
	state := o.State()
	slog.Warn("Orchestrator: STOPPED",
		"reason", reason,
		"round", state.Round,
		"granted_total", state.GrantedCount(),
	)
}
