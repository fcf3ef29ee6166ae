package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"patron/internal/ledger"
	"patron/internal/metrics"
	"patron/internal/models"
	"patron/internal/notifier"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoundResult reports what one round did
type RoundResult struct {
	RunID       string              `json:"run_id"`
	Round       uint64              `json:"round"`
	Theme       string              `json:"theme"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	Candidates  int                 `json:"candidates"`
	Evaluated   int                 `json:"evaluated"` // Candidates that reached scoring
	Outcomes    []models.Evaluation `json:"outcomes"`
	Grants      []models.Grant      `json:"grants"`
	OutOfFunds  bool                `json:"out_of_funds"`
	ScanFailure string              `json:"scan_failure,omitempty"`
}

// RunRound executes ROUND_START through ROUND_SUMMARY once. A failed round
// start aborts the round with the state untouched. When the wallet cannot
// cover a grant the round still closes with a summary and ErrInsufficientFunds
// is returned.
func (o *Orchestrator) RunRound(ctx context.Context, theme string) (RoundResult, error) {
	if o.stopped() {
		return RoundResult{}, ErrStopped
	}

	result := RoundResult{
		RunID:     uuid.NewString(),
		Theme:     theme,
		StartedAt: o.now().UTC(),
		Outcomes:  []models.Evaluation{},
		Grants:    []models.Grant{},
	}
	log := slog.With("run_id", result.RunID)

	// ROUND_START
	o.setPhase(PhaseRoundStart)
	if _, err := o.deps.Treasury.StartRound(ctx, theme); err != nil {
		metrics.RoundsFailed.Inc()
		metrics.LedgerErrors.WithLabelValues("start_round").Inc()
		log.Error("Orchestrator: round start failed, skipping round", "theme", theme, "error", err)
		o.setPhase(PhaseIdle)
		return result, fmt.Errorf("start round %q: %w", theme, err)
	}
	o.commit(o.State().StartRound())
	result.Round = o.State().Round
	metrics.RoundsStarted.Inc()
	log.Info("Orchestrator: round started", "round", result.Round, "theme", theme)

	// SCANNING
	o.setPhase(PhaseScanning)
	candidates, err := o.deps.Scanner.Scan(ctx, o.State(), o.cfg.MaxCandidates)
	if err != nil {
		result.ScanFailure = err.Error()
		log.Warn("Orchestrator: scan failed", "round", result.Round, "found", len(candidates), "error", err)
	}
	result.Candidates = len(candidates)
	log.Info("Orchestrator: evaluating candidates", "round", result.Round, "candidates", len(candidates))

	// PER_CANDIDATE
	var stopErr error
	for _, candidate := range candidates {
		if o.State().RoundGrants >= o.cfg.MaxPerRound {
			log.Info("Orchestrator: round grant cap reached", "round", result.Round, "max", o.cfg.MaxPerRound)
			break
		}
		if ctx.Err() != nil {
			stopErr = ctx.Err()
			break
		}

		outcome, grant, err := o.processCandidate(ctx, candidate)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Score != nil {
			result.Evaluated++
		}
		if grant != nil {
			result.Grants = append(result.Grants, *grant)
		}

		if errors.Is(err, ErrInsufficientFunds) {
			result.OutOfFunds = true
			stopErr = err
			log.Warn("Orchestrator: insufficient balance, halting disbursement", "round", result.Round, "error", err)
			break
		}
		if err != nil {
			// Deliberately halts the whole round rather than moving to the next
			// candidate: with the wallet balance unknown no transfer is safe.
			// The agent is not stopped and the next round reads it again.
			log.Error("Orchestrator: halting round", "round", result.Round, "error", err)
			break
		}

		if grant != nil {
			if err := o.sleep(ctx, o.cfg.GrantPause); err != nil {
				stopErr = err
				break
			}
		}
	}

	// ROUND_SUMMARY
	o.summarize(ctx, &result)
	result.FinishedAt = o.now().UTC()
	metrics.RoundDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())

	o.mu.Lock()
	last := result
	o.last = &last
	o.mu.Unlock()
	o.setPhase(PhaseIdle)

	log.Info("Orchestrator: round complete",
		"round", result.Round,
		"grants", len(result.Grants),
		"evaluated", result.Evaluated,
		"candidates", result.Candidates,
	)
	return result, stopErr
}

// processCandidate runs one candidate through the gates. The returned error
// is non-nil only when the round loop must stop.
func (o *Orchestrator) processCandidate(ctx context.Context, candidate models.Candidate) (models.Evaluation, *models.Grant, error) {
	if o.State().HasGranted(candidate.Address) {
		a := Assessment{Candidate: candidate}
		return o.skip(ctx, a, models.DecisionAlreadyGranted, ""), nil, nil
	}
	if o.grantedOnLedger(ctx, candidate.Address) {
		a := Assessment{Candidate: candidate}
		return o.skip(ctx, a, models.DecisionAlreadyGranted, "funded on ledger"), nil, nil
	}

	a := o.Assess(ctx, candidate)
	if a.Score != nil {
		metrics.CandidatesEvaluated.Inc()
	}
	if !a.Eligible() {
		return o.skip(ctx, a, a.Decision, ""), nil, nil
	}

	if err := o.checkFunds(ctx, a.Amount); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return o.skip(ctx, a, models.DecisionNoFunds, err.Error()), nil, err
		}
		return o.skip(ctx, a, models.DecisionFailed, err.Error()), nil, err
	}

	slog.Info("Orchestrator: disbursing",
		"address", candidate.Address.Hex(),
		"amount_eth", a.Amount.String(),
		"score", a.Score.Total,
	)
	grant, err := o.disburse(ctx, a)
	if err != nil {
		// Never added to the granted set, so it stays eligible later
		slog.Error("Orchestrator: disbursement failed", "address", candidate.Address.Hex(), "error", err)
		return o.skip(ctx, a, models.DecisionFailed, err.Error()), nil, nil
	}

	o.record(ctx, grant)
	e := o.evaluation(a, models.DecisionGranted, "")
	o.audit(ctx, e)
	return e, &grant, nil
}

func (o *Orchestrator) skip(ctx context.Context, a Assessment, decision models.Decision, detail string) models.Evaluation {
	metrics.CandidatesSkipped.WithLabelValues(string(decision)).Inc()
	slog.Info("Orchestrator: candidate skipped",
		"address", a.Candidate.Address.Hex(),
		"decision", decision,
		"tx_count", a.Profile.TxCount,
		"programs", a.Profile.ProgramCount(),
	)
	e := o.evaluation(a, decision, detail)
	o.audit(ctx, e)
	return e
}

// summarize reads the ledger aggregates and announces the round
func (o *Orchestrator) summarize(ctx context.Context, result *RoundResult) {
	o.setPhase(PhaseRoundSummary)

	summary := notifier.RoundSummary{
		Round:           result.Round,
		Theme:           result.Theme,
		Grants:          result.Grants,
		Evaluated:       result.Evaluated,
		TreasuryBalance: decimal.Zero,
	}
	if status, err := o.deps.Treasury.Status(ctx); err != nil {
		slog.Warn("Orchestrator: treasury status unavailable for summary", "round", result.Round, "error", err)
	} else {
		summary.TreasuryBalance = ledger.WeiToEther(status.Balance)
		if status.CurrentRound != 0 {
			summary.Round = status.CurrentRound
		}
	}

	o.notify(ctx, "round", func(ctx context.Context, n notifier.Notifier) error {
		return n.RoundCompleted(ctx, summary)
	})
}
