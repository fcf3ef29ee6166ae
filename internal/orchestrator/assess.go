package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"patron/internal/funder"
	"patron/internal/ledger"
	"patron/internal/metrics"
	"patron/internal/models"
	"patron/internal/notifier"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Assessment is the outcome of verify, score and gate for one candidate
type Assessment struct {
	Candidate models.Candidate `json:"candidate"`
	Profile   models.Profile   `json:"profile"`
	Score     *models.Score    `json:"score,omitempty"` // Nil when a skip rule fired before scoring
	Amount    decimal.Decimal  `json:"amount"`          // Set when eligible
	// Decision is empty when the candidate is eligible for a grant
	Decision models.Decision `json:"decision,omitempty"`
}

// Eligible reports whether every gate passed
func (a Assessment) Eligible() bool {
	return a.Decision == ""
}

// evaluation builds the audit entry for an assessment
func (o *Orchestrator) evaluation(a Assessment, decision models.Decision, detail string) models.Evaluation {
	return models.Evaluation{
		RoundID:     o.State().Round,
		Address:     a.Candidate.Address,
		Decision:    decision,
		TxCount:     a.Profile.TxCount,
		Programs:    a.Profile.ProgramCount(),
		Interactors: a.Profile.Interactors,
		Score:       a.Score,
		Detail:      detail,
		Timestamp:   o.now().UTC(),
	}
}

// Assess verifies and scores a candidate and applies the skip rules and the
// score gate. It does not touch the wallet or the ledger.
func (o *Orchestrator) Assess(ctx context.Context, candidate models.Candidate) Assessment {
	a := Assessment{Candidate: candidate}

	o.setPhase(PhaseVerify)
	a.Profile = o.deps.Verifier.Verify(ctx, candidate)

	if a.Profile.TxCount < o.cfg.MinTxCount {
		a.Decision = models.DecisionLowActivity
		return a
	}
	if a.Profile.ProgramCount() == 0 {
		a.Decision = models.DecisionNoPrograms
		return a
	}

	o.setPhase(PhaseScore)
	score := o.deps.Evaluator.Evaluate(a.Profile)
	a.Score = &score
	metrics.ScoreTotals.Observe(float64(score.Total))
	slog.Info("Orchestrator: candidate scored",
		"address", candidate.Address.Hex(),
		"total", score.Total,
		"novelty", score.Novelty,
		"activity", score.Activity,
		"quality", score.Quality,
		"impact", score.Impact,
	)

	o.setPhase(PhaseGate)
	if score.Total < o.cfg.MinScore {
		a.Decision = models.DecisionBelowThreshold
		return a
	}
	a.Amount = o.cfg.Amounts.For(score.Total)
	return a
}

// checkFunds confirms the wallet covers amount plus the gas reserve
func (o *Orchestrator) checkFunds(ctx context.Context, amount decimal.Decimal) error {
	wei, err := o.deps.Treasury.WalletBalance(ctx)
	if err != nil {
		return fmt.Errorf("read wallet balance: %w", err)
	}
	balance := ledger.WeiToEther(wei)
	metrics.WalletBalance.Set(balance.InexactFloat64())

	needed := amount.Add(o.cfg.Reserve)
	if balance.LessThan(needed) {
		return fmt.Errorf("%w: have %s ETH, need %s ETH", ErrInsufficientFunds, balance, needed)
	}
	return nil
}

// disburse funds an eligible assessment. A record whose ids could not be
// resolved still counts as a grant: the funds moved.
func (o *Orchestrator) disburse(ctx context.Context, a Assessment) (models.Grant, error) {
	o.setPhase(PhaseDisburse)
	grant, err := o.deps.Funder.Fund(ctx, a.Candidate.Address, a.Amount, *a.Score)
	if err != nil && !errors.Is(err, funder.ErrRecordUnresolved) {
		return models.Grant{}, err
	}
	if err != nil {
		slog.Warn("Orchestrator: grant recorded without ledger ids", "address", a.Candidate.Address.Hex(), "tx_hash", grant.TxHash.Hex())
		return grant, nil
	}
	o.verifyRecord(ctx, grant)
	return grant, nil
}

// verifyRecord reads a resolved grant back from the ledger. A mismatch is
// reported but does not undo the grant: the funds already moved.
func (o *Orchestrator) verifyRecord(ctx context.Context, grant models.Grant) {
	err := o.deps.Funder.Audit(ctx, grant)
	switch {
	case err == nil:
		slog.Debug("Orchestrator: grant record verified", "grant_id", grant.ID)
	case errors.Is(err, funder.ErrRecordMismatch):
		metrics.LedgerErrors.WithLabelValues("record_mismatch").Inc()
		slog.Error("Orchestrator: ledger record does not match disbursement",
			"grant_id", grant.ID,
			"recipient", grant.Recipient.Hex(),
			"tx_hash", grant.TxHash.Hex(),
			"error", err,
		)
	default:
		metrics.LedgerErrors.WithLabelValues("audit").Inc()
		slog.Warn("Orchestrator: could not read grant record back", "grant_id", grant.ID, "error", err)
	}
}

// grantedOnLedger checks the treasury's per-recipient total, covering grants
// made before this process started. An unreadable total falls back to the
// in-memory set.
func (o *Orchestrator) grantedOnLedger(ctx context.Context, addr common.Address) bool {
	total, err := o.deps.Treasury.TotalGrantedTo(ctx, addr)
	if err != nil {
		metrics.LedgerErrors.WithLabelValues("total_granted_to").Inc()
		slog.Warn("Orchestrator: ledger grant total unavailable", "address", addr.Hex(), "error", err)
		return false
	}
	if total == nil || total.Sign() <= 0 {
		return false
	}
	o.commit(o.State().MarkGranted(addr))
	slog.Info("Orchestrator: address already funded on ledger",
		"address", addr.Hex(),
		"total_eth", ledger.WeiToEther(total).String(),
	)
	return true
}

// record marks the recipient as granted and publishes the grant
func (o *Orchestrator) record(ctx context.Context, grant models.Grant) {
	o.commit(o.State().RecordGrant(grant.Recipient))
	o.auditGrant(ctx, grant)
	o.notify(ctx, "grant", func(ctx context.Context, n notifier.Notifier) error {
		return n.GrantDisbursed(ctx, grant)
	})
}

// Grant assesses a single address outside the round loop and funds it when
// eligible. The address is still subject to the granted set, the ledger's
// per-recipient total and the active round's grant cap.
func (o *Orchestrator) Grant(ctx context.Context, addr common.Address) (Assessment, *models.Grant, error) {
	if o.stopped() {
		return Assessment{}, nil, ErrStopped
	}
	candidate := models.Candidate{
		Address:      addr,
		Source:       models.SourceManual,
		DiscoveredAt: o.now().UTC(),
	}
	if o.State().HasGranted(addr) || o.grantedOnLedger(ctx, addr) {
		return Assessment{Candidate: candidate, Decision: models.DecisionAlreadyGranted}, nil, nil
	}
	if state := o.State(); state.RoundGrants >= o.cfg.MaxPerRound {
		return Assessment{Candidate: candidate}, nil, fmt.Errorf("%w: %d of %d in round %d", ErrRoundCapReached, state.RoundGrants, o.cfg.MaxPerRound, state.Round)
	}

	a := o.Assess(ctx, candidate)
	defer o.setPhase(PhaseIdle)
	if !a.Eligible() {
		o.audit(ctx, o.evaluation(a, a.Decision, ""))
		return a, nil, nil
	}

	if err := o.checkFunds(ctx, a.Amount); err != nil {
		o.audit(ctx, o.evaluation(a, models.DecisionNoFunds, err.Error()))
		return a, nil, err
	}

	grant, err := o.disburse(ctx, a)
	if err != nil {
		o.audit(ctx, o.evaluation(a, models.DecisionFailed, err.Error()))
		return a, nil, err
	}
	o.record(ctx, grant)
	o.audit(ctx, o.evaluation(a, models.DecisionGranted, ""))
	return a, &grant, nil
}
