// Package orchestrator sequences scanning, verification, scoring and funding
// into rounds, and owns the cross-round decision state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"patron/internal/config"
	"patron/internal/evaluator"
	"patron/internal/ledger"
	"patron/internal/metrics"
	"patron/internal/models"
	"patron/internal/notifier"
	"patron/internal/pacing"
	"patron/internal/scanner"
	"patron/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds signals that the wallet cannot cover the next grant
	// plus its gas reserve. It halts disbursement, it is not a failure.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")

	// ErrStopped is returned by operations attempted after the agent stopped
	ErrStopped = errors.New("agent stopped")

	// ErrRoundCapReached is returned by a manual grant once the active round
	// has issued its maximum number of grants
	ErrRoundCapReached = errors.New("round grant cap reached")
)

// Phase is the state machine position reported by the status API
type Phase string

const (
	PhaseIdle         Phase = "IDLE"
	PhaseRoundStart   Phase = "ROUND_START"
	PhaseScanning     Phase = "SCANNING"
	PhaseVerify       Phase = "VERIFY"
	PhaseScore        Phase = "SCORE"
	PhaseGate         Phase = "GATE"
	PhaseDisburse     Phase = "DISBURSE"
	PhaseRoundSummary Phase = "ROUND_SUMMARY"
	PhaseSleep        Phase = "SLEEP"
	PhaseStopped      Phase = "STOPPED"
)

// DefaultThemes rotate with the round counter
var DefaultThemes = []string{
	"Base Builders",
	"DeFi Innovation",
	"Infrastructure",
	"Consumer Apps",
	"Creative Onchain",
	"Public Goods",
	"Open Source",
	"Ecosystem Tools",
}

// Scanner discovers candidates not in the exclusion set
type Scanner interface {
	Scan(ctx context.Context, exclude scanner.Exclusion, max int) ([]models.Candidate, error)
}

// Verifier builds a profile; it never fails
type Verifier interface {
	Verify(ctx context.Context, candidate models.Candidate) models.Profile
}

// Evaluator scores a profile
type Evaluator interface {
	Evaluate(profile models.Profile) models.Score
}

// Funder executes a confirmed transfer and reads the record back
type Funder interface {
	Fund(ctx context.Context, recipient common.Address, amount decimal.Decimal, score models.Score) (models.Grant, error)
	Audit(ctx context.Context, grant models.Grant) error
}

// Treasury is the ledger surface the orchestrator drives directly
type Treasury interface {
	StartRound(ctx context.Context, theme string) (*types.Receipt, error)
	Status(ctx context.Context) (*ledger.Status, error)
	WalletBalance(ctx context.Context) (*big.Int, error)
	TotalGrantedTo(ctx context.Context, recipient common.Address) (*big.Int, error)
}

// Deps are the collaborators of an orchestrator. Notifier and Repository are
// optional.
type Deps struct {
	Scanner    Scanner
	Verifier   Verifier
	Evaluator  Evaluator
	Funder     Funder
	Treasury   Treasury
	Notifier   notifier.Notifier
	Repository storage.Repository
}

// Config holds the decision thresholds and pacing of the round loop
type Config struct {
	MinScore      int
	MaxPerRound   int
	MinTxCount    uint64
	MaxCandidates int
	Amounts       evaluator.Amounts
	Reserve       decimal.Decimal // Kept back for gas on each transfer
	Floor         decimal.Decimal // Below this balance the agent stops
	Interval      time.Duration
	GrantPause    time.Duration
	Themes        []string
}

// NewConfig derives the orchestrator config from the application config
func NewConfig(cfg *config.Config) (Config, error) {
	amounts, err := evaluator.NewAmounts(cfg.Grant)
	if err != nil {
		return Config{}, err
	}
	reserve, err := cfg.Round.ReserveAmount()
	if err != nil {
		return Config{}, err
	}
	floor, err := cfg.Round.FloorAmount()
	if err != nil {
		return Config{}, err
	}
	return Config{
		MinScore:      cfg.Grant.MinScore,
		MaxPerRound:   cfg.Grant.MaxPerRound,
		MinTxCount:    cfg.Grant.MinTxCount,
		MaxCandidates: cfg.Scan.MaxResults,
		Amounts:       amounts,
		Reserve:       reserve,
		Floor:         floor,
		Interval:      cfg.Round.Interval,
		GrantPause:    cfg.Round.GrantPause,
		Themes:        DefaultThemes,
	}, nil
}

// Orchestrator runs rounds. The round loop is strictly sequential; the mutex
// only guards the snapshot read by the status API.
type Orchestrator struct {
	deps  Deps
	cfg   Config
	sleep pacing.Sleeper
	now   func() time.Time

	mu        sync.RWMutex
	state     models.RoundState
	phase     Phase
	updatedAt time.Time
	last      *RoundResult
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithSleeper replaces the pause used between grants and rounds
func WithSleeper(s pacing.Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithState starts from an existing decision state
func WithState(s models.RoundState) Option {
	return func(o *Orchestrator) { o.state = s }
}

func New(deps Deps, cfg Config, opts ...Option) *Orchestrator {
	if len(cfg.Themes) == 0 {
		cfg.Themes = DefaultThemes
	}
	o := &Orchestrator{
		deps:  deps,
		cfg:   cfg,
		sleep: pacing.Sleep,
		now:   time.Now,
		state: models.NewRoundState(0),
		phase: PhaseIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.updatedAt = o.now()
	return o
}

// Seed positions the round counter at the treasury's current round
func (o *Orchestrator) Seed(ctx context.Context) error {
	status, err := o.deps.Treasury.Status(ctx)
	if err != nil {
		return fmt.Errorf("read treasury status: %w", err)
	}

	o.mu.Lock()
	o.state.Round = status.CurrentRound
	o.mu.Unlock()

	metrics.CurrentRound.Set(float64(status.CurrentRound))
	slog.Info("Orchestrator: seeded from treasury",
		"round", status.CurrentRound,
		"grant_count", status.GrantCount,
		"treasury_balance_eth", ledger.WeiToEther(status.Balance).String(),
	)
	return nil
}

// State returns the current decision state snapshot
func (o *Orchestrator) State() models.RoundState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Status returns the externally visible agent status
func (o *Orchestrator) Status() models.AgentStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return models.AgentStatus{
		Phase:        string(o.phase),
		Round:        o.state.Round,
		RoundGrants:  o.state.RoundGrants,
		GrantedTotal: o.state.GrantedCount(),
		Granted:      o.state.Granted(),
		UpdatedAt:    o.updatedAt,
	}
}

// LastRound returns the result of the most recent completed round
func (o *Orchestrator) LastRound() (RoundResult, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return RoundResult{}, false
	}
	return *o.last, true
}

// Theme returns the theme of the round that follows round
func (o *Orchestrator) Theme(round uint64) string {
	return o.cfg.Themes[round%uint64(len(o.cfg.Themes))]
}

func (o *Orchestrator) stopped() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.phase == PhaseStopped
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.updatedAt = o.now()
	o.mu.Unlock()
}

// commit publishes the next state snapshot
func (o *Orchestrator) commit(next models.RoundState) {
	o.mu.Lock()
	o.state = next
	o.updatedAt = o.now()
	o.mu.Unlock()

	metrics.CurrentRound.Set(float64(next.Round))
	metrics.RoundGrants.Set(float64(next.RoundGrants))
	metrics.GrantedAddresses.Set(float64(next.GrantedCount()))
}

// notify delivers to the notifier; failures are logged and dropped
func (o *Orchestrator) notify(ctx context.Context, what string, fn func(context.Context, notifier.Notifier) error) {
	if o.deps.Notifier == nil {
		return
	}
	if err := fn(ctx, o.deps.Notifier); err != nil {
		slog.Warn("Orchestrator: notification failed", "notification", what, "error", err)
	}
}

// audit writes an evaluation to the audit trail; failures are logged and dropped
func (o *Orchestrator) audit(ctx context.Context, e models.Evaluation) {
	if o.deps.Repository == nil {
		return
	}
	if err := o.deps.Repository.SaveEvaluation(ctx, &e); err != nil {
		metrics.StorageErrors.Inc()
		slog.Warn("Orchestrator: failed to record evaluation", "address", e.Address.Hex(), "error", err)
	}
}

func (o *Orchestrator) auditGrant(ctx context.Context, g models.Grant) {
	if o.deps.Repository == nil {
		return
	}
	if err := o.deps.Repository.SaveGrant(ctx, &g); err != nil {
		metrics.StorageErrors.Inc()
		slog.Warn("Orchestrator: failed to record grant", "tx_hash", g.TxHash.Hex(), "error", err)
	}
}
