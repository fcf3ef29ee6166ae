// Package funder executes grant disbursements through the treasury and turns
// confirmed transactions into grant records.
package funder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"patron/internal/ledger"
	"patron/internal/metrics"
	"patron/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var (
	// ErrRecordUnresolved is returned alongside a valid record when the
	// transfer confirmed but its ledger ids could not be recovered
	ErrRecordUnresolved = errors.New("grant record ids unresolved")

	// ErrRecordMismatch is returned when the ledger's copy of a grant differs
	// from what was submitted
	ErrRecordMismatch = errors.New("grant record does not match submission")
)

// Ledger is the treasury surface the funder writes to and reads back from
type Ledger interface {
	Disburse(ctx context.Context, recipient common.Address, reasonHash common.Hash, value *big.Int) (*types.Receipt, error)
	GrantEvent(receipt *types.Receipt) (*ledger.GrantDisbursed, bool)
	GrantCountAt(ctx context.Context, block *big.Int) (uint64, error)
	GetGrant(ctx context.Context, id uint64) (*ledger.GrantView, error)
}

type Funder struct {
	ledger Ledger
	now    func() time.Time
}

func New(l Ledger) *Funder {
	return &Funder{ledger: l, now: time.Now}
}

// ReasonHash is the keccak256 of the evaluation summary attached to a grant
func ReasonHash(summary string) common.Hash {
	return crypto.Keccak256Hash([]byte(summary))
}

// Fund transfers amount to recipient and waits for confirmation. Any transfer
// or confirmation failure is returned and no record exists. When the
// completion event is missing the ids are recovered from the ledger; if that
// fails too the record is returned unresolved together with ErrRecordUnresolved.
func (f *Funder) Fund(ctx context.Context, recipient common.Address, amount decimal.Decimal, score models.Score) (models.Grant, error) {
	wei := ledger.EtherToWei(amount)
	if wei.Sign() <= 0 {
		return models.Grant{}, fmt.Errorf("grant amount %s is not positive", amount)
	}
	reason := ReasonHash(score.Summary)

	slog.Info("Funder: disbursing grant",
		"recipient", recipient.Hex(),
		"amount_eth", amount.String(),
		"score", score.Total,
	)

	receipt, err := f.ledger.Disburse(ctx, recipient, reason, wei)
	if err != nil {
		metrics.LedgerErrors.WithLabelValues("disburse").Inc()
		return models.Grant{}, fmt.Errorf("disburse to %s: %w", recipient.Hex(), err)
	}

	grant := models.Grant{
		Recipient:  recipient,
		Amount:     ledger.WeiToEther(wei),
		AmountWei:  wei,
		ReasonHash: reason,
		TxHash:     receipt.TxHash,
		CreatedAt:  f.now().UTC(),
		Score:      score,
	}
	if receipt.BlockNumber != nil {
		grant.Block = receipt.BlockNumber.Uint64()
	}

	metrics.GrantsDisbursed.Inc()
	metrics.EtherDisbursed.Add(grant.Amount.InexactFloat64())

	if ev, ok := f.ledger.GrantEvent(receipt); ok && ev.Recipient == recipient {
		grant.ID = ev.GrantId.Uint64()
		grant.RoundID = ev.RoundId.Uint64()
		grant.Resolved = true
		slog.Info("Funder: grant confirmed", "grant_id", grant.ID, "round", grant.RoundID, "tx_hash", grant.TxHash.Hex())
		return grant, nil
	}

	slog.Warn("Funder: completion event missing, reconciling from ledger", "tx_hash", grant.TxHash.Hex())
	if err := f.reconcile(ctx, receipt, &grant); err != nil {
		slog.Error("Funder: grant ids unresolved", "tx_hash", grant.TxHash.Hex(), "error", err)
		return grant, fmt.Errorf("%w: %v", ErrRecordUnresolved, err)
	}
	slog.Info("Funder: grant reconciled", "grant_id", grant.ID, "round", grant.RoundID, "tx_hash", grant.TxHash.Hex())
	return grant, nil
}

// reconcile reads grantCount as of the confirming block and looks for the
// grant among the newest ids, accepting only an exact match
func (f *Funder) reconcile(ctx context.Context, receipt *types.Receipt, grant *models.Grant) error {
	count, err := f.ledger.GrantCountAt(ctx, receipt.BlockNumber)
	if err != nil {
		return fmt.Errorf("read grant count: %w", err)
	}

	// Ids may start at zero or one depending on the treasury deployment
	for _, id := range []uint64{count, count - 1} {
		if id > count {
			continue
		}
		view, err := f.ledger.GetGrant(ctx, id)
		if err != nil {
			continue
		}
		if matches(view, *grant) {
			grant.ID = id
			grant.RoundID = view.RoundId.Uint64()
			grant.Resolved = true
			return nil
		}
	}
	return fmt.Errorf("no grant near id %d matches tx %s", count, grant.TxHash.Hex())
}

// Audit reads the grant back from the ledger and checks that it reproduces
// the submitted recipient, amount and reason hash
func (f *Funder) Audit(ctx context.Context, grant models.Grant) error {
	if !grant.Resolved {
		return ErrRecordUnresolved
	}
	view, err := f.ledger.GetGrant(ctx, grant.ID)
	if err != nil {
		return fmt.Errorf("read grant %d: %w", grant.ID, err)
	}
	if !matches(view, grant) {
		return fmt.Errorf("grant %d: %w", grant.ID, ErrRecordMismatch)
	}
	return nil
}

func matches(view *ledger.GrantView, grant models.Grant) bool {
	if view == nil || view.Amount == nil || grant.AmountWei == nil {
		return false
	}
	return view.Recipient == grant.Recipient &&
		view.Amount.Cmp(grant.AmountWei) == 0 &&
		bytes.Equal(view.ReasonHash[:], grant.ReasonHash[:])
}
