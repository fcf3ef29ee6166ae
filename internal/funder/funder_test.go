package funder

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"patron/internal/ledger"
	"patron/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recipient = common.HexToAddress("0x00000000000000000000000000000000000000b1")

// fakeTreasury records grants the way the contract does: sequential ids
// starting at firstID, one per disbursement
type fakeTreasury struct {
	firstID     uint64
	round       uint64
	grants      map[uint64]*ledger.GrantView
	next        uint64
	dropEvents  bool
	disburseErr error
	countErr    error
	calls       int
}

func newFakeTreasury(firstID uint64) *fakeTreasury {
	return &fakeTreasury{firstID: firstID, round: 3, grants: map[uint64]*ledger.GrantView{}, next: firstID}
}

func (f *fakeTreasury) Disburse(ctx context.Context, to common.Address, reasonHash common.Hash, value *big.Int) (*types.Receipt, error) {
	f.calls++
	if f.disburseErr != nil {
		return nil, f.disburseErr
	}
	id := f.next
	f.next++
	f.grants[id] = &ledger.GrantView{
		Recipient:  to,
		Amount:     new(big.Int).Set(value),
		ReasonHash: reasonHash,
		Timestamp:  big.NewInt(1700000000),
		RoundId:    new(big.Int).SetUint64(f.round),
	}
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      common.BytesToHash([]byte{0xaa, byte(id)}),
		BlockNumber: big.NewInt(500),
	}, nil
}

func (f *fakeTreasury) GrantEvent(receipt *types.Receipt) (*ledger.GrantDisbursed, bool) {
	if f.dropEvents {
		return nil, false
	}
	id := f.next - 1
	g := f.grants[id]
	return &ledger.GrantDisbursed{
		GrantId:    new(big.Int).SetUint64(id),
		RoundId:    g.RoundId,
		Recipient:  g.Recipient,
		Amount:     g.Amount,
		ReasonHash: g.ReasonHash,
	}, true
}

func (f *fakeTreasury) GrantCountAt(ctx context.Context, block *big.Int) (uint64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return uint64(len(f.grants)), nil
}

func (f *fakeTreasury) GetGrant(ctx context.Context, id uint64) (*ledger.GrantView, error) {
	g, ok := f.grants[id]
	if !ok {
		return nil, errors.New("execution reverted: no such grant")
	}
	return g, nil
}

func testScore() models.Score {
	return models.Score{Novelty: 90, Activity: 95, Quality: 90, Impact: 75, Total: 88, Summary: "Deployed 4 contracts on Base. Score: 88/100."}
}

func TestFund_FromCompletionEvent(t *testing.T) {
	tr := newFakeTreasury(0)
	f := New(tr)

	g, err := f.Fund(context.Background(), recipient, decimal.RequireFromString("0.0038"), testScore())
	require.NoError(t, err)

	assert.True(t, g.Resolved)
	assert.Equal(t, uint64(0), g.ID)
	assert.Equal(t, uint64(3), g.RoundID)
	assert.Equal(t, recipient, g.Recipient)
	assert.True(t, g.Amount.Equal(decimal.RequireFromString("0.0038")))
	assert.Equal(t, "3800000000000000", g.AmountWei.String())
	assert.Equal(t, ReasonHash(testScore().Summary), g.ReasonHash)
	assert.Equal(t, uint64(500), g.Block)
	assert.Equal(t, 88, g.Score.Total)

	// Round trip: the ledger's copy reproduces the submission
	require.NoError(t, f.Audit(context.Background(), g))
}

func TestFund_ReconcilesMissingEvent(t *testing.T) {
	for _, firstID := range []uint64{0, 1} {
		tr := newFakeTreasury(firstID)
		tr.dropEvents = true
		f := New(tr)

		_, err := f.Fund(context.Background(), common.HexToAddress("0x01"), decimal.RequireFromString("0.001"), testScore())
		require.NoError(t, err)
		g, err := f.Fund(context.Background(), recipient, decimal.RequireFromString("0.002"), testScore())
		require.NoError(t, err)

		assert.True(t, g.Resolved)
		assert.Equal(t, firstID+1, g.ID)
		assert.Equal(t, uint64(3), g.RoundID)
		assert.NoError(t, f.Audit(context.Background(), g))
	}
}

func TestFund_UnresolvedRecordStillReturned(t *testing.T) {
	tr := newFakeTreasury(0)
	tr.dropEvents = true
	tr.countErr = errors.New("rpc down")
	f := New(tr)

	g, err := f.Fund(context.Background(), recipient, decimal.RequireFromString("0.002"), testScore())
	require.ErrorIs(t, err, ErrRecordUnresolved)

	assert.False(t, g.Resolved)
	assert.Equal(t, uint64(0), g.ID)
	assert.Equal(t, uint64(0), g.RoundID)
	assert.Equal(t, recipient, g.Recipient)
	assert.NotEqual(t, common.Hash{}, g.TxHash)
	assert.ErrorIs(t, f.Audit(context.Background(), g), ErrRecordUnresolved)
}

func TestFund_TransferFailurePropagates(t *testing.T) {
	tr := newFakeTreasury(0)
	tr.disburseErr = errors.New("insufficient funds for gas")
	f := New(tr)

	g, err := f.Fund(context.Background(), recipient, decimal.RequireFromString("0.002"), testScore())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRecordUnresolved)
	assert.Equal(t, models.Grant{}, g)
}

func TestFund_RejectsNonPositiveAmount(t *testing.T) {
	tr := newFakeTreasury(0)
	f := New(tr)

	_, err := f.Fund(context.Background(), recipient, decimal.Zero, testScore())
	require.Error(t, err)
	assert.Equal(t, 0, tr.calls)
}

func TestAudit_DetectsMismatch(t *testing.T) {
	tr := newFakeTreasury(0)
	f := New(tr)

	g, err := f.Fund(context.Background(), recipient, decimal.RequireFromString("0.002"), testScore())
	require.NoError(t, err)

	tr.grants[g.ID].Amount = big.NewInt(1)
	assert.ErrorIs(t, f.Audit(context.Background(), g), ErrRecordMismatch)
}

func TestReasonHash_Stable(t *testing.T) {
	assert.Equal(t, ReasonHash("a"), ReasonHash("a"))
	assert.NotEqual(t, ReasonHash("a"), ReasonHash("b"))
	// keccak256("") is well known
	assert.Equal(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", ReasonHash("").Hex())
}
