package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrReadOnly is returned by write operations on a treasury built without a signer
	ErrReadOnly = errors.New("treasury client has no signer")

	// ErrNotMined is returned when a sent transaction is not mined within the
	// confirmation timeout. The transaction may still be mined later.
	ErrNotMined = errors.New("transaction not mined in time")
)

// DefaultConfirmTimeout bounds the wait for a write to be mined
const DefaultConfirmTimeout = 3 * time.Minute

// Treasury is the client for the external grant treasury contract. It owns no
// business logic: reads are retried through the node's strategy, writes are
// sent once and waited on until mined.
type Treasury struct {
	address        common.Address
	node           *Node
	contract       *bind.BoundContract
	signer         *bind.TransactOpts
	confirmTimeout time.Duration
}

// TreasuryOption customizes a Treasury
type TreasuryOption func(*Treasury)

// WithConfirmTimeout bounds how long writes wait to be mined
func WithConfirmTimeout(d time.Duration) TreasuryOption {
	return func(t *Treasury) {
		if d > 0 {
			t.confirmTimeout = d
		}
	}
}

// Status aggregates the treasury's public counters
type Status struct {
	Balance        *big.Int       `json:"balance"`
	GrantCount     uint64         `json:"grant_count"`
	TotalDisbursed *big.Int       `json:"total_disbursed"`
	CurrentRound   uint64         `json:"current_round"`
	Patron         common.Address `json:"patron"`
}

// NewSigner builds transaction options from a hex-encoded private key. Signing
// itself is delegated to go-ethereum's keyed transactor.
func NewSigner(ctx context.Context, node *Node, hexKey string) (*bind.TransactOpts, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	chainID, err := node.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	return signerFromKey(key, chainID)
}

func signerFromKey(key *ecdsa.PrivateKey, chainID *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	return opts, nil
}

// NewTreasury binds the contract at address. signer may be nil for read-only use.
func NewTreasury(address common.Address, node *Node, signer *bind.TransactOpts, opts ...TreasuryOption) *Treasury {
	eth := node.Eth()
	t := &Treasury{
		address:        address,
		node:           node,
		contract:       bind.NewBoundContract(address, TreasuryABI, eth, eth, eth),
		signer:         signer,
		confirmTimeout: DefaultConfirmTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Address returns the treasury contract address
func (t *Treasury) Address() common.Address {
	return t.address
}

// Wallet returns the address of the signing wallet
func (t *Treasury) Wallet() (common.Address, error) {
	if t.signer == nil {
		return common.Address{}, ErrReadOnly
	}
	return t.signer.From, nil
}

// WalletBalance returns the signing wallet's balance in wei
func (t *Treasury) WalletBalance(ctx context.Context) (*big.Int, error) {
	wallet, err := t.Wallet()
	if err != nil {
		return nil, err
	}
	return t.node.Balance(ctx, wallet)
}

func (t *Treasury) call(ctx context.Context, block *big.Int, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	err := t.node.retry.Execute(ctx, func() error {
		out = nil
		return t.contract.Call(&bind.CallOpts{Context: ctx, BlockNumber: block}, &out, method, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("treasury.%s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("treasury.%s: empty result", method)
	}
	return out, nil
}

func (t *Treasury) callUint(ctx context.Context, block *big.Int, method string, args ...interface{}) (*big.Int, error) {
	out, err := t.call(ctx, block, method, args...)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// GrantCount returns the number of grants recorded by the treasury
func (t *Treasury) GrantCount(ctx context.Context) (uint64, error) {
	return t.GrantCountAt(ctx, nil)
}

// GrantCountAt returns grantCount() as of block, or latest when block is nil
func (t *Treasury) GrantCountAt(ctx context.Context, block *big.Int) (uint64, error) {
	n, err := t.callUint(ctx, block, "grantCount")
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// CurrentRound returns the treasury's round counter
func (t *Treasury) CurrentRound(ctx context.Context) (uint64, error) {
	n, err := t.callUint(ctx, nil, "currentRound")
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// TotalDisbursed returns the wei disbursed over the treasury's lifetime
func (t *Treasury) TotalDisbursed(ctx context.Context) (*big.Int, error) {
	return t.callUint(ctx, nil, "totalDisbursed")
}

// TreasuryBalance returns the contract's own balance in wei
func (t *Treasury) TreasuryBalance(ctx context.Context) (*big.Int, error) {
	return t.callUint(ctx, nil, "treasuryBalance")
}

// TotalGrantedTo returns the wei granted to recipient so far
func (t *Treasury) TotalGrantedTo(ctx context.Context, recipient common.Address) (*big.Int, error) {
	return t.callUint(ctx, nil, "totalGrantedTo", recipient)
}

// Patron returns the address authorized to start rounds and disburse
func (t *Treasury) Patron(ctx context.Context) (common.Address, error) {
	out, err := t.call(ctx, nil, "patron")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// GetGrant reads a grant record by its ledger-assigned id
func (t *Treasury) GetGrant(ctx context.Context, id uint64) (*GrantView, error) {
	out, err := t.call(ctx, nil, "getGrant", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(GrantView)).(*GrantView), nil
}

// Status reads every public counter concurrently
func (t *Treasury) Status(ctx context.Context) (*Status, error) {
	var s Status
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		s.Balance, err = t.TreasuryBalance(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.GrantCount, err = t.GrantCount(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.TotalDisbursed, err = t.TotalDisbursed(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.CurrentRound, err = t.CurrentRound(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.Patron, err = t.Patron(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &s, nil
}

// StartRound opens a new funding round and waits for it to be mined
func (t *Treasury) StartRound(ctx context.Context, theme string) (*types.Receipt, error) {
	receipt, err := t.transact(ctx, nil, "startRound", theme)
	if err != nil {
		return nil, err
	}
	if ev, ok := ParseRoundStarted(receipt.Logs, t.address); ok {
		slog.Debug("Round started on ledger", "round", ev.RoundId, "theme", ev.Theme)
	}
	return receipt, nil
}

// Disburse transfers value to recipient with the attached reason hash and
// waits for the transaction to be mined
func (t *Treasury) Disburse(ctx context.Context, recipient common.Address, reasonHash common.Hash, value *big.Int) (*types.Receipt, error) {
	return t.transact(ctx, value, "disburse", recipient, [32]byte(reasonHash))
}

// GrantEvent extracts the completion event of a confirmed disbursement
func (t *Treasury) GrantEvent(receipt *types.Receipt) (*GrantDisbursed, bool) {
	if receipt == nil {
		return nil, false
	}
	return ParseGrantDisbursed(receipt.Logs, t.address)
}

func (t *Treasury) transact(ctx context.Context, value *big.Int, method string, args ...interface{}) (*types.Receipt, error) {
	if t.signer == nil {
		return nil, ErrReadOnly
	}

	opts := *t.signer
	opts.Context = ctx
	opts.Value = value

	tx, err := t.contract.Transact(&opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("treasury.%s: send failed: %w", method, err)
	}
	slog.Debug("Ledger transaction sent", "method", method, "tx_hash", tx.Hash().Hex())

	waitCtx, cancel := context.WithTimeout(ctx, t.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, t.node.Eth(), tx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("treasury.%s: %s after %s: %w", method, tx.Hash().Hex(), t.confirmTimeout, ErrNotMined)
		}
		return nil, fmt.Errorf("treasury.%s: waiting for %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("treasury.%s: transaction %s reverted", method, tx.Hash().Hex())
	}
	return receipt, nil
}
