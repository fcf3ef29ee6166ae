package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Grant is a funding record created after the ledger confirmed a disbursement.
// Records are append-only and never updated.
type Grant struct {
	// Identification, assigned by the ledger
	ID      uint64 `json:"grant_id"`
	RoundID uint64 `json:"round_id"`

	// Transfer
	Recipient  common.Address  `json:"recipient"`
	Amount     decimal.Decimal `json:"amount"` // ETH
	AmountWei  *big.Int        `json:"amount_wei"`
	ReasonHash common.Hash     `json:"reason_hash"` // keccak256 of Score.Summary

	// Transaction context
	TxHash    common.Hash `json:"tx_hash"`
	Block     uint64      `json:"block"`
	CreatedAt time.Time   `json:"created_at"`

	Score Score `json:"score"`

	// Resolved is false when the ledger-assigned ids could not be recovered
	// from the confirmed transaction; ID and RoundID are then zero.
	Resolved bool `json:"resolved"`
}
