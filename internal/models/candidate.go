package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Source identifies the discovery strategy that produced a candidate
type Source string

const (
	SourceBlockWalk Source = "blockwalk" // Direct walk of recent blocks over RPC
	SourceExplorer  Source = "explorer"  // Heuristic query against the explorer API
	SourceManual    Source = "manual"    // Supplied by an operator on the command line
)

// Candidate is an address seen creating on-chain programs, not yet verified
type Candidate struct {
	Address      common.Address `json:"address"`
	Source       Source         `json:"source"`
	DiscoveredAt time.Time      `json:"discovered_at"`

	// Programs resolved from successful creation receipts during the scan
	KnownPrograms []common.Address `json:"known_programs,omitempty"`
	// Creation transactions seen during the scan (including failed ones)
	OriginTxs []common.Hash `json:"origin_txs,omitempty"`
}
