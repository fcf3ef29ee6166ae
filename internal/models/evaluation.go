package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Decision is the outcome of processing one candidate in a round
type Decision string

const (
	DecisionGranted        Decision = "granted"
	DecisionAlreadyGranted Decision = "already_granted"
	DecisionLowActivity    Decision = "low_activity"
	DecisionNoPrograms     Decision = "no_programs"
	DecisionBelowThreshold Decision = "below_threshold"
	DecisionNoFunds        Decision = "insufficient_funds"
	DecisionFailed         Decision = "failed"
)

// Evaluation is the audit entry written for every candidate a round touches
type Evaluation struct {
	RoundID     uint64         `json:"round_id"`
	Address     common.Address `json:"address"`
	Decision    Decision       `json:"decision"`
	TxCount     uint64         `json:"tx_count"`
	Programs    int            `json:"programs"`
	Interactors int            `json:"interactors"`
	Score       *Score         `json:"score,omitempty"`
	Detail      string         `json:"detail,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
