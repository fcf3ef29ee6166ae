package models

import (
	"bytes"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RoundState is an immutable snapshot of the cross-round decision state.
// Each transition returns a new snapshot; the granted set only grows and is
// never mutated in place, so snapshots may share it safely.
type RoundState struct {
	granted     map[common.Address]struct{}
	Round       uint64 // Current round counter
	RoundGrants int    // Grants issued in the active round
}

// NewRoundState returns an empty state positioned at the given round
func NewRoundState(round uint64) RoundState {
	return RoundState{
		granted: map[common.Address]struct{}{},
		Round:   round,
	}
}

// HasGranted reports whether addr was already disbursed to.
// common.Address is byte-valued, so lookups are case-insensitive by construction.
func (s RoundState) HasGranted(addr common.Address) bool {
	_, ok := s.granted[addr]
	return ok
}

// GrantedCount returns the size of the granted set
func (s RoundState) GrantedCount() int {
	return len(s.granted)
}

// Granted returns the granted addresses in byte order
func (s RoundState) Granted() []common.Address {
	out := make([]common.Address, 0, len(s.granted))
	for addr := range s.granted {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// StartRound advances the round counter and resets the per-round grant counter
func (s RoundState) StartRound() RoundState {
	next := s
	next.Round++
	next.RoundGrants = 0
	return next
}

// RecordGrant adds addr to the granted set and counts it against the round
func (s RoundState) RecordGrant(addr common.Address) RoundState {
	next := s.MarkGranted(addr)
	next.RoundGrants++
	return next
}

// MarkGranted adds addr to the granted set without counting it against the
// round, for grants learned from the ledger rather than made by this agent
func (s RoundState) MarkGranted(addr common.Address) RoundState {
	granted := make(map[common.Address]struct{}, len(s.granted)+1)
	for a := range s.granted {
		granted[a] = struct{}{}
	}
	granted[addr] = struct{}{}

	next := s
	next.granted = granted
	return next
}

// AgentStatus is the externally visible snapshot served by the status API
type AgentStatus struct {
	Phase        string           `json:"phase"`
	Round        uint64           `json:"round"`
	RoundGrants  int              `json:"round_grants"`
	GrantedTotal int              `json:"granted_total"`
	Granted      []common.Address `json:"granted"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
