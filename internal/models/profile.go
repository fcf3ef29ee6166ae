package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ProgramInfo describes a single program (contract) deployed by a candidate
type ProgramInfo struct {
	Address   common.Address `json:"address"`
	CodeSize  int            `json:"code_size"` // Deployed bytecode size in bytes
	Verified  bool           `json:"verified"`  // Source verified on the explorer
	CreatedAt time.Time      `json:"created_at"`
	TxHash    common.Hash    `json:"tx_hash"` // Zero when the creation tx is unknown
}

// Profile is the verified on-chain activity summary for a candidate.
// It is built once per candidate and never mutated afterwards.
type Profile struct {
	Address        common.Address `json:"address"`
	TxCount        uint64         `json:"tx_count"`
	Programs       []ProgramInfo  `json:"programs"`
	Interactors    int            `json:"interactors"`
	RecentActivity bool           `json:"recent_activity"`

	// ObservedAt is the reference instant for every time window applied to
	// this profile, so scoring stays a pure function of the profile.
	ObservedAt time.Time `json:"observed_at"`

	// Unavailable lists sub-queries that failed and were defaulted
	Unavailable []string `json:"unavailable,omitempty"`
}

// ProgramCount returns the number of deployed programs
func (p Profile) ProgramCount() int {
	return len(p.Programs)
}

// VerifiedCount returns the number of programs with verified source
func (p Profile) VerifiedCount() int {
	n := 0
	for _, prog := range p.Programs {
		if prog.Verified {
			n++
		}
	}
	return n
}

// MaxCodeSize returns the largest deployed program size, 0 with no programs
func (p Profile) MaxCodeSize() int {
	max := 0
	for _, prog := range p.Programs {
		if prog.CodeSize > max {
			max = prog.CodeSize
		}
	}
	return max
}

// MinCodeSize returns the smallest deployed program size, 0 with no programs
func (p Profile) MinCodeSize() int {
	if len(p.Programs) == 0 {
		return 0
	}
	min := p.Programs[0].CodeSize
	for _, prog := range p.Programs[1:] {
		if prog.CodeSize < min {
			min = prog.CodeSize
		}
	}
	return min
}

// CountLargerThan returns the number of programs whose code exceeds size bytes
func (p Profile) CountLargerThan(size int) int {
	n := 0
	for _, prog := range p.Programs {
		if prog.CodeSize > size {
			n++
		}
	}
	return n
}

// CreatedWithin returns the number of programs created in the trailing window
// ending at ObservedAt
func (p Profile) CreatedWithin(window time.Duration) int {
	cutoff := p.ObservedAt.Add(-window)
	n := 0
	for _, prog := range p.Programs {
		if prog.CreatedAt.After(cutoff) {
			n++
		}
	}
	return n
}

// Degraded reports whether any sub-query fell back to its default
func (p Profile) Degraded() bool {
	return len(p.Unavailable) > 0
}
