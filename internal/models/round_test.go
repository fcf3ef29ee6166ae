package models

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundState_TransitionsDoNotMutatePrevious(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	s0 := NewRoundState(4)
	s1 := s0.StartRound()
	s2 := s1.RecordGrant(addr)

	assert.Equal(t, uint64(4), s0.Round)
	assert.Equal(t, uint64(5), s1.Round)
	assert.False(t, s1.HasGranted(addr), "earlier snapshot must not see later grant")
	assert.True(t, s2.HasGranted(addr))
	assert.Equal(t, 0, s1.RoundGrants)
	assert.Equal(t, 1, s2.RoundGrants)
}

func TestRoundState_StartRoundKeepsGrantedSet(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	s := NewRoundState(0).StartRound().RecordGrant(addr).StartRound()

	assert.True(t, s.HasGranted(addr))
	assert.Equal(t, 0, s.RoundGrants)
	assert.Equal(t, uint64(2), s.Round)
}

func TestRoundState_CaseNormalizedLookup(t *testing.T) {
	lower := common.HexToAddress("0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	upper := common.HexToAddress("0xABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD")

	s := NewRoundState(0).RecordGrant(lower)
	assert.True(t, s.HasGranted(upper))
}

func TestRoundState_GrantedSorted(t *testing.T) {
	a := common.HexToAddress("0x0000000000000000000000000000000000000002")
	b := common.HexToAddress("0x0000000000000000000000000000000000000001")

	s := NewRoundState(0).RecordGrant(a).RecordGrant(b)
	got := s.Granted()

	require.Len(t, got, 2)
	assert.Equal(t, b, got[0])
	assert.Equal(t, a, got[1])
}

func TestRoundState_MarkGrantedDoesNotCountAgainstRound(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	s0 := NewRoundState(1)
	s1 := s0.MarkGranted(addr)

	assert.True(t, s1.HasGranted(addr))
	assert.False(t, s0.HasGranted(addr))
	assert.Equal(t, 0, s1.RoundGrants)
	assert.Equal(t, 1, s1.GrantedCount())
}
