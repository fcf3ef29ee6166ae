package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfile_Aggregates(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	p := Profile{
		ObservedAt: now,
		Programs: []ProgramInfo{
			{CodeSize: 1200, Verified: true, CreatedAt: now.Add(-2 * 24 * time.Hour)},
			{CodeSize: 300, CreatedAt: now.Add(-40 * 24 * time.Hour)},
			{CodeSize: 9000, Verified: true, CreatedAt: now.Add(-20 * 24 * time.Hour)},
		},
	}

	assert.Equal(t, 3, p.ProgramCount())
	assert.Equal(t, 2, p.VerifiedCount())
	assert.Equal(t, 9000, p.MaxCodeSize())
	assert.Equal(t, 300, p.MinCodeSize())
	assert.Equal(t, 2, p.CountLargerThan(500))
	assert.Equal(t, 2, p.CreatedWithin(30*24*time.Hour))
	assert.Equal(t, 1, p.CreatedWithin(7*24*time.Hour))
}

func TestProfile_EmptyAggregates(t *testing.T) {
	var p Profile
	assert.Equal(t, 0, p.MaxCodeSize())
	assert.Equal(t, 0, p.MinCodeSize())
	assert.False(t, p.Degraded())
}

func TestReading(t *testing.T) {
	ok := Known(uint64(7))
	bad := Unknown[uint64](errors.New("rpc down"))

	assert.True(t, ok.OK())
	assert.Equal(t, uint64(7), ok.Or(0))
	assert.False(t, bad.OK())
	assert.Equal(t, uint64(0), bad.Or(0))
}
