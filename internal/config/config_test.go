package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Grant.MinScore)
	assert.Equal(t, 3, cfg.Grant.MaxPerRound)
	assert.Equal(t, "https://sepolia.base.org", cfg.RPCURL)
	assert.Equal(t, 30*time.Minute, cfg.Round.Interval)
	assert.Equal(t, 3*time.Minute, cfg.Round.ConfirmTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PATRON_NETWORK", "base")
	t.Setenv("PATRON_GRANT__MIN_SCORE", "70")
	t.Setenv("PATRON_ROUND__INTERVAL", "5m")
	t.Setenv("PATRON_TREASURY_ADDRESS", "0x00000000000000000000000000000000000000aa")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 70, cfg.Grant.MinScore)
	assert.Equal(t, 5*time.Minute, cfg.Round.Interval)
	assert.Equal(t, "https://mainnet.base.org", cfg.RPCURL)
	assert.Equal(t, "https://api.basescan.org/api", cfg.ExplorerURL)
	assert.NoError(t, cfg.ValidateTreasury())
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patron.yaml")
	content := []byte("grant:\n  max_per_round: 5\nscan:\n  strategy: blockwalk\n  max_results: 7\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("PATRON_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Grant.MaxPerRound)
	assert.Equal(t, 7, cfg.Scan.MaxResults)
	// Untouched keys keep their defaults
	assert.Equal(t, 60, cfg.Grant.MinScore)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"weights do not sum to one", func(c *Config) { c.Weights.Impact = 0.5 }, false},
		{"negative weight", func(c *Config) { c.Weights.Impact = -0.2; c.Weights.Novelty = 0.7 }, false},
		{"min score too high", func(c *Config) { c.Grant.MinScore = 100 }, false},
		{"zero max per round", func(c *Config) { c.Grant.MaxPerRound = 0 }, false},
		{"min above max", func(c *Config) { c.Grant.MinAmount = "0.01" }, false},
		{"bad amount", func(c *Config) { c.Grant.MaxAmount = "lots" }, false},
		{"explorer strategy without seed", func(c *Config) { c.Scan.Strategy = "explorer" }, false},
		{"explorer strategy with seed", func(c *Config) {
			c.Scan.Strategy = "explorer"
			c.Scan.SeedAddress = "0x00000000000000000000000000000000000000aa"
		}, true},
		{"unknown strategy", func(c *Config) { c.Scan.Strategy = "gossip" }, false},
		{"unknown network", func(c *Config) { c.Network = "mainnet" }, false},
		{"no confirm timeout", func(c *Config) { c.Round.ConfirmTimeout = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.applyNetworkDefaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateSigner(t *testing.T) {
	cfg := Defaults()
	assert.True(t, errors.Is(cfg.ValidateSigner(), ErrMissingSigner))

	cfg.PrivateKey = "0x01"
	assert.True(t, errors.Is(cfg.ValidateSigner(), ErrMissingTreasury))

	cfg.TreasuryAddress = "not-an-address"
	assert.Error(t, cfg.ValidateSigner())

	cfg.TreasuryAddress = "0x00000000000000000000000000000000000000aa"
	assert.NoError(t, cfg.ValidateSigner())
}
