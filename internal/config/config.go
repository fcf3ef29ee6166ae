package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// EnvPrefix is stripped from environment variables before they are mapped onto
// config keys. Nested keys use a double underscore: PATRON_GRANT__MIN_SCORE.
const EnvPrefix = "PATRON_"

var (
	ErrMissingSigner   = errors.New("private key is required")
	ErrMissingTreasury = errors.New("treasury address is required")
)

type Config struct {
	LogLevel string `koanf:"log_level"`

	// Network selects default endpoints: base or base-sepolia
	Network string `koanf:"network"`
	RPCURL  string `koanf:"rpc_url"`

	// Etherscan-compatible explorer API
	ExplorerURL    string `koanf:"explorer_url"`
	ExplorerSite   string `koanf:"explorer_site"` // Human-facing explorer, used in announcements
	ExplorerAPIKey string `koanf:"explorer_api_key"`

	PrivateKey      string `koanf:"private_key"`
	TreasuryAddress string `koanf:"treasury_address"`

	// Audit storage, in-memory when empty
	DatabaseURL string `koanf:"database_url"`

	// Status API port, disabled when 0
	APIPort int `koanf:"api_port"`

	Grant   GrantConfig   `koanf:"grant"`
	Weights WeightsConfig `koanf:"weights"`
	Scan    ScanConfig    `koanf:"scan"`
	Verify  VerifyConfig  `koanf:"verify"`
	Round   RoundConfig   `koanf:"round"`
	Retry   RetryConfig   `koanf:"retry"`
	Notify  NotifyConfig  `koanf:"notify"`
}

// GrantConfig holds the decision thresholds. Amounts are ETH decimal strings.
type GrantConfig struct {
	MinScore        int    `koanf:"min_score"`
	MaxPerRound     int    `koanf:"max_per_round"`
	MinAmount       string `koanf:"min_amount"`
	MaxAmount       string `koanf:"max_amount"`
	MinTxCount      uint64 `koanf:"min_tx_count"`
	MinBytecodeSize int    `koanf:"min_bytecode_size"`
}

type WeightsConfig struct {
	Novelty  float64 `koanf:"novelty"`
	Activity float64 `koanf:"activity"`
	Quality  float64 `koanf:"quality"`
	Impact   float64 `koanf:"impact"`
}

type ScanConfig struct {
	Strategy   string        `koanf:"strategy"` // blockwalk or explorer
	MaxResults int           `koanf:"max_results"`
	Blocks     int           `koanf:"blocks"`      // Block-walk budget
	Stride     uint64        `koanf:"stride"`      // Distance between sampled blocks
	PauseEvery int           `koanf:"pause_every"` // Blocks between pauses
	Pause      time.Duration `koanf:"pause"`
	// Seed contract whose senders the explorer strategy inspects
	SeedAddress string `koanf:"seed_address"`
	SeedLookups int    `koanf:"seed_lookups"`
}

type VerifyConfig struct {
	InteractorPrograms int           `koanf:"interactor_programs"`
	RecentWindow       time.Duration `koanf:"recent_window"`
	RecentTxThreshold  uint64        `koanf:"recent_tx_threshold"`
	Pause              time.Duration `koanf:"pause"`
}

type RoundConfig struct {
	Interval   time.Duration `koanf:"interval"`
	GrantPause time.Duration `koanf:"grant_pause"`
	Reserve    string        `koanf:"reserve"` // ETH kept back for gas on each transfer
	Floor      string        `koanf:"floor"`   // Minimum operating wallet balance
	// Upper bound on waiting for a startRound/disburse transaction to be mined
	ConfirmTimeout time.Duration `koanf:"confirm_timeout"`
}

type RetryConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxRetries   int           `koanf:"max_retries"`
	InitialDelay time.Duration `koanf:"initial_delay"`
	MaxDelay     time.Duration `koanf:"max_delay"`
}

type NotifyConfig struct {
	NeynarAPIKey     string `koanf:"neynar_api_key"`
	NeynarSignerUUID string `koanf:"neynar_signer_uuid"`
	NeynarURL        string `koanf:"neynar_url"`
	NATSURL          string `koanf:"nats_url"`
	NATSSubject      string `koanf:"nats_subject"`
}

// Defaults returns the configuration used when nothing overrides it
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Network:  "base-sepolia",
		Grant: GrantConfig{
			MinScore:        60,
			MaxPerRound:     3,
			MinAmount:       "0.001",
			MaxAmount:       "0.005",
			MinTxCount:      5,
			MinBytecodeSize: 500,
		},
		Weights: WeightsConfig{
			Novelty:  0.30,
			Activity: 0.25,
			Quality:  0.25,
			Impact:   0.20,
		},
		Scan: ScanConfig{
			Strategy:    "blockwalk",
			MaxResults:  20,
			Blocks:      100,
			Stride:      5,
			PauseEvery:  10,
			Pause:       300 * time.Millisecond,
			SeedLookups: 40,
		},
		Verify: VerifyConfig{
			InteractorPrograms: 3,
			RecentWindow:       7 * 24 * time.Hour,
			RecentTxThreshold:  10,
			Pause:              300 * time.Millisecond,
		},
		Round: RoundConfig{
			Interval:       30 * time.Minute,
			GrantPause:     2 * time.Second,
			Reserve:        "0.001",
			Floor:          "0.002",
			ConfirmTimeout: 3 * time.Minute,
		},
		Retry: RetryConfig{
			Enabled:      true,
			MaxRetries:   3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
		},
		Notify: NotifyConfig{
			NeynarURL:   "https://api.neynar.com/v2/farcaster/cast",
			NATSSubject: "patron",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// PATRON_CONFIG, and PATRON_* environment variables, in that order.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyNetworkDefaults()

	return &cfg, nil
}

// envKey maps PATRON_GRANT__MIN_SCORE to grant.min_score
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func (c *Config) applyNetworkDefaults() {
	mainnet := c.Network == "base"
	if c.RPCURL == "" {
		c.RPCURL = "https://sepolia.base.org"
		if mainnet {
			c.RPCURL = "https://mainnet.base.org"
		}
	}
	if c.ExplorerURL == "" {
		c.ExplorerURL = "https://api-sepolia.basescan.org/api"
		if mainnet {
			c.ExplorerURL = "https://api.basescan.org/api"
		}
	}
	if c.ExplorerSite == "" {
		c.ExplorerSite = "https://sepolia.basescan.org"
		if mainnet {
			c.ExplorerSite = "https://basescan.org"
		}
	}
}

// Validate checks if the configuration is usable for read-only commands
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc_url is required")
	}
	if c.Network != "base" && c.Network != "base-sepolia" {
		return fmt.Errorf("unknown network %q", c.Network)
	}
	if c.Grant.MinScore < 0 || c.Grant.MinScore >= 100 {
		return fmt.Errorf("grant.min_score must be in [0,100), got %d", c.Grant.MinScore)
	}
	if c.Grant.MaxPerRound <= 0 {
		return fmt.Errorf("grant.max_per_round must be positive, got %d", c.Grant.MaxPerRound)
	}

	minAmount, maxAmount, err := c.Grant.Amounts()
	if err != nil {
		return err
	}
	if !minAmount.IsPositive() || minAmount.GreaterThan(maxAmount) {
		return fmt.Errorf("grant amounts must satisfy 0 < min <= max, got %s..%s", minAmount, maxAmount)
	}
	if _, err := c.Round.ReserveAmount(); err != nil {
		return err
	}
	if _, err := c.Round.FloorAmount(); err != nil {
		return err
	}
	if c.Round.ConfirmTimeout <= 0 {
		return fmt.Errorf("round.confirm_timeout must be positive")
	}

	if err := c.Weights.Validate(); err != nil {
		return err
	}

	switch c.Scan.Strategy {
	case "blockwalk":
	case "explorer":
		if !common.IsHexAddress(c.Scan.SeedAddress) {
			return fmt.Errorf("scan.seed_address is required for the explorer strategy")
		}
	default:
		return fmt.Errorf("unknown scan strategy %q", c.Scan.Strategy)
	}
	if c.Scan.MaxResults <= 0 {
		return fmt.Errorf("scan.max_results must be positive")
	}
	return nil
}

// ValidateSigner checks the settings required by commands that write to the
// ledger. Missing values are fatal at startup.
func (c *Config) ValidateSigner() error {
	if c.PrivateKey == "" {
		return ErrMissingSigner
	}
	return c.ValidateTreasury()
}

// ValidateTreasury checks that a treasury contract address is configured
func (c *Config) ValidateTreasury() error {
	if c.TreasuryAddress == "" {
		return ErrMissingTreasury
	}
	if !common.IsHexAddress(c.TreasuryAddress) {
		return fmt.Errorf("treasury address %q is not a valid address", c.TreasuryAddress)
	}
	return nil
}

// Treasury returns the parsed treasury address
func (c *Config) Treasury() common.Address {
	return common.HexToAddress(c.TreasuryAddress)
}

// Amounts parses the grant bounds
func (g GrantConfig) Amounts() (decimal.Decimal, decimal.Decimal, error) {
	minAmount, err := decimal.NewFromString(g.MinAmount)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid grant.min_amount %q: %w", g.MinAmount, err)
	}
	maxAmount, err := decimal.NewFromString(g.MaxAmount)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid grant.max_amount %q: %w", g.MaxAmount, err)
	}
	return minAmount, maxAmount, nil
}

// ReserveAmount parses the per-transfer gas reserve
func (r RoundConfig) ReserveAmount() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(r.Reserve)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid round.reserve %q: %w", r.Reserve, err)
	}
	return d, nil
}

// FloorAmount parses the minimum operating balance
func (r RoundConfig) FloorAmount() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(r.Floor)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid round.floor %q: %w", r.Floor, err)
	}
	return d, nil
}

// Validate checks that every weight is non-negative and that they sum to 1.0
func (w WeightsConfig) Validate() error {
	for _, v := range []float64{w.Novelty, w.Activity, w.Quality, w.Impact} {
		if v < 0 {
			return fmt.Errorf("scoring weights must be non-negative")
		}
	}
	sum := w.Novelty + w.Activity + w.Quality + w.Impact
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}
