package retry

import (
	"context"
	"log/slog"

	"patron/internal/config"
)

// Strategy defines how a read against the node or explorer is retried.
// Writes to the ledger are never routed through a Strategy.
type Strategy interface {
	// Execute runs the operation with the configured retry logic
	Execute(ctx context.Context, operation Operation) error

	// Name returns the name of the strategy for logging
	Name() string
}

// Operation is a function that can be retried
type Operation func() error

// NewStrategy creates a retry strategy based on configuration
func NewStrategy(cfg config.RetryConfig) Strategy {
	if !cfg.Enabled || cfg.MaxRetries <= 0 {
		slog.Debug("Retry disabled, using NoRetryStrategy")
		return NewNoRetryStrategy()
	}

	slog.Debug("Retry enabled, using ExponentialBackoffStrategy",
		"max_retries", cfg.MaxRetries,
		"initial_delay", cfg.InitialDelay,
		"max_delay", cfg.MaxDelay,
	)

	return NewExponentialBackoffStrategy(cfg.MaxRetries, cfg.InitialDelay, cfg.MaxDelay)
}
