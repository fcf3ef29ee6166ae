package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"patron/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Loaded once in PersistentPreRunE and shared by every subcommand
	cfg *config.Config

	logLevelFlag string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "patron",
	Short: "The Patron - autonomous onchain micro-grant agent",
	Long: `The Patron discovers builders deploying programs on Base, verifies their
on-chain activity, scores them on novelty, activity, quality and impact, and
disburses micro-grants from a treasury contract.

Configuration is read from .env, an optional YAML file named by PATRON_CONFIG,
and PATRON_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if logLevelFlag != "" {
			loaded.LogLevel = logLevelFlag
		}
		setupLogger(loaded.LogLevel)

		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		slog.Info("Configuration loaded",
			"network", cfg.Network,
			"rpc_url", cfg.RPCURL,
			"scan_strategy", cfg.Scan.Strategy,
			"log_level", cfg.LogLevel,
		)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(
		runCmd,
		roundCmd,
		scanCmd,
		evaluateCmd,
		disburseCmd,
		statusCmd,
	)
}

// setupLogger installs the default text logger at the configured level
func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Patron exited with error", "error", err)
		stop()
		os.Exit(1)
	}
}
