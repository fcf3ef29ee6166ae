package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"patron/internal/api"
	"patron/internal/ledger"
	"patron/internal/models"
	"patron/internal/orchestrator"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// runCmd starts the autonomous loop
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the autonomous grant loop until funds run out or interrupted",
	Long: `Seeds the round counter from the treasury, sends the launch announcement,
then runs rounds on the configured interval. Themes rotate with the round
counter. The loop stops when the wallet cannot cover a grant or falls below
the operating floor.`,
	Args: cobra.NoArgs,
	RunE: runLoop,
}

// roundCmd runs a single round
var roundCmd = &cobra.Command{
	Use:   "round [theme]",
	Short: "Run one grant round and exit",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSingleRound,
}

// scanCmd lists candidates without evaluating them
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover candidate builders",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

// evaluateCmd scores one address without granting
var evaluateCmd = &cobra.Command{
	Use:   "evaluate <address>",
	Short: "Verify and score an address, printing eligibility and amount",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvaluate,
}

// disburseCmd evaluates one address and funds it when eligible
var disburseCmd = &cobra.Command{
	Use:   "disburse <address>",
	Short: "Evaluate an address and grant it if eligible",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisburse,
}

// statusCmd prints treasury and wallet status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show treasury and wallet status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runLoop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, withSigner)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.orch.Seed(ctx); err != nil {
		return err
	}

	if cfg.APIPort > 0 {
		server := api.NewServer(cfg.APIPort, a.repository, a.orch)
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("Error stopping API server", "error", err)
			}
		}()
	}

	a.orch.Announce(ctx, a.treasury.Address())

	err = a.orch.Run(ctx)
	if errors.Is(err, context.Canceled) {
		slog.Warn("Interrupt received, shutting down...")
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("Patron stopped", "status", a.orch.Status())
	return nil
}

func runSingleRound(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, withSigner)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.orch.Seed(ctx); err != nil {
		return err
	}

	theme := a.orch.Theme(a.orch.State().Round)
	if len(args) == 1 {
		theme = args[0]
	}

	result, err := a.orch.RunRound(ctx, theme)
	if err != nil && !errors.Is(err, orchestrator.ErrInsufficientFunds) {
		return err
	}
	if printErr := printJSON(cmd.OutOrStdout(), result); printErr != nil {
		return printErr
	}
	return err
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, readOnly)
	if err != nil {
		return err
	}
	defer a.Close()

	candidates, err := a.scanner.Scan(ctx, models.NewRoundState(0), cfg.Scan.MaxResults)
	if err != nil && len(candidates) == 0 {
		return err
	}
	if err != nil {
		slog.Warn("Scan finished early", "error", err, "found", len(candidates))
	}
	return printJSON(cmd.OutOrStdout(), candidates)
}

// assessmentView is the printed form of an assessment
type assessmentView struct {
	Address   common.Address   `json:"address"`
	Decision  models.Decision  `json:"decision,omitempty"`
	Eligible  bool             `json:"eligible"`
	Score     *models.Score    `json:"score,omitempty"`
	AmountETH *decimal.Decimal `json:"amount_eth,omitempty"`
	Profile   models.Profile   `json:"profile"`
	Grant     *models.Grant    `json:"grant,omitempty"`
}

func newAssessmentView(a orchestrator.Assessment, grant *models.Grant) assessmentView {
	v := assessmentView{
		Address:  a.Candidate.Address,
		Decision: a.Decision,
		Eligible: a.Eligible(),
		Score:    a.Score,
		Profile:  a.Profile,
		Grant:    grant,
	}
	if a.Eligible() {
		amount := a.Amount
		v.AmountETH = &amount
	}
	return v
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, readOnly)
	if err != nil {
		return err
	}
	defer a.Close()

	assessment := a.orch.Assess(ctx, models.Candidate{
		Address:      addr,
		Source:       models.SourceManual,
		DiscoveredAt: time.Now().UTC(),
	})
	return printJSON(cmd.OutOrStdout(), newAssessmentView(assessment, nil))
}

func runDisburse(cmd *cobra.Command, args []string) error {
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, withSigner)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.orch.Seed(ctx); err != nil {
		return err
	}

	assessment, grant, err := a.orch.Grant(ctx, addr)
	if printErr := printJSON(cmd.OutOrStdout(), newAssessmentView(assessment, grant)); printErr != nil {
		return printErr
	}
	return err
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, withTreasury)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.treasury.Status(ctx)
	if err != nil {
		return err
	}

	out := map[string]interface{}{
		"treasury":            a.treasury.Address(),
		"patron":              status.Patron,
		"current_round":       status.CurrentRound,
		"next_theme":          a.orch.Theme(status.CurrentRound),
		"grant_count":         status.GrantCount,
		"treasury_balance":    ledger.WeiToEther(status.Balance),
		"total_disbursed_eth": ledger.WeiToEther(status.TotalDisbursed),
	}
	if wallet, err := a.treasury.Wallet(); err == nil {
		out["wallet"] = wallet
		if balance, err := a.treasury.WalletBalance(ctx); err == nil {
			out["wallet_balance"] = ledger.WeiToEther(balance)
		} else {
			slog.Warn("Failed to read wallet balance", "error", err)
		}
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
