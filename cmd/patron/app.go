package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"patron/internal/config"
	"patron/internal/evaluator"
	"patron/internal/explorer"
	"patron/internal/funder"
	"patron/internal/ledger"
	"patron/internal/ledger/retry"
	"patron/internal/notifier"
	"patron/internal/orchestrator"
	"patron/internal/scanner"
	"patron/internal/storage"
	"patron/internal/verifier"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// app holds the wired pipeline for one command invocation
type app struct {
	cfg        *config.Config
	node       *ledger.Node
	treasury   *ledger.Treasury // nil when no treasury is configured
	explorer   *explorer.Client
	scanner    scanner.Scanner
	repository storage.Repository
	notifier   notifier.Notifier
	orch       *orchestrator.Orchestrator

	closers []func()
}

// mode selects how much of the pipeline a command needs
type mode int

const (
	readOnly mode = iota // scan, evaluate
	withTreasury         // status, signs only when a key is configured
	withSigner           // run, round, disburse
)

func newApp(ctx context.Context, cfg *config.Config, m mode) (*app, error) {
	switch m {
	case withSigner:
		if err := cfg.ValidateSigner(); err != nil {
			return nil, err
		}
	case withTreasury:
		if err := cfg.ValidateTreasury(); err != nil {
			return nil, err
		}
	}

	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// 1. Ledger
	strategy := retry.NewStrategy(cfg.Retry)
	node, err := ledger.DialNode(ctx, cfg.RPCURL, strategy)
	if err != nil {
		return nil, err
	}
	a.node = node
	a.closers = append(a.closers, node.Close)

	var ignore []common.Address
	if cfg.TreasuryAddress != "" && cfg.ValidateTreasury() == nil {
		var signer *bind.TransactOpts
		if m == withSigner || (m == withTreasury && cfg.PrivateKey != "") {
			signer, err = ledger.NewSigner(ctx, node, cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
		}
		a.treasury = ledger.NewTreasury(cfg.Treasury(), node, signer, ledger.WithConfirmTimeout(cfg.Round.ConfirmTimeout))
		ignore = append(ignore, cfg.Treasury())
		if wallet, err := a.treasury.Wallet(); err == nil {
			ignore = append(ignore, wallet)
			slog.Info("Signer ready", "wallet", wallet.Hex(), "treasury", cfg.Treasury().Hex())
		}
	}

	// 2. Explorer and discovery
	httpClient := &http.Client{Timeout: 15 * time.Second}
	a.explorer = explorer.NewClient(cfg.ExplorerURL, cfg.ExplorerAPIKey, httpClient, explorer.WithRetry(strategy))

	a.scanner, err = scanner.New(cfg.Scan, node, a.explorer, scanner.Options{Ignore: ignore})
	if err != nil {
		return nil, err
	}

	// 3. Audit storage
	if cfg.DatabaseURL != "" {
		repo, err := storage.NewPostgresRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.repository = repo
		slog.Info("Database connected successfully")
	} else {
		a.repository = storage.NewMemoryRepository()
	}
	a.closers = append(a.closers, func() { a.repository.Close() })

	// 4. Notifiers
	if err := a.wireNotifiers(httpClient); err != nil {
		return nil, err
	}

	// 5. Orchestrator
	orchCfg, err := orchestrator.NewConfig(cfg)
	if err != nil {
		return nil, err
	}
	deps := orchestrator.Deps{
		Scanner:    a.scanner,
		Verifier:   verifier.New(node, a.explorer, cfg.Verify),
		Evaluator:  evaluator.New(evaluator.Params{Weights: cfg.Weights, MinCodeSize: cfg.Grant.MinBytecodeSize}),
		Notifier:   a.notifier,
		Repository: a.repository,
	}
	if a.treasury != nil {
		deps.Treasury = a.treasury
		deps.Funder = funder.New(a.treasury)
	}
	a.orch = orchestrator.New(deps, orchCfg)

	ok = true
	return a, nil
}

func (a *app) wireNotifiers(httpClient *http.Client) error {
	format := notifier.Formatter{ExplorerSite: a.cfg.ExplorerSite}
	notifiers := []notifier.Notifier{notifier.NewLog(format, slog.Default())}

	n := a.cfg.Notify
	if n.NeynarAPIKey != "" && n.NeynarSignerUUID != "" {
		notifiers = append(notifiers, notifier.NewFarcaster(n.NeynarURL, n.NeynarAPIKey, n.NeynarSignerUUID, format, httpClient))
		slog.Info("Farcaster notifier enabled")
	}
	if n.NATSURL != "" {
		bus, err := notifier.DialNATS(n.NATSURL, n.NATSSubject)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() {
			if err := bus.Close(); err != nil {
				slog.Warn("Failed to drain NATS connection", "error", err)
			}
		})
		notifiers = append(notifiers, bus)
		slog.Info("NATS notifier enabled", "url", n.NATSURL, "subject", n.NATSSubject)
	}

	a.notifier = notifier.NewMulti(notifiers...)
	return nil
}

// Close releases connections in reverse order of creation
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
