// Package app wires configuration, storage, and the risk engine together
// during daemon startup.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/thedudeontitan/ouro-fi/internal/engine"
	"github.com/thedudeontitan/ouro-fi/internal/infra"
	"github.com/thedudeontitan/ouro-fi/internal/storage"
	"github.com/thedudeontitan/ouro-fi/pkg/quant"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Journal *storage.Journal
	Oracle  *infra.Oracle
	Engine  *engine.Engine
	Feed    *infra.Feed // nil in paper mode

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization: config, logger, workspace
// directories, the settlement journal, and the engine with mode-appropriate
// price, collateral, and ledger sources.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	slog.Info("🚀 Bootstrapping Ouro Perpetuals Engine...")

	// 1. Load Config (Dynamic Path Resolution)
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	infra.PrintBanner(cfg)

	// 3. Workspace Layout - _workspace/data/{mode}/journal.db
	mode := strings.ToLower(cfg.Trading.Mode)
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", mode)
	logDir := filepath.Join(workDir, "logs", mode)

	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := infra.EnsureDir(logDir); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	// 3.1 Singleton Instance Lock. Two daemons on one journal corrupt the
	// position sequence; fail fast instead.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	// 4. Settlement Journal (Single-Writer WAL DB)
	dbPath := filepath.Join(dataDir, "journal.db")
	journal, err := storage.NewJournal(dbPath)
	if err != nil {
		return err
	}
	b.Journal = journal
	slog.Info("✅ Settlement journal initialized (WAL-mode)", "path", dbPath, "mode", mode)

	// 5. Engine with mode-appropriate sources
	b.Oracle = infra.NewOracle(cfg)

	engCfg := engine.Config{
		MinLeverage:    cfg.Trading.MinLeverage,
		MaxLeverage:    cfg.Trading.MaxLeverage,
		SafetyRatioBps: cfg.Trading.SafetyRatioBps,
		TradingFeeBps:  cfg.Trading.TradingFeeBps,
		CallTimeout:    cfg.CallTimeout(),
		SettleAttempts: cfg.Trading.SettleAttempts,
		Symbols:        cfg.Oracle.Symbols,
	}

	if mode == "live" {
		b.Engine = engine.New(engCfg, b.Oracle,
			infra.NewWalletClient(cfg),
			infra.NewLedgerClient(cfg),
			storage.NewBook(), journal)
		b.Feed = infra.NewFeed(cfg, b.Oracle)
		slog.Info("✅ Engine wired for live settlement")
	} else {
		paperBal := cfg.Collateral.PaperBalance
		if paperBal == "" {
			paperBal = "10000"
		}
		b.Engine = engine.New(engCfg, b.Oracle,
			infra.NewUniformCollateral(quant.ToAmountE6Str(paperBal)),
			infra.NewMemoryLedger(),
			storage.NewBook(), journal)
		slog.Info("✅ Engine wired for paper trading", "balance", paperBal)
	}

	// 6. Restore the position id sequence across restarts
	if err := b.Engine.RestoreSequence(ctx); err != nil {
		return err
	}

	return nil
}

// Shutdown releases the journal and the instance lock. Callers drain the
// engine's in-flight settlements first.
func (b *Bootstrap) Shutdown() {
	if b.Journal != nil {
		if err := b.Journal.Close(); err != nil {
			slog.Error("Journal close failed", slog.Any("error", err))
		}
	}
	if b.unlock != nil {
		b.unlock()
	}
}
