package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/thedudeontitan/ouro-fi/internal/app"
	"github.com/thedudeontitan/ouro-fi/internal/engine"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	// 4. Price Feed + Liquidation Monitor (live mode)
	if bootstrap.Feed != nil {
		if err := bootstrap.Feed.Connect(ctx); err != nil {
			slog.Error("Failed to start price feed", slog.Any("error", err))
		}
		defer bootstrap.Feed.Disconnect()

		monitor := engine.NewMonitor(bootstrap.Engine, bootstrap.Feed.Updates())
		go monitor.Run(ctx)
		slog.InfoContext(ctx, "✅ Liquidation monitor started")
	}

	slog.InfoContext(ctx, "✨ Ouro Perpetuals Engine fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")

	// Drain in-flight settlement submissions before releasing the journal.
	bootstrap.Engine.Wait()
}
