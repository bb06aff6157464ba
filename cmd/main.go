package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"remit/config"
	"remit/internal/bank"
	"remit/internal/core"
	"remit/internal/http"
	"remit/internal/rates"
	"remit/internal/sqlite"
)

func main() {
	ctx := context.Background()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.Level(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.InfoContext(ctx, "Starting application")

	dbClient, err := sqlite.NewClient(cfg.Database)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create db client", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err = dbClient.Migrate(); err != nil {
		slog.ErrorContext(ctx, "failed to migrate database", "error", err)
		os.Exit(1)
	}

	ledgerStore := sqlite.NewLedgerStore(dbClient.DB())
	transactionStore := sqlite.NewTransactionStore(dbClient.DB())
	masterStore := sqlite.NewMasterAccountStore(dbClient.DB())

	bankClient := bank.NewClient(cfg.Bank, logger)
	rateProvider := rates.NewProvider(rates.NewHTTPSource(cfg.Rates), cfg.Rates, logger)

	ledger := core.NewLedger(ledgerStore, masterStore, logger)
	registry := core.NewMasterAccountRegistry(masterStore, bankClient, logger)

	pools, err := cfg.MasterAccounts()
	if err != nil {
		slog.ErrorContext(ctx, "invalid pool configuration", "error", err)
		os.Exit(1)
	}
	if err = registry.Seed(ctx, pools); err != nil {
		slog.ErrorContext(ctx, "failed to seed master accounts", "error", err)
		os.Exit(1)
	}

	orchestrator := core.NewOrchestrator(transactionStore, ledger, registry, rateProvider, bankClient, logger, cfg.Orchestrator)

	// Pick up whatever a previous process left mid-flight before taking
	// new traffic.
	if err = orchestrator.ResumeInFlight(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to resume in-flight transactions", "error", err)
		os.Exit(1)
	}

	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	reconciler := core.NewReconciler(ledger, registry, logger, cfg.Reconciler, cfg.Currencies())
	go reconciler.Run(jobCtx)
	go orchestrator.RunExpirer(jobCtx)

	handler := http.NewHandler(orchestrator, ledger, logger)
	httpServer := http.NewServer(handler, logger, cfg.HTTP)

	if err = httpServer.Start(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to start http server", "error", err)
		os.Exit(1)
	}

	<-stop

	logger.InfoContext(ctx, "Shutting down...")
	cancelJobs()

	if err = httpServer.Stop(ctx); err != nil {
		logger.ErrorContext(ctx, "Error stopping HTTP server", "error", err)
	}

	logger.InfoContext(ctx, "Application shutdown complete")
}
