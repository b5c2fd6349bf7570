package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adebayof/monievault-backend/internal/adapter/httpapi"
	"github.com/adebayof/monievault-backend/internal/adapter/repository/memory"
	"github.com/adebayof/monievault-backend/internal/adapter/repository/postgres"
	"github.com/adebayof/monievault-backend/internal/config"
	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/adebayof/monievault-backend/internal/logger"
	"github.com/adebayof/monievault-backend/internal/usecase/activation"
	"github.com/adebayof/monievault-backend/internal/usecase/authgate"
	"github.com/adebayof/monievault-backend/internal/usecase/ledger"
	"github.com/adebayof/monievault-backend/internal/usecase/notify"
	"github.com/adebayof/monievault-backend/internal/usecase/seeder"
	"github.com/adebayof/monievault-backend/internal/usecase/wizard"
)

func main() {
	// 1. Configuration and logging
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	// 2. Storage: Postgres by default, the in-memory store in dev mode
	var (
		uow          domain.UnitOfWork
		accounts     domain.AccountRepository
		plans        domain.PlanRepository
		positions    domain.PositionRepository
		transactions domain.TransactionRepository
		outbox       domain.OutboxRepository
	)
	if cfg.DevMode {
		logger.L.Info("running in dev mode with the in-memory store")
		store := memory.NewStore()
		uow = store
		accounts = store.Accounts()
		plans = store.Plans()
		positions = store.Positions()
		transactions = store.Transactions()
		outbox = store.Outbox()
	} else {
		db, err := postgres.NewDB(cfg.DatabaseURL)
		if err != nil {
			logger.L.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(cfg.MigrationsPath); err != nil {
			logger.L.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		uow = postgres.NewUnitOfWork(db)
		accounts = postgres.NewAccountRepository(db)
		plans = postgres.NewPlanRepository(db)
		positions = postgres.NewPositionRepository(db)
		transactions = postgres.NewTransactionRepository(db)
		outbox = postgres.NewOutboxRepository(db)
	}

	// 3. Seed the default plan catalog
	ctx := context.Background()
	if err := seeder.NewPlanSeeder(plans).Seed(ctx); err != nil {
		logger.L.Error("failed to seed plans", "error", err)
		os.Exit(1)
	}
	logger.L.Info("plan catalog seeded")

	// 4. Services
	engine := ledger.NewEngine(uow, transactions, plans, positions)
	gate := authgate.NewPINGate(accounts)
	wizardManager := wizard.NewManager(engine, gate)

	var sender notify.EmailSender
	if cfg.DevMode {
		sender = &notify.LogSender{Logger: logger.L}
	} else {
		sender = &notify.SMTPSender{
			Addr:     cfg.SMTPAddr,
			Host:     cfg.SMTPHost,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SenderMail,
			FromName: cfg.SenderName,
		}
	}
	activationService := activation.NewService(accounts, authgate.NewOTPService(), sender)

	// 5. Outbox dispatcher
	dispatcherCtx, stopDispatcher := context.WithCancel(ctx)
	defer stopDispatcher()
	dispatcher := notify.NewDispatcher(outbox, sender, logger.L)
	go dispatcher.Run(dispatcherCtx)

	// 6. HTTP server
	api := httpapi.NewServer(wizardManager, activationService, accounts, plans, positions, transactions)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(cfg.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.L.Info("HTTP server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(server, stopDispatcher)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(server *http.Server, stopDispatcher context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.L.Info("shutting down", "signal", sig.String())

	stopDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("graceful shutdown failed", "error", err)
	}
	logger.L.Info("server stopped")
}
