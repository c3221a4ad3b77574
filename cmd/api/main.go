package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/goledger/internal/adapter/handler"
	"github.com/ibrahimkeyboad/goledger/internal/adapter/storage"
	"github.com/ibrahimkeyboad/goledger/internal/core/config"
	"github.com/ibrahimkeyboad/goledger/internal/core/service"
	"github.com/ibrahimkeyboad/goledger/internal/core/worker"
)

func main() {
	cfg := config.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage: Postgres when DATABASE_URL is set, otherwise an in-memory
	// store so the service runs standalone (state is lost on restart).
	var (
		store    service.Store
		dbPool   *pgxpool.Pool
		webhooks handler.WebhookEnqueuer
	)
	if cfg.DatabaseURL != "" {
		if err := storage.RunMigrations(cfg.DatabaseURL); err != nil {
			slog.Error("Database migration failed", "error", err)
			os.Exit(1)
		}
		pool, err := storage.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Database connection failed", "error", err)
			os.Exit(1)
		}
		dbPool = pool
		store = storage.NewPostgresStore(pool)
		webhooks = storage.NewWebhookQueue(pool)
		slog.Info("Connected to Postgres")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store")
		store = storage.NewMemoryStore()
	}

	clock := service.SystemClock()
	accountService := service.NewAccountService(store, clock)
	transferService := service.NewTransferService(store, clock)
	historyService := service.NewHistoryService(store)

	accountHandler := &handler.AccountHandler{Service: accountService}
	transferHandler := &handler.TransferHandler{
		Service:    transferService,
		Webhooks:   webhooks,
		WebhookURL: cfg.WebhookURL,
	}
	transactionHandler := &handler.TransactionHandler{Service: historyService}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	app.Use(requestid.New())

	api := app.Group("/v1")
	api.Post("/accounts", accountHandler.CreateAccount)
	api.Get("/accounts/:id/balance", accountHandler.GetBalance)
	api.Put("/accounts/:id/balance", accountHandler.OverrideBalance)
	api.Post("/transfers", transferHandler.CreateTransfer)
	api.Get("/accounts/:id/transactions", transactionHandler.GetHistory)

	if dbPool != nil {
		worker.StartWebhookWorker(ctx, dbPool, cfg.WebhookSecret)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutting down server")

	cancel()
	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	if dbPool != nil {
		dbPool.Close()
		slog.Info("Database connection closed")
	}

	slog.Info("Server exited")
}
