package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"

	"tonvault/internal/api"
	"tonvault/internal/blockchain/evm"
	"tonvault/internal/blockchain/tonchain"
	"tonvault/internal/config"
	"tonvault/internal/database"
	"tonvault/internal/listener"
	"tonvault/internal/monitor"
	"tonvault/internal/service"
	"tonvault/internal/vault"
	"tonvault/internal/worker"
)

func init() {
	//nolint:errcheck
	godotenv.Load()
}

func main() {
	logger, err := initLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting TON Vault service")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("db_host", cfg.Database.Host),
		zap.String("network", cfg.TON.Network),
		zap.String("vault", cfg.TON.VaultAddress))

	db, err := database.Connect(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	migrationPath := "internal/database/migrations/001_schema.sql"
	if err := database.RunMigrations(db, migrationPath); err != nil {
		logger.Warn("Failed to run migrations (may already be applied)", zap.Error(err))
	} else {
		logger.Info("Database migrations applied successfully")
	}

	var vaultAddr *address.Address
	if cfg.TON.VaultAddress != "" {
		vaultAddr, err = address.ParseAddr(cfg.TON.VaultAddress)
		if err != nil {
			logger.Fatal("Invalid vault address", zap.String("vault", cfg.TON.VaultAddress), zap.Error(err))
		}
	}

	// Lite client: vault state reads and the event listener
	dialCtx, dialCancel := context.WithTimeout(context.Background(), time.Minute)
	tonClient, err := tonchain.Dial(dialCtx, cfg.TON.ConfigURL, logger)
	dialCancel()
	if err != nil {
		logger.Error("TON lite client unavailable, vault reads and listener disabled", zap.Error(err))
		tonClient = nil
	}

	var vaultReader service.VaultReader
	if tonClient != nil && vaultAddr != nil {
		vaultReader = vault.NewClient(vault.NewLiteReader(tonClient.API()), vaultAddr, logger)
	}

	var txReader service.TxStatusReader
	if cfg.EVM.RPCEndpoint != "" {
		evmClient, err := evm.NewClient(cfg.EVM, logger)
		if err != nil {
			logger.Fatal("Failed to create EVM client", zap.Error(err))
		}
		defer evmClient.Close()
		txReader = evmClient
	}

	indexer := monitor.NewIndexerClient(cfg.Indexer.BaseURL, cfg.Indexer.APIKey, cfg.Indexer.Timeout, logger)

	monitorService := service.NewMonitorService(db, indexer, cfg.Monitor, logger)
	swapService := service.NewSwapService(vaultReader, vaultAddr, logger)
	eventService := service.NewEventService(db, logger)
	evmService := service.NewEVMService(txReader, cfg.EVM, logger)

	logger.Info("Services initialized")

	apiHandler := api.NewHandler(monitorService, swapService, eventService, evmService, logger)
	router := api.SetupRouter(apiHandler, logger)

	// tx-monitor requests block for a whole session
	sessionBudget := time.Duration(cfg.Monitor.TickBudget) * (cfg.Monitor.Interval + cfg.Monitor.CallTimeout)

	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: sessionBudget + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("addr", serverAddr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	var eventListener *listener.Listener
	if cfg.Listener.Enabled && tonClient != nil && vaultAddr != nil {
		eventListener = newListener(cfg, tonClient, vaultAddr, db, logger)
	} else if cfg.Listener.Enabled {
		logger.Warn("Event listener enabled but no lite client or vault address available")
	}

	sweeper := worker.NewSweeper(db, cfg.Monitor.SessionRetention, logger)

	workerManager, err := worker.NewWorkerManager(cfg, eventListener, sweeper, logger)
	if err != nil {
		logger.Fatal("Failed to initialize worker manager", zap.Error(err))
	}

	workerManager.Start()
	logger.Info("Workers started")

	logger.Info("Service initialized successfully",
		zap.String("status", "ready"),
		zap.Int("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("HTTP server error", zap.Error(err))
	case sig := <-quit:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	logger.Info("Shutting down service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// an in-flight delivery is allowed to finish
	if err := workerManager.Shutdown(max(10*time.Second, deliveryTimeout(cfg))); err != nil {
		logger.Error("Worker shutdown error", zap.Error(err))
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
		httpServer.Close()
	} else {
		logger.Info("HTTP server stopped gracefully")
	}

	logger.Info("Service stopped successfully")
}

func newListener(cfg *config.Config, tonClient *tonchain.Client, vaultAddr *address.Address, db *database.DB, logger *zap.Logger) *listener.Listener {
	sinks := listener.MultiSink{listener.NewStoreSink(db)}
	if cfg.Listener.WebhookURL != "" {
		sinks = append(sinks, listener.NewWebhookSink(listener.WebhookConfig{
			URL:          cfg.Listener.WebhookURL,
			Network:      cfg.TON.Network,
			VaultAddress: vaultAddr.String(),
			Timeout:      cfg.Listener.WebhookTimeout,
			MaxElapsed:   cfg.Listener.WebhookMaxElapsed,
		}, logger))
	}

	return listener.New(
		listener.NewLiteSource(tonClient, vaultAddr),
		db,
		sinks,
		listener.Config{
			VaultAddress: vaultAddr.String(),
			StartLT:      cfg.Listener.StartLT,
			PollInterval: cfg.Listener.PollInterval,
			PageSize:     cfg.Listener.BatchSize,

			FetchTimeout:    cfg.Listener.CallTimeout,
			DeliveryTimeout: deliveryTimeout(cfg),
		},
		logger,
	)
}

// deliveryTimeout covers one event: the store write plus every webhook retry
func deliveryTimeout(cfg *config.Config) time.Duration {
	return cfg.Listener.CallTimeout + cfg.Listener.WebhookMaxElapsed + cfg.Listener.WebhookTimeout
}

func initLogger() (*zap.Logger, error) {
	env := os.Getenv("ENV")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
