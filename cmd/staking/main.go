package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/rs/cors"

	cfg "github.com/sand/definition-staking/backend/config"
	"github.com/sand/definition-staking/backend/internal/authority"
	"github.com/sand/definition-staking/backend/internal/authority/clients"
	"github.com/sand/definition-staking/backend/internal/core/ports"
	"github.com/sand/definition-staking/backend/internal/handlers"
	"github.com/sand/definition-staking/backend/internal/models"
	"github.com/sand/definition-staking/backend/internal/shared"
	"github.com/sand/definition-staking/backend/internal/usecases"
	"github.com/sand/definition-staking/backend/internal/usecases/mocked"
	"github.com/sand/definition-staking/backend/internal/usecases/repository"
	"github.com/sand/definition-staking/backend/internal/workers"
	"github.com/sand/definition-staking/backend/pkg/database"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 15
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 5
)

type walletStore interface {
	usecases.WalletRecordStore
	workers.UserLister
}

// stores groups the persistence backends so the in-memory fallback can stand in for Postgres.
type stores struct {
	wallets     walletStore
	definitions usecases.DefinitionsRepository
	deployments usecases.DeploymentsRepository
	close       func()
}

func main() {
	time.Local = time.UTC

	// Parse configuration
	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Setup logging
	opts := &slog.HandlerOptions{
		Level: config.Log.Level,
	}

	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	logger.Warn("Starting application with configuration",
		"debug", config.App.Debug,
		"environment", config.App.Environment,
		"server_port", config.HTTP.Port,
		"provider_url", config.Authority.APIURL,
		"sync_interval_minutes", config.Workers.SyncIntervalMinutes)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	st, err := initStores(logger, config)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		log.Fatal(err)
	}
	defer st.close()

	// Wallet provider
	provider, err := initProvider(logger, config)
	if err != nil {
		logger.Error("Failed to initialize wallet provider", "error", err)
		log.Fatal(err)
	}
	view := authority.NewAuthorityService(logger, provider)

	// Create usecases and components
	reconciler := usecases.NewReconciler(logger, view, st.wallets)
	executor := usecases.NewOperationExecutor(logger, view, st.wallets)
	coordinator := usecases.NewSyncCoordinator(logger, reconciler, executor)

	walletService := usecases.NewWalletService(logger, st.wallets, view, view, coordinator)
	definitionService := usecases.NewDefinitionService(logger, st.definitions)
	contractService := usecases.NewContractService(logger, st.definitions, st.deployments, walletService,
		config.Contract.Address, time.Duration(config.Contract.DeployDelayMS)*time.Millisecond)

	// Status stream
	hub := models.NewStatusHub(logger)
	go hub.Run(ctx)
	unsubscribe := coordinator.Subscribe(hub.Publish)
	defer unsubscribe()

	// Initialize and run workers
	initAndRunWorkers(ctx, logger, config, coordinator, st.wallets)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   config.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Create handlers
	httpHandler := handlers.NewHTTPHandler(logger, coordinator, walletService, definitionService, contractService)
	wsHandler := handlers.NewWebSocketHandler(logger, coordinator, hub, c.OriginAllowed)

	// Create router
	router := mux.NewRouter()

	// Register WebSocket routes before HTTP routes
	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      c.Handler(router),
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatal(err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Stop workers and the status hub
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer cancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server exited properly")
}

// initStores connects to Postgres and runs migrations. Without a database URL the in-memory
// stores are used and nothing survives a restart.
func initStores(logger *slog.Logger, config *cfg.Config) (*stores, error) {
	if config.DB.DatabaseURL == "" {
		logger.Warn("No database configured, using in-memory stores")
		definitionStore := mocked.NewDefinitionStore()
		return &stores{
			wallets:     mocked.NewWalletStore(),
			definitions: definitionStore,
			deployments: definitionStore,
			close:       func() {},
		}, nil
	}

	pg, err := database.New(config,
		database.MaxPoolSize(config.DB.PoolMax),
		database.ConnTimeout(config.DB.ConnectTimeout),
		database.HealthCheckPeriod(config.DB.HealthCheckPeriod),
		database.Isolation(pgx.ReadCommitted),
	)
	if err != nil {
		return nil, err
	}

	migrationsPath := database.ResolveMigrationsPath(config.DB.MigrationsPath)
	logger.Info("Running database migrations", "path", migrationsPath)
	if err = database.RunMigrations(logger, config.DB.DatabaseURL, migrationsPath); err != nil {
		pg.Close()
		return nil, err
	}
	logger.Info("Database migrations completed successfully")

	return &stores{
		wallets:     repository.NewWalletsRepository(logger, pg),
		definitions: repository.NewDefinitionsRepository(logger, pg),
		deployments: repository.NewDeploymentsRepository(logger, pg),
		close:       pg.Close,
	}, nil
}

func initProvider(logger *slog.Logger, config *cfg.Config) (authority.Provider, error) {
	if config.Authority.APIURL == "" || shared.IsMockProviderMode() {
		logger.Warn("Wallet provider disabled, using in-memory provider")
		return mocked.NewDerivingProvider(logger, config.Authority.WalletMnemonic)
	}

	timeout := time.Duration(config.Authority.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = ports.ProviderClientTimeout
	}

	logger.Info("Wallet provider client initialized", "url", config.Authority.APIURL, "timeout", timeout.String())
	return clients.NewProviderClient(logger, config.Authority.APIURL, config.Authority.AppID, config.Authority.AppSecret, timeout), nil
}

func initAndRunWorkers(
	ctx context.Context,
	logger *slog.Logger,
	config *cfg.Config,
	syncer ports.WalletSyncer,
	users workers.UserLister,
) {
	walletSync := workers.NewWalletSyncWorker(
		logger,
		syncer,
		users,
		time.Duration(config.Workers.SyncIntervalMinutes)*time.Minute,
		config.Workers.MaxConcurrentSyncs,
	)

	// Start wallet sync worker in a goroutine
	go func() {
		if err := walletSync.Start(ctx); err != nil {
			logger.Error("Wallet sync worker failed", "error", err)
		}
	}()

	logger.Info("All workers initialized and started")
}
