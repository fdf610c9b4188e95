// Package main is the entry point for the Stockfolio portfolio tracker.
//
// The application follows a modular layout:
// - Repositories own SQL access, one database file per profile
// - Services own business logic and transaction boundaries
// - HTTP handlers own the API surface
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"stockfolio/internal/config"
	"stockfolio/internal/database"
	"stockfolio/internal/modules/activity"
	"stockfolio/internal/modules/admin"
	"stockfolio/internal/modules/auth"
	"stockfolio/internal/modules/backup"
	"stockfolio/internal/modules/ledger"
	"stockfolio/internal/modules/marketdata"
	"stockfolio/internal/modules/portfolio"
	portfoliohandlers "stockfolio/internal/modules/portfolio/handlers"
	"stockfolio/internal/modules/reporting"
	"stockfolio/internal/modules/watchlists"
	"stockfolio/internal/scheduler"
	"stockfolio/internal/server"
	"stockfolio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Stockfolio")

	// Three databases, one per durability profile:
	// - ledger.db: holdings, realized transactions and the activity log.
	//   Disposal writes span these tables, so they share a file and commit
	//   in a single transaction.
	// - app.db: users and watchlists.
	// - cache.db: rebuildable quote cache.
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	appDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "app.db"),
		Profile: database.ProfileStandard,
		Name:    "app",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open app database")
	}
	defer appDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{ledgerDB, appDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to apply schema")
		}
	}

	// Repositories
	holdingRepo := portfolio.NewHoldingRepository(ledgerDB.Conn(), log)
	realizedRepo := ledger.NewRealizedRepository(ledgerDB.Conn(), log)
	activityRepo := activity.NewRepository(ledgerDB.Conn(), log)
	userRepo := auth.NewRepository(appDB.Conn(), log)
	watchlistRepo := watchlists.NewRepository(appDB.Conn(), log)
	adminRepo := admin.NewRepository(ledgerDB.Conn(), appDB.Conn(), log)

	// Price oracle: Alpha Vantage behind the persistent quote cache
	provider := marketdata.NewProvider(cfg.QuoteAPIURL, cfg.QuoteAPIKey, log)
	quoteCache := marketdata.NewQuoteCache(cacheDB.Conn(), cfg.QuoteCacheTTL, log)
	oracle := marketdata.NewCachedOracle(provider, quoteCache)

	// Services
	recorder := activity.NewRecorder(activityRepo, userRepo, log)
	ledgerService := portfolio.NewLedgerService(
		holdingRepo, realizedRepo, ledgerDB.Conn(), oracle, recorder, cfg.PriceTimeout, log,
	)
	reportingService := reporting.NewService(holdingRepo, realizedRepo, oracle, cfg.PriceTimeout, log)
	authService := auth.NewService(userRepo, cfg.JWTSecret, cfg.TokenTTL, log)
	adminService := admin.NewService(adminRepo, userRepo, activityRepo, watchlistRepo, reportingService, log)

	// Handlers
	authHandler := auth.NewHandler(authService, userRepo, log)
	portfolioHandler := portfoliohandlers.NewHandler(ledgerService, reportingService, log)
	watchlistHandler := watchlists.NewHandler(watchlistRepo, log)
	marketDataHandler := marketdata.NewHandler(oracle, cfg, log)
	adminHandler := admin.NewHandler(adminService, log)

	srv := server.New(server.Config{
		Log:               log,
		Cfg:               cfg,
		Port:              cfg.Port,
		DevMode:           cfg.DevMode,
		AuthService:       authService,
		AuthHandler:       authHandler,
		PortfolioHandler:  portfolioHandler,
		WatchlistsHandler: watchlistHandler,
		MarketDataHandler: marketDataHandler,
		AdminHandler:      adminHandler,
	})

	// Background jobs
	sched := scheduler.New(log)
	pruneJob := marketdata.NewPruneJob(quoteCache, log)
	if err := sched.AddJob("0 */10 * * * *", pruneJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache prune job")
	}
	// Drop quotes that went stale while the server was down.
	if err := sched.RunNow(pruneJob); err != nil {
		log.Warn().Err(err).Msg("Startup cache prune failed")
	}

	if cfg.Backup.Enabled() {
		backupJob, err := backup.NewJob(context.Background(), cfg.DataDir, cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup job")
		}
		if err := sched.AddJob(cfg.Backup.Schedule, backupJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	} else {
		log.Info().Msg("Backups disabled (no bucket configured)")
	}

	sched.Start()
	defer sched.Stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
