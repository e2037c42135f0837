package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/config"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/adapters/httpapi"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/adapters/logger"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/adapters/scheduler"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/adapters/sqlite"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/app"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/partition"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/policy"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewLogrusLogger(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Load Engine Policy
	pol, err := policy.Load(cfg.PolicyFile)
	if err == nil {
		pol.SetAmountPlaces(cfg.DecimalPlaces)
		err = pol.Validate()
	}
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to load engine policy", map[string]interface{}{"file": cfg.PolicyFile})
		log.Fatalf("FATAL: Failed to load engine policy: %v", err)
	}
	appLogger.Info(ctx, "Engine policy loaded", map[string]interface{}{"file": cfg.PolicyFile, "version": pol.Version})

	// 4. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized", map[string]interface{}{"path": cfg.DBPath})

	// 5. Initialize Engine Components
	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	components, err := app.NewComponents(pol, partition.NewSource(seed), cfg.SettleAfter)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize engine components")
		log.Fatalf("FATAL: Failed to initialize engine components: %v", err)
	}

	// 6. Initialize Application Service
	deps := components.Dependencies()
	deps.Logger = appLogger
	deps.Clock = ports.SystemTime{}
	deps.Deposits = repo
	deps.Plans = repo
	deps.Sessions = repo
	engine, err := app.NewEngineService(deps, app.Settings{
		SessionDuration: cfg.DemoDuration,
		TargetGain:      cfg.DemoTargetGain,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize engine service")
		log.Fatalf("FATAL: Failed to initialize engine service: %v", err)
	}
	appLogger.Info(ctx, "Engine service initialized", map[string]interface{}{"seed": seed, "tierTable": components.Tiers.Version()})

	// 7. Start the Reveal Scheduler (catch up first after downtime)
	sched, err := scheduler.New(ctx, scheduler.Config{Spec: cfg.TickSchedule, Timeout: 30 * time.Second}, engine, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize scheduler")
		log.Fatalf("FATAL: Failed to initialize scheduler: %v", err)
	}
	if report, err := sched.RunNow(); err != nil {
		appLogger.Warn(ctx, "Catch-up reveal pass finished with errors", map[string]interface{}{"error": err.Error()})
	} else {
		appLogger.Info(ctx, "Catch-up reveal pass finished", map[string]interface{}{
			"payouts": report.PayoutsRevealed, "plansCreated": report.PlansCreated, "trades": report.TradesRevealed,
		})
	}
	sched.Start()
	defer sched.Stop()

	// 8. Start the HTTP API
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler, err := httpapi.NewHandler(httpapi.Config{
		Engine: engine,
		Tiers:  components.Tiers,
		Clock:  ports.SystemTime{},
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize HTTP handler")
		log.Fatalf("FATAL: Failed to initialize HTTP handler: %v", err)
	}
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": cfg.HTTPAddr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 9. Wait for shutdown
	select {
	case <-ctx.Done():
		appLogger.Info(context.Background(), "Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			appLogger.Error(context.Background(), err, "HTTP server exited with error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, err, "HTTP server shutdown failed")
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
