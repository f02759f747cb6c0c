package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"
	"time"

	"riskCore/config"
	"riskCore/internal/adapters/binanceclient"
	"riskCore/internal/adapters/llm"
	"riskCore/internal/adapters/logger"
	"riskCore/internal/adapters/metrics"
	"riskCore/internal/adapters/paper"
	"riskCore/internal/adapters/redisstore"
	"riskCore/internal/adapters/sqlite"
	"riskCore/internal/app"
	"riskCore/internal/levels"
	"riskCore/internal/monitor"
	"riskCore/internal/ports"
	"riskCore/internal/risk"
	"riskCore/internal/strategy"
	"riskCore/internal/validation"
)

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	var appLogger ports.Logger
	if cfg.LogFormat == "json" {
		zl, err := logger.NewZapLogger(cfg.LogLevel)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize JSON logger: %v", err)
		}
		defer zl.Sync() //nolint:errcheck
		appLogger = zl
	} else {
		appLogger = logger.NewStdLogger(cfg.LogLevel)
	}
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
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
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized")

	// 4. Select the position snapshot store
	var snapshots ports.SnapshotStore = repo
	if cfg.SnapshotBackend == config.SnapshotRedis {
		store, err := redisstore.New(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, appLogger)
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to connect to Redis snapshot store")
			log.Fatalf("FATAL: Failed to connect to Redis snapshot store: %v", err)
		}
		defer store.Close()
		snapshots = store
	}
	appLogger.Info(ctx, "Snapshot store selected", map[string]interface{}{"backend": cfg.SnapshotBackend})

	// 5. Metrics
	var appMetrics ports.Metrics = ports.NopMetrics{}
	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus("riskcore")
		appMetrics = prom
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			appLogger.Info(ctx, "Metrics endpoint listening", map[string]interface{}{"addr": cfg.MetricsAddr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.Error(ctx, err, "Metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// 6. Initialize Market Data Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := binanceClient.Ping(ctx); err != nil {
		appLogger.Warn(ctx, "Binance ping failed, continuing", map[string]interface{}{"error": err.Error()})
	}
	executor := paper.NewExecutor(binanceClient, cfg.PaperSlippagePct/100, appLogger)
	appLogger.Info(ctx, "Market data client and paper executor initialized")

	// 7. Initialize decision core components
	detector, err := levels.NewDetector(cfg.Levels, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize level detector: %v", err)
	}
	strat, err := strategy.New(cfg.Strategy, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize strategy: %v", err)
	}
	riskManager, err := risk.NewManager(cfg.Risk, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize risk manager: %v", err)
	}
	gate, err := validation.New(cfg.Validation, llm.NewFactory(appLogger), appLogger, appMetrics)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize validation gate: %v", err)
	}
	positionMonitor, err := monitor.New(riskManager, appLogger, appMetrics)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize position monitor: %v", err)
	}
	appLogger.Info(ctx, "Decision core initialized")

	// 8. Initialize Application Service
	service, err := app.NewService(app.Config{
		Symbol:           cfg.Symbol,
		Interval:         cfg.Interval,
		QuoteAsset:       cfg.QuoteAsset,
		AccountBalance:   cfg.AccountBalance,
		KlineLimit:       cfg.KlineLimit,
		AnalysisInterval: cfg.AnalysisInterval,
		PollInterval:     cfg.PollInterval,
		SessionEnd:       cfg.SessionEnd,
		CloseOnStop:      cfg.CloseOnStop,
		TrailingEnabled:  cfg.TrailingEnabled,
	}, app.Dependencies{
		Market:    binanceClient,
		Executor:  executor,
		Levels:    repo,
		Trades:    repo,
		Snapshots: snapshots,
		Detector:  detector,
		Strategy:  strat,
		Risk:      riskManager,
		Gate:      gate,
		Monitor:   positionMonitor,
		Logger:    appLogger,
		Metrics:   appMetrics,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize service")
		log.Fatalf("FATAL: Failed to initialize service: %v", err)
	}

	// 9. Start the Service
	if err := service.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Service exited with error")
		log.Fatalf("FATAL: Service exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}
