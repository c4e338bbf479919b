// Package main is the entry point for the AirVault top-up engine API server.
//
// Cold start: load configuration, connect PostgreSQL (running migrations) and
// Redis, build the external gateway/ledger clients and the SQS notification
// dispatcher, assemble the engines, and mount the HTTP chassis. Runs as a
// standard HTTP server with graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"airvault/internal/api/handlers"
	"airvault/internal/budget"
	"airvault/internal/cache"
	"airvault/internal/config"
	"airvault/internal/core"
	"airvault/internal/db"
	"airvault/internal/executor"
	"airvault/internal/external"
	"airvault/internal/metrics"
	"airvault/internal/queue"
	"airvault/internal/rules"
	"airvault/internal/schedule"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("airvault API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	if err := db.Migrate(cfg.Database.URL.Unmask()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS configuration: %w", err)
	}
	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	dispatcher := queue.NewDispatcher(sqsClient, cfg.AWS.NotificationQueue, logger)
	recorder := metrics.NewCloudWatchRecorder(cwClient, logger)

	gateway := external.NewGatewayClient(external.GatewayConfig{
		BaseURL: cfg.Gateway.BaseURL,
		APIKey:  cfg.Gateway.APIKey.Unmask(),
	})
	ledger := cache.NewBalanceCache(
		external.NewLedgerClient(external.LedgerConfig{
			BaseURL: cfg.Ledger.BaseURL,
			APIKey:  cfg.Ledger.APIKey.Unmask(),
		}),
		rdb, cfg.Redis.BalanceTTL, logger,
	)

	phoneRepo := db.NewPhoneRepository(pool)
	ruleRepo := db.NewRuleRepository(pool)
	scheduleRepo := db.NewScheduleRepository(pool)
	budgetRepo := db.NewBudgetRepository(pool)
	txRepo := db.NewTransactionRepository(pool)

	ruleEngine := rules.New(rules.Config{Store: ruleRepo, Logger: logger})
	budgetTracker := budget.New(budget.Config{Store: budgetRepo, Dispatcher: dispatcher, Logger: logger})
	scheduleManager := schedule.New(schedule.Config{Store: scheduleRepo, Logger: logger})

	runner := executor.New(executor.Config{
		Schedules:    scheduleManager,
		Rules:        ruleEngine,
		Phones:       phoneRepo,
		Ledger:       ledger,
		Gateway:      gateway,
		Budget:       budgetTracker,
		Transactions: txRepo,
		Dispatcher:   dispatcher,
		Metrics:      recorder,
		Logger:       logger,
		BatchSize:    cfg.Executor.BatchSize,
		Concurrency:  cfg.Executor.Concurrency,
	})

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	srv.HealthProbes = []core.HealthProbe{
		core.ProbeFunc{ProbeName: "database", Fn: func(ctx context.Context) error { return pool.Ping(ctx) }},
		core.ProbeFunc{ProbeName: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}

	phoneHandler := handlers.NewPhoneHandler(phoneRepo, srv.Validator, logger)
	ruleHandler := handlers.NewRuleHandler(ruleEngine, srv.Validator, logger)
	scheduleHandler := handlers.NewScheduleHandler(scheduleManager, phoneRepo, srv.Validator, logger)
	budgetHandler := handlers.NewBudgetHandler(budgetTracker, srv.Validator, logger)
	topUpHandler := handlers.NewTopUpHandler(runner, txRepo, srv.Validator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		phoneHandler.RegisterRoutes,
		ruleHandler.RegisterRoutes,
		scheduleHandler.RegisterRoutes,
		budgetHandler.RegisterRoutes,
		topUpHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return serveHTTP(srv, cfg, logger)
}

// serveHTTP runs the server until a shutdown signal or listener error.
func serveHTTP(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return srv.Shutdown(ctx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
