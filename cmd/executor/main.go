// Package main is the entry point for the scheduled execution worker.
//
// Each invocation runs one execution pass: pick up due schedules, check
// wallet balances and budgets, purchase through the gateway, and advance
// or complete each schedule. In AWS the binary runs as a Lambda triggered
// by an EventBridge timer; locally it loops on EXECUTOR_INTERVAL.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"airvault/internal/budget"
	"airvault/internal/cache"
	"airvault/internal/config"
	"airvault/internal/db"
	"airvault/internal/executor"
	"airvault/internal/external"
	"airvault/internal/metrics"
	"airvault/internal/queue"
	"airvault/internal/rules"
	"airvault/internal/schedule"
)

// PassOutput is returned from each Lambda invocation so the trigger's
// destination (and CloudWatch logs) record what the pass did.
type PassOutput struct {
	Processed  int    `json:"processed"`
	DurationMS int64  `json:"duration_ms"`
	StartedAt  string `json:"started_at"`
}

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

	logger := newLogger(cfg.LogLevel).With("service", "executor")
	ctx := context.Background()

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

	runner := executor.New(executor.Config{
		Schedules: schedule.New(schedule.Config{
			Store:  db.NewScheduleRepository(pool),
			Logger: logger,
		}),
		Rules: rules.New(rules.Config{
			Store:  db.NewRuleRepository(pool),
			Logger: logger,
		}),
		Phones: db.NewPhoneRepository(pool),
		Ledger: cache.NewBalanceCache(
			external.NewLedgerClient(external.LedgerConfig{
				BaseURL: cfg.Ledger.BaseURL,
				APIKey:  cfg.Ledger.APIKey.Unmask(),
			}),
			rdb, cfg.Redis.BalanceTTL, logger,
		),
		Gateway: external.NewGatewayClient(external.GatewayConfig{
			BaseURL: cfg.Gateway.BaseURL,
			APIKey:  cfg.Gateway.APIKey.Unmask(),
		}),
		Budget: budget.New(budget.Config{
			Store:      db.NewBudgetRepository(pool),
			Dispatcher: dispatcher,
			Logger:     logger,
		}),
		Transactions: db.NewTransactionRepository(pool),
		Dispatcher:   dispatcher,
		Metrics:      metrics.NewCloudWatchRecorder(cwClient, logger),
		Logger:       logger,
		BatchSize:    cfg.Executor.BatchSize,
		Concurrency:  cfg.Executor.Concurrency,
	})

	if isLambdaEnvironment() {
		lambda.Start(func(ctx context.Context) (PassOutput, error) {
			return runPass(ctx, runner, logger)
		})
		return nil
	}

	return runLocalLoop(ctx, runner, cfg.Executor.Interval, logger)
}

// runPass executes a single pass and reports the outcome.
func runPass(ctx context.Context, runner *executor.Runner, logger *slog.Logger) (PassOutput, error) {
	started := time.Now()
	processed, err := runner.RunOnce(ctx)
	out := PassOutput{
		Processed:  processed,
		DurationMS: time.Since(started).Milliseconds(),
		StartedAt:  started.UTC().Format(time.RFC3339),
	}
	if err != nil {
		logger.Error("execution pass failed", "processed", processed, "error", err)
		return out, err
	}
	logger.Info("execution pass complete", "processed", processed, "duration_ms", out.DurationMS)
	return out, nil
}

// runLocalLoop ticks at the configured interval until interrupted. Errors
// from a pass are logged and the loop keeps going; one bad pass must not
// take down the worker.
func runLocalLoop(ctx context.Context, runner *executor.Runner, interval time.Duration, logger *slog.Logger) error {
	logger.Info("executor running locally", "interval", interval.String())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := runPass(ctx, runner, logger); err != nil {
			logger.Warn("pass will retry at the next tick", "error", err)
		}
		select {
		case sig := <-shutdown:
			logger.Info("shutdown signal received", "signal", sig.String())
			return nil
		case <-ticker.C:
		}
	}
}

func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
