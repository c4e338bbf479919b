// Package main is the entry point for the usage-report worker.
//
// The usage-monitoring collaborator publishes balance/data usage reports to
// an SQS queue; this Lambda consumes them and feeds each report through the
// auto top-up evaluation path. Uses partial batch responses so a failed
// report is redelivered without replaying the rest of the batch.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
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
	"airvault/internal/types"
)

// Handler processes SQS usage-report batches.
type Handler struct {
	runner *executor.Runner
	logger *slog.Logger
}

// Handle consumes one SQS batch. Malformed messages are dropped (redelivery
// cannot fix them); reports that fail with a client-class error are dropped
// too, since the rule state that rejected them will reject the retry as
// well. Only infrastructure failures go back on the queue.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		logger := h.logger.With("message_id", record.MessageId)

		var report types.UsageReport
		if err := json.Unmarshal([]byte(record.Body), &report); err != nil {
			logger.Error("dropping malformed usage report", "error", err)
			continue
		}

		tx, err := h.runner.ProcessUsageReport(ctx, report)
		if err != nil {
			if !isRetryable(err) {
				logger.Warn("dropping usage report after non-retryable failure",
					"user_id", report.UserID, "error", err)
				continue
			}
			logger.Error("usage report processing failed, returning to queue",
				"user_id", report.UserID, "error", err)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}

		if tx == nil {
			// No enabled rule matched or the threshold was not crossed.
			continue
		}
		logger.Info("auto top-up triggered",
			"user_id", report.UserID,
			"transaction_id", tx.ID,
			"status", tx.Status,
		)
	}

	return response, nil
}

// isRetryable reports whether redelivering the message could succeed.
// Application errors that map to 4xx are deterministic rejections.
func isRetryable(err error) bool {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Code.HTTPStatus() >= http.StatusInternalServerError
	}
	return true
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

	logger := newLogger(cfg.LogLevel).With("service", "usage-worker")
	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})

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

	handler := &Handler{runner: runner, logger: logger}
	logger.Info("usage worker initialized", "queue", cfg.AWS.NotificationQueue)

	lambda.Start(handler.Handle)
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
