// Package main is the entry point for the transaction archiver.
//
// Runs on a daily timer: transactions older than the retention window are
// exported to a gzip-compressed NDJSON file, then pruned from the hot
// table. The export happens before the delete so a failed write never
// loses rows.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/klauspost/compress/gzip"

	"airvault/internal/config"
	"airvault/internal/db"
	"airvault/internal/types"
)

// ArchivePayload lets an operator override the cutoff for a manual
// invocation, e.g. to re-run a window that failed.
type ArchivePayload struct {
	// RetentionDays overrides the configured retention when positive.
	RetentionDays int `json:"retention_days,omitempty"`
}

// ArchiveResult summarizes one archiver run.
type ArchiveResult struct {
	Cutoff   string `json:"cutoff"`
	Exported int    `json:"exported"`
	Deleted  int64  `json:"deleted"`
	File     string `json:"file,omitempty"`
}

// TransactionArchive is the slice of the transaction repository the
// archiver needs.
type TransactionArchive interface {
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*types.Transaction, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Handler archives and prunes aged transactions.
type Handler struct {
	transactions TransactionArchive
	outputDir    string
	retention    time.Duration
	batchSize    int
	logger       *slog.Logger
}

// Handle performs one archive pass: page through rows older than the
// cutoff in batches, appending each batch to the export file and pruning
// it once the compressed stream is flushed. A crash mid-pass loses no
// rows; the next run picks up where this one stopped.
func (h *Handler) Handle(ctx context.Context, payload ArchivePayload) (ArchiveResult, error) {
	retention := h.retention
	if payload.RetentionDays > 0 {
		retention = time.Duration(payload.RetentionDays) * 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-retention)
	result := ArchiveResult{Cutoff: cutoff.Format(time.RFC3339)}

	batch, err := h.transactions.ListOlderThan(ctx, cutoff, h.batchSize)
	if err != nil {
		return result, fmt.Errorf("listing transactions: %w", err)
	}
	if len(batch) == 0 {
		h.logger.Info("nothing to archive", "cutoff", result.Cutoff)
		return result, nil
	}

	if err := os.MkdirAll(h.outputDir, 0o755); err != nil {
		return result, fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(h.outputDir,
		fmt.Sprintf("transactions-%s.ndjson.gz", cutoff.Format("2006-01-02")))
	result.File = path

	f, err := os.Create(path)
	if err != nil {
		return result, fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)

	for len(batch) > 0 {
		for _, tx := range batch {
			if err := enc.Encode(tx); err != nil {
				gz.Close()
				return result, fmt.Errorf("writing export: %w", err)
			}
		}
		if err := gz.Flush(); err != nil {
			gz.Close()
			return result, fmt.Errorf("flushing export: %w", err)
		}
		result.Exported += len(batch)

		// Rows are returned oldest first, so everything at or before the
		// last row of the batch is now safely on disk.
		pruneBefore := batch[len(batch)-1].CreatedAt.Add(time.Nanosecond)
		deleted, err := h.transactions.DeleteOlderThan(ctx, pruneBefore)
		if err != nil {
			gz.Close()
			return result, fmt.Errorf("pruning transactions: %w", err)
		}
		result.Deleted += deleted

		batch, err = h.transactions.ListOlderThan(ctx, cutoff, h.batchSize)
		if err != nil {
			gz.Close()
			return result, fmt.Errorf("listing transactions: %w", err)
		}
	}

	if err := gz.Close(); err != nil {
		return result, fmt.Errorf("closing export: %w", err)
	}
	if err := f.Sync(); err != nil {
		return result, fmt.Errorf("syncing export: %w", err)
	}

	h.logger.Info("archive pass complete",
		"cutoff", result.Cutoff,
		"exported", result.Exported,
		"deleted", result.Deleted,
		"file", path,
	)
	return result, nil
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

	logger := newLogger(cfg.LogLevel).With("service", "archiver")
	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	handler := &Handler{
		transactions: db.NewTransactionRepository(pool),
		outputDir:    cfg.Archive.OutputDir,
		retention:    time.Duration(cfg.Archive.RetentionDays) * 24 * time.Hour,
		batchSize:    cfg.Archive.BatchSize,
		logger:       logger,
	}

	if isLambdaEnvironment() {
		lambda.Start(handler.Handle)
		return nil
	}

	result, err := handler.Handle(ctx, ArchivePayload{})
	if err != nil {
		return err
	}
	logger.Info("local run finished", "exported", result.Exported, "deleted", result.Deleted)
	pool.Close()
	return nil
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
