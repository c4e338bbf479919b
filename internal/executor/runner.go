// Package executor drives top-up execution: draining due schedules and
// reacting to usage reports from the monitoring collaborator. Every
// execution funnels through the same purchase pipeline, so scheduled,
// rule-triggered and manual purchases share validation, ledger, gateway
// and budget semantics.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"airvault/internal/budget"
	"airvault/internal/rules"
	"airvault/internal/schedule"
	"airvault/internal/types"
	"airvault/internal/validation"
)

// PhoneDirectory resolves a purchase intent's recipient to a saved phone
// number.
type PhoneDirectory interface {
	Get(ctx context.Context, id, userID string) (*types.PhoneNumber, error)
	GetPrimary(ctx context.Context, userID string) (*types.PhoneNumber, error)
}

// TransactionStore persists purchase attempt records.
type TransactionStore interface {
	Create(ctx context.Context, tx *types.Transaction) error
}

// MetricsRecorder receives execution outcome counters. Implementations
// must be non-blocking on failure; metrics never fail an execution.
type MetricsRecorder interface {
	CountExecution(ctx context.Context, source types.IntentSource, outcome string)
	ObserveExecutionDuration(ctx context.Context, source types.IntentSource, d time.Duration)
}

// Execution outcome labels reported to metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

const (
	defaultBatchSize   = 100
	defaultConcurrency = 8
)

// Runner executes due schedules and evaluates usage reports against auto
// top-up rules.
type Runner struct {
	schedules    *schedule.Manager
	rules        *rules.Engine
	phones       PhoneDirectory
	ledger       types.WalletLedger
	gateway      types.PurchaseGateway
	budget       *budget.Tracker
	transactions TransactionStore
	dispatcher   types.NotificationDispatcher
	metrics      MetricsRecorder
	clock        types.Clock
	logger       *slog.Logger

	batchSize   int
	concurrency int
}

// Config holds the dependencies for creating a Runner.
type Config struct {
	Schedules    *schedule.Manager
	Rules        *rules.Engine
	Phones       PhoneDirectory
	Ledger       types.WalletLedger
	Gateway      types.PurchaseGateway
	Budget       *budget.Tracker
	Transactions TransactionStore
	Dispatcher   types.NotificationDispatcher
	Metrics      MetricsRecorder
	Clock        types.Clock
	Logger       *slog.Logger

	// BatchSize caps how many due schedules one pass picks up.
	BatchSize int
	// Concurrency caps how many executions run at once within a pass.
	Concurrency int
}

// New creates a Runner with the given configuration.
func New(cfg Config) *Runner {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = defaultConcurrency
	}
	return &Runner{
		schedules:    cfg.Schedules,
		rules:        cfg.Rules,
		phones:       cfg.Phones,
		ledger:       cfg.Ledger,
		gateway:      cfg.Gateway,
		budget:       cfg.Budget,
		transactions: cfg.Transactions,
		dispatcher:   cfg.Dispatcher,
		metrics:      cfg.Metrics,
		clock:        clock,
		logger:       logger,
		batchSize:    batch,
		concurrency:  conc,
	}
}

// RunOnce drains one batch of due schedules. Schedules whose lock is
// already held (an execution in flight from an overlapping pass) are
// skipped, not queued. It returns how many schedules were picked up.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	due, err := r.schedules.ListDue(ctx, r.clock.Now(), r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("listing due schedules: %w", err)
	}

	locks := r.schedules.Locks()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	picked := 0
	for _, s := range due {
		if !locks.TryAcquire(s.ID) {
			r.count(ctx, types.IntentSourceSchedule, OutcomeSkipped)
			continue
		}
		picked++
		s := s
		g.Go(func() error {
			defer locks.Release(s.ID)
			r.executeSchedule(gctx, s)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return picked, err
	}
	return picked, nil
}

// executeSchedule runs a single due schedule end to end. Failures leave
// the schedule active with a rolled-forward next occurrence; they never
// poison the rest of the batch.
func (r *Runner) executeSchedule(ctx context.Context, s *types.ScheduledTopUp) {
	started := r.clock.Now()
	phoneID := s.PhoneNumberID
	intent := &types.PurchaseIntent{
		UserID:        s.UserID,
		Type:          s.Type,
		Network:       s.Network,
		Amount:        s.Amount,
		PhoneNumberID: &phoneID,
		Source:        types.IntentSourceSchedule,
		SourceID:      s.ID,
	}

	tx, err := r.ExecuteIntent(ctx, intent)
	if err != nil {
		r.logger.WarnContext(ctx, "schedule execution failed",
			"schedule_id", s.ID,
			"user_id", s.UserID,
			"error", err,
		)
		if ferr := r.schedules.RecordFailure(ctx, s); ferr != nil {
			r.logger.ErrorContext(ctx, "failed to record schedule failure",
				"schedule_id", s.ID, "error", ferr)
		}
		r.dispatch(ctx, s.UserID, types.EventScheduleFailed, map[string]any{
			"schedule_id": s.ID,
			"amount":      s.Amount,
			"reason":      err.Error(),
		})
		r.count(ctx, types.IntentSourceSchedule, outcomeForError(err))
		r.observe(ctx, types.IntentSourceSchedule, r.clock.Now().Sub(started))
		return
	}

	if err := r.schedules.MarkExecuted(ctx, s); err != nil {
		// The purchase went through; bookkeeping failure is logged and the
		// schedule will be retried as due, relying on the gateway reference
		// for reconciliation.
		r.logger.ErrorContext(ctx, "failed to mark schedule executed",
			"schedule_id", s.ID, "error", err)
	}

	r.dispatch(ctx, s.UserID, types.EventScheduleExecuted, map[string]any{
		"schedule_id": s.ID,
		"amount":      s.Amount,
		"reference":   tx.Reference,
	})
	if s.Status == types.ScheduleCompleted {
		r.dispatch(ctx, s.UserID, types.EventScheduleCompleted, map[string]any{
			"schedule_id":      s.ID,
			"total_executions": s.TotalExecutions,
		})
	}
	r.count(ctx, types.IntentSourceSchedule, OutcomeCompleted)
	r.observe(ctx, types.IntentSourceSchedule, r.clock.Now().Sub(started))

	r.logger.InfoContext(ctx, "schedule executed",
		"schedule_id", s.ID,
		"user_id", s.UserID,
		"amount", s.Amount,
		"reference", tx.Reference,
	)
}

// ProcessUsageReport evaluates one usage report against the user's auto
// top-up rules and executes the matching rule's intent, if any. A rule
// already executing (its lock is held) is skipped so one low-balance
// report cannot double-fire. It returns the transaction when a purchase
// was made, nil when no rule triggered.
func (r *Runner) ProcessUsageReport(ctx context.Context, report types.UsageReport) (*types.Transaction, error) {
	userRules, err := r.rules.List(ctx, report.UserID)
	if err != nil {
		return nil, err
	}

	rule := matchRule(userRules, report)
	if rule == nil {
		return nil, nil
	}
	intent := rules.Evaluate(rule, report.RemainingPercentage)
	if intent == nil {
		return nil, nil
	}

	locks := r.schedules.Locks()
	if !locks.TryAcquire(rule.ID) {
		r.count(ctx, types.IntentSourceRule, OutcomeSkipped)
		return nil, nil
	}
	defer locks.Release(rule.ID)

	started := r.clock.Now()
	tx, err := r.ExecuteIntent(ctx, intent)
	r.observe(ctx, types.IntentSourceRule, r.clock.Now().Sub(started))
	if err != nil {
		r.count(ctx, types.IntentSourceRule, outcomeForError(err))
		r.logger.WarnContext(ctx, "auto top-up failed",
			"rule_id", rule.ID,
			"user_id", rule.UserID,
			"error", err,
		)
		return nil, err
	}

	r.dispatch(ctx, rule.UserID, types.EventAutoTopUpTriggered, map[string]any{
		"rule_id":   rule.ID,
		"amount":    rule.TopUpAmount,
		"reference": tx.Reference,
	})
	r.count(ctx, types.IntentSourceRule, OutcomeCompleted)
	return tx, nil
}

// matchRule finds the rule occupying the report's (type, phone) slot.
func matchRule(userRules []*types.AutoTopUpRule, report types.UsageReport) *types.AutoTopUpRule {
	for _, rule := range userRules {
		if rule.Type != report.Type {
			continue
		}
		if samePhoneSlot(rule.PhoneNumberID, report.PhoneNumberID) {
			return rule
		}
	}
	return nil
}

func samePhoneSlot(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ExecuteIntent runs the shared purchase pipeline for one intent: resolve
// the recipient, validate against the wallet balance, call the gateway,
// debit the ledger, persist the transaction, and accumulate budget spend.
// Only completed purchases reach the budget.
func (r *Runner) ExecuteIntent(ctx context.Context, intent *types.PurchaseIntent) (*types.Transaction, error) {
	phone, err := r.resolvePhone(ctx, intent)
	if err != nil {
		return nil, err
	}

	balance, err := r.ledger.GetBalance(ctx, intent.UserID)
	if err != nil {
		return nil, err
	}

	res := validation.Validate(phone.Number, intent.Amount, types.KindPurchase, balance)
	if !res.Valid {
		return nil, res.Err
	}

	net := intent.Network
	if net == types.NetworkUnknown {
		net = res.Network
	}

	result, err := r.gateway.Purchase(ctx, intent.Type, net, res.CleanedNumber, intent.Amount)
	if err != nil {
		r.recordTransaction(ctx, intent, net, res.CleanedNumber, "", types.TxFailed)
		return nil, err
	}
	if result.Status == types.TxFailed {
		r.recordTransaction(ctx, intent, net, res.CleanedNumber, result.Reference, types.TxFailed)
		return nil, types.NewAppError(types.ErrCodeUpstreamGateway,
			"purchase was rejected by the gateway", nil)
	}

	if err := r.ledger.Debit(ctx, intent.UserID, intent.Amount); err != nil {
		r.recordTransaction(ctx, intent, net, res.CleanedNumber, result.Reference, types.TxFailed)
		return nil, err
	}

	tx := r.recordTransaction(ctx, intent, net, res.CleanedNumber, result.Reference, result.Status)

	if result.Status == types.TxCompleted {
		if _, err := r.budget.RecordSpend(ctx, intent.UserID, intent.Amount); err != nil {
			// The purchase is done; budget accumulation is logged and left
			// to drift rather than unwound.
			r.logger.ErrorContext(ctx, "failed to record budget spend",
				"user_id", intent.UserID,
				"amount", intent.Amount,
				"error", err,
			)
		}
	}

	return tx, nil
}

func (r *Runner) resolvePhone(ctx context.Context, intent *types.PurchaseIntent) (*types.PhoneNumber, error) {
	if intent.PhoneNumberID == nil {
		return r.phones.GetPrimary(ctx, intent.UserID)
	}
	return r.phones.Get(ctx, *intent.PhoneNumberID, intent.UserID)
}

func (r *Runner) recordTransaction(ctx context.Context, intent *types.PurchaseIntent, net types.Network, number, reference string, status types.TransactionStatus) *types.Transaction {
	tx := &types.Transaction{
		ID:          uuid.New().String(),
		UserID:      intent.UserID,
		Type:        intent.Type,
		Network:     net,
		PhoneNumber: number,
		Amount:      intent.Amount,
		Reference:   reference,
		Status:      status,
		Source:      intent.Source,
		SourceID:    intent.SourceID,
		CreatedAt:   r.clock.Now(),
	}
	if err := r.transactions.Create(ctx, tx); err != nil {
		r.logger.ErrorContext(ctx, "failed to persist transaction",
			"user_id", intent.UserID,
			"reference", reference,
			"error", err,
		)
	}
	return tx
}

func (r *Runner) dispatch(ctx context.Context, userID string, typ types.EventType, payload map[string]any) {
	event := types.Event{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      typ,
		Payload:   payload,
		CreatedAt: r.clock.Now(),
	}
	if err := r.dispatcher.Notify(ctx, userID, event); err != nil {
		r.logger.ErrorContext(ctx, "failed to dispatch event",
			"user_id", userID,
			"event_type", string(typ),
			"error", err,
		)
	}
}

func (r *Runner) count(ctx context.Context, source types.IntentSource, outcome string) {
	if r.metrics != nil {
		r.metrics.CountExecution(ctx, source, outcome)
	}
}

func (r *Runner) observe(ctx context.Context, source types.IntentSource, d time.Duration) {
	if r.metrics != nil {
		r.metrics.ObserveExecutionDuration(ctx, source, d)
	}
}

// outcomeForError distinguishes validator rejections from downstream
// failures for metrics.
func outcomeForError(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code.HTTPStatus() < 500 {
		return OutcomeRejected
	}
	return OutcomeFailed
}
