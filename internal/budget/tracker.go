// Package budget maintains the per-user monthly spending budget: setting
// the budget amount, accumulating spend from completed purchases, and
// firing threshold-crossed events at 50/75/90/100 percent.
package budget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"airvault/internal/types"
)

// Store abstracts the budget repository operations the tracker needs.
// A month's row is created implicitly on first write; the store guards
// this with a uniqueness constraint on (user_id, month_year).
type Store interface {
	// Get returns the budget for the given month, or an AppError with
	// ErrCodeNotFoundBudget when none exists.
	Get(ctx context.Context, userID, monthYear string) (*types.Budget, error)

	// SetAmount creates or overwrites the month's budget amount, leaving
	// accumulated spend untouched.
	SetAmount(ctx context.Context, userID, monthYear string, amount int64) (*types.Budget, error)

	// AddSpend atomically accumulates into amount_spent for the month,
	// creating the row if absent, and returns the updated budget. The
	// update must be applied atomically relative to concurrent spends in
	// the same month so no update is lost.
	AddSpend(ctx context.Context, userID, monthYear string, amount int64) (*types.Budget, error)
}

// Tracker implements the monthly budget contract.
type Tracker struct {
	store      Store
	dispatcher types.NotificationDispatcher
	clock      types.Clock
	logger     *slog.Logger
}

// Config holds the dependencies for creating a Tracker.
type Config struct {
	Store      Store
	Dispatcher types.NotificationDispatcher
	Clock      types.Clock
	Logger     *slog.Logger
}

// New creates a Tracker with the given configuration.
func New(cfg Config) *Tracker {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		clock:      clock,
		logger:     logger,
	}
}

// MonthKey returns the calendar month key ("2006-01") for a time.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// SetBudget creates or overwrites the current month's budget amount.
// Amounts outside (0, MaxBudgetAmount] are rejected with BudgetOutOfRange.
func (t *Tracker) SetBudget(ctx context.Context, userID string, amount int64) (*types.Budget, error) {
	if amount <= 0 || amount > types.MaxBudgetAmount {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeBudgetOutOfRange,
			fmt.Sprintf("budget must be between ₦1 and ₦%d", types.MaxBudgetAmount), nil,
			map[string]any{"max": types.MaxBudgetAmount})
	}
	return t.store.SetAmount(ctx, userID, MonthKey(t.clock.Now()), amount)
}

// RecordSpend adds a completed purchase amount to the active month's
// accumulated spend and returns the updated percentage used. For each
// budget threshold crossed upward by this update, one threshold-crossed
// event is emitted, in ascending order; a large single purchase can cross
// several thresholds at once and all must fire.
func (t *Tracker) RecordSpend(ctx context.Context, userID string, amount int64) (float64, error) {
	if amount <= 0 {
		return 0, types.NewAppError(types.ErrCodeBelowMinimum, "spend amount must be positive", nil)
	}

	monthYear := MonthKey(t.clock.Now())
	updated, err := t.store.AddSpend(ctx, userID, monthYear, amount)
	if err != nil {
		return 0, err
	}

	newPct := updated.PercentUsed()
	prev := *updated
	prev.AmountSpent -= amount
	prevPct := prev.PercentUsed()

	for _, threshold := range CrossedThresholds(prevPct, newPct) {
		event := types.Event{
			ID:     uuid.New().String(),
			UserID: userID,
			Type:   types.EventBudgetThresholdCrossed,
			Payload: map[string]any{
				"threshold":       threshold,
				"percentage_used": newPct,
				"month_year":      monthYear,
			},
			CreatedAt: t.clock.Now(),
		}
		// Event delivery is best-effort; a dispatch failure must not fail
		// the spend that was already recorded.
		if err := t.dispatcher.Notify(ctx, userID, event); err != nil {
			t.logger.ErrorContext(ctx, "failed to dispatch budget threshold event",
				"user_id", userID,
				"threshold", threshold,
				"error", err,
			)
		}
	}

	return newPct, nil
}

// GetStatus returns the derived budget view for the current month, or an
// AppError with ErrCodeNotFoundBudget when no budget has been set.
func (t *Tracker) GetStatus(ctx context.Context, userID string) (*types.BudgetStatus, error) {
	return t.GetStatusForMonth(ctx, userID, MonthKey(t.clock.Now()))
}

// GetStatusForMonth returns the derived budget view for a specific month
// key ("2006-01"), letting clients inspect past months.
func (t *Tracker) GetStatusForMonth(ctx context.Context, userID, monthYear string) (*types.BudgetStatus, error) {
	b, err := t.store.Get(ctx, userID, monthYear)
	if err != nil {
		return nil, err
	}
	return &types.BudgetStatus{
		BudgetAmount:   b.BudgetAmount,
		AmountSpent:    b.AmountSpent,
		Remaining:      b.Remaining(),
		PercentageUsed: b.PercentUsed(),
		MonthYear:      b.MonthYear,
	}, nil
}

// CrossedThresholds returns the budget thresholds passed upward by a
// percentage change, in ascending order. A threshold is crossed when the
// previous value was below it and the new value is at or above it.
func CrossedThresholds(prevPct, newPct float64) []float64 {
	var crossed []float64
	for _, threshold := range types.BudgetThresholds {
		if prevPct < threshold && newPct >= threshold {
			crossed = append(crossed, threshold)
		}
	}
	return crossed
}
