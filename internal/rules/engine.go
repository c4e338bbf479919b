// Package rules implements the auto top-up rule engine: threshold-based
// rules of the form "top up ₦X when balance/data drops below Y%",
// evaluated against usage reports from an external monitoring
// collaborator. The engine defines the evaluation predicate and the
// intent-emission contract; polling cadence belongs to the caller.
package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"airvault/internal/types"
)

// Store abstracts the rule repository. Create must translate a
// unique-constraint clash on (user, type, phone) into an AppError with
// ErrCodeDuplicateRule rather than a raw storage error.
type Store interface {
	Create(ctx context.Context, rule *types.AutoTopUpRule) error
	Get(ctx context.Context, id, userID string) (*types.AutoTopUpRule, error)
	ListByUser(ctx context.Context, userID string) ([]*types.AutoTopUpRule, error)
	SetEnabled(ctx context.Context, id, userID string, enabled bool) (*types.AutoTopUpRule, error)
	Delete(ctx context.Context, id, userID string) error
}

// Engine owns rule lifecycle and evaluation.
type Engine struct {
	store  Store
	clock  types.Clock
	logger *slog.Logger
}

// Config holds the dependencies for creating an Engine.
type Config struct {
	Store  Store
	Clock  types.Clock
	Logger *slog.Logger
}

// New creates an Engine with the given configuration.
func New(cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: cfg.Store, clock: clock, logger: logger}
}

// CreateRule validates and persists a new rule. At most one rule may exist
// per (user, type, phone) tuple; a nil phoneNumberID binds the rule to the
// primary number and occupies that slot. A second rule for an occupied
// slot fails with DuplicateRule.
func (e *Engine) CreateRule(ctx context.Context, userID string, typ types.TopUpType, thresholdPct int, amount int64, phoneNumberID *string) (*types.AutoTopUpRule, error) {
	if thresholdPct < 0 || thresholdPct > 100 {
		return nil, types.NewAppError(types.ErrCodeThresholdRange,
			"threshold percentage must be between 0 and 100", nil)
	}
	if amount <= 0 {
		return nil, types.NewAppError(types.ErrCodeBelowMinimum,
			"top-up amount must be positive", nil)
	}
	if typ != types.TopUpAirtime && typ != types.TopUpData {
		return nil, types.NewAppError(types.ErrCodeInvalidBody,
			fmt.Sprintf("unknown top-up type %q", typ), nil)
	}

	now := e.clock.Now()
	rule := &types.AutoTopUpRule{
		ID:                  uuid.New().String(),
		UserID:              userID,
		Type:                typ,
		ThresholdPercentage: thresholdPct,
		TopUpAmount:         amount,
		IsEnabled:           true,
		PhoneNumberID:       phoneNumberID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := e.store.Create(ctx, rule); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "auto top-up rule created",
		"rule_id", rule.ID,
		"user_id", userID,
		"type", string(typ),
		"threshold", thresholdPct,
	)
	return rule, nil
}

// Toggle flips a rule's is_enabled flag and returns the updated rule.
// Other rules are unaffected.
func (e *Engine) Toggle(ctx context.Context, id, userID string) (*types.AutoTopUpRule, error) {
	rule, err := e.store.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return e.store.SetEnabled(ctx, id, userID, !rule.IsEnabled)
}

// Delete removes a rule. Other rules are unaffected.
func (e *Engine) Delete(ctx context.Context, id, userID string) error {
	return e.store.Delete(ctx, id, userID)
}

// List returns all rules owned by a user.
func (e *Engine) List(ctx context.Context, userID string) ([]*types.AutoTopUpRule, error) {
	return e.store.ListByUser(ctx, userID)
}

// Evaluate applies the rule predicate to a reported remaining-usage
// percentage. When the rule is enabled and the remaining percentage has
// dropped to or below (100 - threshold), it returns a purchase intent for
// the rule's amount, type and phone (nil phone meaning the user's
// primary); otherwise it returns nil. Evaluate is pure: it performs no
// I/O and does not mutate the rule.
func Evaluate(rule *types.AutoTopUpRule, remainingPct float64) *types.PurchaseIntent {
	if !rule.IsEnabled {
		return nil
	}
	if remainingPct > float64(100-rule.ThresholdPercentage) {
		return nil
	}
	return &types.PurchaseIntent{
		UserID:        rule.UserID,
		Type:          rule.Type,
		Amount:        rule.TopUpAmount,
		PhoneNumberID: rule.PhoneNumberID,
		Source:        types.IntentSourceRule,
		SourceID:      rule.ID,
	}
}
