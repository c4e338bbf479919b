package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"airvault/internal/types"
)

// RuleRepository provides data access for the auto_topup_rules table.
// It implements rules.Store.
type RuleRepository struct {
	db DBTX
}

// NewRuleRepository creates a RuleRepository backed by the given database
// connection (pool or transaction).
func NewRuleRepository(db DBTX) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `r.id, r.user_id, r.type, r.threshold_percentage, r.topup_amount,
	r.is_enabled, r.phone_number_id, r.created_at, r.updated_at`

func scanRule(row pgx.Row) (*types.AutoTopUpRule, error) {
	var r types.AutoTopUpRule
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.Type,
		&r.ThresholdPercentage,
		&r.TopUpAmount,
		&r.IsEnabled,
		&r.PhoneNumberID,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a rule. The unique slot index on (user, type, phone)
// rejects a second rule for an occupied slot; that violation maps to
// ErrCodeDuplicateRule.
func (r *RuleRepository) Create(ctx context.Context, rule *types.AutoTopUpRule) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO auto_topup_rules
		 (id, user_id, type, threshold_percentage, topup_amount, is_enabled, phone_number_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		rule.ID,
		rule.UserID,
		string(rule.Type),
		rule.ThresholdPercentage,
		rule.TopUpAmount,
		rule.IsEnabled,
		rule.PhoneNumberID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeDuplicateRule,
				"a rule of this type already exists for this phone number", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create rule", err)
	}
	return nil
}

// Get retrieves a rule owned by the user.
func (r *RuleRepository) Get(ctx context.Context, id, userID string) (*types.AutoTopUpRule, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM auto_topup_rules r WHERE r.id = $1 AND r.user_id = $2`,
		id, userID,
	)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRule, "rule not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve rule", err)
	}
	return rule, nil
}

// ListByUser returns all rules owned by the user, newest first.
func (r *RuleRepository) ListByUser(ctx context.Context, userID string) ([]*types.AutoTopUpRule, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+ruleColumns+` FROM auto_topup_rules r
		 WHERE r.user_id = $1
		 ORDER BY r.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list rules", err)
	}
	defer rows.Close()

	var out []*types.AutoTopUpRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan rule", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list rules", err)
	}
	return out, nil
}

// SetEnabled flips the is_enabled flag and returns the updated rule.
func (r *RuleRepository) SetEnabled(ctx context.Context, id, userID string, enabled bool) (*types.AutoTopUpRule, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE auto_topup_rules
		 SET is_enabled = $1, updated_at = NOW()
		 WHERE id = $2 AND user_id = $3
		 RETURNING id, user_id, type, threshold_percentage, topup_amount, is_enabled, phone_number_id, created_at, updated_at`,
		enabled, id, userID,
	)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRule, "rule not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to update rule", err)
	}
	return rule, nil
}

// Delete removes a rule.
func (r *RuleRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM auto_topup_rules WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete rule", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRule, "rule not found", nil)
	}
	return nil
}
