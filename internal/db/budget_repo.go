package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"airvault/internal/types"
)

// BudgetRepository provides data access for the budgets table. It
// implements budget.Store. Rows are created implicitly on first write for
// a month, guarded by the uniqueness constraint on (user_id, month_year).
type BudgetRepository struct {
	db DBTX
}

// NewBudgetRepository creates a BudgetRepository backed by the given
// database connection (pool or transaction).
func NewBudgetRepository(db DBTX) *BudgetRepository {
	return &BudgetRepository{db: db}
}

const budgetColumns = `id, user_id, month_year, budget_amount, amount_spent, created_at, updated_at`

func scanBudget(row pgx.Row) (*types.Budget, error) {
	var b types.Budget
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.MonthYear,
		&b.BudgetAmount,
		&b.AmountSpent,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func budgetRowID(userID, monthYear string) string {
	return fmt.Sprintf("bgt_%s_%s", userID, monthYear)
}

// Get returns the month's budget, or ErrCodeNotFoundBudget when no row
// exists for the month.
func (r *BudgetRepository) Get(ctx context.Context, userID, monthYear string) (*types.Budget, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = $1 AND month_year = $2`,
		userID, monthYear,
	)
	b, err := scanBudget(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundBudget,
				"no budget set for this month", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve budget", err)
	}
	return b, nil
}

// SetAmount creates or overwrites the month's budget amount, leaving
// accumulated spend untouched.
func (r *BudgetRepository) SetAmount(ctx context.Context, userID, monthYear string, amount int64) (*types.Budget, error) {
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO budgets (id, user_id, month_year, budget_amount, amount_spent, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
		 ON CONFLICT (user_id, month_year)
		 DO UPDATE SET budget_amount = EXCLUDED.budget_amount, updated_at = NOW()
		 RETURNING `+budgetColumns,
		budgetRowID(userID, monthYear), userID, monthYear, amount,
	)
	b, err := scanBudget(row)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to set budget", err)
	}
	return b, nil
}

// AddSpend atomically accumulates into the month's amount_spent, creating
// the row if absent, and returns the updated budget. The addition happens
// in the database so concurrent spends in the same month never lose an
// update.
func (r *BudgetRepository) AddSpend(ctx context.Context, userID, monthYear string, amount int64) (*types.Budget, error) {
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO budgets (id, user_id, month_year, budget_amount, amount_spent, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, NOW(), NOW())
		 ON CONFLICT (user_id, month_year)
		 DO UPDATE SET amount_spent = budgets.amount_spent + EXCLUDED.amount_spent, updated_at = NOW()
		 RETURNING `+budgetColumns,
		budgetRowID(userID, monthYear), userID, monthYear, amount,
	)
	b, err := scanBudget(row)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to record spend", err)
	}
	return b, nil
}
