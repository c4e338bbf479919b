package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"airvault/internal/types"
)

// TransactionRepository provides data access for the transactions table.
// It implements executor.TransactionStore plus the history queries the
// API and archiver need.
type TransactionRepository struct {
	db DBTX
}

// NewTransactionRepository creates a TransactionRepository backed by the
// given database connection (pool or transaction).
func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const txColumns = `t.id, t.user_id, t.type, t.network, t.phone_number, t.amount,
	t.reference, t.status, t.source, t.source_id, t.created_at`

func scanTransaction(row pgx.Row) (*types.Transaction, error) {
	var t types.Transaction
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Type,
		&t.Network,
		&t.PhoneNumber,
		&t.Amount,
		&t.Reference,
		&t.Status,
		&t.Source,
		&t.SourceID,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a transaction record.
func (r *TransactionRepository) Create(ctx context.Context, t *types.Transaction) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO transactions
		 (id, user_id, type, network, phone_number, amount, reference, status, source, source_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID,
		t.UserID,
		string(t.Type),
		string(t.Network),
		t.PhoneNumber,
		t.Amount,
		t.Reference,
		string(t.Status),
		string(t.Source),
		t.SourceID,
		t.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create transaction", err)
	}
	return nil
}

// ListByUser returns a page of the user's transactions, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*types.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+txColumns+` FROM transactions t
		 WHERE t.user_id = $1
		 ORDER BY t.created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list transactions", err)
	}
	defer rows.Close()

	var out []*types.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list transactions", err)
	}
	return out, nil
}

// ListOlderThan returns transactions created before the cutoff, oldest
// first, up to limit. Used by the archiver to export cold history.
func (r *TransactionRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*types.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+txColumns+` FROM transactions t
		 WHERE t.created_at < $1
		 ORDER BY t.created_at ASC
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list old transactions", err)
	}
	defer rows.Close()

	var out []*types.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list old transactions", err)
	}
	return out, nil
}

// DeleteOlderThan removes transactions created before the cutoff and
// returns how many were deleted. Called only after a successful archive
// export.
func (r *TransactionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM transactions WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete old transactions", err)
	}
	return tag.RowsAffected(), nil
}
