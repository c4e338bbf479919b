package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"airvault/internal/types"
)

// PhoneRepository provides data access for the phone_numbers table.
type PhoneRepository struct {
	db DBTX
}

// NewPhoneRepository creates a PhoneRepository backed by the given
// database connection (pool or transaction).
func NewPhoneRepository(db DBTX) *PhoneRepository {
	return &PhoneRepository{db: db}
}

const phoneColumns = `p.id, p.user_id, p.number, p.label, p.is_primary, p.network,
	p.created_at, p.updated_at`

func scanPhone(row pgx.Row) (*types.PhoneNumber, error) {
	var p types.PhoneNumber
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Number,
		&p.Label,
		&p.IsPrimary,
		&p.Network,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a saved phone number. The per-user cap is enforced in
// the insert itself so concurrent creates cannot exceed it; hitting the
// cap returns ErrCodePhoneLimitReached. A duplicate number for the same
// user maps to a conflict.
func (r *PhoneRepository) Create(ctx context.Context, p *types.PhoneNumber) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO phone_numbers (id, user_id, number, label, is_primary, network, created_at, updated_at)
		 SELECT $1, $2, $3, $4, $5, $6, NOW(), NOW()
		 WHERE (SELECT COUNT(*) FROM phone_numbers WHERE user_id = $2) < $7`,
		p.ID,
		p.UserID,
		p.Number,
		p.Label,
		p.IsPrimary,
		string(p.Network),
		types.MaxPhoneNumbers,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeInvalidBody,
				"this phone number is already saved", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create phone number", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppErrorWithDetails(types.ErrCodePhoneLimitReached,
			"you can save at most 4 phone numbers", nil,
			map[string]any{"max": types.MaxPhoneNumbers})
	}
	return nil
}

// Get retrieves a phone number owned by the user.
func (r *PhoneRepository) Get(ctx context.Context, id, userID string) (*types.PhoneNumber, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+phoneColumns+` FROM phone_numbers p WHERE p.id = $1 AND p.user_id = $2`,
		id, userID,
	)
	p, err := scanPhone(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPhone, "phone number not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve phone number", err)
	}
	return p, nil
}

// GetPrimary retrieves the user's primary phone number.
func (r *PhoneRepository) GetPrimary(ctx context.Context, userID string) (*types.PhoneNumber, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+phoneColumns+` FROM phone_numbers p WHERE p.user_id = $1 AND p.is_primary`,
		userID,
	)
	p, err := scanPhone(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPhone, "no primary phone number", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve primary phone number", err)
	}
	return p, nil
}

// ListByUser returns the user's saved numbers, primary first.
func (r *PhoneRepository) ListByUser(ctx context.Context, userID string) ([]*types.PhoneNumber, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+phoneColumns+` FROM phone_numbers p
		 WHERE p.user_id = $1
		 ORDER BY p.is_primary DESC, p.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list phone numbers", err)
	}
	defer rows.Close()

	var out []*types.PhoneNumber
	for rows.Next() {
		p, err := scanPhone(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan phone number", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list phone numbers", err)
	}
	return out, nil
}

// Update changes the label and number of a non-primary phone. The primary
// number is immutable; attempts to modify it fail with
// ErrCodePrimaryPhoneImmutable.
func (r *PhoneRepository) Update(ctx context.Context, p *types.PhoneNumber) error {
	existing, err := r.Get(ctx, p.ID, p.UserID)
	if err != nil {
		return err
	}
	if existing.IsPrimary {
		return types.NewAppError(types.ErrCodePrimaryPhoneImmutable,
			"the primary phone number cannot be modified", nil)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE phone_numbers
		 SET number = $1, label = $2, network = $3, updated_at = NOW()
		 WHERE id = $4 AND user_id = $5 AND NOT is_primary`,
		p.Number, p.Label, string(p.Network), p.ID, p.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeInvalidBody,
				"this phone number is already saved", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update phone number", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPhone, "phone number not found", nil)
	}
	return nil
}

// Delete removes a non-primary phone number together with the rules and
// schedules bound to it, in one transaction. The cascade is issued
// explicitly here rather than left to schema foreign-key actions, so the
// contract holds for any backing store. Deleting the primary number fails
// with ErrCodePrimaryPhoneImmutable.
func (r *PhoneRepository) Delete(ctx context.Context, id, userID string) error {
	existing, err := r.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if existing.IsPrimary {
		return types.NewAppError(types.ErrCodePrimaryPhoneImmutable,
			"the primary phone number cannot be deleted", nil)
	}

	starter, ok := r.db.(TxStarter)
	if !ok {
		// Already inside a transaction; run the cascade on it directly.
		return r.deleteCascade(ctx, r.db, id, userID)
	}

	tx, err := starter.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := r.deleteCascade(ctx, tx, id, userID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit phone deletion", err)
	}
	return nil
}

// deleteCascade removes the phone's rules, then its schedules, then the
// phone row itself. Dependents go first so the final delete cannot leave
// orphans behind if it fails.
func (r *PhoneRepository) deleteCascade(ctx context.Context, db DBTX, id, userID string) error {
	if _, err := db.Exec(ctx,
		`DELETE FROM auto_topup_rules WHERE phone_number_id = $1 AND user_id = $2`,
		id, userID,
	); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete phone rules", err)
	}

	if _, err := db.Exec(ctx,
		`DELETE FROM scheduled_topups WHERE phone_number_id = $1 AND user_id = $2`,
		id, userID,
	); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete phone schedules", err)
	}

	tag, err := db.Exec(ctx,
		`DELETE FROM phone_numbers WHERE id = $1 AND user_id = $2 AND NOT is_primary`,
		id, userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete phone number", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPhone, "phone number not found", nil)
	}
	return nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint
// violation (error code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
