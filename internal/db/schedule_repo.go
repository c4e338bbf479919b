package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"airvault/internal/types"
)

// ScheduleRepository provides data access for the scheduled_topups table.
// It implements schedule.Store. The recurrence descriptor is stored as a
// type-tagged JSONB envelope.
type ScheduleRepository struct {
	db DBTX
}

// NewScheduleRepository creates a ScheduleRepository backed by the given
// database connection (pool or transaction).
func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `s.id, s.user_id, s.type, s.network, s.amount, s.phone_number_id,
	s.schedule_type, s.recurrence, s.timezone, s.status, s.next_execution_at,
	s.total_executions, s.max_executions, s.created_at, s.updated_at`

func scanSchedule(row pgx.Row) (*types.ScheduledTopUp, error) {
	var s types.ScheduledTopUp
	var recurrence []byte
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Type,
		&s.Network,
		&s.Amount,
		&s.PhoneNumberID,
		&s.ScheduleType,
		&recurrence,
		&s.Timezone,
		&s.Status,
		&s.NextExecutionAt,
		&s.TotalExecutions,
		&s.MaxExecutions,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(recurrence, &s.Recurrence); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a schedule.
func (r *ScheduleRepository) Create(ctx context.Context, s *types.ScheduledTopUp) error {
	recurrence, err := json.Marshal(s.Recurrence)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode recurrence", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO scheduled_topups
		 (id, user_id, type, network, amount, phone_number_id, schedule_type, recurrence,
		  timezone, status, next_execution_at, total_executions, max_executions, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())`,
		s.ID,
		s.UserID,
		string(s.Type),
		string(s.Network),
		s.Amount,
		s.PhoneNumberID,
		string(s.ScheduleType),
		recurrence,
		s.Timezone,
		string(s.Status),
		s.NextExecutionAt,
		s.TotalExecutions,
		s.MaxExecutions,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create schedule", err)
	}
	return nil
}

// Get retrieves a schedule owned by the user.
func (r *ScheduleRepository) Get(ctx context.Context, id, userID string) (*types.ScheduledTopUp, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM scheduled_topups s WHERE s.id = $1 AND s.user_id = $2`,
		id, userID,
	)
	s, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve schedule", err)
	}
	return s, nil
}

// ListByUser returns all schedules owned by the user, newest first.
func (r *ScheduleRepository) ListByUser(ctx context.Context, userID string) ([]*types.ScheduledTopUp, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM scheduled_topups s
		 WHERE s.user_id = $1
		 ORDER BY s.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list schedules", err)
	}
	defer rows.Close()

	var out []*types.ScheduledTopUp
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan schedule", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list schedules", err)
	}
	return out, nil
}

// Update writes the schedule's mutable fields.
func (r *ScheduleRepository) Update(ctx context.Context, s *types.ScheduledTopUp) error {
	recurrence, err := json.Marshal(s.Recurrence)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode recurrence", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE scheduled_topups
		 SET amount = $1, recurrence = $2, timezone = $3, status = $4,
		     next_execution_at = $5, total_executions = $6, max_executions = $7,
		     updated_at = NOW()
		 WHERE id = $8 AND user_id = $9`,
		s.Amount,
		recurrence,
		s.Timezone,
		string(s.Status),
		s.NextExecutionAt,
		s.TotalExecutions,
		s.MaxExecutions,
		s.ID,
		s.UserID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update schedule", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
	}
	return nil
}

// ListDue returns active schedules whose next_execution_at is at or
// before now, oldest first, up to limit.
func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*types.ScheduledTopUp, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM scheduled_topups s
		 WHERE s.status = 'active' AND s.next_execution_at IS NOT NULL AND s.next_execution_at <= $1
		 ORDER BY s.next_execution_at ASC
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due schedules", err)
	}
	defer rows.Close()

	var out []*types.ScheduledTopUp
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan schedule", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due schedules", err)
	}
	return out, nil
}
