package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"airvault/internal/types"
)

func scanPhoneRow(id, userID, number string, isPrimary bool) func(dest ...any) error {
	return func(dest ...any) error {
		now := time.Now().UTC()
		*dest[0].(*string) = id
		*dest[1].(*string) = userID
		*dest[2].(*string) = number
		*dest[3].(*string) = "Home"
		*dest[4].(*bool) = isPrimary
		*dest[5].(*types.Network) = types.NetworkMTN
		*dest[6].(*time.Time) = now
		*dest[7].(*time.Time) = now
		return nil
	}
}

func TestPhoneRepository_Create_Success(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPhoneRepository(dbx)

	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Create(context.Background(), &types.PhoneNumber{
		ID: "phone-1", UserID: "user-1", Number: "08031234567",
	})
	require.NoError(t, err)
	dbx.AssertExpectations(t)
}

func TestPhoneRepository_Create_LimitReached(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPhoneRepository(dbx)

	// Conditional insert matches no rows when the user already holds the
	// maximum number of phones.
	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil)

	err := repo.Create(context.Background(), &types.PhoneNumber{
		ID: "phone-5", UserID: "user-1", Number: "08031234567",
	})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodePhoneLimitReached, appErr.Code)
	assert.Equal(t, 403, appErr.HTTPStatus())
}

func TestPhoneRepository_Create_DuplicateNumber(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPhoneRepository(dbx)

	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &types.PhoneNumber{
		ID: "phone-2", UserID: "user-1", Number: "08031234567",
	})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInvalidBody, appErr.Code)
}

func TestPhoneRepository_Get_NotFound(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPhoneRepository(dbx)

	dbx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.Get(context.Background(), "missing", "user-1")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundPhone, appErr.Code)
}

func TestPhoneRepository_Update_PrimaryImmutable(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPhoneRepository(dbx)

	dbx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: scanPhoneRow("phone-1", "user-1", "08031234567", true)})

	err := repo.Update(context.Background(), &types.PhoneNumber{
		ID: "phone-1", UserID: "user-1", Number: "08099999999",
	})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodePrimaryPhoneImmutable, appErr.Code)
	dbx.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestPhoneRepository_Delete_PrimaryImmutable(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPhoneRepository(dbx)

	dbx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: scanPhoneRow("phone-1", "user-1", "08031234567", true)})

	err := repo.Delete(context.Background(), "phone-1", "user-1")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodePrimaryPhoneImmutable, appErr.Code)
}

func TestPhoneRepository_Delete_Success(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPhoneRepository(dbx)

	dbx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: scanPhoneRow("phone-2", "user-1", "08051234567", false)})
	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	require.NoError(t, repo.Delete(context.Background(), "phone-2", "user-1"))
	dbx.AssertExpectations(t)
}

func TestPhoneRepository_Delete_CascadesInTransaction(t *testing.T) {
	tx := new(mockTx)
	dbx := &mockTxDBTX{tx: tx}
	repo := NewPhoneRepository(dbx)

	dbx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: scanPhoneRow("phone-2", "user-1", "08051234567", false)})

	var stmts []string
	tx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) { stmts = append(stmts, args.String(1)) }).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	require.NoError(t, repo.Delete(context.Background(), "phone-2", "user-1"))

	// Dependents are removed before the phone row, all on the transaction.
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "DELETE FROM auto_topup_rules")
	assert.Contains(t, stmts[1], "DELETE FROM scheduled_topups")
	assert.Contains(t, stmts[2], "DELETE FROM phone_numbers")
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
	dbx.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestPhoneRepository_Delete_RollsBackOnCascadeError(t *testing.T) {
	tx := new(mockTx)
	dbx := &mockTxDBTX{tx: tx}
	repo := NewPhoneRepository(dbx)

	dbx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: scanPhoneRow("phone-2", "user-1", "08051234567", false)})
	tx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("deadlock detected")).Once()

	err := repo.Delete(context.Background(), "phone-2", "user-1")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestPhoneRepository_Delete_NotFoundRollsBack(t *testing.T) {
	tx := new(mockTx)
	dbx := &mockTxDBTX{tx: tx}
	repo := NewPhoneRepository(dbx)

	dbx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: scanPhoneRow("phone-2", "user-1", "08051234567", false)})
	// The phone row vanishes between the ownership check and the delete.
	tx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := repo.Delete(context.Background(), "phone-2", "user-1")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundPhone, appErr.Code)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestPhoneRepository_ListByUser(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPhoneRepository(dbx)

	rows := newMockRows(
		scanPhoneRow("phone-1", "user-1", "08031234567", true),
		scanPhoneRow("phone-2", "user-1", "08051234567", false),
	)
	dbx.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	out, err := repo.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].IsPrimary)
	assert.Equal(t, "phone-2", out[1].ID)
}

func TestPhoneRepository_DBErrorIsWrapped(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPhoneRepository(dbx)

	dbx.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := repo.ListByUser(context.Background(), "user-1")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
