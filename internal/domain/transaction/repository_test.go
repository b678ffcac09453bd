package transaction_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumehub/resumehub-api/internal/domain/transaction"
)

var txColumns = []string{
	"id", "order_id", "user_id", "gateway_order_id", "gateway_payment_id",
	"amount", "currency", "credits", "package_type", "validity_months",
	"status", "failure_reason", "payment_method", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (transaction.Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return transaction.NewRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func txRow(orderID string, userID uuid.UUID, status transaction.Status) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(txColumns).AddRow(
		uuid.New(), orderID, userID, "gw_order_1", sql.NullString{},
		int64(49900), "INR", 10, "basic", 3,
		string(status), sql.NullString{}, sql.NullString{}, now, now,
	)
}

func TestTransitionToApplies(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectQuery("UPDATE transactions").
		WithArgs("order_1", string(transaction.StatusPending), string(transaction.StatusCompleted),
			"pay_1", "card", "").
		WillReturnRows(txRow("order_1", userID, transaction.StatusCompleted))

	got, applied, err := repo.TransitionTo(context.Background(), "order_1",
		transaction.StatusCompleted,
		transaction.TransitionDetails{GatewayPaymentID: "pay_1", PaymentMethod: "card"})

	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, transaction.StatusCompleted, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionToAlreadySettledIsNoOp(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectQuery("UPDATE transactions").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE order_id").
		WithArgs("order_1").
		WillReturnRows(txRow("order_1", userID, transaction.StatusCompleted))

	got, applied, err := repo.TransitionTo(context.Background(), "order_1",
		transaction.StatusCompleted, transaction.TransitionDetails{})

	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, transaction.StatusCompleted, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionFailedAfterCompletedIsNoOp(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectQuery("UPDATE transactions").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE order_id").
		WillReturnRows(txRow("order_1", userID, transaction.StatusCompleted))

	got, applied, err := repo.TransitionTo(context.Background(), "order_1",
		transaction.StatusFailed, transaction.TransitionDetails{FailureReason: "late failure"})

	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, transaction.StatusCompleted, got.Status)
}

func TestTransitionRefundFromPendingIsInvalid(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectQuery("UPDATE transactions").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE order_id").
		WillReturnRows(txRow("order_1", userID, transaction.StatusPending))

	_, applied, err := repo.TransitionTo(context.Background(), "order_1",
		transaction.StatusRefunded, transaction.TransitionDetails{})

	require.ErrorIs(t, err, transaction.ErrInvalidTransition)
	assert.False(t, applied)
}

func TestTransitionToUnknownTarget(t *testing.T) {
	repo, _ := newMockRepo(t)

	_, _, err := repo.TransitionTo(context.Background(), "order_1",
		transaction.StatusPending, transaction.TransitionDetails{})

	require.ErrorIs(t, err, transaction.ErrInvalidTransition)
}

func TestTransitionToUnknownOrder(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("UPDATE transactions").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE order_id").
		WillReturnError(sql.ErrNoRows)

	_, _, err := repo.TransitionTo(context.Background(), "order_missing",
		transaction.StatusCompleted, transaction.TransitionDetails{})

	require.ErrorIs(t, err, transaction.ErrTransactionNotFound)
}

func TestFindLatestPendingNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM transactions").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindLatestPending(context.Background(), userID, 30*time.Minute)
	require.ErrorIs(t, err, transaction.ErrTransactionNotFound)
}

func TestCreateDefaults(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx := &transaction.Transaction{
		UserID:      userID,
		Amount:      49900,
		Currency:    "INR",
		Credits:     10,
		PackageType: "basic",
	}
	require.NoError(t, repo.Create(context.Background(), tx))

	assert.NotEqual(t, uuid.Nil, tx.ID)
	assert.Contains(t, tx.OrderID, "order_")
	assert.Equal(t, transaction.StatusPending, tx.Status)
}
