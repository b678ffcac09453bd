package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const selectColumns = `
	id, order_id, user_id, gateway_order_id, gateway_payment_id,
	amount, currency, credits, package_type, validity_months,
	status, failure_reason, payment_method, created_at, updated_at`

// Repository defines transaction data access interface
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByOrderID(ctx context.Context, orderID string) (*Transaction, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Transaction, error)
	AttachGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error
	// TransitionTo atomically moves a row to the target status. The
	// returned bool reports whether this call applied the change; a
	// row already past the transition comes back unchanged with false.
	TransitionTo(ctx context.Context, orderID string, to Status, details TransitionDetails) (*Transaction, bool, error)
	// TransitionToTx is TransitionTo within an external transaction.
	TransitionToTx(ctx context.Context, ext sqlx.ExtContext, orderID string, to Status, details TransitionDetails) (*Transaction, bool, error)
	// FindLatestPending returns the newest pending transaction created
	// within the window, or ErrTransactionNotFound.
	FindLatestPending(ctx context.Context, userID uuid.UUID, window time.Duration) (*Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error)
}

// repository implements Repository
type repository struct {
	db *sqlx.DB
}

// NewRepository creates new transaction repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Create inserts a new pending transaction
func (r *repository) Create(ctx context.Context, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.OrderID == "" {
		t.OrderID = NewOrderID()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}

	query := `
		INSERT INTO transactions (
			id, order_id, user_id, gateway_order_id, amount, currency,
			credits, package_type, validity_months, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.OrderID, t.UserID, t.GatewayOrderID, t.Amount, t.Currency,
		t.Credits, t.PackageType, t.ValidityMonths, t.Status,
	)
	if err != nil {
		return fmt.Errorf("transaction repository create: %w", err)
	}

	return nil
}

// GetByOrderID returns a transaction by internal order id
func (r *repository) GetByOrderID(ctx context.Context, orderID string) (*Transaction, error) {
	return r.getByOrderID(ctx, r.db, orderID)
}

func (r *repository) getByOrderID(ctx context.Context, ext sqlx.ExtContext, orderID string) (*Transaction, error) {
	query := `SELECT ` + selectColumns + ` FROM transactions WHERE order_id = $1`

	var t Transaction
	err := sqlx.GetContext(ctx, ext, &t, query, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction repository get by order id: %w", err)
	}

	return &t, nil
}

// GetByGatewayOrderID returns a transaction by the gateway's order id
func (r *repository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Transaction, error) {
	query := `SELECT ` + selectColumns + ` FROM transactions WHERE gateway_order_id = $1`

	var t Transaction
	err := r.db.GetContext(ctx, &t, query, gatewayOrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction repository get by gateway order id: %w", err)
	}

	return &t, nil
}

// AttachGatewayOrder records the gateway order id once it is known
func (r *repository) AttachGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error {
	query := `
		UPDATE transactions SET gateway_order_id = $2, updated_at = NOW()
		WHERE order_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, orderID, gatewayOrderID)
	if err != nil {
		return fmt.Errorf("transaction repository attach gateway order: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrTransactionNotFound
	}

	return nil
}

func (r *repository) TransitionTo(ctx context.Context, orderID string, to Status, details TransitionDetails) (*Transaction, bool, error) {
	return r.TransitionToTx(ctx, r.db, orderID, to, details)
}

// TransitionToTx performs the state change as a single conditional
// UPDATE guarded by the required source status, so concurrent callers
// race on the database row and exactly one wins.
func (r *repository) TransitionToTx(ctx context.Context, ext sqlx.ExtContext, orderID string, to Status, details TransitionDetails) (*Transaction, bool, error) {
	from, ok := requiredFrom[to]
	if !ok {
		return nil, false, ErrInvalidTransition
	}

	query := `
		UPDATE transactions
		SET status = $3,
		    gateway_payment_id = COALESCE(NULLIF($4, ''), gateway_payment_id),
		    payment_method = COALESCE(NULLIF($5, ''), payment_method),
		    failure_reason = COALESCE(NULLIF($6, ''), failure_reason),
		    updated_at = NOW()
		WHERE order_id = $1 AND status = $2
		RETURNING ` + selectColumns

	var t Transaction
	err := sqlx.GetContext(ctx, ext, &t, query, orderID, from, to,
		details.GatewayPaymentID, details.PaymentMethod, details.FailureReason)
	if err == nil {
		return &t, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("transaction repository transition: %w", err)
	}

	// The guard did not match. Either the row does not exist, another
	// caller already moved it, or the target is illegal from its
	// current state.
	current, err := r.getByOrderID(ctx, ext, orderID)
	if err != nil {
		return nil, false, err
	}

	if current.Status == to {
		return current, false, nil
	}
	// A settled row absorbing a late pending-transition is the loser of
	// a reconciliation race, not an error.
	if from == StatusPending && current.Status.Settled() {
		return current, false, nil
	}

	return current, false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
}

// FindLatestPending returns the newest pending transaction within the window
func (r *repository) FindLatestPending(ctx context.Context, userID uuid.UUID, window time.Duration) (*Transaction, error) {
	query := `SELECT ` + selectColumns + `
		FROM transactions
		WHERE user_id = $1 AND status = $2 AND created_at > $3
		ORDER BY created_at DESC
		LIMIT 1`

	var t Transaction
	err := r.db.GetContext(ctx, &t, query, userID, StatusPending, time.Now().Add(-window))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction repository find latest pending: %w", err)
	}

	return &t, nil
}

// ListByUser returns paginated transaction history, newest first
func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + selectColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	transactions := make([]Transaction, 0)
	if err := r.db.SelectContext(ctx, &transactions, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("transaction repository list by user: %w", err)
	}

	return transactions, nil
}
