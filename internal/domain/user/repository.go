package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines user data access interface
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	UpdateSubscriptionStatus(ctx context.Context, id uuid.UUID, status SubscriptionStatus) error
	SetSubscription(ctx context.Context, id uuid.UUID, subscriptionID string) error
	MarkPaid(ctx context.Context, id uuid.UUID) error
}

// repository implements Repository
type repository struct {
	db *sqlx.DB
}

// NewRepository creates new user repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// GetByID returns user by ID
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, email, name, subscription_id, subscription_status, is_paid_user,
		       created_at, updated_at
		FROM users WHERE id = $1
	`
	var u User
	err := r.db.GetContext(ctx, &u, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository get: %w", err)
	}

	return &u, nil
}

// UpdateSubscriptionStatus sets the subscription status
func (r *repository) UpdateSubscriptionStatus(ctx context.Context, id uuid.UUID, status SubscriptionStatus) error {
	query := `
		UPDATE users SET subscription_status = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("user repository update subscription status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// SetSubscription attaches a gateway subscription id and activates it
func (r *repository) SetSubscription(ctx context.Context, id uuid.UUID, subscriptionID string) error {
	query := `
		UPDATE users SET subscription_id = $2, subscription_status = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, subscriptionID, SubscriptionActive)
	if err != nil {
		return fmt.Errorf("user repository set subscription: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// MarkPaid flags the user as a paying customer
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users SET is_paid_user = TRUE, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("user repository mark paid: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrUserNotFound
	}

	return nil
}
