package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the state of a user's recurring subscription
type SubscriptionStatus string

const (
	SubscriptionNone      SubscriptionStatus = "none"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	// SubscriptionPendingCancellation exists for gateways that confirm
	// cancellation asynchronously. Nothing sets it today.
	SubscriptionPendingCancellation SubscriptionStatus = "pending_cancellation"
)

// User represents a registered account
type User struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	Email              string             `json:"email" db:"email"`
	Name               string             `json:"name" db:"name"`
	SubscriptionID     sql.NullString     `json:"-" db:"subscription_id"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	IsPaidUser         bool               `json:"is_paid_user" db:"is_paid_user"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// HasSubscription reports whether the user carries a gateway subscription id
func (u *User) HasSubscription() bool {
	return u.SubscriptionID.Valid && u.SubscriptionID.String != ""
}
