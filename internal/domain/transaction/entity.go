package transaction

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a payment transaction.
// Legal transitions: pending -> completed, pending -> failed,
// completed -> refunded. Terminal rows never change again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// IsTerminal reports whether no further transition can leave this state.
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusRefunded
}

// Settled reports whether the purchase reached an outcome (credits
// either granted or definitively not).
func (s Status) Settled() bool {
	return s != StatusPending
}

// requiredFrom maps each target status to the only status a row may
// hold for the transition to apply.
var requiredFrom = map[Status]Status{
	StatusCompleted: StatusPending,
	StatusFailed:    StatusPending,
	StatusRefunded:  StatusCompleted,
}

// Transaction is an append-only purchase record correlating our
// order id with the gateway's order and payment ids.
type Transaction struct {
	ID               uuid.UUID      `json:"id" db:"id"`
	OrderID          string         `json:"order_id" db:"order_id"`
	UserID           uuid.UUID      `json:"user_id" db:"user_id"`
	GatewayOrderID   sql.NullString `json:"-" db:"gateway_order_id"`
	GatewayPaymentID sql.NullString `json:"-" db:"gateway_payment_id"`
	Amount           int64          `json:"amount" db:"amount"` // paise
	Currency         string         `json:"currency" db:"currency"`
	Credits          int            `json:"credits" db:"credits"`
	PackageType      string         `json:"package_type" db:"package_type"`
	ValidityMonths   int            `json:"validity_months" db:"validity_months"`
	Status           Status         `json:"status" db:"status"`
	FailureReason    sql.NullString `json:"failure_reason,omitempty" db:"failure_reason"`
	PaymentMethod    sql.NullString `json:"payment_method,omitempty" db:"payment_method"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// NewOrderID generates an internal order identifier
func NewOrderID() string {
	return "order_" + uuid.NewString()
}

// TransitionDetails carries optional fields recorded alongside a
// status transition.
type TransitionDetails struct {
	GatewayPaymentID string
	PaymentMethod    string
	FailureReason    string
}
