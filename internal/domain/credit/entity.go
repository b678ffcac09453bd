package credit

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TxType defines supported credit transaction types.
type TxType string

const (
	TxTypeDeduction   TxType = "deduction"
	TxTypePurchase    TxType = "purchase"
	TxTypeSignupBonus TxType = "signup_bonus"
	TxTypeExpiry      TxType = "expiry_reset"
	TxTypeFreeReset   TxType = "free_reset"
)

// Account holds a user's spendable credit balance. Purchased credits
// carry an expiry date; the monthly free floor does not.
type Account struct {
	UserID        uuid.UUID    `db:"user_id"`
	Balance       int          `db:"balance"`
	ExpiryDate    sql.NullTime `db:"expiry_date"`
	LastResetDate time.Time    `db:"last_reset_date"`
}

// TxMeta represents optional metadata attached to a credit transaction.
type TxMeta struct {
	RelatedEntityType *string
	RelatedEntityID   *string
	Description       string
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}

// CreditTransaction is a ledger row.
type CreditTransaction struct {
	ID                string    `json:"id" db:"id"`
	UserID            string    `json:"user_id" db:"user_id"`
	AmountDelta       int       `json:"amount_delta" db:"amount_delta"`
	TxType            string    `json:"tx_type" db:"tx_type"`
	RelatedEntityType *string   `json:"related_entity_type,omitempty" db:"related_entity_type"`
	RelatedEntityID   *string   `json:"related_entity_id,omitempty" db:"related_entity_id"`
	Description       string    `json:"description" db:"description"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
