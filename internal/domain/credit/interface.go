package credit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Service defines credit ledger operations
type Service interface {
	// EnsureAccount lazily creates the account with the signup bonus.
	EnsureAccount(ctx context.Context, userID uuid.UUID) error
	// Grant adds credits and extends expiry to max(existing, now+validityMonths).
	// validityMonths 0 means non-expiring.
	Grant(ctx context.Context, userID uuid.UUID, amount, validityMonths int, meta TransactionMeta) error
	// GrantTx is Grant within an external transaction; the caller commits.
	GrantTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount, validityMonths int, meta TransactionMeta) error
	// Debit atomically deducts credits, failing with ErrInsufficientCredits
	// or ErrCreditsExpired without partial effect.
	Debit(ctx context.Context, userID uuid.UUID, amount int, meta TransactionMeta) error
	GetBalance(ctx context.Context, userID uuid.UUID) (int, error)
	HasSufficient(ctx context.Context, userID uuid.UUID, amount int) (bool, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]CreditTransaction, error)
}

// TransactionMeta carries caller-facing ledger metadata
type TransactionMeta struct {
	RelatedEntityType string
	RelatedEntityID   string
	Description       string
}
