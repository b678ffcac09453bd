package credit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// service implements the Service interface
type service struct {
	repo *Repository
}

// NewService creates a new credit service
func NewService(db *sqlx.DB, freeCredits int) Service {
	return &service{
		repo: NewRepository(db, freeCredits),
	}
}

func (s *service) EnsureAccount(ctx context.Context, userID uuid.UUID) error {
	return s.repo.EnsureAccount(ctx, userID.String())
}

// Grant adds purchased credits to a user
func (s *service) Grant(ctx context.Context, userID uuid.UUID, amount, validityMonths int, meta TransactionMeta) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.repo.Grant(ctx, userID.String(), amount, validityMonths, toTxMeta(meta))
}

// GrantTx adds purchased credits within an external transaction.
// Used by payment reconciliation so the status transition and the grant
// commit together.
func (s *service) GrantTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount, validityMonths int, meta TransactionMeta) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.repo.GrantTx(ctx, tx, userID.String(), amount, validityMonths, toTxMeta(meta))
}

// Debit atomically deducts credits from a user. The account is created
// lazily so first-time users spend against the signup bonus.
func (s *service) Debit(ctx context.Context, userID uuid.UUID, amount int, meta TransactionMeta) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := s.repo.EnsureAccount(ctx, userID.String()); err != nil {
		return err
	}
	return s.repo.Debit(ctx, userID.String(), amount, toTxMeta(meta))
}

// GetBalance returns the current credit balance for a user
func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	if err := s.repo.EnsureAccount(ctx, userID.String()); err != nil {
		return 0, err
	}
	return s.repo.GetBalance(ctx, userID.String())
}

// HasSufficient is an advisory check; Debit remains the authority.
func (s *service) HasSufficient(ctx context.Context, userID uuid.UUID, amount int) (bool, error) {
	balance, err := s.repo.GetBalance(ctx, userID.String())
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// ListTransactions returns paginated ledger history for a user
func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]CreditTransaction, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListTransactions(ctx, userID.String(), Pagination{Limit: limit, Offset: offset})
}

func toTxMeta(meta TransactionMeta) TxMeta {
	txMeta := TxMeta{Description: meta.Description}
	if meta.RelatedEntityType != "" {
		txMeta.RelatedEntityType = &meta.RelatedEntityType
	}
	if meta.RelatedEntityID != "" {
		txMeta.RelatedEntityID = &meta.RelatedEntityID
	}
	return txMeta
}
