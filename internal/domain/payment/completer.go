package payment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/resumehub/resumehub-api/internal/domain/credit"
	"github.com/resumehub/resumehub-api/internal/domain/transaction"
)

// Completer settles a purchase: the completed transition and the credit
// grant succeed or fail as one unit. granted is false when another
// reconciliation path already settled the row.
type Completer interface {
	Complete(ctx context.Context, orderID string, details transaction.TransitionDetails) (t *transaction.Transaction, granted bool, err error)
}

// TxCompleter runs both mutations inside a single database transaction.
type TxCompleter struct {
	db           *sqlx.DB
	transactions transaction.Repository
	credits      credit.Service
}

func NewTxCompleter(db *sqlx.DB, transactions transaction.Repository, credits credit.Service) *TxCompleter {
	return &TxCompleter{db: db, transactions: transactions, credits: credits}
}

func (c *TxCompleter) Complete(ctx context.Context, orderID string, details transaction.TransitionDetails) (*transaction.Transaction, bool, error) {
	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("payment completer: begin tx: %w", err)
	}
	defer tx.Rollback()

	updated, applied, err := c.transactions.TransitionToTx(ctx, tx, orderID, transaction.StatusCompleted, details)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		// Row already settled; nothing to grant. Commit so the no-op
		// read does not hold the lock.
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("payment completer: commit tx: %w", err)
		}
		return updated, false, nil
	}

	meta := credit.TransactionMeta{
		RelatedEntityType: "payment_transaction",
		RelatedEntityID:   updated.OrderID,
		Description:       fmt.Sprintf("%s package purchase", updated.PackageType),
	}
	if err := c.credits.GrantTx(ctx, tx, updated.UserID, updated.Credits, updated.ValidityMonths, meta); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("payment completer: commit tx: %w", err)
	}

	return updated, true, nil
}
