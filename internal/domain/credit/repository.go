package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	queryTimeout  = 3 * time.Second
	resetInterval = 30 * 24 * time.Hour
)

// Repository provides credit account and ledger operations.
type Repository struct {
	db *sqlx.DB

	// freeCredits is both the signup bonus and the monthly free floor.
	freeCredits int
}

func NewRepository(db *sqlx.DB, freeCredits int) *Repository {
	return &Repository{db: db, freeCredits: freeCredits}
}

// EnsureAccount creates the account with the signup bonus if it does not
// exist yet. Safe to call repeatedly.
func (r *Repository) EnsureAccount(ctx context.Context, userID string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if err := r.ensureAccountTx(ctx2, tx, userID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return nil
}

func (r *Repository) ensureAccountTx(ctx context.Context, tx *sqlx.Tx, userID string) error {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO credit_accounts (user_id, balance, last_reset_date)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO NOTHING
	`, userID, r.freeCredits)
	if err != nil {
		return fmt.Errorf("%w: ensure account", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 1 && r.freeCredits > 0 {
		meta := TxMeta{Description: "signup bonus"}
		if err := r.insertLedger(ctx, tx, userID, r.freeCredits, string(TxTypeSignupBonus), meta); err != nil {
			return err
		}
	}

	return nil
}

// sweep applies lazy balance maintenance under a row lock: expired
// purchased credits drop to zero, and a stale free allowance is topped
// back up to the floor. Runs before any balance read or debit.
func (r *Repository) sweep(ctx context.Context, tx *sqlx.Tx, userID string) (*Account, bool, error) {
	var acc Account
	err := tx.QueryRowContext(ctx, `
		SELECT user_id, balance, expiry_date, last_reset_date
		FROM credit_accounts WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&acc.UserID, &acc.Balance, &acc.ExpiryDate, &acc.LastResetDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrAccountNotFound
		}
		return nil, false, fmt.Errorf("%w: lock account row", ErrInternal)
	}

	now := time.Now()
	expired := false

	if acc.ExpiryDate.Valid && acc.ExpiryDate.Time.Before(now) {
		if acc.Balance > 0 {
			meta := TxMeta{Description: "purchased credits expired"}
			if err := r.insertLedger(ctx, tx, userID, -acc.Balance, string(TxTypeExpiry), meta); err != nil {
				return nil, false, err
			}
			expired = true
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE credit_accounts SET balance = 0, expiry_date = NULL
			WHERE user_id = $1
		`, userID)
		if err != nil {
			return nil, false, fmt.Errorf("%w: expire balance", ErrInternal)
		}
		acc.Balance = 0
		acc.ExpiryDate = sql.NullTime{}
	}

	if now.Sub(acc.LastResetDate) >= resetInterval && acc.Balance < r.freeCredits {
		delta := r.freeCredits - acc.Balance
		meta := TxMeta{Description: "monthly free credits"}
		if err := r.insertLedger(ctx, tx, userID, delta, string(TxTypeFreeReset), meta); err != nil {
			return nil, false, err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE credit_accounts SET balance = $2, last_reset_date = NOW()
			WHERE user_id = $1
		`, userID, r.freeCredits)
		if err != nil {
			return nil, false, fmt.Errorf("%w: reset free credits", ErrInternal)
		}
		acc.Balance = r.freeCredits
	}

	return &acc, expired, nil
}

// Grant adds credits and extends the expiry window.
func (r *Repository) Grant(ctx context.Context, userID string, amount, validityMonths int, meta TxMeta) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if err := r.GrantTx(ctx2, tx, userID, amount, validityMonths, meta); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return nil
}

// GrantTx adds credits within an external transaction. The caller is
// responsible for commit or rollback.
func (r *Repository) GrantTx(ctx context.Context, tx *sqlx.Tx, userID string, amount, validityMonths int, meta TxMeta) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if err := r.ensureAccountTx(ctx, tx, userID); err != nil {
		return err
	}

	var newExpiry sql.NullTime
	if validityMonths > 0 {
		newExpiry = sql.NullTime{Time: time.Now().AddDate(0, validityMonths, 0), Valid: true}
	}

	// Expiry only ever moves forward: max(existing, now+validity).
	_, err := tx.ExecContext(ctx, `
		UPDATE credit_accounts
		SET balance = balance + $2,
		    expiry_date = CASE
		        WHEN $3::timestamptz IS NULL THEN expiry_date
		        WHEN expiry_date IS NULL OR expiry_date < $3::timestamptz THEN $3::timestamptz
		        ELSE expiry_date
		    END
		WHERE user_id = $1
	`, userID, amount, newExpiry)
	if err != nil {
		return fmt.Errorf("%w: update account balance", ErrInternal)
	}

	return r.insertLedger(ctx, tx, userID, amount, string(TxTypePurchase), meta)
}

// Debit deducts credits atomically. The sweep and the conditional
// deduction commit together, so a failed debit leaves no trace.
func (r *Repository) Debit(ctx context.Context, userID string, amount int, meta TxMeta) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	_, expired, err := r.sweep(ctx2, tx, userID)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx2, `
		UPDATE credit_accounts
		SET balance = balance - $2
		WHERE user_id = $1 AND balance >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("%w: update account balance", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		if expired {
			return ErrCreditsExpired
		}
		return ErrInsufficientCredits
	}

	if err := r.insertLedger(ctx2, tx, userID, -amount, string(TxTypeDeduction), meta); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return nil
}

// GetBalance returns the current balance after the lazy sweep.
func (r *Repository) GetBalance(ctx context.Context, userID string) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	acc, _, err := r.sweep(ctx2, tx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return acc.Balance, nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID string, pagination Pagination) ([]CreditTransaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	limit := pagination.Limit
	if limit <= 0 {
		limit = 20
	}

	transactions := make([]CreditTransaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, user_id, amount_delta, tx_type, related_entity_type, related_entity_id, description, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, pagination.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}

	return transactions, nil
}

func (r *Repository) insertLedger(ctx context.Context, tx *sqlx.Tx, userID string, amountDelta int, txType string, meta TxMeta) error {
	switch TxType(txType) {
	case TxTypeDeduction, TxTypePurchase, TxTypeSignupBonus, TxTypeExpiry, TxTypeFreeReset:
	default:
		return ErrInternal
	}

	if strings.TrimSpace(meta.Description) == "" {
		meta.Description = "credit balance adjustment"
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (
			id, user_id, amount_delta, tx_type, related_entity_type, related_entity_id, description
		)
		VALUES (
			gen_random_uuid(), $1, $2, $3, $4, $5, $6
		)
	`, userID, amountDelta, txType, meta.RelatedEntityType, meta.RelatedEntityID, meta.Description)
	if err != nil {
		return fmt.Errorf("%w: insert transaction", ErrInternal)
	}

	return nil
}
