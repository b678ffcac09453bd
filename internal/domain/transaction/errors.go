package transaction

import "errors"

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInternal            = errors.New("transaction internal error")
)
