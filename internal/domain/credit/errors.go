package credit

import "errors"

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrCreditsExpired      = errors.New("credits expired")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAccountNotFound     = errors.New("credit account not found")
	ErrInternal            = errors.New("credit internal error")
)
