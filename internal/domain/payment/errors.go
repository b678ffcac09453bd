package payment

import "errors"

var (
	ErrUnknownPackage = errors.New("unknown credit package")
)
