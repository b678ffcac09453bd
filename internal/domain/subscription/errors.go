package subscription

import "errors"

var (
	ErrNoActiveSubscription = errors.New("no active subscription")
)
