package subscription

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/resumehub/resumehub-api/internal/domain/user"
	"github.com/resumehub/resumehub-api/internal/pkg/razorpay"
)

// GatewayCanceller is the gateway surface needed for cancellation.
// *razorpay.Client satisfies it.
type GatewayCanceller interface {
	CancelSubscription(ctx context.Context, subscriptionID string) (*razorpay.Subscription, error)
}

// CancelResult is returned after a successful cancellation
type CancelResult struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// StatusResult reports the user's current subscription state
type StatusResult struct {
	Status          string `json:"status"`
	HasSubscription bool   `json:"has_subscription"`
}

// Service manages recurring-subscription state. Cancellation is
// gateway-first: local state only changes after the gateway confirms.
type Service struct {
	users   user.Repository
	gateway GatewayCanceller
}

func NewService(users user.Repository, gateway GatewayCanceller) *Service {
	return &Service{users: users, gateway: gateway}
}

// Cancel cancels the user's subscription at the gateway and, only on
// success, persists the cancelled status.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID) (*CancelResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !u.HasSubscription() || u.SubscriptionStatus == user.SubscriptionCancelled {
		return nil, ErrNoActiveSubscription
	}

	if _, err := s.gateway.CancelSubscription(ctx, u.SubscriptionID.String); err != nil {
		// Gateway refused; the subscription may still be live, so the
		// local record stays untouched.
		return nil, err
	}

	if err := s.users.UpdateSubscriptionStatus(ctx, userID, user.SubscriptionCancelled); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("subscription_id", u.SubscriptionID.String).
		Msg("Subscription cancelled")

	return &CancelResult{
		Message: "subscription cancelled",
		Status:  string(user.SubscriptionCancelled),
	}, nil
}

// Status returns the user's current subscription state
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*StatusResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := u.SubscriptionStatus
	if status == "" {
		status = user.SubscriptionNone
	}

	return &StatusResult{
		Status:          string(status),
		HasSubscription: u.HasSubscription(),
	}, nil
}
