package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/resumehub/resumehub-api/internal/domain/transaction"
	"github.com/resumehub/resumehub-api/internal/pkg/razorpay"
	"github.com/resumehub/resumehub-api/internal/pkg/throttle"
)

// Gateway is the payment-gateway surface the service needs.
// *razorpay.Client satisfies it.
type Gateway interface {
	CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error)
	FetchOrder(ctx context.Context, gatewayOrderID string) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	VerifyWebhookSignature(body []byte, signature string) bool
	VerifyCheckoutSignature(orderID, paymentID, signature string) bool
	KeyID() string
}

// Service drives credit purchases end to end: order creation, webhook
// reconciliation and the two fallback settlement paths (gateway polling
// and checkout-signature verification). Every settlement funnels
// through the Completer so credits are granted exactly once.
type Service struct {
	transactions  transaction.Repository
	gateway       Gateway
	completer     Completer
	throttle      *throttle.Throttle
	pendingWindow time.Duration
}

func NewService(transactions transaction.Repository, gateway Gateway, completer Completer, th *throttle.Throttle, pendingWindow time.Duration) *Service {
	if pendingWindow <= 0 {
		pendingWindow = 30 * time.Minute
	}
	return &Service{
		transactions:  transactions,
		gateway:       gateway,
		completer:     completer,
		throttle:      th,
		pendingWindow: pendingWindow,
	}
}

// CreateOrder records a pending transaction and opens a gateway order
// for the checkout widget.
func (s *Service) CreateOrder(ctx context.Context, userID uuid.UUID, packageType string) (*CreateOrderResponse, error) {
	pkg, ok := PackageByType(packageType)
	if !ok {
		return nil, ErrUnknownPackage
	}

	t := &transaction.Transaction{
		UserID:         userID,
		Amount:         pkg.Amount,
		Currency:       pkg.Currency,
		Credits:        pkg.Credits,
		PackageType:    pkg.Type,
		ValidityMonths: pkg.ValidityMonths,
	}
	if err := s.transactions.Create(ctx, t); err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   pkg.Amount,
		Currency: pkg.Currency,
		Receipt:  t.OrderID,
		Notes: map[string]string{
			"user_id":      userID.String(),
			"package_type": pkg.Type,
		},
	})
	if err != nil {
		// No gateway order means no payment can ever arrive for this
		// row; fail it instead of leaving a dangling pending.
		if _, _, ferr := s.transactions.TransitionTo(ctx, t.OrderID, transaction.StatusFailed,
			transaction.TransitionDetails{FailureReason: "gateway order creation failed"}); ferr != nil {
			log.Error().Err(ferr).Str("order_id", t.OrderID).Msg("Failed to mark transaction failed")
		}
		return nil, err
	}

	if err := s.transactions.AttachGatewayOrder(ctx, t.OrderID, order.ID); err != nil {
		return nil, err
	}

	return &CreateOrderResponse{
		OrderID:        t.OrderID,
		GatewayOrderID: order.ID,
		KeyID:          s.gateway.KeyID(),
		Amount:         pkg.Amount,
		Currency:       pkg.Currency,
		Credits:        pkg.Credits,
	}, nil
}

// HandleWebhook processes a gateway notification. Only authenticity
// failures are errors; an authentic event that matches nothing is
// logged and dropped so the gateway stops retrying.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		return razorpay.ErrInvalidSignature
	}

	event, err := razorpay.ParseWebhookEvent(body)
	if err != nil {
		log.Warn().Err(err).Msg("Dropping malformed webhook payload")
		return nil
	}

	switch event.Event {
	case razorpay.EventPaymentCaptured:
		return s.handleCaptured(ctx, &event.Payload.Payment.Entity)
	case razorpay.EventPaymentFailed:
		return s.handleFailed(ctx, &event.Payload.Payment.Entity)
	case razorpay.EventPaymentRefunded:
		return s.handleRefunded(ctx, event.Payload.Refund.Entity.PaymentID)
	default:
		log.Debug().Str("event", event.Event).Msg("Ignoring webhook event")
		return nil
	}
}

func (s *Service) handleCaptured(ctx context.Context, p *razorpay.Payment) error {
	t, err := s.transactions.GetByGatewayOrderID(ctx, p.OrderID)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound) {
			log.Warn().Str("gateway_order_id", p.OrderID).Msg("Webhook for unknown order, dropping")
			return nil
		}
		return err
	}

	_, granted, err := s.completer.Complete(ctx, t.OrderID, transaction.TransitionDetails{
		GatewayPaymentID: p.ID,
		PaymentMethod:    p.Method,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("order_id", t.OrderID).
		Str("gateway_payment_id", p.ID).
		Bool("granted", granted).
		Msg("Payment captured")
	return nil
}

func (s *Service) handleFailed(ctx context.Context, p *razorpay.Payment) error {
	t, err := s.transactions.GetByGatewayOrderID(ctx, p.OrderID)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound) {
			log.Warn().Str("gateway_order_id", p.OrderID).Msg("Failure webhook for unknown order, dropping")
			return nil
		}
		return err
	}

	reason := p.ErrorDescription
	if reason == "" {
		reason = "payment failed"
	}
	_, applied, err := s.transactions.TransitionTo(ctx, t.OrderID, transaction.StatusFailed,
		transaction.TransitionDetails{GatewayPaymentID: p.ID, FailureReason: reason})
	if err != nil {
		return err
	}

	log.Info().
		Str("order_id", t.OrderID).
		Bool("applied", applied).
		Str("reason", reason).
		Msg("Payment failed")
	return nil
}

func (s *Service) handleRefunded(ctx context.Context, paymentID string) error {
	if paymentID == "" {
		return nil
	}

	p, err := s.fetchPaymentThrottled(ctx, paymentID)
	if err != nil {
		log.Warn().Err(err).Str("payment_id", paymentID).Msg("Could not resolve refunded payment, dropping")
		return nil
	}

	t, err := s.transactions.GetByGatewayOrderID(ctx, p.OrderID)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound) {
			log.Warn().Str("gateway_order_id", p.OrderID).Msg("Refund webhook for unknown order, dropping")
			return nil
		}
		return err
	}

	_, applied, err := s.transactions.TransitionTo(ctx, t.OrderID, transaction.StatusRefunded,
		transaction.TransitionDetails{GatewayPaymentID: paymentID})
	if err != nil {
		if errors.Is(err, transaction.ErrInvalidTransition) {
			log.Warn().Str("order_id", t.OrderID).Msg("Refund for unsettled order, dropping")
			return nil
		}
		return err
	}

	// Credits already spent are not clawed back; the refund is recorded
	// for support and history.
	log.Info().Str("order_id", t.OrderID).Bool("applied", applied).Msg("Payment refunded")
	return nil
}

// LatestPending is the passive read: the newest pending purchase within
// the window, without touching the gateway.
func (s *Service) LatestPending(ctx context.Context, userID uuid.UUID) (*PendingStatus, error) {
	t, err := s.transactions.FindLatestPending(ctx, userID, s.pendingWindow)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound) {
			return &PendingStatus{Pending: false}, nil
		}
		return nil, err
	}
	return pendingStatus(t), nil
}

// ResolvePending actively reconciles the newest pending purchase by
// asking the gateway for the order status. Settlement goes through the
// same Completer path as webhooks; gateway trouble degrades to "still
// pending" rather than an error.
func (s *Service) ResolvePending(ctx context.Context, userID uuid.UUID) (*PendingStatus, error) {
	t, err := s.transactions.FindLatestPending(ctx, userID, s.pendingWindow)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound) {
			return &PendingStatus{Pending: false}, nil
		}
		return nil, err
	}

	if !t.GatewayOrderID.Valid || t.GatewayOrderID.String == "" {
		return pendingStatus(t), nil
	}

	var order *razorpay.Order
	err = s.throttle.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		order, fetchErr = s.gateway.FetchOrder(ctx, t.GatewayOrderID.String)
		return fetchErr
	})
	if err != nil {
		log.Warn().Err(err).Str("order_id", t.OrderID).Msg("Gateway order fetch failed, leaving pending")
		return pendingStatus(t), nil
	}

	if !order.Paid() {
		return pendingStatus(t), nil
	}

	if _, granted, err := s.completer.Complete(ctx, t.OrderID, transaction.TransitionDetails{}); err != nil {
		return nil, err
	} else if granted {
		log.Info().Str("order_id", t.OrderID).Msg("Pending purchase settled via gateway polling")
	}

	return &PendingStatus{Pending: false}, nil
}

// VerifyCheckout settles a purchase from the signed triple the checkout
// widget returns. Same Completer path as the webhook.
func (s *Service) VerifyCheckout(ctx context.Context, userID uuid.UUID, req VerifyCheckoutRequest) (*transaction.Transaction, error) {
	t, err := s.transactions.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, transaction.ErrTransactionNotFound
	}
	if !t.GatewayOrderID.Valid || t.GatewayOrderID.String == "" {
		return nil, razorpay.ErrInvalidSignature
	}

	if !s.gateway.VerifyCheckoutSignature(t.GatewayOrderID.String, req.GatewayPaymentID, req.Signature) {
		return nil, razorpay.ErrInvalidSignature
	}

	updated, granted, err := s.completer.Complete(ctx, t.OrderID, transaction.TransitionDetails{
		GatewayPaymentID: req.GatewayPaymentID,
	})
	if err != nil {
		return nil, err
	}
	if granted {
		log.Info().Str("order_id", t.OrderID).Msg("Purchase settled via checkout verification")
	}

	return updated, nil
}

// History returns the user's purchase history, newest first
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]transaction.Transaction, error) {
	return s.transactions.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) fetchPaymentThrottled(ctx context.Context, paymentID string) (*razorpay.Payment, error) {
	var p *razorpay.Payment
	err := s.throttle.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		p, fetchErr = s.gateway.FetchPayment(ctx, paymentID)
		return fetchErr
	})
	return p, err
}

func pendingStatus(t *transaction.Transaction) *PendingStatus {
	return &PendingStatus{
		Pending: true,
		Transaction: &PendingTransaction{
			OrderID:     t.OrderID,
			PackageType: t.PackageType,
			Amount:      t.Amount,
			CreatedAt:   t.CreatedAt,
		},
	}
}
