package payment

import "time"

// CreateOrderRequest starts a credit purchase for one catalog package
type CreateOrderRequest struct {
	PackageType string `json:"package_type" validate:"required,package_type"`
}

// CreateOrderResponse carries everything the checkout widget needs
type CreateOrderResponse struct {
	OrderID        string `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	KeyID          string `json:"key_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Credits        int    `json:"credits"`
}

// VerifyCheckoutRequest is the signed triple the checkout widget hands
// back to the client after a successful payment.
type VerifyCheckoutRequest struct {
	OrderID          string `json:"order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

// PendingTransaction is the client-facing shape of an unresolved purchase
type PendingTransaction struct {
	OrderID     string    `json:"order_id"`
	PackageType string    `json:"package_type"`
	Amount      int64     `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// PendingStatus reports whether a purchase is still awaiting settlement
type PendingStatus struct {
	Pending     bool                `json:"pending"`
	Transaction *PendingTransaction `json:"transaction,omitempty"`
}
