package razorpay

import (
	"encoding/json"
	"fmt"
)

// Webhook event names delivered to the notification endpoint
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventPaymentRefunded = "refund.processed"
)

// WebhookEvent represents the Razorpay webhook envelope.
// Razorpay posts JSON with the interesting entity nested under
// payload.<type>.entity.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity Payment `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
				Amount    int64  `json:"amount"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

// ParseWebhookEvent parses a raw webhook body into a structured event
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("invalid webhook payload: event name is missing")
	}
	return &event, nil
}
