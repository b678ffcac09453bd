package razorpay

import "testing"

func TestParseWebhookEvent(t *testing.T) {
	body := []byte(`{
		"event": "payment.captured",
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_Nxq2y8jD4lQ1cd",
					"order_id": "order_Nxq1v7hC3kP0ab",
					"amount": 49900,
					"currency": "INR",
					"status": "captured",
					"method": "upi"
				}
			}
		},
		"created_at": 1724900000
	}`)

	event, err := ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Event != EventPaymentCaptured {
		t.Fatalf("expected %q, got %q", EventPaymentCaptured, event.Event)
	}
	payment := event.Payload.Payment.Entity
	if payment.OrderID != "order_Nxq1v7hC3kP0ab" || payment.Amount != 49900 || payment.Method != "upi" {
		t.Fatalf("unexpected payment entity: %+v", payment)
	}
}

func TestParseWebhookEventFailedPayment(t *testing.T) {
	body := []byte(`{
		"event": "payment.failed",
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_x",
					"order_id": "order_x",
					"status": "failed",
					"error_code": "BAD_REQUEST_ERROR",
					"error_description": "Payment declined by bank"
				}
			}
		}
	}`)

	event, err := ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Event != EventPaymentFailed {
		t.Fatalf("expected payment.failed, got %q", event.Event)
	}
	if event.Payload.Payment.Entity.ErrorDescription != "Payment declined by bank" {
		t.Fatalf("expected failure reason to survive parsing")
	}
}

func TestParseWebhookEventRejectsGarbage(t *testing.T) {
	if _, err := ParseWebhookEvent([]byte("not json")); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
	if _, err := ParseWebhookEvent([]byte(`{"payload":{}}`)); err == nil {
		t.Fatal("expected error for missing event name")
	}
}
