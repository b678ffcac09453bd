package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrGateway is returned when Razorpay rejects or fails a call.
var ErrGateway = errors.New("razorpay gateway error")

// Config holds Razorpay API configuration
type Config struct {
	KeyID         string // API key id (public, also used by checkout widget)
	KeySecret     string // API key secret for basic auth and signatures
	WebhookSecret string // Secret configured for webhook signing
	BaseURL       string // Defaults to https://api.razorpay.com
	Timeout       time.Duration
}

// Client is a minimal Razorpay REST client covering orders, payments
// and subscription cancellation.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a Razorpay client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.razorpay.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: timeout},
	}
}

// KeyID returns the public key id for checkout bootstrapping
func (c *Client) KeyID() string {
	return c.config.KeyID
}

// VerifyWebhookSignature validates a raw webhook body against the
// configured webhook secret.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	return VerifyWebhookSignature(c.config.WebhookSecret, body, signature)
}

// VerifyCheckoutSignature validates the signature the checkout widget
// returns after payment.
func (c *Client) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	return VerifyCheckoutSignature(c.config.KeySecret, orderID, paymentID, signature)
}

// CreateOrderRequest represents an order creation request.
// Amount is in the smallest currency unit (paise for INR).
type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order represents a Razorpay order
type Order struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"` // created, attempted, paid
}

// Paid reports whether the order has been fully paid
func (o *Order) Paid() bool {
	return o.Status == "paid"
}

// Payment represents a Razorpay payment
type Payment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"` // created, authorized, captured, refunded, failed
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

// Subscription represents a Razorpay subscription
type Subscription struct {
	ID     string `json:"id"`
	PlanID string `json:"plan_id"`
	Status string `json:"status"` // created, active, cancelled, ...
}

// CreateOrder creates a gateway order for checkout
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(c.config.KeyID) == "" || strings.TrimSpace(c.config.KeySecret) == "" {
		return nil, fmt.Errorf("razorpay config error: api key is empty")
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}

	var order Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// FetchOrder retrieves order status from the gateway
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("validation error: order id is empty")
	}
	var order Order
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// FetchPayment retrieves payment details from the gateway
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("validation error: payment id is empty")
	}
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CancelSubscription cancels a recurring subscription at the gateway.
// cancelAtCycleEnd=false cancels immediately.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("validation error: subscription id is empty")
	}
	body := map[string]interface{}{"cancel_at_cycle_end": 0}
	var sub Subscription
	if err := c.do(ctx, http.MethodPost, "/v1/subscriptions/"+subscriptionID+"/cancel", body, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// apiError mirrors Razorpay's error envelope
type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("razorpay: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("razorpay: build request: %w", err)
	}
	req.SetBasicAuth(c.config.KeyID, c.config.KeySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Description != "" {
			return fmt.Errorf("%w: %s (%s)", ErrGateway, apiErr.Error.Description, apiErr.Error.Code)
		}
		return fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrGateway, err)
		}
	}
	return nil
}
