package payment_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumehub/resumehub-api/internal/domain/payment"
	"github.com/resumehub/resumehub-api/internal/domain/transaction"
	"github.com/resumehub/resumehub-api/internal/pkg/razorpay"
	"github.com/resumehub/resumehub-api/internal/pkg/throttle"
)

const (
	testWebhookSecret = "whsec_test"
	testKeySecret     = "rzp_secret_test"
)

/* =========================
   Fakes
   ========================= */

type fakeRepo struct {
	mu        sync.Mutex
	byOrderID map[string]*transaction.Transaction
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byOrderID: make(map[string]*transaction.Transaction)}
}

func (r *fakeRepo) Create(ctx context.Context, t *transaction.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.OrderID == "" {
		t.OrderID = transaction.NewOrderID()
	}
	if t.Status == "" {
		t.Status = transaction.StatusPending
	}
	t.CreatedAt = time.Now()
	cp := *t
	r.byOrderID[t.OrderID] = &cp
	return nil
}

func (r *fakeRepo) GetByOrderID(ctx context.Context, orderID string) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byOrderID[orderID]
	if !ok {
		return nil, transaction.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byOrderID {
		if t.GatewayOrderID.Valid && t.GatewayOrderID.String == gatewayOrderID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, transaction.ErrTransactionNotFound
}

func (r *fakeRepo) AttachGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byOrderID[orderID]
	if !ok {
		return transaction.ErrTransactionNotFound
	}
	t.GatewayOrderID = sql.NullString{String: gatewayOrderID, Valid: true}
	return nil
}

func (r *fakeRepo) TransitionTo(ctx context.Context, orderID string, to transaction.Status, details transaction.TransitionDetails) (*transaction.Transaction, bool, error) {
	return r.TransitionToTx(ctx, nil, orderID, to, details)
}

func (r *fakeRepo) TransitionToTx(ctx context.Context, ext sqlx.ExtContext, orderID string, to transaction.Status, details transaction.TransitionDetails) (*transaction.Transaction, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var from transaction.Status
	switch to {
	case transaction.StatusCompleted, transaction.StatusFailed:
		from = transaction.StatusPending
	case transaction.StatusRefunded:
		from = transaction.StatusCompleted
	default:
		return nil, false, transaction.ErrInvalidTransition
	}

	t, ok := r.byOrderID[orderID]
	if !ok {
		return nil, false, transaction.ErrTransactionNotFound
	}

	if t.Status == from {
		t.Status = to
		if details.GatewayPaymentID != "" {
			t.GatewayPaymentID = sql.NullString{String: details.GatewayPaymentID, Valid: true}
		}
		if details.FailureReason != "" {
			t.FailureReason = sql.NullString{String: details.FailureReason, Valid: true}
		}
		cp := *t
		return &cp, true, nil
	}
	if t.Status == to || (from == transaction.StatusPending && t.Status.Settled()) {
		cp := *t
		return &cp, false, nil
	}
	return nil, false, fmt.Errorf("%w: %s -> %s", transaction.ErrInvalidTransition, t.Status, to)
}

func (r *fakeRepo) FindLatestPending(ctx context.Context, userID uuid.UUID, window time.Duration) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *transaction.Transaction
	cutoff := time.Now().Add(-window)
	for _, t := range r.byOrderID {
		if t.UserID != userID || t.Status != transaction.StatusPending || t.CreatedAt.Before(cutoff) {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, transaction.ErrTransactionNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]transaction.Transaction, 0)
	for _, t := range r.byOrderID {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

// fakeCompleter drives the real transition semantics of the fake repo
// and counts grants, standing in for the transactional grant.
type fakeCompleter struct {
	repo   *fakeRepo
	mu     sync.Mutex
	grants int
}

func (c *fakeCompleter) Complete(ctx context.Context, orderID string, details transaction.TransitionDetails) (*transaction.Transaction, bool, error) {
	t, applied, err := c.repo.TransitionTo(ctx, orderID, transaction.StatusCompleted, details)
	if err != nil {
		return nil, false, err
	}
	if applied {
		c.mu.Lock()
		c.grants++
		c.mu.Unlock()
	}
	return t, applied, nil
}

func (c *fakeCompleter) grantCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grants
}

type fakeGateway struct {
	mu        sync.Mutex
	orders    map[string]*razorpay.Order
	createErr error
	fetchErr  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: make(map[string]*razorpay.Order)}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	order := &razorpay.Order{
		ID:       "gw_" + req.Receipt,
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}
	g.orders[order.ID] = order
	return order, nil
}

func (g *fakeGateway) FetchOrder(ctx context.Context, gatewayOrderID string) (*razorpay.Order, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	order, ok := g.orders[gatewayOrderID]
	if !ok {
		return nil, razorpay.ErrGateway
	}
	return order, nil
}

func (g *fakeGateway) FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error) {
	return nil, razorpay.ErrGateway
}

func (g *fakeGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return razorpay.VerifyWebhookSignature(testWebhookSecret, body, signature)
}

func (g *fakeGateway) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	return razorpay.VerifyCheckoutSignature(testKeySecret, orderID, paymentID, signature)
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) markPaid(gatewayOrderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if order, ok := g.orders[gatewayOrderID]; ok {
		order.Status = "paid"
		order.AmountPaid = order.Amount
	}
}

/* =========================
   Harness
   ========================= */

type harness struct {
	repo      *fakeRepo
	gateway   *fakeGateway
	completer *fakeCompleter
	service   *payment.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := newFakeRepo()
	gateway := newFakeGateway()
	completer := &fakeCompleter{repo: repo}
	th := throttle.New(time.Millisecond, 8)
	t.Cleanup(th.Close)
	return &harness{
		repo:      repo,
		gateway:   gateway,
		completer: completer,
		service:   payment.NewService(repo, gateway, completer, th, 30*time.Minute),
	}
}

func (h *harness) createOrder(t *testing.T, userID uuid.UUID) *payment.CreateOrderResponse {
	t.Helper()
	out, err := h.service.CreateOrder(context.Background(), userID, "basic")
	require.NoError(t, err)
	return out
}

func capturedWebhook(t *testing.T, gatewayOrderID, paymentID string) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event": "payment.captured",
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":       paymentID,
					"order_id": gatewayOrderID,
					"status":   "captured",
					"method":   "card",
				},
			},
		},
	})
	require.NoError(t, err)
	return body, razorpay.SignHMAC(testWebhookSecret, body)
}

func failedWebhook(t *testing.T, gatewayOrderID, paymentID, reason string) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event": "payment.failed",
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":                paymentID,
					"order_id":          gatewayOrderID,
					"status":            "failed",
					"error_description": reason,
				},
			},
		},
	})
	require.NoError(t, err)
	return body, razorpay.SignHMAC(testWebhookSecret, body)
}

/* =========================
   Tests
   ========================= */

func TestWebhookInvalidSignatureTouchesNothing(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	order := h.createOrder(t, userID)

	body, _ := capturedWebhook(t, order.GatewayOrderID, "pay_1")
	err := h.service.HandleWebhook(context.Background(), body, "deadbeef")

	require.ErrorIs(t, err, razorpay.ErrInvalidSignature)
	assert.Equal(t, 0, h.completer.grantCount())

	got, err := h.repo.GetByOrderID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, got.Status)
}

func TestWebhookCapturedGrantsOnce(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	order := h.createOrder(t, userID)

	body, sig := capturedWebhook(t, order.GatewayOrderID, "pay_1")

	require.NoError(t, h.service.HandleWebhook(context.Background(), body, sig))
	// Gateway retries deliver the identical event again.
	require.NoError(t, h.service.HandleWebhook(context.Background(), body, sig))

	assert.Equal(t, 1, h.completer.grantCount())

	got, err := h.repo.GetByOrderID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCompleted, got.Status)
	assert.Equal(t, "pay_1", got.GatewayPaymentID.String)
}

func TestWebhookUnknownOrderDropped(t *testing.T) {
	h := newHarness(t)

	body, sig := capturedWebhook(t, "gw_order_unknown", "pay_1")
	require.NoError(t, h.service.HandleWebhook(context.Background(), body, sig))
	assert.Equal(t, 0, h.completer.grantCount())
}

func TestWebhookFailedNoGrant(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	order := h.createOrder(t, userID)

	body, sig := failedWebhook(t, order.GatewayOrderID, "pay_1", "card declined")
	require.NoError(t, h.service.HandleWebhook(context.Background(), body, sig))

	assert.Equal(t, 0, h.completer.grantCount())

	got, err := h.repo.GetByOrderID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusFailed, got.Status)
	assert.Equal(t, "card declined", got.FailureReason.String)
}

func TestWebhookFailedAfterCapturedIsNoOp(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	order := h.createOrder(t, userID)

	capBody, capSig := capturedWebhook(t, order.GatewayOrderID, "pay_1")
	require.NoError(t, h.service.HandleWebhook(context.Background(), capBody, capSig))

	failBody, failSig := failedWebhook(t, order.GatewayOrderID, "pay_1", "late failure")
	require.NoError(t, h.service.HandleWebhook(context.Background(), failBody, failSig))

	got, err := h.repo.GetByOrderID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCompleted, got.Status)
	assert.Equal(t, 1, h.completer.grantCount())
}

func TestCreateOrderUnknownPackage(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.CreateOrder(context.Background(), uuid.New(), "mega")
	require.ErrorIs(t, err, payment.ErrUnknownPackage)
}

func TestCreateOrderGatewayFailureMarksFailed(t *testing.T) {
	h := newHarness(t)
	h.gateway.createErr = fmt.Errorf("%w: boom", razorpay.ErrGateway)
	userID := uuid.New()

	_, err := h.service.CreateOrder(context.Background(), userID, "basic")
	require.ErrorIs(t, err, razorpay.ErrGateway)

	status, err := h.service.LatestPending(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, status.Pending)
}

func TestLatestPendingWindowed(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	order := h.createOrder(t, userID)

	status, err := h.service.LatestPending(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, status.Pending)
	assert.Equal(t, order.OrderID, status.Transaction.OrderID)
	assert.Equal(t, "basic", status.Transaction.PackageType)

	// Push the transaction outside the window.
	h.repo.mu.Lock()
	h.repo.byOrderID[order.OrderID].CreatedAt = time.Now().Add(-45 * time.Minute)
	h.repo.mu.Unlock()

	status, err = h.service.LatestPending(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, status.Pending)
}

func TestResolvePendingPaidOrderSettles(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	order := h.createOrder(t, userID)
	h.gateway.markPaid(order.GatewayOrderID)

	status, err := h.service.ResolvePending(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, status.Pending)
	assert.Equal(t, 1, h.completer.grantCount())

	got, err := h.repo.GetByOrderID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCompleted, got.Status)
}

func TestResolvePendingGatewayErrorDegrades(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	order := h.createOrder(t, userID)
	h.gateway.fetchErr = errors.New("connection refused")

	status, err := h.service.ResolvePending(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, status.Pending)
	assert.Equal(t, order.OrderID, status.Transaction.OrderID)
	assert.Equal(t, 0, h.completer.grantCount())
}

func TestResolvePendingUnpaidStaysPending(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	h.createOrder(t, userID)

	status, err := h.service.ResolvePending(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, status.Pending)
	assert.Equal(t, 0, h.completer.grantCount())
}

func TestVerifyCheckoutSettles(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	order := h.createOrder(t, userID)

	sig := razorpay.SignHMAC(testKeySecret, []byte(order.GatewayOrderID+"|pay_1"))
	got, err := h.service.VerifyCheckout(context.Background(), userID, payment.VerifyCheckoutRequest{
		OrderID:          order.OrderID,
		GatewayPaymentID: "pay_1",
		Signature:        sig,
	})

	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCompleted, got.Status)
	assert.Equal(t, 1, h.completer.grantCount())
}

func TestVerifyCheckoutBadSignature(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	order := h.createOrder(t, userID)

	_, err := h.service.VerifyCheckout(context.Background(), userID, payment.VerifyCheckoutRequest{
		OrderID:          order.OrderID,
		GatewayPaymentID: "pay_1",
		Signature:        "tampered",
	})

	require.ErrorIs(t, err, razorpay.ErrInvalidSignature)
	assert.Equal(t, 0, h.completer.grantCount())
}

func TestVerifyCheckoutWrongUser(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	order := h.createOrder(t, owner)

	sig := razorpay.SignHMAC(testKeySecret, []byte(order.GatewayOrderID+"|pay_1"))
	_, err := h.service.VerifyCheckout(context.Background(), uuid.New(), payment.VerifyCheckoutRequest{
		OrderID:          order.OrderID,
		GatewayPaymentID: "pay_1",
		Signature:        sig,
	})

	require.ErrorIs(t, err, transaction.ErrTransactionNotFound)
}
