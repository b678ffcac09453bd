package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/resumehub/resumehub-api/internal/domain/transaction"
	"github.com/resumehub/resumehub-api/internal/middleware"
	"github.com/resumehub/resumehub-api/internal/pkg/razorpay"
	"github.com/resumehub/resumehub-api/internal/pkg/response"
	"github.com/resumehub/resumehub-api/internal/pkg/validator"
)

const maxWebhookBody = 1 << 20

// Handler handles payment HTTP requests
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Packages handles GET /payments/packages
func (h *Handler) Packages(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]interface{}{"packages": Packages()})
}

// CreateOrder handles POST /payments/orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	out, err := h.service.CreateOrder(r.Context(), userID, req.PackageType)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownPackage):
			response.BadRequest(w, "unknown package type")
		case errors.Is(err, razorpay.ErrGateway):
			log.Error().Err(err).Msg("Gateway order creation failed")
			response.Error(w, http.StatusBadGateway, "PAYMENT_GATEWAY_ERROR", "payment gateway unavailable")
		default:
			log.Error().Err(err).Msg("Order creation failed")
			response.InternalError(w)
		}
		return
	}

	response.Created(w, out)
}

// Webhook handles POST /webhooks/razorpay. Responds 400 only when the
// signature fails; authentic events always get 200 so the gateway does
// not retry settled or unknown orders.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}

	signature := r.Header.Get("X-Razorpay-Signature")
	if err := h.service.HandleWebhook(r.Context(), body, signature); err != nil {
		if errors.Is(err, razorpay.ErrInvalidSignature) {
			response.BadRequest(w, "invalid signature")
			return
		}
		log.Error().Err(err).Msg("Webhook processing failed")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"processed": true})
}

// Pending handles GET /payments/pending
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	status, err := h.service.ResolvePending(r.Context(), userID)
	if err != nil {
		// The client only needs to know whether to keep waiting.
		log.Error().Err(err).Msg("Pending resolution failed")
		response.OK(w, &PendingStatus{Pending: false})
		return
	}

	response.OK(w, status)
}

// Verify handles POST /payments/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req VerifyCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	t, err := h.service.VerifyCheckout(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, razorpay.ErrInvalidSignature):
			response.BadRequest(w, "invalid signature")
		case errors.Is(err, transaction.ErrTransactionNotFound):
			response.NotFound(w, "transaction not found")
		default:
			log.Error().Err(err).Msg("Checkout verification failed")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]interface{}{
		"order_id": t.OrderID,
		"status":   t.Status,
	})
}

// History handles GET /payments
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transactions, err := h.service.History(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"transactions": transactions})
}

// Routes wires the payment API surface. The catalog is public; the
// rest requires auth.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/packages", h.Packages)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.History)
		r.Post("/orders", h.CreateOrder)
		r.Get("/pending", h.Pending)
		r.Post("/verify", h.Verify)
	})
	return r
}

// WebhookRoutes wires the unauthenticated gateway callback
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/razorpay", h.Webhook)
	return r
}
