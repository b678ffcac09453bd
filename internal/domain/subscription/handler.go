package subscription

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/resumehub/resumehub-api/internal/domain/user"
	"github.com/resumehub/resumehub-api/internal/middleware"
	"github.com/resumehub/resumehub-api/internal/pkg/razorpay"
	"github.com/resumehub/resumehub-api/internal/pkg/response"
)

// Handler handles subscription HTTP requests
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Cancel handles POST /subscriptions/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	result, err := h.service.Cancel(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoActiveSubscription):
			response.BadRequest(w, "no active subscription to cancel")
		case errors.Is(err, user.ErrUserNotFound):
			response.NotFound(w, "user not found")
		case errors.Is(err, razorpay.ErrGateway):
			log.Error().Err(err).Str("user_id", userID.String()).Msg("Gateway cancellation failed")
			response.Error(w, http.StatusBadGateway, "PAYMENT_GATEWAY_ERROR", "could not cancel subscription at the gateway")
		default:
			log.Error().Err(err).Msg("Subscription cancellation failed")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, result)
}

// Status handles GET /subscriptions/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	result, err := h.service.Status(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, result)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/cancel", h.Cancel)
	r.Get("/status", h.Status)
	return r
}
