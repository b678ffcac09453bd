package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/resumehub/resumehub-api/internal/config"
	"github.com/resumehub/resumehub-api/internal/domain/credit"
	"github.com/resumehub/resumehub-api/internal/domain/payment"
	"github.com/resumehub/resumehub-api/internal/domain/subscription"
	"github.com/resumehub/resumehub-api/internal/domain/transaction"
	"github.com/resumehub/resumehub-api/internal/domain/user"
	"github.com/resumehub/resumehub-api/internal/middleware"
	"github.com/resumehub/resumehub-api/internal/pkg/database"
	"github.com/resumehub/resumehub-api/internal/pkg/geocode"
	"github.com/resumehub/resumehub-api/internal/pkg/jwt"
	"github.com/resumehub/resumehub-api/internal/pkg/logger"
	"github.com/resumehub/resumehub-api/internal/pkg/razorpay"
	pkgresponse "github.com/resumehub/resumehub-api/internal/pkg/response"
	"github.com/resumehub/resumehub-api/internal/pkg/throttle"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting ResumeHub API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	gateway := razorpay.NewClient(razorpay.Config{
		KeyID:         cfg.RazorpayKeyID,
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
		BaseURL:       cfg.RazorpayBaseURL,
		Timeout:       cfg.GatewayTimeout,
	})

	// One throttle per upstream so a burst against one provider never
	// starves the other.
	gatewayThrottle := throttle.New(time.Second, 64)
	defer gatewayThrottle.Close()
	geocodeThrottle := throttle.New(cfg.GeocodeInterval, 64)
	defer geocodeThrottle.Close()

	geocoder := geocode.NewClient(cfg.GeocodeBaseURL, geocodeThrottle, redis, cfg.GeocodeCacheTTL)

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	transactionRepo := transaction.NewRepository(db)

	// ---------- Services ----------
	creditService := credit.NewService(db, cfg.SignupBonusCredits)
	completer := payment.NewTxCompleter(db, transactionRepo, creditService)
	paymentService := payment.NewService(transactionRepo, gateway, completer, gatewayThrottle, cfg.PendingWindow)
	subscriptionService := subscription.NewService(userRepo, gateway)

	// ---------- Handlers ----------
	creditHandler := credit.NewHandler(creditService)
	paymentHandler := payment.NewHandler(paymentService)
	subscriptionHandler := subscription.NewHandler(subscriptionService)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/credits", creditHandler.Routes(authMiddleware))
		r.Mount("/payments", paymentHandler.Routes(authMiddleware))
		r.Mount("/subscriptions", subscriptionHandler.Routes(authMiddleware))
		r.Mount("/webhooks", paymentHandler.WebhookRoutes())

		r.Route("/geo", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/reverse", reverseGeocodeHandler(geocoder))
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func reverseGeocodeHandler(geocoder *geocode.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if middleware.GetUserID(r.Context()) == uuid.Nil {
			pkgresponse.Unauthorized(w, "unauthorized")
			return
		}

		lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
		lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
		if latErr != nil || lonErr != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			pkgresponse.BadRequest(w, "lat and lon query parameters are required")
			return
		}

		loc, err := geocoder.Reverse(r.Context(), lat, lon)
		if err != nil {
			log.Warn().Err(err).Msg("Reverse geocode failed")
			pkgresponse.Error(w, http.StatusBadGateway, "GEOCODE_ERROR", "reverse geocoding unavailable")
			return
		}

		pkgresponse.OK(w, loc)
	}
}
