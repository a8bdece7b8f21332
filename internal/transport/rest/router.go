package rest

import (
	"net/http"

	"sellora-core/internal/logger"
	"sellora-core/internal/middleware"
	"sellora-core/internal/payment/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every surface: the authenticated order API, the
// unauthenticated gateway webhook, the public tracking lookups and metrics.
func NewRouter(h *Handlers, wh *webhook.Handler, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
	}))
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitStrict)
		r.Post("/api/v1/auth/login", h.Login)
		r.Post("/webhooks/payment", wh.ServeHTTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtSecret))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitStrict)
			r.Post("/api/v1/checkout", h.Checkout)
			r.Post("/api/v1/purchases", h.DirectPurchase)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitGeneral)
			r.Get("/api/v1/orders", h.ListOrders)
			r.Get("/api/v1/orders/{id}", h.GetOrder)
			r.Post("/api/v1/orders/{id}/accept", h.Accept)
			r.Post("/api/v1/orders/{id}/decline", h.Decline)
			r.Post("/api/v1/orders/{id}/ship", h.Ship)
			r.Post("/api/v1/orders/{id}/cancel", h.Cancel)
			r.Post("/api/v1/orders/{id}/tracking", h.AddTrackingUpdate)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitGeneral)
		r.Get("/track/orders/{id}", h.TrackByOrderID)
		r.Get("/track/{trackingNumber}", h.TrackByNumber)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
