/**
 * @description
 * HTTP router setup for the monetization service using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers monetization routes.
func NewRouter(h *Handler, jwksURL string, internalKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Monetization service is healthy"))
	})

	r.Route("/internal/monetization", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Post("/earnings", h.handleRecordEarning)
		r.Get("/top-authors", h.handleTopAuthors)
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))
		r.Get("/monetization/earnings", h.handleListEarnings)
		r.Get("/monetization/earnings/summary", h.handleEarningsSummary)
		r.Get("/monetization/earnings/unpaid", h.handleListUnpaidEarnings)
		r.Post("/monetization/payouts", h.handleRequestPayout)
		r.Get("/monetization/payouts", h.handleListPayouts)
		r.Get("/monetization/payouts/{id}", h.handleGetPayout)
		r.Post("/monetization/payouts/{id}/cancel", h.handleCancelPayout)
		r.Get("/monetization/settings", h.handleGetSettings)
		r.Put("/monetization/settings", h.handleUpdateSettings)
	})

	return r
}
