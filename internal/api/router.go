package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)    // Tag each request for the logs
	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", apiHandler.HealthHandler)

		// Telegram pushes updates here in webhook mode, authenticated by the secret header
		r.Post("/telegram/webhook", apiHandler.WebhookHandler)

		// Admin routes, JWT required
		r.Route("/admin", func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			// User routes
			r.Get("/users", apiHandler.ListUsersHandler)
			r.Get("/users/{userID}", apiHandler.GetUserHandler)
			r.Delete("/users/{userID}", apiHandler.DeleteUserHandler)
			r.Post("/users/{userID}/anonymize", apiHandler.AnonymizeHandler)

			// Ledger routes
			r.Get("/users/{userID}/messages", apiHandler.ListMessagesHandler)
			r.Get("/users/{userID}/stats", apiHandler.StatsHandler)
		})
	})

	return r
}
