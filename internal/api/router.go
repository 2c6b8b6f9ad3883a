// Package api assembles the HTTP surface: routing, middleware and the
// version/health endpoints.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ledgerchat/ledgerchat/internal/api/handlers"
	"github.com/ledgerchat/ledgerchat/internal/api/middleware"
	"github.com/ledgerchat/ledgerchat/internal/config"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.TeamExtractor)
	r.Use(middleware.Logger)
	if cfg.Telemetry.Enabled {
		r.Use(middleware.Telemetry)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Team-Id", "X-API-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.NewAPIKeyAuth().Middleware)

	// Health & info
	r.Get("/health", healthHandler(h))
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", h.Chat)

		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", h.ListContracts)
			r.Get("/{id}", h.GetContract)
			r.Delete("/{id}", h.DeleteContract)
		})

		r.Route("/receivables", func(r chi.Router) {
			r.Get("/", h.ListReceivables)
			r.Get("/{id}", h.GetReceivable)
			r.Delete("/{id}", h.DeleteReceivable)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", h.ListExpenses)
			r.Get("/{id}", h.GetExpense)
			r.Delete("/{id}", h.DeleteExpense)
		})

		r.Route("/recurring-expenses", func(r chi.Router) {
			r.Get("/", h.ListRecurringExpenses)
			r.Get("/{id}", h.GetRecurringExpense)
			r.Get("/{id}/upcoming", h.UpcomingOccurrences)
			r.Delete("/{id}", h.DeleteRecurringExpense)
		})

		r.Get("/teams", h.ListTeams)
	})

	return r
}

func healthHandler(h *handlers.Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK
		if err := h.Store.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  status,
			"service": "ledgerchat",
		})
	}
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "ledgerchat",
		})
	}
}
