package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/secure-rag/app"
	"github.com/upb/secure-rag/handlers"
)

// SetupRoutes configures the gateway routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(120 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/healthz", handlers.HealthCheck())
	r.Get("/readyz", handlers.ReadinessCheck(readinessChecks(deps)))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)
		r.Post("/query", handlers.QueryHandler(deps.QueryService, deps.Logger))
	})

	return r
}

func readinessChecks(deps *app.Dependencies) map[string]handlers.HealthChecker {
	checks := map[string]handlers.HealthChecker{
		"redis": func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		},
	}
	if deps.DB != nil {
		checks["audit_db"] = deps.DB.HealthCheck
	}
	return checks
}
