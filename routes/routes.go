package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Hycient195/academia-pro-access/app"
	"github.com/Hycient195/academia-pro-access/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Logger)
	evaluationHandler := handlers.NewEvaluationHandler(deps.Aggregator, deps.Logger)
	policyHandler := handlers.NewPolicyHandler(deps.PolicyService, deps.Logger)
	auditHandler := handlers.NewAuditHandler(deps.AuditRecords, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Access decisions (require authentication)
		r.Route("/access", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Post("/evaluate", evaluationHandler.HandleEvaluateAccess)
		})

		// Policy administration (require admin role)
		r.Route("/policies", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.RequireRole("school-admin"))
			r.Get("/", policyHandler.HandleListPolicies)
			r.Post("/", policyHandler.HandleCreatePolicy)
			r.Post("/validate", policyHandler.HandleValidatePolicy)
			r.Get("/{id}", policyHandler.HandleGetPolicy)
			r.Put("/{id}", policyHandler.HandleUpdatePolicy)
			r.Delete("/{id}", policyHandler.HandleDeletePolicy)
			r.Post("/{id}/publish", policyHandler.HandlePublishPolicy)
			r.Post("/{id}/archive", policyHandler.HandleArchivePolicy)
			r.Post("/{id}/deprecate", policyHandler.HandleDeprecatePolicy)
		})

		// Audit trail (require admin role)
		r.Route("/audit", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.RequireRole("school-admin"))
			r.Get("/records", auditHandler.HandleListRecords)
			r.Get("/records/{id}", auditHandler.HandleGetRecord)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
