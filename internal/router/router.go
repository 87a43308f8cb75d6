package router

import (
	"net/http"

	"engagehub/internal/handlers/api/v1/rewards"
	"engagehub/internal/middleware"
	"engagehub/internal/response"
	"engagehub/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Options tune the HTTP surface
type Options struct {
	// RateLimitPerMinute is per client IP, zero disables limiting
	RateLimitPerMinute int
	Logging            *middleware.LoggingConfig
}

// SetupRouter configures all HTTP routes and returns the main handler
func SetupRouter(serviceCollection *services.ServiceCollection, responseBuilder *response.Builder, opts Options, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID(logger))
	r.Use(middleware.Recovery(responseBuilder))
	r.Use(middleware.StructuredLogging(opts.Logging))
	if opts.RateLimitPerMinute > 0 {
		r.Use(middleware.NewRateLimiter(opts.RateLimitPerMinute, responseBuilder).Middleware)
	}
	r.Use(middleware.Actor(responseBuilder))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responseBuilder.WriteStatus(w, r, http.StatusNotFound, services.ErrorTypeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		responseBuilder.WriteStatus(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Get("/health", healthHandler(serviceCollection, responseBuilder))

	rewardsController := rewards.NewRewardsController(serviceCollection, logger, responseBuilder)
	r.Route("/api/v1", rewardsController.Routes)

	logger.Info("Router setup completed",
		zap.Bool("rate_limit_enabled", opts.RateLimitPerMinute > 0),
	)

	return r
}

func healthHandler(serviceCollection *services.ServiceCollection, responseBuilder *response.Builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := serviceCollection.HealthCheck(r.Context())

		status := http.StatusOK
		if health.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		responseBuilder.WriteJSON(w, r, responseBuilder.Success(r.Context(), health), status)
	}
}
