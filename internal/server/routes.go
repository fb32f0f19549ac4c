package server

import (
	"net/http"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/postforge/postforge/internal/appid"
	"github.com/postforge/postforge/internal/observability"
	"github.com/postforge/postforge/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.opts.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	s.router.Method(http.MethodGet, "/metrics", newMetricsProxy(s.opts.MetricsPort))

	s.router.Route("/"+handlers.APIVersion, func(r chi.Router) {
		r.Route("/limits/{key}", func(r chi.Router) {
			r.Get("/", s.tracker.GetLimit)
			r.Put("/", s.tracker.PutLimit)
			r.Delete("/", s.tracker.DeleteLimit)
			r.Get("/countdown", s.tracker.Countdown)
		})
		r.Route("/credentials/{key}", func(r chi.Router) {
			r.Get("/", s.tracker.GetCredential)
			r.Put("/", s.tracker.PutCredential)
			r.Delete("/", s.tracker.DeleteCredential)
		})
	})

	// Admin signal endpoint (optional, requires POSTFORGE_ADMIN_TOKEN)
	s.registerAdminEndpoint()
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	tokenVar := appid.Get().EnvVar("ADMIN_TOKEN")
	adminToken := os.Getenv(tokenVar)
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + tokenVar + " set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
