package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/portraitforge/portraitforge/internal/observability"
	"github.com/portraitforge/portraitforge/internal/server/handlers"
	servermw "github.com/portraitforge/portraitforge/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	if s.metrics != nil {
		s.router.Method("GET", "/metrics", s.metrics)
	} else {
		s.router.Get("/metrics", MetricsHandler)
	}

	if s.generation != nil {
		s.router.Route("/v1", func(r chi.Router) {
			r.Post("/generations", s.generation.Create)
			r.Get("/generations", s.generation.ListGenerations)
			r.Get("/generations/{id}", s.generation.GetGeneration)
			r.Get("/artifacts/{id}", s.generation.GetArtifact)
			r.Get("/admission", s.generation.AdmissionStatus)
		})
	}

	if s.pprof {
		s.router.Mount("/debug", middleware.Profiler())
	}

	s.registerAdminEndpoints()
}

// registerAdminEndpoints registers the /admin routes when an admin token is configured.
func (s *Server) registerAdminEndpoints() {
	logger := observability.ServerLogger

	if s.adminToken == "" {
		if logger != nil {
			logger.Debug("Admin endpoints disabled (no admin token configured)")
		}
		return
	}

	signalHandler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.adminToken,
		RateLimit: 10,
		RateBurst: 5,
		Manager:   nil,
	})

	s.router.Route("/admin", func(r chi.Router) {
		r.Post("/signal", signalHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(servermw.BearerToken(s.adminToken))
			if s.generation != nil {
				r.Post("/admission/reset", s.generation.ResetAdmission)
			}
		})
	})

	if logger != nil {
		logger.Info("Admin endpoints enabled",
			zap.String("path", "/admin"),
			zap.String("auth", "bearer token"),
			zap.String("signal_rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoints enabled - ensure this server is not exposed to public internet")
	}
}
