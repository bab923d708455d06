// Package rest wires the HTTP surface over the application services.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/application/services"
	"github.com/angryss/idp/infrastructure/config"
	"github.com/angryss/idp/interfaces/http/rest/handlers"
	"github.com/angryss/idp/interfaces/http/rest/middleware"
	"github.com/angryss/idp/pkg/observability"
)

// Router assembles the middleware stack and the resource routes.
type Router struct {
	cfg     *config.Config
	repos   *ports.Repositories
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewRouter(cfg *config.Config, repos *ports.Repositories, metrics *observability.Metrics, logger *zap.Logger) *Router {
	return &Router{cfg: cfg, repos: repos, metrics: metrics, logger: logger}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	teamSvc := services.NewTeamService(rt.repos, rt.logger)
	stackSvc := services.NewStackService(rt.repos, rt.logger)
	providerSvc := services.NewCloudProviderService(rt.repos, rt.logger)
	keySvc := services.NewAPIKeyService(rt.repos, rt.logger)

	teamHandler := handlers.NewTeamHandler(teamSvc, stackSvc, keySvc, rt.logger)
	stackHandler := handlers.NewStackHandler(stackSvc, rt.logger)
	providerHandler := handlers.NewCloudProviderHandler(providerSvc, stackSvc, rt.logger)
	keyHandler := handlers.NewAPIKeyHandler(keySvc, rt.logger)
	healthHandler := handlers.NewHealthHandler(rt.repos.Health, rt.metrics, rt.logger)

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	// Puts a deadline on the request context, so every backend call made
	// under it is bounded.
	router.Use(chimiddleware.Timeout(rt.cfg.RequestTimeout))
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.metrics))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health/live", healthHandler.Live)
	router.Get("/health/ready", healthHandler.Ready)
	router.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(rt.metrics.Registry(), promhttp.HandlerOpts{}))

	router.Route("/api/v1", func(r chi.Router) {
		if !rt.cfg.AuthDisabled {
			r.Use(middleware.Authenticate(keySvc))
		}

		r.Route("/teams", func(r chi.Router) {
			r.Post("/", teamHandler.Create)
			r.Get("/", teamHandler.List)
			r.Get("/by-name/{name}", teamHandler.GetByName)
			r.Get("/{teamID}", teamHandler.Get)
			r.Put("/{teamID}", teamHandler.Update)
			r.Delete("/{teamID}", teamHandler.Delete)
			r.Post("/{teamID}/deactivate", teamHandler.Deactivate)
			r.Get("/{teamID}/stacks", teamHandler.ListStacks)
			r.Get("/{teamID}/api-keys", teamHandler.ListAPIKeys)
		})

		r.Route("/stacks", func(r chi.Router) {
			r.Post("/", stackHandler.Create)
			r.Get("/", stackHandler.List)
			r.Post("/transfer", stackHandler.Transfer)
			r.Get("/by-cloud-name/{cloudName}", stackHandler.GetByCloudName)
			r.Get("/{stackID}", stackHandler.Get)
			r.Put("/{stackID}", stackHandler.Update)
			r.Delete("/{stackID}", stackHandler.Delete)
		})

		r.Route("/cloud-providers", func(r chi.Router) {
			r.Post("/", providerHandler.Create)
			r.Get("/", providerHandler.List)
			r.Get("/{providerID}", providerHandler.Get)
			r.Put("/{providerID}", providerHandler.Update)
			r.Delete("/{providerID}", providerHandler.Delete)
			r.Post("/{providerID}/enable", providerHandler.SetEnabled(true))
			r.Post("/{providerID}/disable", providerHandler.SetEnabled(false))
			r.Get("/{providerID}/stacks", providerHandler.ListStacks)
		})

		r.Route("/api-keys", func(r chi.Router) {
			// Credential management is for admin-typed keys only.
			if !rt.cfg.AuthDisabled {
				r.Use(middleware.RequireAdmin)
			}
			r.Post("/", keyHandler.Create)
			r.Get("/", keyHandler.List)
			r.Post("/prune-expired", keyHandler.PruneExpired)
			r.Get("/{keyID}", keyHandler.Get)
			r.Post("/{keyID}/rotate", keyHandler.Rotate)
			r.Delete("/{keyID}", keyHandler.Delete)
		})
	})

	return router
}
