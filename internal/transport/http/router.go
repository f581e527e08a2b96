// Package http wires the orderbelld HTTP API and websocket endpoint.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/nhle/orderbell/internal/config"
	"github.com/nhle/orderbell/internal/model"
	"github.com/nhle/orderbell/internal/transport/http/handler"
	appmiddleware "github.com/nhle/orderbell/internal/transport/http/middleware"
)

// Hub is the websocket endpoint plus the stats it exposes.
type Hub interface {
	http.Handler
	handler.StatsSource
}

// Deps holds the services the router dispatches to.
type Deps struct {
	Orders   handler.OrderService
	Hub      Hub
	Verifier appmiddleware.Verifier
	DB       handler.Pinger
}

// NewRouter builds the application router. ctx bounds the rate limiter's
// background cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(appmiddleware.RequestLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	limiter := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	authMw := appmiddleware.Auth(deps.Verifier)

	healthH := handler.NewHealthHandler(deps.Hub, deps.DB)
	orderH := handler.NewOrderHandler(deps.Orders)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check", healthH.Check)
		r.With(limiter.Limit).Post("/orders", orderH.Place)

		// the token travels in the join frame, not a header
		r.With(limiter.Limit).Get("/ws", deps.Hub.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Use(appmiddleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin, model.RoleRider))

			r.Get("/orders", orderH.List)
			r.Get("/orders/{id}", orderH.Get)

			r.With(appmiddleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin)).
				Put("/orders/{id}/rider", orderH.AssignRider)
		})
	})

	return r
}
