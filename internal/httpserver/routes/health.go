package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/switchboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver/mw"
)

func init() { Register(registerHealth) }

func registerHealth(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	cidrs := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	cidrs.Get("/readyz", handlers.Readyz(d))
	cidrs.Get("/infra", handlers.Infra(d))
	if d.Metrics != nil {
		cidrs.Method("GET", "/metrics", d.Metrics)
	}
}
