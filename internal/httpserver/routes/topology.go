package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/switchboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver/handlers"
)

func init() { Register(registerTopology) }

func registerTopology(r chi.Router, d deps.Deps) {
	api := r.With(guard(d)...)
	api.Get("/api/topology", handlers.Topology(d))
	api.Put("/api/topology/display", handlers.SetDisplay(d))
	api.Get("/api/groups/{group}", handlers.Group(d))
	api.Put("/api/groups/{group}", handlers.Select(d))
	api.Get("/api/groups/{group}/leaf", handlers.Leaf(d))
}
