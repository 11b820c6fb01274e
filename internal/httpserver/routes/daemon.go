package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/switchboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/switchboard/internal/httpserver/handlers"
)

func init() { Register(registerDaemon) }

func registerDaemon(r chi.Router, d deps.Deps) {
	api := r.With(guard(d)...)
	api.Get("/api/mode", handlers.Mode(d))
	api.Put("/api/mode", handlers.SetMode(d))
	api.Put("/api/tun", handlers.SetTun(d))
	api.Get("/api/connections", handlers.Connections(d))
	api.Delete("/api/connections/{id}", handlers.CloseConnection(d))
	api.Get("/api/rules", handlers.Rules(d))
	api.Get("/api/version", handlers.DaemonVersion(d))
}
